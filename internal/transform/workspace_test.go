package transform_test

import (
	"os"
	"path/filepath"
	"testing"

	"veneer/internal/document"
	"veneer/internal/transform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func TestRenameEditsAttachPrefixAndSuffix(t *testing.T) {
	f := newFixture(t)
	edit := transform.RenameEdits("bar", []transform.RenameLocation{
		{URI: generatedURI, Range: f.gen(1, 4), Prefix: "--", Suffix: ""},
		{URI: generatedURI, Range: f.gen(9, 12), Prefix: "x-", Suffix: "-y"},
	}, f.mapper)

	require.NotNil(t, edit)
	assert.Equal(t, []protocol.TextEdit{
		{Range: f.src(10, 13), NewText: "--bar"},
		{Range: f.src(18, 21), NewText: "x-bar-y"},
	}, edit.Changes[sourceURI])
}

func TestRenameAcrossFiles(t *testing.T) {
	// Renaming --foo to --bar in a.css also touches b.css, which is not the
	// document being mapped.
	a := document.New("file:///a.css", document.CSS, 1, ":root { --foo: red; }\n.x { color: var(--foo); }\n")
	other := protocol.Range{
		Start: protocol.Position{Line: 3, Character: 17},
		End:   protocol.Position{Line: 3, Character: 22},
	}
	override := "--bar"

	edit := transform.RenameEdits("bar", []transform.RenameLocation{
		{URI: a.URI, Range: a.RangeAt(8, 13), Prefix: "--"},
		{URI: a.URI, Range: a.RangeAt(38, 43), Prefix: "--"},
		{URI: "file:///b.css", Range: other, Text: &override},
	}, transform.Identity(a.URI))

	require.NotNil(t, edit)
	assert.Equal(t, []protocol.TextEdit{{Range: other, NewText: "--bar"}}, edit.Changes["file:///b.css"])
	require.Len(t, edit.Changes[a.URI], 2)
	assert.Equal(t, "--bar", edit.Changes[a.URI][0].NewText)
	assert.Equal(t, a.RangeAt(38, 43), edit.Changes[a.URI][1].Range)
}

func TestWorkspaceEditPassesThroughOtherDocumentsAndFileOps(t *testing.T) {
	f := newFixture(t)
	version := protocol.Integer(3)
	create := protocol.CreateFile{Kind: "create", URI: "file:///site/new.css"}
	foreign := protocol.TextDocumentEdit{
		TextDocument: protocol.OptionalVersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: "file:///site/other.html"},
		},
		Edits: []any{protocol.TextEdit{Range: f.gen(0, 1), NewText: "z"}},
	}

	got := transform.WorkspaceEdit(&protocol.WorkspaceEdit{
		Changes: map[protocol.DocumentUri][]protocol.TextEdit{
			generatedURI:              {{Range: f.gen(1, 4), NewText: "span"}, {Range: f.unmappable(), NewText: "q"}},
			"file:///site/other.html": {{Range: f.gen(1, 4), NewText: "span"}},
		},
		DocumentChanges: []any{
			create,
			protocol.TextDocumentEdit{
				TextDocument: protocol.OptionalVersionedTextDocumentIdentifier{
					TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: generatedURI},
					Version:                &version,
				},
				Edits: []any{protocol.TextEdit{Range: f.gen(9, 12), NewText: "x"}},
			},
			foreign,
		},
	}, f.mapper)

	assert.Equal(t, []protocol.TextEdit{{Range: f.src(10, 13), NewText: "span"}}, got.Changes[sourceURI])
	assert.Equal(t, f.gen(1, 4), got.Changes["file:///site/other.html"][0].Range)
	require.Len(t, got.DocumentChanges, 3)
	assert.Equal(t, create, got.DocumentChanges[0])
	mapped := got.DocumentChanges[1].(protocol.TextDocumentEdit)
	assert.Equal(t, sourceURI, mapped.TextDocument.URI)
	assert.Equal(t, &version, mapped.TextDocument.Version)
	assert.Equal(t, []any{protocol.TextEdit{Range: f.src(18, 21), NewText: "x"}}, mapped.Edits)
	assert.Equal(t, foreign, got.DocumentChanges[2])
}

func TestRenameFileEditKeepsExtension(t *testing.T) {
	rename, ok := transform.RenameFileEdit("file:///site/styles/old.css", "new")
	require.True(t, ok)
	assert.Equal(t, "file:///site/styles/new.css", rename.NewURI)
	assert.Equal(t, "rename", rename.Kind)

	rename, ok = transform.RenameFileEdit("file:///site/styles/old.css", "theme.scss")
	require.True(t, ok)
	assert.Equal(t, "file:///site/styles/theme.scss", rename.NewURI)
}

func TestRenameFileEditKeepsSubdirectories(t *testing.T) {
	rename, ok := transform.RenameFileEdit("file:///site/styles/old.css", "sub/new")
	require.True(t, ok)
	assert.Equal(t, "file:///site/styles/sub/new.css", rename.NewURI)

	rename, ok = transform.RenameFileEdit("file:///site/styles/old.css", "../shared/base.scss")
	require.True(t, ok)
	assert.Equal(t, "file:///site/shared/base.scss", rename.NewURI)
}

func TestRenamedImport(t *testing.T) {
	for _, tc := range []struct{ old, newName, want string }{
		{"b.css", "base", "base.css"},
		{"b.css", "base.scss", "base.scss"},
		{"./b.css", "base", "./base.css"},
		{"partials/b.css", "base", "partials/base.css"},
		{"b.css", "sub/base", "sub/base.css"},
		{"theme", "brand", "brand"},
	} {
		assert.Equal(t, tc.want, transform.RenamedImport(tc.old, tc.newName), "%s -> %s", tc.old, tc.newName)
	}
}

func TestWorkspaceEditMapsPointerEdits(t *testing.T) {
	f := newFixture(t)
	plain := &protocol.TextEdit{Range: f.gen(1, 4), NewText: "span"}
	annotated := &protocol.AnnotatedTextEdit{
		TextEdit:     protocol.TextEdit{Range: f.gen(9, 12), NewText: "x"},
		AnnotationID: "rename",
	}

	got := transform.WorkspaceEdit(&protocol.WorkspaceEdit{
		DocumentChanges: []any{protocol.TextDocumentEdit{
			TextDocument: protocol.OptionalVersionedTextDocumentIdentifier{
				TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: generatedURI},
			},
			Edits: []any{plain, annotated, (*protocol.TextEdit)(nil)},
		}},
	}, f.mapper)

	require.Len(t, got.DocumentChanges, 1)
	mapped := got.DocumentChanges[0].(protocol.TextDocumentEdit)
	assert.Equal(t, []any{
		protocol.TextEdit{Range: f.src(10, 13), NewText: "span"},
		protocol.AnnotatedTextEdit{
			TextEdit:     protocol.TextEdit{Range: f.src(18, 21), NewText: "x"},
			AnnotationID: "rename",
		},
	}, mapped.Edits)
	assert.Equal(t, f.gen(1, 4), plain.Range)
}

func TestFileChangesToWorkspaceEdit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.css")
	require.NoError(t, os.WriteFile(path, []byte("@import \"old.css\";\n"), 0o644))
	uri := document.FileNameToURI(path)
	newURI := document.FileNameToURI(filepath.Join(dir, "fresh.css"))

	edit := transform.FileChangesToWorkspaceEdit([]transform.FileTextChanges{
		{URI: uri, Changes: []transform.TextChange{{Start: 9, Length: 7, NewText: "new.css"}}},
		{URI: newURI, IsNewFile: true, Changes: []transform.TextChange{{Start: 0, NewText: "a {}"}}},
		{URI: document.FileNameToURI(filepath.Join(dir, "missing.css")), Changes: []transform.TextChange{{}}},
	}, document.NewStore())

	require.Len(t, edit.DocumentChanges, 3)
	first := edit.DocumentChanges[0].(protocol.TextDocumentEdit)
	assert.Nil(t, first.TextDocument.Version)
	assert.Equal(t, []any{protocol.TextEdit{
		Range: protocol.Range{
			Start: protocol.Position{Line: 0, Character: 9},
			End:   protocol.Position{Line: 0, Character: 16},
		},
		NewText: "new.css",
	}}, first.Edits)
	assert.Equal(t, protocol.CreateFile{Kind: "create", URI: newURI}, edit.DocumentChanges[1])
	assert.Equal(t, newURI, edit.DocumentChanges[2].(protocol.TextDocumentEdit).TextDocument.URI)
}

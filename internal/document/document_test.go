package document_test

import (
	"testing"

	"veneer/internal/document"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func TestOffsetPositionRoundTrip(t *testing.T) {
	// "é" is two bytes and one UTF-16 unit, "😀" is four bytes and two units.
	doc := document.New("file:///a.css", document.CSS, 1, "a {\n  é: 😀x;\n}\n")

	tests := []struct {
		pos    protocol.Position
		offset int
	}{
		{protocol.Position{Line: 0, Character: 0}, 0},
		{protocol.Position{Line: 0, Character: 3}, 3},
		{protocol.Position{Line: 1, Character: 2}, 6},
		{protocol.Position{Line: 1, Character: 3}, 8},
		{protocol.Position{Line: 1, Character: 5}, 10},
		{protocol.Position{Line: 1, Character: 7}, 14},
		{protocol.Position{Line: 2, Character: 1}, 18},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.offset, doc.OffsetAt(tt.pos), "offset of %v", tt.pos)
		assert.Equal(t, tt.pos, doc.PositionAt(tt.offset), "position of %d", tt.offset)
	}
}

func TestOffsetAtClamps(t *testing.T) {
	doc := document.New("file:///a.css", document.CSS, 1, "ab\r\ncd")

	assert.Equal(t, 2, doc.OffsetAt(protocol.Position{Line: 0, Character: 40}))
	assert.Equal(t, len(doc.Text), doc.OffsetAt(protocol.Position{Line: 9, Character: 0}))
	assert.Equal(t, protocol.Position{Line: 1, Character: 2}, doc.PositionAt(1000))
}

func TestWithChanges(t *testing.T) {
	doc := document.New("file:///a.css", document.CSS, 1, "a { color: red; }")

	start := protocol.Position{Line: 0, Character: 11}
	end := protocol.Position{Line: 0, Character: 14}
	next := doc.WithChanges(2, []any{
		protocol.TextDocumentContentChangeEvent{
			Range: &protocol.Range{Start: start, End: end},
			Text:  "blue",
		},
	})

	assert.Equal(t, "a { color: blue; }", next.Text)
	assert.Equal(t, protocol.Integer(2), next.Version)
	assert.Equal(t, "a { color: red; }", doc.Text, "snapshots are immutable")

	whole := next.WithChanges(3, []any{protocol.TextDocumentContentChangeEventWhole{Text: "b {}"}})
	assert.Equal(t, "b {}", whole.Text)
}

func TestStoreLifecycle(t *testing.T) {
	store := document.NewStore()
	doc := store.Open(protocol.TextDocumentItem{
		URI:        "file:///x/page.tmpl",
		LanguageID: "",
		Version:    1,
		Text:       "@if cond\n<div></div>",
	})
	assert.Equal(t, document.Template, doc.Dialect)

	changed, err := store.Change(protocol.VersionedTextDocumentIdentifier{
		TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: doc.URI},
		Version:                2,
	}, []any{protocol.TextDocumentContentChangeEventWhole{Text: "<p></p>"}})
	require.NoError(t, err)
	got, ok := store.Get(doc.URI)
	require.True(t, ok)
	assert.Same(t, changed, got)

	_, ok = store.Close(doc.URI)
	assert.True(t, ok)
	_, err = store.Change(protocol.VersionedTextDocumentIdentifier{
		TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: doc.URI},
	}, nil)
	assert.ErrorIs(t, err, document.ErrNotOpen)
}

func TestFileNameURIRoundTrip(t *testing.T) {
	uri := document.FileNameToURI("/tmp/some dir/a.css")
	assert.Equal(t, protocol.DocumentUri("file:///tmp/some%20dir/a.css"), uri)

	path, err := document.URIToFileName(uri)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/some dir/a.css", path)
}

func TestResolveLink(t *testing.T) {
	base := protocol.DocumentUri("file:///ws/pages/index.html")
	for _, tc := range []struct {
		target string
		want   protocol.DocumentUri
		ok     bool
	}{
		{"style.css", "file:///ws/pages/style.css", true},
		{"../img/a.png?v=2#top", "file:///ws/img/a.png", true},
		{"/abs/b.css", "file:///abs/b.css", true},
		{"https://example.com/x.css", "https://example.com/x.css", true},
		{"#section", "", false},
		{"data:image/png;base64,AAAA", "", false},
		{"  ", "", false},
	} {
		t.Run(tc.target, func(t *testing.T) {
			got, ok := document.ResolveLink(base, tc.target)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

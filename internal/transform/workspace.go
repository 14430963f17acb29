package transform

import (
	"net/url"
	"path"
	"strings"

	"veneer/internal/document"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

var log = commonlog.GetLogger("veneer.transform")

// WorkspaceEdit maps the edits that target the generated document and
// leaves edits for other documents and file operations as they are.
func WorkspaceEdit(edit *protocol.WorkspaceEdit, m Mapper) *protocol.WorkspaceEdit {
	if edit == nil {
		return nil
	}
	out := &protocol.WorkspaceEdit{ChangeAnnotations: edit.ChangeAnnotations}
	if edit.Changes != nil {
		out.Changes = make(map[protocol.DocumentUri][]protocol.TextEdit, len(edit.Changes))
		for uri, edits := range edit.Changes {
			if m.owns(uri) {
				out.Changes[m.SourceURI] = TextEdits(edits, m)
			} else {
				out.Changes[uri] = edits
			}
		}
	}
	for _, change := range edit.DocumentChanges {
		switch c := change.(type) {
		case protocol.TextDocumentEdit:
			out.DocumentChanges = append(out.DocumentChanges, textDocumentEdit(c, m))
		case *protocol.TextDocumentEdit:
			out.DocumentChanges = append(out.DocumentChanges, textDocumentEdit(*c, m))
		default:
			out.DocumentChanges = append(out.DocumentChanges, change)
		}
	}
	return out
}

func textDocumentEdit(edit protocol.TextDocumentEdit, m Mapper) protocol.TextDocumentEdit {
	if !m.owns(edit.TextDocument.URI) {
		return edit
	}
	out := protocol.TextDocumentEdit{TextDocument: edit.TextDocument}
	out.TextDocument.URI = m.SourceURI
	out.Edits = make([]any, 0, len(edit.Edits))
	for _, raw := range edit.Edits {
		switch e := raw.(type) {
		case *protocol.TextEdit:
			if e != nil {
				raw = *e
			}
		case *protocol.AnnotatedTextEdit:
			if e != nil {
				raw = *e
			}
		}
		switch e := raw.(type) {
		case protocol.TextEdit:
			if r, ok := m.Range(e.Range); ok {
				out.Edits = append(out.Edits, protocol.TextEdit{Range: r, NewText: e.NewText})
			}
		case protocol.AnnotatedTextEdit:
			if r, ok := m.Range(e.Range); ok {
				e.Range = r
				out.Edits = append(out.Edits, e)
			}
		default:
			log.Warningf("dropping edit of unknown type %T", raw)
		}
	}
	return out
}

// RenameLocation is one place a rename touches. The replacement text is
// Prefix + name + Suffix, where name is Text when set and the requested new
// name otherwise.
type RenameLocation struct {
	URI    protocol.DocumentUri
	Range  protocol.Range
	Prefix string
	Suffix string
	Text   *string
}

// RenameEdits turns rename locations into a workspace edit. Locations in the
// generated document are mapped and dropped when they do not map; the
// prefix and suffix are attached after mapping.
func RenameEdits(newName string, locations []RenameLocation, m Mapper) *protocol.WorkspaceEdit {
	if len(locations) == 0 {
		return nil
	}
	changes := make(map[protocol.DocumentUri][]protocol.TextEdit)
	for _, loc := range locations {
		uri, r, ok := m.location(loc.URI, loc.Range)
		if !ok {
			continue
		}
		name := newName
		if loc.Text != nil {
			name = *loc.Text
		}
		changes[uri] = append(changes[uri], protocol.TextEdit{
			Range:   r,
			NewText: loc.Prefix + name + loc.Suffix,
		})
	}
	return &protocol.WorkspaceEdit{Changes: changes}
}

// TextChange is a byte-offset edit within one file.
type TextChange struct {
	Start   int
	Length  int
	NewText string
}

type FileTextChanges struct {
	URI       protocol.DocumentUri
	Changes   []TextChange
	IsNewFile bool
}

// FileChangesToWorkspaceEdit converts offset-based file edits into document
// changes. New files are created before they are edited; files that cannot
// be loaded are skipped.
func FileChangesToWorkspaceEdit(files []FileTextChanges, docs document.Source) *protocol.WorkspaceEdit {
	edit := &protocol.WorkspaceEdit{}
	for _, file := range files {
		var doc *document.Document
		if file.IsNewFile {
			edit.DocumentChanges = append(edit.DocumentChanges, protocol.CreateFile{Kind: "create", URI: file.URI})
			doc = document.New(file.URI, document.DialectFor("", file.URI), 0, "")
		} else {
			var err error
			doc, err = docs.Load(file.URI)
			if err != nil {
				log.Warningf("skipping edits for %s: %s", file.URI, err)
				continue
			}
		}

		edits := make([]any, 0, len(file.Changes))
		for _, change := range file.Changes {
			edits = append(edits, protocol.TextEdit{
				Range:   doc.RangeAt(change.Start, change.Start+change.Length),
				NewText: change.NewText,
			})
		}
		edit.DocumentChanges = append(edit.DocumentChanges, protocol.TextDocumentEdit{
			TextDocument: protocol.OptionalVersionedTextDocumentIdentifier{
				TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: file.URI},
			},
			Edits: edits,
		})
	}
	return edit
}

// RenameFileEdit renames the file behind oldURI to newName. newName is
// relative to the file's directory and may name a subdirectory. A new name
// without an extension keeps the old extension.
func RenameFileEdit(oldURI protocol.DocumentUri, newName string) (protocol.RenameFile, bool) {
	u, err := url.Parse(string(oldURI))
	if err != nil || newName == "" {
		return protocol.RenameFile{}, false
	}
	u.Path = path.Join(path.Dir(u.Path), withExt(newName, path.Ext(u.Path)))
	return protocol.RenameFile{Kind: "rename", OldURI: oldURI, NewURI: u.String()}, true
}

// RenamedImport is the import text that reaches the file a RenameFileEdit
// with newName produces, written the way oldText was: same directory
// prefix, and an extension only if oldText had one.
func RenamedImport(oldText, newName string) string {
	name := withExt(newName, path.Ext(oldText))
	dir := path.Dir(oldText)
	if dir == "." {
		if strings.HasPrefix(oldText, "./") {
			return "./" + path.Clean(name)
		}
		return path.Clean(name)
	}
	return path.Join(dir, name)
}

func withExt(name, ext string) string {
	if path.Ext(path.Base(name)) == "" {
		return name + ext
	}
	return name
}

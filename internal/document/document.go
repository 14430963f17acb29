// Package document holds immutable text snapshots of the files an editor
// has open, and the offset/position arithmetic every other package relies on.
package document

import (
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

type Dialect string

const (
	CSS      Dialect = "css"
	SCSS     Dialect = "scss"
	Less     Dialect = "less"
	PostCSS  Dialect = "postcss"
	HTML     Dialect = "html"
	Template Dialect = "tmpl"
)

var extensions = map[string]Dialect{
	".css":     CSS,
	".scss":    SCSS,
	".less":    Less,
	".pcss":    PostCSS,
	".postcss": PostCSS,
	".html":    HTML,
	".htm":     HTML,
	".tmpl":    Template,
}

// DialectFor picks a dialect from the editor's language id, falling back to
// the file extension. Unknown documents get an empty dialect.
func DialectFor(languageID string, uri protocol.DocumentUri) Dialect {
	switch Dialect(languageID) {
	case CSS, SCSS, Less, PostCSS, HTML, Template:
		return Dialect(languageID)
	}
	return DialectForExtension(filepath.Ext(string(uri)))
}

func DialectForExtension(ext string) Dialect {
	return extensions[strings.ToLower(ext)]
}

// RegisterExtension maps an additional file extension to a dialect.
// It must be called before the server starts serving requests.
func RegisterExtension(ext string, dialect Dialect) {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	extensions[strings.ToLower(ext)] = dialect
}

// Document is a snapshot of one version of a text document. It is never
// mutated after creation; edits produce a new Document.
type Document struct {
	URI     protocol.DocumentUri
	Version protocol.Integer
	Dialect Dialect
	Text    string

	lines []int // byte offset of the first character of each line
}

func New(uri protocol.DocumentUri, dialect Dialect, version protocol.Integer, text string) *Document {
	return &Document{
		URI:     uri,
		Version: version,
		Dialect: dialect,
		Text:    text,
		lines:   lineStarts(text),
	}
}

func lineStarts(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func (d *Document) LineCount() int {
	return len(d.lines)
}

// LineStart returns the byte offset where line begins, clamped to the
// document.
func (d *Document) LineStart(line int) int {
	if line < 0 {
		return 0
	}
	if line >= len(d.lines) {
		return len(d.Text)
	}
	return d.lines[line]
}

// lineEnd is the offset of the line terminator (or end of text).
func (d *Document) lineEnd(line int) int {
	end := len(d.Text)
	if line+1 < len(d.lines) {
		end = d.lines[line+1] - 1
	}
	if end > d.lines[line] && d.Text[end-1] == '\r' {
		end--
	}
	return end
}

// OffsetAt converts an editor position (UTF-16 code units) into a byte
// offset. Positions past the end of a line clamp to the line end; lines
// past the end of the document clamp to the end of the text.
func (d *Document) OffsetAt(pos protocol.Position) int {
	line := int(pos.Line)
	if line >= len(d.lines) {
		return len(d.Text)
	}
	offset := d.lines[line]
	end := d.lineEnd(line)

	var units uint32
	for offset < end {
		r, size := utf8.DecodeRuneInString(d.Text[offset:end])
		n := uint32(1)
		if r > 0xFFFF {
			n = 2
		}
		if units+n > pos.Character {
			break
		}
		units += n
		offset += size
	}
	return offset
}

// PositionAt converts a byte offset into an editor position.
func (d *Document) PositionAt(offset int) protocol.Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(d.Text) {
		offset = len(d.Text)
	}
	line := sort.Search(len(d.lines), func(i int) bool { return d.lines[i] > offset }) - 1

	var units uint32
	for _, r := range d.Text[d.lines[line]:offset] {
		if r > 0xFFFF {
			units += 2
		} else {
			units++
		}
	}
	return protocol.Position{Line: protocol.UInteger(line), Character: units}
}

func (d *Document) RangeAt(start, end int) protocol.Range {
	return protocol.Range{Start: d.PositionAt(start), End: d.PositionAt(end)}
}

// Offsets returns the byte span covered by r.
func (d *Document) Offsets(r protocol.Range) (int, int) {
	return d.OffsetAt(r.Start), d.OffsetAt(r.End)
}

// Slice returns the text covered by r.
func (d *Document) Slice(r protocol.Range) string {
	start, end := d.Offsets(r)
	if end < start {
		return ""
	}
	return d.Text[start:end]
}

// FullRange spans the entire document.
func (d *Document) FullRange() protocol.Range {
	return d.RangeAt(0, len(d.Text))
}

// WithChanges applies editor content changes in order and returns the
// resulting snapshot. Whole-document changes replace the text.
func (d *Document) WithChanges(version protocol.Integer, changes []any) *Document {
	text := d.Text
	current := d
	for _, raw := range changes {
		switch change := raw.(type) {
		case protocol.TextDocumentContentChangeEvent:
			text = applyChange(current, change)
		case protocol.TextDocumentContentChangeEventWhole:
			text = change.Text
		default:
			continue
		}
		current = New(d.URI, d.Dialect, version, text)
	}
	if current == d {
		return New(d.URI, d.Dialect, version, text)
	}
	return current
}

func applyChange(d *Document, change protocol.TextDocumentContentChangeEvent) string {
	if change.Range == nil {
		return change.Text
	}
	start, end := d.Offsets(*change.Range)
	if end < start {
		start, end = end, start
	}
	return d.Text[:start] + change.Text + d.Text[end:]
}

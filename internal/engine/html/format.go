package html

import (
	"strings"

	"veneer/internal/config"
	"veneer/internal/engine"

	sitter "github.com/smacker/go-tree-sitter"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// preformatted elements keep their content as written.
var preformatted = map[string]bool{"pre": true, "textarea": true}

// Format re-indents the document by element depth. The result is one edit
// replacing the whole document, or no edits when nothing changes. A range
// limits which lines are re-indented.
func (e *Engine) Format(req *engine.Request, rng *protocol.Range, opts protocol.FormattingOptions) ([]protocol.TextEdit, error) {
	m := parsed(req)
	if m == nil || !config.Bool(req.Settings, "format.enable", true) {
		return nil, nil
	}
	doc := req.Document
	unit := config.IndentUnit(opts)

	lines := strings.Split(doc.Text, "\n")
	for i, line := range lines {
		if rng != nil && (i < int(rng.Start.Line) || i > int(rng.End.Line)) {
			continue
		}
		content, cr := strings.CutSuffix(line, "\r")
		trimmed := strings.TrimSpace(content)
		if trimmed == "" {
			lines[i] = ""
			if cr {
				lines[i] = "\r"
			}
			continue
		}
		first := doc.LineStart(i) + strings.Index(content, trimmed)
		depth, keep := m.indentAt(first)
		if keep {
			continue
		}
		lines[i] = strings.Repeat(unit, depth) + trimmed
		if cr {
			lines[i] += "\r"
		}
	}

	formatted := strings.Join(lines, "\n")
	if formatted == doc.Text {
		return []protocol.TextEdit{}, nil
	}
	log.Debugf("reformatted %s", doc.URI)
	return []protocol.TextEdit{{
		Range:   doc.FullRange(),
		NewText: "\n" + strings.TrimSpace(formatted) + "\n",
	}}, nil
}

// indentAt returns the element depth of a line whose first character is at
// offset, and whether the line must be kept as it is.
func (m *markup) indentAt(offset int) (int, bool) {
	n := m.tree.NodeAt(offset)
	if n == nil {
		return 0, false
	}
	switch n.Type() {
	case nodeRawText, nodeComment:
		if int(n.StartByte()) < offset {
			return 0, true
		}
	}

	depth := 0
	var prev *sitter.Node
	for a := n; a != nil; prev, a = a, a.Parent() {
		if !isElement(a) || int(a.StartByte()) >= offset {
			continue
		}
		// the end tag line sits at the element's own depth
		if prev != nil && prev.Type() == nodeEndTag {
			continue
		}
		if preformatted[strings.ToLower(m.text(tagName(a)))] {
			if open := openTag(a); open != nil && int(open.EndByte()) <= offset {
				return 0, true
			}
		}
		depth++
	}
	return depth, false
}

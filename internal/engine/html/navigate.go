package html

import (
	"strings"

	"veneer/internal/document"
	"veneer/internal/engine"
	"veneer/internal/sitteradapter"
	"veneer/internal/transform"

	sitter "github.com/smacker/go-tree-sitter"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// linkAttributes name the attributes whose values are links.
var linkAttributes = []string{"href", "src"}

// pairedTagNames returns the tag name nodes of the element whose start or
// end tag name is at offset: the start tag's first.
func (m *markup) pairedTagNames(offset int) []*sitter.Node {
	n := m.tree.NodeAt(offset)
	if n == nil || n.Type() != nodeTagName {
		return nil
	}
	tag := n.Parent()
	if tag == nil {
		return nil
	}
	element := tag.Parent()
	if element == nil || !isElement(element) {
		return nil
	}
	names := []*sitter.Node{tagName(element)}
	if end := sitteradapter.ChildOfType(sitteradapter.ChildOfType(element, nodeEndTag), nodeTagName); end != nil {
		names = append(names, end)
	}
	if names[0] == nil {
		return nil
	}
	return names
}

func (e *Engine) Highlights(req *engine.Request, pos protocol.Position) ([]protocol.DocumentHighlight, error) {
	m := parsed(req)
	if m == nil {
		return nil, nil
	}
	var highlights []protocol.DocumentHighlight
	for _, n := range m.pairedTagNames(req.Document.OffsetAt(pos)) {
		kind := protocol.DocumentHighlightKindRead
		highlights = append(highlights, protocol.DocumentHighlight{
			Range: sitteradapter.Range(req.Document, n),
			Kind:  &kind,
		})
	}
	return highlights, nil
}

func (e *Engine) PrepareRename(req *engine.Request, pos protocol.Position) (*protocol.Range, error) {
	m := parsed(req)
	if m == nil {
		return nil, nil
	}
	offset := req.Document.OffsetAt(pos)
	for _, n := range m.pairedTagNames(offset) {
		start, end := sitteradapter.Offsets(n)
		if start <= offset && offset <= end {
			r := req.Document.RangeAt(start, end)
			return &r, nil
		}
	}
	return nil, nil
}

func (e *Engine) Rename(req *engine.Request, pos protocol.Position, newName string) (*engine.RenameResult, error) {
	m := parsed(req)
	if m == nil || newName == "" {
		return nil, nil
	}
	names := m.pairedTagNames(req.Document.OffsetAt(pos))
	if len(names) == 0 {
		return nil, nil
	}
	res := &engine.RenameResult{}
	for _, n := range names {
		res.Locations = append(res.Locations, transform.RenameLocation{
			URI:   req.Document.URI,
			Range: sitteradapter.Range(req.Document, n),
		})
	}
	return res, nil
}

func (e *Engine) Links(req *engine.Request) ([]protocol.DocumentLink, error) {
	m := parsed(req)
	if m == nil {
		return nil, nil
	}
	var links []protocol.DocumentLink
	sitteradapter.Walk(m.tree.Root, func(n *sitter.Node) bool {
		if n.Type() != nodeStartTag && n.Type() != nodeSelfClosingTag {
			return true
		}
		for _, name := range linkAttributes {
			value, target, ok := m.attribute(n, name)
			if !ok || value.Type() != nodeAttributeValue {
				continue
			}
			uri, ok := document.ResolveLink(req.Document.URI, target)
			if !ok || strings.HasPrefix(uri, "javascript:") {
				continue
			}
			links = append(links, protocol.DocumentLink{
				Range:  sitteradapter.Range(req.Document, value),
				Target: &uri,
			})
		}
		return false
	})
	return links, nil
}

func (e *Engine) Symbols(req *engine.Request) ([]protocol.DocumentSymbol, error) {
	m := parsed(req)
	if m == nil {
		return nil, nil
	}
	return m.symbolsIn(m.tree.Root), nil
}

func (m *markup) symbolsIn(parent *sitter.Node) []protocol.DocumentSymbol {
	if parent == nil {
		return nil
	}
	var out []protocol.DocumentSymbol
	for i := 0; i < int(parent.NamedChildCount()); i++ {
		n := parent.NamedChild(i)
		if !isElement(n) {
			continue
		}
		name := tagName(n)
		if name == nil {
			continue
		}
		out = append(out, protocol.DocumentSymbol{
			Name:           m.symbolName(n),
			Kind:           protocol.SymbolKindField,
			Range:          sitteradapter.Range(m.doc, n),
			SelectionRange: sitteradapter.Range(m.doc, name),
			Children:       m.symbolsIn(n),
		})
	}
	return out
}

// symbolName renders an element as a selector: tag#id.class.
func (m *markup) symbolName(element *sitter.Node) string {
	tag := openTag(element)
	name := strings.ToLower(m.text(tagName(element)))
	if _, id, ok := m.attribute(tag, "id"); ok && id != "" {
		name += "#" + id
	}
	if _, class, ok := m.attribute(tag, "class"); ok {
		for _, c := range strings.Fields(class) {
			name += "." + c
		}
	}
	return name
}

func (e *Engine) FoldingRanges(req *engine.Request) ([]protocol.FoldingRange, error) {
	m := parsed(req)
	if m == nil {
		return nil, nil
	}
	var ranges []protocol.FoldingRange
	sitteradapter.Walk(m.tree.Root, func(n *sitter.Node) bool {
		start, end := n.StartPoint().Row, n.EndPoint().Row
		switch {
		case isElement(n):
			// keep the end tag line visible
			if end > start && sitteradapter.ChildOfType(n, nodeEndTag) != nil {
				end--
			}
			if end > start {
				ranges = append(ranges, protocol.FoldingRange{StartLine: start, EndLine: end})
			}
		case n.Type() == nodeComment:
			if end > start {
				kind := string(protocol.FoldingRangeKindComment)
				ranges = append(ranges, protocol.FoldingRange{StartLine: start, EndLine: end, Kind: &kind})
			}
			return false
		}
		return true
	})
	return ranges, nil
}

func (e *Engine) SelectionRanges(req *engine.Request, positions []protocol.Position) ([]*protocol.SelectionRange, error) {
	m := parsed(req)
	if m == nil {
		return nil, nil
	}
	out := make([]*protocol.SelectionRange, len(positions))
	for i, pos := range positions {
		out[i] = m.tree.SelectionRange(req.Document, req.Document.OffsetAt(pos))
	}
	return out, nil
}

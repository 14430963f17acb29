// Package html is the markup engine, built on the tree-sitter HTML grammar.
// Templates reach it through their generated HTML.
package html

import (
	"context"
	"strings"

	"veneer/internal/document"
	"veneer/internal/engine"
	"veneer/internal/sitteradapter"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/html"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("veneer.engine.html")

// Node types of the tree-sitter HTML grammar.
const (
	nodeElement          = "element"
	nodeScriptElement    = "script_element"
	nodeStyleElement     = "style_element"
	nodeStartTag         = "start_tag"
	nodeEndTag           = "end_tag"
	nodeSelfClosingTag   = "self_closing_tag"
	nodeErroneousEndTag  = "erroneous_end_tag"
	nodeErroneousEndName = "erroneous_end_tag_name"
	nodeTagName          = "tag_name"
	nodeAttribute        = "attribute"
	nodeAttributeName    = "attribute_name"
	nodeAttributeValue   = "attribute_value"
	nodeQuotedValue      = "quoted_attribute_value"
	nodeRawText          = "raw_text"
	nodeComment          = "comment"
)

var triggerCharacters = []string{".", ":", "<", "\"", "=", "/"}

// Engine answers markup queries. Operations the grammar gives nothing for
// fall through to engine.Unsupported.
type Engine struct {
	engine.Unsupported
}

func New() *Engine {
	return &Engine{}
}

func (e *Engine) Name() string {
	return "html"
}

func (e *Engine) Capabilities() engine.Capabilities {
	return engine.Capabilities{
		Provides:          engine.All &^ (engine.Definition | engine.References | engine.CodeActions | engine.Colors),
		TriggerCharacters: triggerCharacters,
	}
}

type markup struct {
	tree *sitteradapter.Tree
	doc  *document.Document
}

func (e *Engine) Parse(ctx context.Context, doc *document.Document) engine.Parsed {
	return &markup{
		tree: sitteradapter.Parse(ctx, html.GetLanguage(), []byte(doc.Text)),
		doc:  doc,
	}
}

func parsed(req *engine.Request) *markup {
	m, _ := req.Parsed.(*markup)
	if m == nil || m.doc.URI != req.Document.URI || m.doc.Version != req.Document.Version {
		return nil
	}
	return m
}

func (m *markup) text(n *sitter.Node) string {
	return m.tree.Text(n)
}

// tagName returns the tag name node of an element, or nil.
func tagName(element *sitter.Node) *sitter.Node {
	return sitteradapter.ChildOfType(openTag(element), nodeTagName)
}

// attribute returns the value of the named attribute of a start tag.
func (m *markup) attribute(tag *sitter.Node, name string) (*sitter.Node, string, bool) {
	if tag == nil {
		return nil, "", false
	}
	for i := 0; i < int(tag.NamedChildCount()); i++ {
		attr := tag.NamedChild(i)
		if attr.Type() != nodeAttribute {
			continue
		}
		if !strings.EqualFold(m.text(sitteradapter.ChildOfType(attr, nodeAttributeName)), name) {
			continue
		}
		value := sitteradapter.ChildOfType(attr, nodeAttributeValue)
		if quoted := sitteradapter.ChildOfType(attr, nodeQuotedValue); quoted != nil {
			value = sitteradapter.ChildOfType(quoted, nodeAttributeValue)
			if value == nil {
				// an empty quoted value has no attribute_value node
				return quoted, "", true
			}
		}
		if value == nil {
			return attr, "", true
		}
		return value, m.text(value), true
	}
	return nil, "", false
}

// openTag returns the start or self-closing tag of element.
func openTag(element *sitter.Node) *sitter.Node {
	if tag := sitteradapter.ChildOfType(element, nodeStartTag); tag != nil {
		return tag
	}
	return sitteradapter.ChildOfType(element, nodeSelfClosingTag)
}

func isElement(n *sitter.Node) bool {
	switch n.Type() {
	case nodeElement, nodeScriptElement, nodeStyleElement:
		return true
	}
	return false
}

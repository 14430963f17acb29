package sitteradapter

import (
	"context"

	"veneer/internal/document"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

var log = commonlog.GetLogger("veneer.sitteradapter")

// Tree is a syntax tree together with the bytes it was parsed from. A tree
// whose parse failed has a nil Root; every method copes with that.
type Tree struct {
	Root   *sitter.Node
	Source []byte
	tree   *sitter.Tree
}

// Parse parses src with lang. Parsing never fails from the caller's point
// of view: errors are logged and yield an empty tree.
func Parse(ctx context.Context, lang *sitter.Language, src []byte) *Tree {
	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		log.Warningf("tree-sitter parse failed: %s", err)
		return &Tree{Source: src}
	}
	return &Tree{Root: tree.RootNode(), Source: src, tree: tree}
}

// Text returns the source text of n.
func (t *Tree) Text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(t.Source[n.StartByte():n.EndByte()])
}

func Offsets(n *sitter.Node) (int, int) {
	return int(n.StartByte()), int(n.EndByte())
}

// Range converts the byte span of n into an editor range of doc.
func Range(doc *document.Document, n *sitter.Node) protocol.Range {
	start, end := Offsets(n)
	return doc.RangeAt(start, end)
}

// NodeAt returns the deepest node covering offset. A node that ends at
// offset counts as covering it when no node starts there, so a cursor
// right after a word still finds the word.
func (t *Tree) NodeAt(offset int) *sitter.Node {
	if t.Root == nil {
		return nil
	}
	node := t.Root
	for {
		var next *sitter.Node
		count := int(node.ChildCount())
		for i := 0; i < count; i++ {
			child := node.Child(i)
			start, end := Offsets(child)
			if start <= offset && offset < end {
				next = child
				break
			}
			if end == offset && start < end && next == nil {
				next = child
			}
		}
		if next == nil {
			return node
		}
		node = next
	}
}

// Walk visits n and its descendants in document order. Returning false
// from fn skips the children of the visited node.
func Walk(n *sitter.Node, fn func(*sitter.Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		Walk(n.Child(i), fn)
	}
}

// Ancestor returns the closest ancestor of n (n included) of the given
// type.
func Ancestor(n *sitter.Node, types ...string) *sitter.Node {
	for ; n != nil; n = n.Parent() {
		for _, typ := range types {
			if n.Type() == typ {
				return n
			}
		}
	}
	return nil
}

// ChildOfType returns the first direct child of n with the given type.
func ChildOfType(n *sitter.Node, typ string) *sitter.Node {
	if n == nil {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if child := n.Child(i); child.Type() == typ {
			return child
		}
	}
	return nil
}

// SelectionRange builds the chain of enclosing node ranges at offset,
// innermost first. Nodes spanning the same range as their child are
// collapsed.
func (t *Tree) SelectionRange(doc *document.Document, offset int) *protocol.SelectionRange {
	var spans [][2]int
	for n := t.NodeAt(offset); n != nil; n = n.Parent() {
		start, end := Offsets(n)
		if l := len(spans); l > 0 && spans[l-1] == [2]int{start, end} {
			continue
		}
		spans = append(spans, [2]int{start, end})
	}
	var sel *protocol.SelectionRange
	for i := len(spans) - 1; i >= 0; i-- {
		sel = &protocol.SelectionRange{
			Range:  doc.RangeAt(spans[i][0], spans[i][1]),
			Parent: sel,
		}
	}
	return sel
}

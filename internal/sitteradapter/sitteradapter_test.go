package sitteradapter_test

import (
	"context"
	"testing"

	"veneer/internal/document"
	"veneer/internal/sitteradapter"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/css"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

const src = "a { color: red; }"

func parse(t *testing.T) *sitteradapter.Tree {
	t.Helper()
	tree := sitteradapter.Parse(context.Background(), css.GetLanguage(), []byte(src))
	require.NotNil(t, tree.Root)
	return tree
}

func TestNodeAt(t *testing.T) {
	tree := parse(t)

	n := tree.NodeAt(6)
	require.NotNil(t, n)
	assert.Equal(t, "color", tree.Text(n))

	// a cursor right after a word with whitespace behind it
	n = tree.NodeAt(1)
	require.NotNil(t, n)
	assert.Equal(t, "a", tree.Text(n))
}

func TestAncestorAndChild(t *testing.T) {
	tree := parse(t)

	decl := sitteradapter.Ancestor(tree.NodeAt(6), "declaration")
	require.NotNil(t, decl)
	assert.Equal(t, "color: red;", tree.Text(decl))

	name := sitteradapter.ChildOfType(decl, "property_name")
	require.NotNil(t, name)
	assert.Equal(t, "color", tree.Text(name))
	assert.Nil(t, sitteradapter.ChildOfType(nil, "property_name"))
}

func TestWalkVisitsInOrder(t *testing.T) {
	tree := parse(t)

	var names []string
	sitteradapter.Walk(tree.Root, func(n *sitter.Node) bool {
		if n.Type() == "property_name" || n.Type() == "plain_value" {
			names = append(names, tree.Text(n))
		}
		return true
	})
	assert.Equal(t, []string{"color", "red"}, names)
}

func TestSelectionRangeGrowsOutward(t *testing.T) {
	tree := parse(t)
	doc := document.New("file:///a.css", document.CSS, 1, src)

	sel := tree.SelectionRange(doc, 6)
	require.NotNil(t, sel)
	assert.Equal(t, protocol.Range{
		Start: protocol.Position{Line: 0, Character: 4},
		End:   protocol.Position{Line: 0, Character: 9},
	}, sel.Range)

	var last protocol.Range
	for s := sel; s != nil; s = s.Parent {
		if s.Parent != nil {
			assert.NotEqual(t, s.Range, s.Parent.Range)
		}
		last = s.Range
	}
	assert.Equal(t, doc.FullRange(), last)
}

func TestEmptyTree(t *testing.T) {
	var tree sitteradapter.Tree
	assert.Nil(t, tree.NodeAt(0))
	assert.Equal(t, "", tree.Text(nil))
}

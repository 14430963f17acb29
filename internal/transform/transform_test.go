package transform_test

import (
	"testing"

	"veneer/internal/document"
	"veneer/internal/sourcemap"
	"veneer/internal/transform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

const (
	sourceURI    = "file:///site/foo.tmpl"
	generatedURI = "file:///site/foo.tmpl.html"
)

// fixture elides the directive on line 0 and the interpolation on line 2:
//
//	@if cond        -> (gone)
//	<div>hi</div>   -> <div>hi</div>
//	<p>{{ x }}</p>  -> <p></p>
//
// The generated document ends with a line that has no source.
type fixture struct {
	source, generated *document.Document
	mapper            transform.Mapper
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	source := document.New(sourceURI, document.Template, 3, "@if cond\n<div>hi</div>\n<p>{{ x }}</p>\n")
	generated := document.New(generatedURI, document.HTML, 3, "<div>hi</div>\n<p></p>\n<x-end>\n")
	m, err := sourcemap.New([]sourcemap.Segment{
		{SourceStart: 9, SourceEnd: 26, GeneratedStart: 0, GeneratedEnd: 17},
		{SourceStart: 33, SourceEnd: 38, GeneratedStart: 17, GeneratedEnd: 22},
	})
	require.NoError(t, err)
	mapping := &sourcemap.Mapping{Map: m, Source: source, Generated: generated}
	return fixture{
		source:    source,
		generated: generated,
		mapper: transform.Mapper{
			SourceURI:    sourceURI,
			GeneratedURI: generatedURI,
			Range:        mapping.ToSourceRange,
		},
	}
}

func (f fixture) gen(start, end int) protocol.Range { return f.generated.RangeAt(start, end) }
func (f fixture) src(start, end int) protocol.Range { return f.source.RangeAt(start, end) }

// unmappable covers the generated-only trailer.
func (f fixture) unmappable() protocol.Range {
	return f.gen(23, 28)
}

func TestLocationDroppedWhenUnmappable(t *testing.T) {
	f := newFixture(t)

	loc, ok := transform.Location(protocol.Location{URI: generatedURI, Range: f.gen(0, 5)}, f.mapper)
	require.True(t, ok)
	assert.Equal(t, protocol.Location{URI: sourceURI, Range: f.src(9, 14)}, loc)

	locs := transform.Locations([]protocol.Location{
		{URI: generatedURI, Range: f.gen(1, 4)},
		{URI: generatedURI, Range: f.generated.RangeAt(10, 20)},
		{URI: "file:///other.html", Range: f.gen(1, 4)},
	}, f.mapper)
	require.Len(t, locs, 3)
	assert.Equal(t, sourceURI, locs[0].URI)
	assert.Equal(t, "file:///other.html", locs[2].URI)
	assert.Equal(t, f.gen(1, 4), locs[2].Range, "other documents pass through")
}

func TestHighlightsKeepKindAndOrder(t *testing.T) {
	f := newFixture(t)
	read := protocol.DocumentHighlightKindRead
	write := protocol.DocumentHighlightKindWrite

	got := transform.DocumentHighlights([]protocol.DocumentHighlight{
		{Range: f.gen(1, 4), Kind: &write},
		{Range: f.unmappable(), Kind: &read},
		{Range: f.gen(9, 12), Kind: &read},
	}, f.mapper)

	require.Len(t, got, 2)
	assert.Equal(t, f.src(10, 13), got[0].Range)
	assert.Equal(t, &write, got[0].Kind)
	assert.Equal(t, f.src(18, 21), got[1].Range)
	assert.Equal(t, &read, got[1].Kind)
}

func TestCompletionClearsUnmappableEditButKeepsItem(t *testing.T) {
	f := newFixture(t)
	detail := "element"

	list := transform.CompletionList(&protocol.CompletionList{
		IsIncomplete: true,
		Items: []protocol.CompletionItem{
			{Label: "div", Detail: &detail, TextEdit: protocol.TextEdit{Range: f.gen(1, 4), NewText: "div"}},
			{Label: "span", TextEdit: protocol.TextEdit{Range: f.unmappable(), NewText: "span"}},
			{
				Label: "p",
				TextEdit: protocol.InsertReplaceEdit{
					NewText: "p",
					Insert:  f.gen(15, 16),
					Replace: f.gen(15, 16),
				},
				AdditionalTextEdits: []protocol.TextEdit{
					{Range: f.unmappable(), NewText: "x"},
					{Range: f.gen(0, 0), NewText: "y"},
				},
			},
		},
	}, f.mapper)

	require.Len(t, list.Items, 3)
	assert.True(t, list.IsIncomplete)
	assert.Equal(t, protocol.TextEdit{Range: f.src(10, 13), NewText: "div"}, list.Items[0].TextEdit)
	assert.Equal(t, &detail, list.Items[0].Detail)
	assert.Nil(t, list.Items[1].TextEdit)
	assert.Equal(t, "span", list.Items[1].Label)

	ire, ok := list.Items[2].TextEdit.(protocol.InsertReplaceEdit)
	require.True(t, ok)
	assert.Equal(t, f.src(24, 25), ire.Insert)
	assert.Equal(t, []protocol.TextEdit{{Range: f.src(9, 9), NewText: "y"}}, list.Items[2].AdditionalTextEdits)
}

func TestClearEdits(t *testing.T) {
	f := newFixture(t)
	list := transform.ClearEdits(&protocol.CompletionList{Items: []protocol.CompletionItem{
		{Label: "div", TextEdit: protocol.TextEdit{Range: f.gen(0, 1)}, AdditionalTextEdits: []protocol.TextEdit{{}}},
	}})
	require.Len(t, list.Items, 1)
	assert.Nil(t, list.Items[0].TextEdit)
	assert.Nil(t, list.Items[0].AdditionalTextEdits)
}

func TestHoverKeepsContentsWhenRangeDoesNotMap(t *testing.T) {
	f := newFixture(t)
	contents := protocol.MarkupContent{Kind: protocol.MarkupKindMarkdown, Value: "**div**"}

	r := f.gen(0, 5)
	h := transform.Hover(&protocol.Hover{Contents: contents, Range: &r}, f.mapper)
	require.NotNil(t, h.Range)
	assert.Equal(t, f.src(9, 14), *h.Range)

	bad := f.unmappable()
	h = transform.Hover(&protocol.Hover{Contents: contents, Range: &bad}, f.mapper)
	assert.Nil(t, h.Range)
	assert.Equal(t, contents, h.Contents)
}

func TestDiagnosticsPreserveSeverityAndCode(t *testing.T) {
	f := newFixture(t)
	severity := protocol.DiagnosticSeverityWarning
	source := "html"
	code := &protocol.IntegerOrString{Value: "unclosed"}

	got := transform.Diagnostics([]protocol.Diagnostic{
		{Range: f.unmappable(), Severity: &severity, Message: "lost"},
		{
			Range: f.gen(14, 17), Severity: &severity, Code: code, Source: &source, Message: "kept",
			RelatedInformation: []protocol.DiagnosticRelatedInformation{
				{Location: protocol.Location{URI: generatedURI, Range: f.gen(0, 5)}, Message: "opened here"},
				{Location: protocol.Location{URI: generatedURI, Range: f.unmappable()}, Message: "gone"},
			},
		},
	}, f.mapper)

	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].Message)
	assert.Equal(t, &severity, got[0].Severity)
	assert.Same(t, code, got[0].Code)
	assert.Equal(t, f.src(23, 26), got[0].Range)
	require.Len(t, got[0].RelatedInformation, 1)
	assert.Equal(t, sourceURI, got[0].RelatedInformation[0].Location.URI)
}

func TestDocumentSymbolsLiftChildrenOfDroppedParents(t *testing.T) {
	f := newFixture(t)
	got := transform.DocumentSymbols([]protocol.DocumentSymbol{{
		Name:           "root",
		Range:          f.unmappable(),
		SelectionRange: f.unmappable(),
		Children: []protocol.DocumentSymbol{
			{Name: "div", Range: f.gen(0, 13), SelectionRange: f.gen(1, 4)},
		},
	}}, f.mapper)

	require.Len(t, got, 1)
	assert.Equal(t, "div", got[0].Name)
	assert.Equal(t, f.src(9, 22), got[0].Range)
	assert.Equal(t, f.src(10, 13), got[0].SelectionRange)
}

func TestFoldingRangesMapLines(t *testing.T) {
	f := newFixture(t)
	got := transform.FoldingRanges([]protocol.FoldingRange{
		{StartLine: 0, EndLine: 1},
		{StartLine: 4, EndLine: 8},
	}, f.mapper)
	require.Len(t, got, 1)
	assert.Equal(t, protocol.UInteger(1), got[0].StartLine)
	assert.Equal(t, protocol.UInteger(2), got[0].EndLine)
	assert.Nil(t, got[0].StartCharacter)
}

func TestSelectionRangeSkipsUnmappableLinks(t *testing.T) {
	f := newFixture(t)
	chain := &protocol.SelectionRange{
		Range: f.gen(1, 4),
		Parent: &protocol.SelectionRange{
			Range:  f.unmappable(),
			Parent: &protocol.SelectionRange{Range: f.gen(0, 13)},
		},
	}
	got := transform.SelectionRange(chain, f.mapper)
	require.NotNil(t, got)
	assert.Equal(t, f.src(10, 13), got.Range)
	require.NotNil(t, got.Parent)
	assert.Equal(t, f.src(9, 22), got.Parent.Range)
	assert.Nil(t, got.Parent.Parent)

	assert.Nil(t, transform.SelectionRange(&protocol.SelectionRange{Range: f.unmappable()}, f.mapper))
}

func TestIdentityMapperIsTransparent(t *testing.T) {
	m := transform.Identity("file:///a.css")
	locs := []protocol.Location{{URI: "file:///a.css", Range: protocol.Range{End: protocol.Position{Character: 3}}}}
	assert.Equal(t, locs, transform.Locations(locs, m))
}

package sourcemap_test

import (
	"testing"

	"veneer/internal/document"
	"veneer/internal/sourcemap"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func mustMap(t *testing.T, segments ...sourcemap.Segment) *sourcemap.Map {
	t.Helper()
	m, err := sourcemap.New(segments)
	require.NoError(t, err)
	return m
}

func TestNewRejectsBadSegments(t *testing.T) {
	_, err := sourcemap.New([]sourcemap.Segment{{5, 2, 0, 3}})
	assert.ErrorIs(t, err, sourcemap.ErrInvalidSegment)

	_, err = sourcemap.New([]sourcemap.Segment{{0, 5, 0, 5}, {4, 8, 5, 9}})
	assert.ErrorIs(t, err, sourcemap.ErrUnordered)

	_, err = sourcemap.New([]sourcemap.Segment{{0, 5, 4, 9}, {6, 8, 0, 2}})
	assert.ErrorIs(t, err, sourcemap.ErrUnordered)
}

func TestRoundTripInsideSegments(t *testing.T) {
	m := mustMap(t,
		sourcemap.Segment{SourceStart: 9, SourceEnd: 20, GeneratedStart: 0, GeneratedEnd: 11},
		sourcemap.Segment{SourceStart: 30, SourceEnd: 40, GeneratedStart: 11, GeneratedEnd: 21},
	)
	for _, seg := range m.Segments() {
		for off := seg.SourceStart; off < seg.SourceEnd; off++ {
			gen, ok := m.ToGenerated(off)
			require.True(t, ok, "offset %d", off)
			back, ok := m.ToSource(gen)
			require.True(t, ok)
			assert.Equal(t, off, back)
		}
	}
}

func TestGapMapsToNothing(t *testing.T) {
	m := mustMap(t,
		sourcemap.Segment{SourceStart: 9, SourceEnd: 20, GeneratedStart: 0, GeneratedEnd: 11},
		sourcemap.Segment{SourceStart: 30, SourceEnd: 40, GeneratedStart: 11, GeneratedEnd: 21},
	)
	for _, off := range []int{0, 8, 21, 29, 41} {
		_, ok := m.ToGenerated(off)
		assert.False(t, ok, "offset %d lies in a gap", off)
	}
	_, ok := m.ToSource(22)
	assert.False(t, ok)
}

func TestBoundaryPrefersStartingSegment(t *testing.T) {
	// Generated offset 11 ends the first segment and starts the second.
	m := mustMap(t,
		sourcemap.Segment{SourceStart: 9, SourceEnd: 20, GeneratedStart: 0, GeneratedEnd: 11},
		sourcemap.Segment{SourceStart: 30, SourceEnd: 40, GeneratedStart: 11, GeneratedEnd: 21},
	)
	src, ok := m.ToSource(11)
	require.True(t, ok)
	assert.Equal(t, 30, src)

	// Span ends resolve against the segment they close.
	start, end, ok := m.ToSourceSpan(5, 11)
	require.True(t, ok)
	assert.Equal(t, 14, start)
	assert.Equal(t, 20, end)
}

func TestClampsToShorterSide(t *testing.T) {
	m := mustMap(t, sourcemap.Segment{SourceStart: 0, SourceEnd: 10, GeneratedStart: 0, GeneratedEnd: 4})
	gen, ok := m.ToGenerated(8)
	require.True(t, ok)
	assert.Equal(t, 4, gen)
}

func TestSpanAcrossGapIsRejectedWhenInverted(t *testing.T) {
	m := mustMap(t,
		sourcemap.Segment{SourceStart: 0, SourceEnd: 5, GeneratedStart: 0, GeneratedEnd: 5},
		sourcemap.Segment{SourceStart: 10, SourceEnd: 15, GeneratedStart: 5, GeneratedEnd: 10},
	)
	_, _, ok := m.ToGeneratedSpan(3, 7)
	assert.False(t, ok, "end in a gap")

	s, e, ok := m.ToGeneratedSpan(3, 12)
	require.True(t, ok)
	assert.Equal(t, 3, s)
	assert.Equal(t, 7, e)
}

func TestTemplateExample(t *testing.T) {
	source := document.New("file:///foo.tmpl", document.Template, 1, "@if cond\n<div>hi</div>\n")
	generated := document.New("file:///foo.tmpl.html", document.HTML, 1, "<div>hi</div>\n")
	m := &sourcemap.Mapping{
		Map:       mustMap(t, sourcemap.Segment{SourceStart: 9, SourceEnd: 23, GeneratedStart: 0, GeneratedEnd: 14}),
		Source:    source,
		Generated: generated,
	}

	pos, ok := m.ToGeneratedPosition(source.PositionAt(10))
	require.True(t, ok)
	assert.Equal(t, 1, generated.OffsetAt(pos))

	_, ok = m.ToGeneratedPosition(source.PositionAt(3))
	assert.False(t, ok, "directive text is elided")

	r, ok := m.ToSourceRange(generated.RangeAt(0, 5))
	require.True(t, ok)
	start, end := source.Offsets(r)
	assert.Equal(t, 9, start)
	assert.Equal(t, 14, end)
	assert.Equal(t, protocol.Range{
		Start: protocol.Position{Line: 1, Character: 0},
		End:   protocol.Position{Line: 1, Character: 5},
	}, r)
}

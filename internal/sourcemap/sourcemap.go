// Package sourcemap translates offsets between a source document and the
// document generated from it.
package sourcemap

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrInvalidSegment = errors.New("sourcemap: segment ends before it starts")
	ErrUnordered      = errors.New("sourcemap: segments overlap or are out of order")
)

// Segment pairs a span of the source with the span of the generated text it
// produced. Spans are half-open byte ranges.
type Segment struct {
	SourceStart    int
	SourceEnd      int
	GeneratedStart int
	GeneratedEnd   int
}

func (s Segment) SourceLen() int    { return s.SourceEnd - s.SourceStart }
func (s Segment) GeneratedLen() int { return s.GeneratedEnd - s.GeneratedStart }

// Map is an ordered, non-overlapping list of segments, sorted in both
// spaces at once. It is read-only after New.
type Map struct {
	segments []Segment
}

func New(segments []Segment) (*Map, error) {
	for i, s := range segments {
		if s.SourceEnd < s.SourceStart || s.GeneratedEnd < s.GeneratedStart {
			return nil, fmt.Errorf("%w: segment %d %+v", ErrInvalidSegment, i, s)
		}
		if i == 0 {
			continue
		}
		prev := segments[i-1]
		if s.SourceStart < prev.SourceEnd || s.GeneratedStart < prev.GeneratedEnd {
			return nil, fmt.Errorf("%w: segment %d %+v after %+v", ErrUnordered, i, s, prev)
		}
	}
	return &Map{segments: append([]Segment(nil), segments...)}, nil
}

// Identity maps [0, length) onto itself.
func Identity(length int) *Map {
	return &Map{segments: []Segment{{0, length, 0, length}}}
}

func (m *Map) Segments() []Segment {
	return append([]Segment(nil), m.segments...)
}

type side struct {
	start, end func(Segment) int
}

var (
	sourceSide = side{
		start: func(s Segment) int { return s.SourceStart },
		end:   func(s Segment) int { return s.SourceEnd },
	}
	generatedSide = side{
		start: func(s Segment) int { return s.GeneratedStart },
		end:   func(s Segment) int { return s.GeneratedEnd },
	}
)

type bias int

const (
	// preferStart picks the segment starting at a shared boundary.
	preferStart bias = iota
	// preferEnd picks the segment ending at a shared boundary.
	preferEnd
)

func (m *Map) find(offset int, from side, b bias) (Segment, bool) {
	n := len(m.segments)
	var i int
	if b == preferStart {
		i = sort.Search(n, func(i int) bool { return from.start(m.segments[i]) > offset }) - 1
	} else {
		i = sort.Search(n, func(i int) bool { return from.end(m.segments[i]) >= offset })
	}
	if i < 0 || i >= n {
		return Segment{}, false
	}
	s := m.segments[i]
	if offset < from.start(s) || offset > from.end(s) {
		return Segment{}, false
	}
	return s, true
}

func (m *Map) translate(offset int, from, to side, b bias) (int, bool) {
	s, ok := m.find(offset, from, b)
	if !ok {
		return 0, false
	}
	delta := offset - from.start(s)
	if length := to.end(s) - to.start(s); delta > length {
		delta = length
	}
	return to.start(s) + delta, true
}

func (m *Map) ToGenerated(offset int) (int, bool) {
	return m.translate(offset, sourceSide, generatedSide, preferStart)
}

func (m *Map) ToSource(offset int) (int, bool) {
	return m.translate(offset, generatedSide, sourceSide, preferStart)
}

func (m *Map) ToGeneratedSpan(start, end int) (int, int, bool) {
	return m.translateSpan(start, end, sourceSide, generatedSide)
}

func (m *Map) ToSourceSpan(start, end int) (int, int, bool) {
	return m.translateSpan(start, end, generatedSide, sourceSide)
}

// translateSpan maps the start of a span with start bias and its end with
// end bias, so a span touching a boundary stays inside the segment it
// covers. Empty spans are mapped as a single offset.
func (m *Map) translateSpan(start, end int, from, to side) (int, int, bool) {
	s, ok := m.translate(start, from, to, preferStart)
	if !ok {
		return 0, 0, false
	}
	if end == start {
		return s, s, true
	}
	e, ok := m.translate(end, from, to, preferEnd)
	if !ok || e < s {
		return 0, 0, false
	}
	return s, e, true
}

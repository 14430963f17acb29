package sourcemap

import (
	"veneer/internal/document"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Mapping binds a Map to the two documents it relates, which lets it
// translate editor positions and ranges.
type Mapping struct {
	Map       *Map
	Source    *document.Document
	Generated *document.Document
}

func (m *Mapping) ToGeneratedPosition(pos protocol.Position) (protocol.Position, bool) {
	off, ok := m.Map.ToGenerated(m.Source.OffsetAt(pos))
	if !ok {
		return protocol.Position{}, false
	}
	return m.Generated.PositionAt(off), true
}

func (m *Mapping) ToSourcePosition(pos protocol.Position) (protocol.Position, bool) {
	off, ok := m.Map.ToSource(m.Generated.OffsetAt(pos))
	if !ok {
		return protocol.Position{}, false
	}
	return m.Source.PositionAt(off), true
}

func (m *Mapping) ToGeneratedRange(r protocol.Range) (protocol.Range, bool) {
	start, end := m.Source.Offsets(r)
	s, e, ok := m.Map.ToGeneratedSpan(start, end)
	if !ok {
		return protocol.Range{}, false
	}
	return m.Generated.RangeAt(s, e), true
}

func (m *Mapping) ToSourceRange(r protocol.Range) (protocol.Range, bool) {
	start, end := m.Generated.Offsets(r)
	s, e, ok := m.Map.ToSourceSpan(start, end)
	if !ok {
		return protocol.Range{}, false
	}
	return m.Source.RangeAt(s, e), true
}

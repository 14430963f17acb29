// Package transform rewrites analysis results computed against a generated
// document so that their coordinates refer to the source document.
//
// Every function keeps the payload of a result intact and only touches its
// ranges. Results that cannot be expressed in source coordinates are
// dropped, or lose just the unmappable field where the shape allows it.
package transform

import (
	protocol "github.com/tliron/glsp/protocol_3_16"
)

type RangeMapper func(protocol.Range) (protocol.Range, bool)

// Mapper relates a generated document to its source. Results that point at
// GeneratedURI are mapped and re-pointed at SourceURI; results that point at
// any other document pass through untouched.
type Mapper struct {
	SourceURI    protocol.DocumentUri
	GeneratedURI protocol.DocumentUri
	Range        RangeMapper
}

// Identity is the mapper for documents that are analysed as they are.
func Identity(uri protocol.DocumentUri) Mapper {
	return Mapper{
		SourceURI:    uri,
		GeneratedURI: uri,
		Range:        func(r protocol.Range) (protocol.Range, bool) { return r, true },
	}
}

func (m Mapper) owns(uri protocol.DocumentUri) bool {
	return uri == m.GeneratedURI
}

func (m Mapper) location(uri protocol.DocumentUri, r protocol.Range) (protocol.DocumentUri, protocol.Range, bool) {
	if !m.owns(uri) {
		return uri, r, true
	}
	mapped, ok := m.Range(r)
	if !ok {
		return "", protocol.Range{}, false
	}
	return m.SourceURI, mapped, true
}

func (m Mapper) position(pos protocol.Position) (protocol.Position, bool) {
	r, ok := m.Range(protocol.Range{Start: pos, End: pos})
	return r.Start, ok
}

func Location(loc protocol.Location, m Mapper) (protocol.Location, bool) {
	uri, r, ok := m.location(loc.URI, loc.Range)
	if !ok {
		return protocol.Location{}, false
	}
	return protocol.Location{URI: uri, Range: r}, true
}

// Locations keeps the order of locs and drops those that do not map.
func Locations(locs []protocol.Location, m Mapper) []protocol.Location {
	if locs == nil {
		return nil
	}
	out := make([]protocol.Location, 0, len(locs))
	for _, loc := range locs {
		if mapped, ok := Location(loc, m); ok {
			out = append(out, mapped)
		}
	}
	return out
}

// LocationLinks drops links whose target does not map. The origin range
// always belongs to the requesting document and is cleared when it does not
// map.
func LocationLinks(links []protocol.LocationLink, m Mapper) []protocol.LocationLink {
	if links == nil {
		return nil
	}
	out := make([]protocol.LocationLink, 0, len(links))
	for _, link := range links {
		uri, target, ok := m.location(link.TargetURI, link.TargetRange)
		if !ok {
			continue
		}
		_, selection, ok := m.location(link.TargetURI, link.TargetSelectionRange)
		if !ok {
			continue
		}
		mapped := protocol.LocationLink{
			TargetURI:            uri,
			TargetRange:          target,
			TargetSelectionRange: selection,
		}
		if link.OriginSelectionRange != nil {
			if origin, ok := m.Range(*link.OriginSelectionRange); ok {
				mapped.OriginSelectionRange = &origin
			}
		}
		out = append(out, mapped)
	}
	return out
}

func Hover(hover *protocol.Hover, m Mapper) *protocol.Hover {
	if hover == nil {
		return nil
	}
	out := &protocol.Hover{Contents: hover.Contents}
	if hover.Range != nil {
		if r, ok := m.Range(*hover.Range); ok {
			out.Range = &r
		}
	}
	return out
}

func DocumentHighlights(highlights []protocol.DocumentHighlight, m Mapper) []protocol.DocumentHighlight {
	if highlights == nil {
		return nil
	}
	out := make([]protocol.DocumentHighlight, 0, len(highlights))
	for _, h := range highlights {
		r, ok := m.Range(h.Range)
		if !ok {
			continue
		}
		out = append(out, protocol.DocumentHighlight{Range: r, Kind: h.Kind})
	}
	return out
}

func TextEdits(edits []protocol.TextEdit, m Mapper) []protocol.TextEdit {
	if edits == nil {
		return nil
	}
	out := make([]protocol.TextEdit, 0, len(edits))
	for _, e := range edits {
		if r, ok := m.Range(e.Range); ok {
			out = append(out, protocol.TextEdit{Range: r, NewText: e.NewText})
		}
	}
	return out
}

func PrepareRename(r *protocol.Range, m Mapper) *protocol.Range {
	if r == nil {
		return nil
	}
	mapped, ok := m.Range(*r)
	if !ok {
		return nil
	}
	return &mapped
}

func Diagnostics(diagnostics []protocol.Diagnostic, m Mapper) []protocol.Diagnostic {
	if diagnostics == nil {
		return nil
	}
	out := make([]protocol.Diagnostic, 0, len(diagnostics))
	for _, d := range diagnostics {
		r, ok := m.Range(d.Range)
		if !ok {
			continue
		}
		d.Range = r
		if d.RelatedInformation != nil {
			related := make([]protocol.DiagnosticRelatedInformation, 0, len(d.RelatedInformation))
			for _, info := range d.RelatedInformation {
				if loc, ok := Location(info.Location, m); ok {
					related = append(related, protocol.DiagnosticRelatedInformation{Location: loc, Message: info.Message})
				}
			}
			d.RelatedInformation = related
		}
		out = append(out, d)
	}
	return out
}

// FoldingRanges maps the start and end of every range independently and
// drops ranges that collapse or invert.
func FoldingRanges(ranges []protocol.FoldingRange, m Mapper) []protocol.FoldingRange {
	if ranges == nil {
		return nil
	}
	out := make([]protocol.FoldingRange, 0, len(ranges))
	for _, fr := range ranges {
		start := protocol.Position{Line: fr.StartLine}
		if fr.StartCharacter != nil {
			start.Character = *fr.StartCharacter
		}
		end := protocol.Position{Line: fr.EndLine}
		if fr.EndCharacter != nil {
			end.Character = *fr.EndCharacter
		}
		s, ok := m.position(start)
		if !ok {
			continue
		}
		e, ok := m.position(end)
		if !ok || e.Line <= s.Line {
			continue
		}
		mapped := protocol.FoldingRange{StartLine: s.Line, EndLine: e.Line, Kind: fr.Kind}
		if fr.StartCharacter != nil {
			mapped.StartCharacter = &s.Character
		}
		if fr.EndCharacter != nil {
			mapped.EndCharacter = &e.Character
		}
		out = append(out, mapped)
	}
	return out
}

func DocumentLinks(links []protocol.DocumentLink, m Mapper) []protocol.DocumentLink {
	if links == nil {
		return nil
	}
	out := make([]protocol.DocumentLink, 0, len(links))
	for _, link := range links {
		r, ok := m.Range(link.Range)
		if !ok {
			continue
		}
		link.Range = r
		out = append(out, link)
	}
	return out
}

// DocumentSymbols drops symbols whose ranges do not map and lifts their
// children into the parent's list.
func DocumentSymbols(symbols []protocol.DocumentSymbol, m Mapper) []protocol.DocumentSymbol {
	if symbols == nil {
		return nil
	}
	out := make([]protocol.DocumentSymbol, 0, len(symbols))
	for _, sym := range symbols {
		children := DocumentSymbols(sym.Children, m)
		r, ok := m.Range(sym.Range)
		if !ok {
			out = append(out, children...)
			continue
		}
		selection, ok := m.Range(sym.SelectionRange)
		if !ok {
			selection = r
		}
		sym.Range = r
		sym.SelectionRange = selection
		sym.Children = children
		out = append(out, sym)
	}
	return out
}

// SelectionRange maps a selection range chain, skipping links that do not
// map. It returns nil when no link maps.
func SelectionRange(sr *protocol.SelectionRange, m Mapper) *protocol.SelectionRange {
	if sr == nil {
		return nil
	}
	parent := SelectionRange(sr.Parent, m)
	r, ok := m.Range(sr.Range)
	if !ok {
		return parent
	}
	return &protocol.SelectionRange{Range: r, Parent: parent}
}

func ColorInformation(colors []protocol.ColorInformation, m Mapper) []protocol.ColorInformation {
	if colors == nil {
		return nil
	}
	out := make([]protocol.ColorInformation, 0, len(colors))
	for _, c := range colors {
		if r, ok := m.Range(c.Range); ok {
			out = append(out, protocol.ColorInformation{Range: r, Color: c.Color})
		}
	}
	return out
}

// ColorPresentations keeps every presentation; an edit that does not map is
// cleared.
func ColorPresentations(presentations []protocol.ColorPresentation, m Mapper) []protocol.ColorPresentation {
	if presentations == nil {
		return nil
	}
	out := make([]protocol.ColorPresentation, 0, len(presentations))
	for _, p := range presentations {
		if p.TextEdit != nil {
			if r, ok := m.Range(p.TextEdit.Range); ok {
				p.TextEdit = &protocol.TextEdit{Range: r, NewText: p.TextEdit.NewText}
			} else {
				p.TextEdit = nil
			}
		}
		p.AdditionalTextEdits = TextEdits(p.AdditionalTextEdits, m)
		out = append(out, p)
	}
	return out
}

func CodeActions(actions []protocol.CodeAction, m Mapper) []protocol.CodeAction {
	if actions == nil {
		return nil
	}
	out := make([]protocol.CodeAction, 0, len(actions))
	for _, action := range actions {
		action.Diagnostics = Diagnostics(action.Diagnostics, m)
		action.Edit = WorkspaceEdit(action.Edit, m)
		out = append(out, action)
	}
	return out
}

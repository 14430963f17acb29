package css

import (
	"path"
	"strings"

	"veneer/internal/document"
	"veneer/internal/engine"
	"veneer/internal/index"
	"veneer/internal/sitteradapter"
	"veneer/internal/transform"

	sitter "github.com/smacker/go-tree-sitter"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// occurrence is one mention of a variable.
type occurrence struct {
	name        string
	node        *sitter.Node
	definition  bool
	declaration *sitter.Node
}

// link is a reference to another file: an @import or a url().
type link struct {
	node   *sitter.Node
	target string
	// start and end delimit the target text, quotes excluded
	start, end int
	isImport   bool
}

func (s *stylesheet) occurrences() []occurrence {
	s.once.Do(s.collect)
	return s.occs
}

func (s *stylesheet) links() []link {
	s.once.Do(s.collect)
	return s.lnks
}

func (s *stylesheet) collect() {
	sitteradapter.Walk(s.root(), func(n *sitter.Node) bool {
		switch n.Type() {
		case nodeComment, nodeStringValue:
			return false
		case nodeImportStatement:
			for i := 0; i < int(n.ChildCount()); i++ {
				if l, ok := s.linkOf(n.Child(i)); ok {
					l.isImport = true
					s.lnks = append(s.lnks, l)
					break
				}
			}
			return false
		case nodeCallExpression:
			if strings.EqualFold(s.text(sitteradapter.ChildOfType(n, nodeFunctionName)), "url") {
				if l, ok := s.linkOf(n); ok {
					s.lnks = append(s.lnks, l)
				}
				return false
			}
		case nodePropertyName:
			if name := s.text(n); s.isVariable(name) {
				s.occs = append(s.occs, occurrence{name: name, node: n, definition: true, declaration: n.Parent()})
			}
			return false
		}
		if n.ChildCount() == 0 {
			if name := s.text(n); s.isVariable(name) {
				s.occs = append(s.occs, occurrence{name: name, node: n})
			}
		}
		return true
	})
}

// linkOf reads the target of a string, or of the argument of url().
func (s *stylesheet) linkOf(n *sitter.Node) (link, bool) {
	switch n.Type() {
	case nodeStringValue:
		start, end := sitteradapter.Offsets(n)
		if end-start >= 2 {
			start, end = start+1, end-1
		}
		return link{node: n, target: s.doc.Text[start:end], start: start, end: end}, true
	case nodeCallExpression:
		if !strings.EqualFold(s.text(sitteradapter.ChildOfType(n, nodeFunctionName)), "url") {
			return link{}, false
		}
		args := sitteradapter.ChildOfType(n, nodeArguments)
		if args == nil {
			return link{}, false
		}
		for i := 0; i < int(args.NamedChildCount()); i++ {
			arg := args.NamedChild(i)
			if arg.Type() == nodeStringValue {
				return s.linkOf(arg)
			}
			start, end := sitteradapter.Offsets(arg)
			return link{node: arg, target: s.doc.Text[start:end], start: start, end: end}, true
		}
	}
	return link{}, false
}

func (s *stylesheet) resolve(target string) (protocol.DocumentUri, bool) {
	return document.ResolveLink(s.doc.URI, target)
}

// resolveImport is resolve plus the preprocessor convention of leaving out
// the extension.
func (s *stylesheet) resolveImport(target string) (protocol.DocumentUri, bool) {
	if path.Ext(target) == "" && !strings.Contains(target, "://") {
		target += "." + s.mode.String()
	}
	return s.resolve(target)
}

func (s *stylesheet) variableAt(offset int) (occurrence, bool) {
	for _, occ := range s.occurrences() {
		start, end := sitteradapter.Offsets(occ.node)
		if start <= offset && offset <= end {
			return occ, true
		}
	}
	return occurrence{}, false
}

func (s *stylesheet) linkAt(offset int) (link, bool) {
	for _, l := range s.links() {
		if l.start <= offset && offset <= l.end {
			return l, true
		}
	}
	return link{}, false
}

func (s *stylesheet) rangeOf(n *sitter.Node) protocol.Range {
	return sitteradapter.Range(s.doc, n)
}

// workspaceSymbols asks the index about name in every other file.
func workspaceSymbols(req *engine.Request, name string, kinds ...index.Kind) []index.Symbol {
	if req.Workspace == nil {
		return nil
	}
	self, _ := document.URIToFileName(req.Document.URI)
	var out []index.Symbol
	for _, kind := range kinds {
		var syms []index.Symbol
		var err error
		switch kind {
		case index.Definition:
			syms, err = req.Workspace.Definitions(name)
		case index.Reference:
			syms, err = req.Workspace.References(name)
		}
		if err != nil {
			log.Warningf("workspace lookup of %s failed: %s", name, err)
			continue
		}
		for _, sym := range syms {
			if sym.Path != self {
				out = append(out, sym)
			}
		}
	}
	return out
}

func (e *Engine) Definition(req *engine.Request, pos protocol.Position) ([]protocol.LocationLink, error) {
	s := parsed(req)
	if s == nil {
		return nil, nil
	}
	offset := req.Document.OffsetAt(pos)

	if l, ok := s.linkAt(offset); ok && l.isImport {
		target, ok := s.resolveImport(l.target)
		if !ok {
			return nil, nil
		}
		origin := req.Document.RangeAt(l.start, l.end)
		return []protocol.LocationLink{{
			OriginSelectionRange: &origin,
			TargetURI:            target,
		}}, nil
	}

	occ, ok := s.variableAt(offset)
	if !ok {
		return nil, nil
	}
	origin := s.rangeOf(occ.node)
	var links []protocol.LocationLink
	for _, def := range s.occurrences() {
		if !def.definition || def.name != occ.name {
			continue
		}
		target := s.rangeOf(def.node)
		if def.declaration != nil {
			target = s.rangeOf(def.declaration)
		}
		links = append(links, protocol.LocationLink{
			OriginSelectionRange: &origin,
			TargetURI:            req.Document.URI,
			TargetRange:          target,
			TargetSelectionRange: s.rangeOf(def.node),
		})
	}
	for _, sym := range workspaceSymbols(req, occ.name, index.Definition) {
		links = append(links, protocol.LocationLink{
			OriginSelectionRange: &origin,
			TargetURI:            document.FileNameToURI(sym.Path),
			TargetRange:          sym.Range,
			TargetSelectionRange: sym.Range,
		})
	}
	return links, nil
}

func (e *Engine) References(req *engine.Request, pos protocol.Position, includeDeclaration bool) ([]protocol.Location, error) {
	s := parsed(req)
	if s == nil {
		return nil, nil
	}
	occ, ok := s.variableAt(req.Document.OffsetAt(pos))
	if !ok {
		return nil, nil
	}
	var locs []protocol.Location
	for _, o := range s.occurrences() {
		if o.name == occ.name && (includeDeclaration || !o.definition) {
			locs = append(locs, protocol.Location{URI: req.Document.URI, Range: s.rangeOf(o.node)})
		}
	}
	kinds := []index.Kind{index.Reference}
	if includeDeclaration {
		kinds = append(kinds, index.Definition)
	}
	for _, sym := range workspaceSymbols(req, occ.name, kinds...) {
		locs = append(locs, protocol.Location{URI: document.FileNameToURI(sym.Path), Range: sym.Range})
	}
	return locs, nil
}

func (e *Engine) Highlights(req *engine.Request, pos protocol.Position) ([]protocol.DocumentHighlight, error) {
	s := parsed(req)
	if s == nil {
		return nil, nil
	}
	occ, ok := s.variableAt(req.Document.OffsetAt(pos))
	if !ok {
		return nil, nil
	}
	var highlights []protocol.DocumentHighlight
	for _, o := range s.occurrences() {
		if o.name != occ.name {
			continue
		}
		kind := protocol.DocumentHighlightKindRead
		if o.definition {
			kind = protocol.DocumentHighlightKindWrite
		}
		highlights = append(highlights, protocol.DocumentHighlight{Range: s.rangeOf(o.node), Kind: &kind})
	}
	return highlights, nil
}

func (e *Engine) PrepareRename(req *engine.Request, pos protocol.Position) (*protocol.Range, error) {
	s := parsed(req)
	if s == nil {
		return nil, nil
	}
	offset := req.Document.OffsetAt(pos)
	if occ, ok := s.variableAt(offset); ok {
		r := s.rangeOf(occ.node)
		return &r, nil
	}
	if l, ok := s.linkAt(offset); ok && l.isImport {
		r := req.Document.RangeAt(l.start, l.end)
		return &r, nil
	}
	return nil, nil
}

func (e *Engine) Rename(req *engine.Request, pos protocol.Position, newName string) (*engine.RenameResult, error) {
	s := parsed(req)
	if s == nil || newName == "" {
		return nil, nil
	}
	offset := req.Document.OffsetAt(pos)

	if l, ok := s.linkAt(offset); ok && l.isImport {
		text := transform.RenamedImport(l.target, newName)
		res := &engine.RenameResult{Locations: []transform.RenameLocation{{
			URI:   req.Document.URI,
			Range: req.Document.RangeAt(l.start, l.end),
			Text:  &text,
		}}}
		if target, ok := s.resolveImport(l.target); ok && strings.HasPrefix(target, "file:") {
			res.Files = append(res.Files, engine.FileRename{URI: target, NewName: newName})
		}
		return res, nil
	}

	occ, ok := s.variableAt(offset)
	if !ok {
		return nil, nil
	}
	var prefix string
	for _, sigil := range []string{"--", "$", "@"} {
		if strings.HasPrefix(occ.name, sigil) {
			if !strings.HasPrefix(newName, sigil) {
				prefix = sigil
			}
			break
		}
	}

	res := &engine.RenameResult{}
	for _, o := range s.occurrences() {
		if o.name == occ.name {
			res.Locations = append(res.Locations, transform.RenameLocation{
				URI:    req.Document.URI,
				Range:  s.rangeOf(o.node),
				Prefix: prefix,
			})
		}
	}
	for _, sym := range workspaceSymbols(req, occ.name, index.Definition, index.Reference) {
		res.Locations = append(res.Locations, transform.RenameLocation{
			URI:    document.FileNameToURI(sym.Path),
			Range:  sym.Range,
			Prefix: prefix,
		})
	}
	return res, nil
}

func (e *Engine) Links(req *engine.Request) ([]protocol.DocumentLink, error) {
	s := parsed(req)
	if s == nil {
		return nil, nil
	}
	var links []protocol.DocumentLink
	for _, l := range s.links() {
		resolve := s.resolve
		if l.isImport {
			resolve = s.resolveImport
		}
		target, ok := resolve(l.target)
		if !ok {
			continue
		}
		links = append(links, protocol.DocumentLink{
			Range:  req.Document.RangeAt(l.start, l.end),
			Target: &target,
		})
	}
	return links, nil
}

// IndexSymbols reports the variables a stylesheet defines and uses, and
// the local files it imports.
func (e *Engine) IndexSymbols(doc *document.Document, p engine.Parsed) []index.Symbol {
	s, _ := p.(*stylesheet)
	if s == nil {
		return nil
	}
	self, err := document.URIToFileName(doc.URI)
	if err != nil {
		return nil
	}
	var syms []index.Symbol
	for _, occ := range s.occurrences() {
		kind := index.Reference
		if occ.definition {
			kind = index.Definition
		}
		syms = append(syms, index.Symbol{Path: self, Name: occ.name, Kind: kind, Range: s.rangeOf(occ.node)})
	}
	for _, l := range s.links() {
		if !l.isImport {
			continue
		}
		target, ok := s.resolveImport(l.target)
		if !ok {
			continue
		}
		file, err := document.URIToFileName(target)
		if err != nil {
			continue
		}
		syms = append(syms, index.Symbol{
			Path:  self,
			Name:  file,
			Kind:  index.Import,
			Range: doc.RangeAt(l.start, l.end),
		})
	}
	return syms
}

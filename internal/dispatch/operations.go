package dispatch

import (
	"context"
	"sort"

	"veneer/internal/config"
	"veneer/internal/document"
	"veneer/internal/engine"
	"veneer/internal/transform"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// emptyTag stands in for the generated document when completing at the end
// of a blank template line, where the generated document has nothing to
// complete against.
const emptyTag = "< />"

func (d *Dispatcher) Complete(ctx context.Context, uri protocol.DocumentUri, pos protocol.Position) *protocol.CompletionList {
	c := d.prepare(ctx, "completion", uri, engine.Completion)
	if c == nil {
		return nil
	}
	if c.compiled != nil && c.compiled.IsEmptyLineEnd(c.source.OffsetAt(pos)) {
		return c.completeEmptyLine()
	}
	at, ok := c.position(pos)
	if !ok {
		return nil
	}
	list, ok := guard(c, func() (*protocol.CompletionList, error) {
		return c.variant.Engine.Complete(c.req, at)
	})
	if !ok {
		return nil
	}
	return transform.CompletionList(list, c.mapper)
}

// completeEmptyLine offers what an empty tag would. The edits of such items
// point into the synthetic document and are cleared.
func (c *call) completeEmptyLine() *protocol.CompletionList {
	generated := c.req.Document
	doc := document.New(generated.URI, generated.Dialect, generated.Version, emptyTag)
	req := *c.req
	req.Document = doc
	list, ok := guard(c, func() (*protocol.CompletionList, error) {
		req.Parsed = c.variant.Engine.Parse(req.Context, doc)
		return c.variant.Engine.Complete(&req, doc.PositionAt(1))
	})
	if !ok {
		return nil
	}
	return transform.ClearEdits(list)
}

func (d *Dispatcher) Hover(ctx context.Context, uri protocol.DocumentUri, pos protocol.Position) *protocol.Hover {
	c := d.prepare(ctx, "hover", uri, engine.Hover)
	if c == nil {
		return nil
	}
	at, ok := c.position(pos)
	if !ok {
		return nil
	}
	hover, ok := guard(c, func() (*protocol.Hover, error) {
		return c.variant.Engine.Hover(c.req, at)
	})
	if !ok {
		return nil
	}
	return transform.Hover(hover, c.mapper)
}

func (d *Dispatcher) Definition(ctx context.Context, uri protocol.DocumentUri, pos protocol.Position) []protocol.LocationLink {
	c := d.prepare(ctx, "definition", uri, engine.Definition)
	if c == nil {
		return nil
	}
	at, ok := c.position(pos)
	if !ok {
		return nil
	}
	links, ok := guard(c, func() ([]protocol.LocationLink, error) {
		return c.variant.Engine.Definition(c.req, at)
	})
	if !ok {
		return nil
	}
	return transform.LocationLinks(links, c.mapper)
}

func (d *Dispatcher) References(ctx context.Context, uri protocol.DocumentUri, pos protocol.Position, includeDeclaration bool) []protocol.Location {
	c := d.prepare(ctx, "references", uri, engine.References)
	if c == nil {
		return nil
	}
	at, ok := c.position(pos)
	if !ok {
		return nil
	}
	locs, ok := guard(c, func() ([]protocol.Location, error) {
		return c.variant.Engine.References(c.req, at, includeDeclaration)
	})
	if !ok {
		return nil
	}
	return transform.Locations(locs, c.mapper)
}

func (d *Dispatcher) Highlights(ctx context.Context, uri protocol.DocumentUri, pos protocol.Position) []protocol.DocumentHighlight {
	c := d.prepare(ctx, "highlights", uri, engine.Highlights)
	if c == nil {
		return nil
	}
	at, ok := c.position(pos)
	if !ok {
		return nil
	}
	highlights, ok := guard(c, func() ([]protocol.DocumentHighlight, error) {
		return c.variant.Engine.Highlights(c.req, at)
	})
	if !ok {
		return nil
	}
	return transform.DocumentHighlights(highlights, c.mapper)
}

func (d *Dispatcher) PrepareRename(ctx context.Context, uri protocol.DocumentUri, pos protocol.Position) *protocol.Range {
	c := d.prepare(ctx, "prepareRename", uri, engine.Rename)
	if c == nil {
		return nil
	}
	at, ok := c.position(pos)
	if !ok {
		return nil
	}
	r, ok := guard(c, func() (*protocol.Range, error) {
		return c.variant.Engine.PrepareRename(c.req, at)
	})
	if !ok {
		return nil
	}
	return transform.PrepareRename(r, c.mapper)
}

func (d *Dispatcher) Rename(ctx context.Context, uri protocol.DocumentUri, pos protocol.Position, newName string) *protocol.WorkspaceEdit {
	c := d.prepare(ctx, "rename", uri, engine.Rename)
	if c == nil {
		return nil
	}
	at, ok := c.position(pos)
	if !ok {
		return nil
	}
	res, ok := guard(c, func() (*engine.RenameResult, error) {
		return c.variant.Engine.Rename(c.req, at, newName)
	})
	if !ok || res == nil {
		return nil
	}
	edit := transform.RenameEdits(newName, res.Locations, c.mapper)
	if len(res.Files) == 0 {
		return edit
	}
	return withFileRenames(edit, d.importerEdits(uri, res.Files), res.Files)
}

// importerEdits rewrites the imports in other files that point at a renamed
// file. Imports in self are the engine's to rename.
func (d *Dispatcher) importerEdits(self protocol.DocumentUri, files []engine.FileRename) []any {
	if d.opts.Workspace == nil {
		return nil
	}
	byURI := map[protocol.DocumentUri]int{}
	var changes []transform.FileTextChanges
	for _, f := range files {
		target, err := document.URIToFileName(f.URI)
		if err != nil {
			continue
		}
		sites, err := d.opts.Workspace.Importers(target)
		if err != nil {
			log.Warningf("looking up importers of %s: %s", target, err)
			continue
		}
		for _, site := range sites {
			uri := document.FileNameToURI(site.Path)
			if uri == self {
				continue
			}
			doc, err := d.docs.Load(uri)
			if err != nil {
				log.Warningf("skipping import in %s: %s", uri, err)
				continue
			}
			start, end := doc.Offsets(site.Range)
			if end < start {
				continue
			}
			change := transform.TextChange{
				Start:   start,
				Length:  end - start,
				NewText: transform.RenamedImport(doc.Text[start:end], f.NewName),
			}
			i, ok := byURI[uri]
			if !ok {
				i = len(changes)
				byURI[uri] = i
				changes = append(changes, transform.FileTextChanges{URI: uri})
			}
			changes[i].Changes = append(changes[i].Changes, change)
		}
	}
	if len(changes) == 0 {
		return nil
	}
	return transform.FileChangesToWorkspaceEdit(changes, d.docs).DocumentChanges
}

// withFileRenames moves the text edits into document changes, followed by
// the edits to importing files and then the file renames, so that clients
// apply them in that order.
func withFileRenames(edit *protocol.WorkspaceEdit, importers []any, files []engine.FileRename) *protocol.WorkspaceEdit {
	out := &protocol.WorkspaceEdit{}
	if edit != nil {
		uris := make([]protocol.DocumentUri, 0, len(edit.Changes))
		for uri := range edit.Changes {
			uris = append(uris, uri)
		}
		sort.Strings(uris)
		for _, uri := range uris {
			edits := make([]any, 0, len(edit.Changes[uri]))
			for _, te := range edit.Changes[uri] {
				edits = append(edits, te)
			}
			out.DocumentChanges = append(out.DocumentChanges, protocol.TextDocumentEdit{
				TextDocument: protocol.OptionalVersionedTextDocumentIdentifier{
					TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri},
				},
				Edits: edits,
			})
		}
	}
	out.DocumentChanges = append(out.DocumentChanges, importers...)
	for _, f := range files {
		if rename, ok := transform.RenameFileEdit(f.URI, f.NewName); ok {
			out.DocumentChanges = append(out.DocumentChanges, rename)
		}
	}
	if len(out.DocumentChanges) == 0 {
		return nil
	}
	return out
}

func (d *Dispatcher) CodeActions(ctx context.Context, uri protocol.DocumentUri, rng protocol.Range, actx protocol.CodeActionContext) []protocol.CodeAction {
	c := d.prepare(ctx, "codeAction", uri, engine.CodeActions)
	if c == nil {
		return nil
	}
	r, ok := c.rangeOf(rng)
	if !ok {
		return nil
	}
	if c.mapping != nil {
		diags := make([]protocol.Diagnostic, 0, len(actx.Diagnostics))
		for _, diag := range actx.Diagnostics {
			if dr, ok := c.mapping.ToGeneratedRange(diag.Range); ok {
				diag.Range = dr
				diags = append(diags, diag)
			}
		}
		actx.Diagnostics = diags
	}
	actions, ok := guard(c, func() ([]protocol.CodeAction, error) {
		return c.variant.Engine.CodeActions(c.req, r, actx)
	})
	if !ok {
		return nil
	}
	return transform.CodeActions(actions, c.mapper)
}

// Diagnostics is the outcome of validating one version of a document.
type Diagnostics struct {
	URI     protocol.DocumentUri
	Version protocol.Integer
	Items   []protocol.Diagnostic
}

// Validate returns nil when the document cannot be validated. Diagnostics
// on the variant's denylist are dropped.
func (d *Dispatcher) Validate(ctx context.Context, uri protocol.DocumentUri) *Diagnostics {
	c := d.prepare(ctx, "validation", uri, engine.Validation)
	if c == nil {
		return nil
	}
	diags, ok := guard(c, func() ([]protocol.Diagnostic, error) {
		return c.variant.Engine.Validate(c.req)
	})
	if !ok {
		return nil
	}
	kept := make([]protocol.Diagnostic, 0, len(diags))
	for _, diag := range diags {
		if diag.Code != nil && c.variant.denied(diag.Code.Value) {
			continue
		}
		kept = append(kept, diag)
	}
	return &Diagnostics{
		URI:     c.source.URI,
		Version: c.source.Version,
		Items:   transform.Diagnostics(kept, c.mapper),
	}
}

// Format layers the request's options over the dialect's format settings
// and the defaults.
func (d *Dispatcher) Format(ctx context.Context, uri protocol.DocumentUri, rng *protocol.Range, opts protocol.FormattingOptions) []protocol.TextEdit {
	c := d.prepare(ctx, "formatting", uri, engine.Formatting)
	if c == nil || !config.Bool(c.req.Settings, "format.enable", true) {
		return nil
	}
	var target *protocol.Range
	if rng != nil {
		r, ok := c.rangeOf(*rng)
		if !ok {
			return nil
		}
		target = &r
	}
	section, _ := c.req.Settings["format"].(map[string]any)
	options := protocol.FormattingOptions(config.Merge(config.FormatDefaults(), section, opts))
	delete(options, "enable")

	edits, ok := guard(c, func() ([]protocol.TextEdit, error) {
		return c.variant.Engine.Format(c.req, target, options)
	})
	if !ok {
		return nil
	}
	return transform.TextEdits(edits, c.mapper)
}

func (d *Dispatcher) Links(ctx context.Context, uri protocol.DocumentUri) []protocol.DocumentLink {
	c := d.prepare(ctx, "documentLink", uri, engine.Links)
	if c == nil {
		return nil
	}
	links, ok := guard(c, func() ([]protocol.DocumentLink, error) {
		return c.variant.Engine.Links(c.req)
	})
	if !ok {
		return nil
	}
	return transform.DocumentLinks(links, c.mapper)
}

func (d *Dispatcher) Symbols(ctx context.Context, uri protocol.DocumentUri) []protocol.DocumentSymbol {
	c := d.prepare(ctx, "documentSymbol", uri, engine.Symbols)
	if c == nil {
		return nil
	}
	symbols, ok := guard(c, func() ([]protocol.DocumentSymbol, error) {
		return c.variant.Engine.Symbols(c.req)
	})
	if !ok {
		return nil
	}
	return transform.DocumentSymbols(symbols, c.mapper)
}

func (d *Dispatcher) FoldingRanges(ctx context.Context, uri protocol.DocumentUri) []protocol.FoldingRange {
	c := d.prepare(ctx, "foldingRange", uri, engine.Folding)
	if c == nil {
		return nil
	}
	ranges, ok := guard(c, func() ([]protocol.FoldingRange, error) {
		return c.variant.Engine.FoldingRanges(c.req)
	})
	if !ok {
		return nil
	}
	return transform.FoldingRanges(ranges, c.mapper)
}

// SelectionRanges returns one entry per position; positions that do not
// map or have no selection range get nil.
func (d *Dispatcher) SelectionRanges(ctx context.Context, uri protocol.DocumentUri, positions []protocol.Position) []*protocol.SelectionRange {
	c := d.prepare(ctx, "selectionRange", uri, engine.SelectionRanges)
	if c == nil {
		return nil
	}
	out := make([]*protocol.SelectionRange, len(positions))
	var mapped []protocol.Position
	var slots []int
	for i, pos := range positions {
		if at, ok := c.position(pos); ok {
			mapped = append(mapped, at)
			slots = append(slots, i)
		}
	}
	if len(mapped) == 0 {
		return out
	}
	ranges, ok := guard(c, func() ([]*protocol.SelectionRange, error) {
		return c.variant.Engine.SelectionRanges(c.req, mapped)
	})
	if !ok {
		return out
	}
	for j, sr := range ranges {
		if j < len(slots) {
			out[slots[j]] = transform.SelectionRange(sr, c.mapper)
		}
	}
	return out
}

func (d *Dispatcher) Colors(ctx context.Context, uri protocol.DocumentUri) []protocol.ColorInformation {
	c := d.prepare(ctx, "documentColor", uri, engine.Colors)
	if c == nil {
		return nil
	}
	colors, ok := guard(c, func() ([]protocol.ColorInformation, error) {
		return c.variant.Engine.Colors(c.req)
	})
	if !ok {
		return nil
	}
	return transform.ColorInformation(colors, c.mapper)
}

func (d *Dispatcher) ColorPresentations(ctx context.Context, uri protocol.DocumentUri, color protocol.Color, rng protocol.Range) []protocol.ColorPresentation {
	c := d.prepare(ctx, "colorPresentation", uri, engine.Colors)
	if c == nil {
		return nil
	}
	r, ok := c.rangeOf(rng)
	if !ok {
		return nil
	}
	presentations, ok := guard(c, func() ([]protocol.ColorPresentation, error) {
		return c.variant.Engine.ColorPresentations(c.req, color, r)
	})
	if !ok {
		return nil
	}
	return transform.ColorPresentations(presentations, c.mapper)
}

package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"path"
	"time"

	"veneer/internal/engine"
	"veneer/internal/transform"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// call syncs the request's document and forwards method. A null result
// leaves raw empty.
func (e *Engine) call(req *engine.Request, method string, params any) (json.RawMessage, error) {
	ctx := req.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if err := e.sync(ctx, req.Document); err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := e.conn.Call(ctx, method, params, &raw); err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	return raw, nil
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func identifier(req *engine.Request) protocol.TextDocumentIdentifier {
	return protocol.TextDocumentIdentifier{URI: req.Document.URI}
}

func position(req *engine.Request, pos protocol.Position) protocol.TextDocumentPositionParams {
	return protocol.TextDocumentPositionParams{TextDocument: identifier(req), Position: pos}
}

// decode unmarshals raw into a fresh T, or returns the zero value for a
// null result.
func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if raw == nil {
		return v, nil
	}
	err := json.Unmarshal(raw, &v)
	return v, err
}

func (e *Engine) Complete(req *engine.Request, pos protocol.Position) (*protocol.CompletionList, error) {
	raw, err := e.call(req, "textDocument/completion", protocol.CompletionParams{
		TextDocumentPositionParams: position(req, pos),
	})
	if err != nil || raw == nil {
		return nil, err
	}
	if isArray(raw) {
		items, err := decode[[]protocol.CompletionItem](raw)
		if err != nil || len(items) == 0 {
			return nil, err
		}
		return &protocol.CompletionList{Items: items}, nil
	}
	list, err := decode[protocol.CompletionList](raw)
	if err != nil || len(list.Items) == 0 {
		return nil, err
	}
	return &list, nil
}

func (e *Engine) Hover(req *engine.Request, pos protocol.Position) (*protocol.Hover, error) {
	raw, err := e.call(req, "textDocument/hover", protocol.HoverParams{
		TextDocumentPositionParams: position(req, pos),
	})
	if err != nil || raw == nil {
		return nil, err
	}
	hover, err := decode[protocol.Hover](raw)
	if err != nil {
		return nil, err
	}
	return &hover, nil
}

// Definition accepts a location, a list of locations or a list of links.
func (e *Engine) Definition(req *engine.Request, pos protocol.Position) ([]protocol.LocationLink, error) {
	raw, err := e.call(req, "textDocument/definition", protocol.DefinitionParams{
		TextDocumentPositionParams: position(req, pos),
	})
	if err != nil || raw == nil {
		return nil, err
	}
	if !isArray(raw) {
		loc, err := decode[protocol.Location](raw)
		if err != nil {
			return nil, err
		}
		return []protocol.LocationLink{linkTo(loc)}, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	var links []protocol.LocationLink
	for _, entry := range entries {
		var probe struct {
			TargetURI *string `json:"targetUri"`
		}
		if err := json.Unmarshal(entry, &probe); err != nil {
			return nil, err
		}
		if probe.TargetURI != nil {
			link, err := decode[protocol.LocationLink](entry)
			if err != nil {
				return nil, err
			}
			links = append(links, link)
			continue
		}
		loc, err := decode[protocol.Location](entry)
		if err != nil {
			return nil, err
		}
		links = append(links, linkTo(loc))
	}
	return links, nil
}

func linkTo(loc protocol.Location) protocol.LocationLink {
	return protocol.LocationLink{
		TargetURI:            loc.URI,
		TargetRange:          loc.Range,
		TargetSelectionRange: loc.Range,
	}
}

func (e *Engine) References(req *engine.Request, pos protocol.Position, includeDeclaration bool) ([]protocol.Location, error) {
	raw, err := e.call(req, "textDocument/references", protocol.ReferenceParams{
		TextDocumentPositionParams: position(req, pos),
		Context:                    protocol.ReferenceContext{IncludeDeclaration: includeDeclaration},
	})
	if err != nil {
		return nil, err
	}
	return decode[[]protocol.Location](raw)
}

func (e *Engine) Highlights(req *engine.Request, pos protocol.Position) ([]protocol.DocumentHighlight, error) {
	raw, err := e.call(req, "textDocument/documentHighlight", protocol.DocumentHighlightParams{
		TextDocumentPositionParams: position(req, pos),
	})
	if err != nil {
		return nil, err
	}
	return decode[[]protocol.DocumentHighlight](raw)
}

// PrepareRename accepts a bare range or a range with a placeholder.
func (e *Engine) PrepareRename(req *engine.Request, pos protocol.Position) (*protocol.Range, error) {
	raw, err := e.call(req, "textDocument/prepareRename", protocol.PrepareRenameParams{
		TextDocumentPositionParams: position(req, pos),
	})
	if err != nil || raw == nil {
		return nil, err
	}
	var probe struct {
		Range *protocol.Range    `json:"range"`
		Start *protocol.Position `json:"start"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	switch {
	case probe.Range != nil:
		return probe.Range, nil
	case probe.Start != nil:
		r, err := decode[protocol.Range](raw)
		if err != nil {
			return nil, err
		}
		return &r, nil
	}
	// {defaultBehavior: true} leaves the choice to the client
	return nil, nil
}

// workspaceEdit is the rename result as it comes over the wire. Document
// changes are either text document edits or resource operations, told
// apart by "kind".
type workspaceEdit struct {
	Changes         map[protocol.DocumentUri][]protocol.TextEdit `json:"changes"`
	DocumentChanges []struct {
		Kind         string                                            `json:"kind"`
		OldURI       protocol.DocumentUri                              `json:"oldUri"`
		NewURI       protocol.DocumentUri                              `json:"newUri"`
		TextDocument *protocol.OptionalVersionedTextDocumentIdentifier `json:"textDocument"`
		Edits        []protocol.TextEdit                               `json:"edits"`
	} `json:"documentChanges"`
}

// Rename turns the server's workspace edit back into rename locations. Each
// location carries the server's replacement text.
func (e *Engine) Rename(req *engine.Request, pos protocol.Position, newName string) (*engine.RenameResult, error) {
	raw, err := e.call(req, "textDocument/rename", protocol.RenameParams{
		TextDocumentPositionParams: position(req, pos),
		NewName:                    newName,
	})
	if err != nil || raw == nil {
		return nil, err
	}
	edit, err := decode[workspaceEdit](raw)
	if err != nil {
		return nil, err
	}

	result := &engine.RenameResult{}
	add := func(uri protocol.DocumentUri, edits []protocol.TextEdit) {
		for _, te := range edits {
			text := te.NewText
			result.Locations = append(result.Locations, transform.RenameLocation{
				URI:   uri,
				Range: te.Range,
				Text:  &text,
			})
		}
	}
	if len(edit.DocumentChanges) > 0 {
		for _, change := range edit.DocumentChanges {
			switch {
			case change.Kind == "rename":
				result.Files = append(result.Files, engine.FileRename{
					URI:     change.OldURI,
					NewName: path.Base(change.NewURI),
				})
			case change.Kind == "" && change.TextDocument != nil:
				add(change.TextDocument.URI, change.Edits)
			default:
				log.Debugf("%s: ignoring %q resource operation", e.name, change.Kind)
			}
		}
	} else {
		for uri, edits := range edit.Changes {
			add(uri, edits)
		}
	}
	if len(result.Locations) == 0 && len(result.Files) == 0 {
		return nil, nil
	}
	return result, nil
}

// CodeActions keeps code actions and drops bare commands, which have no
// edit to map.
func (e *Engine) CodeActions(req *engine.Request, rng protocol.Range, actx protocol.CodeActionContext) ([]protocol.CodeAction, error) {
	raw, err := e.call(req, "textDocument/codeAction", protocol.CodeActionParams{
		TextDocument: identifier(req),
		Range:        rng,
		Context:      actx,
	})
	if err != nil || raw == nil {
		return nil, err
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	var actions []protocol.CodeAction
	for _, entry := range entries {
		var probe struct {
			Command json.RawMessage `json:"command"`
		}
		if err := json.Unmarshal(entry, &probe); err != nil {
			return nil, err
		}
		if bytes.HasPrefix(bytes.TrimSpace(probe.Command), []byte(`"`)) {
			continue
		}
		action, err := decode[protocol.CodeAction](entry)
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	return actions, nil
}

// Validate waits for the server to publish diagnostics for the synced
// version. A server that stays silent yields no diagnostics.
func (e *Engine) Validate(req *engine.Request) ([]protocol.Diagnostic, error) {
	ctx := req.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if err := e.sync(ctx, req.Document); err != nil {
		return nil, err
	}
	e.mu.Lock()
	d := e.diags[req.Document.URI]
	e.mu.Unlock()
	if d == nil {
		return nil, nil
	}

	timer := time.NewTimer(diagnosticsTimeout)
	defer timer.Stop()
	select {
	case <-d.ready:
	case <-timer.C:
		log.Debugf("%s: no diagnostics for %s version %d", e.name, req.Document.URI, d.version)
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]protocol.Diagnostic(nil), d.list...), nil
}

func (e *Engine) Format(req *engine.Request, rng *protocol.Range, opts protocol.FormattingOptions) ([]protocol.TextEdit, error) {
	var (
		raw json.RawMessage
		err error
	)
	if rng != nil {
		raw, err = e.call(req, "textDocument/rangeFormatting", protocol.DocumentRangeFormattingParams{
			TextDocument: identifier(req),
			Range:        *rng,
			Options:      opts,
		})
	} else {
		raw, err = e.call(req, "textDocument/formatting", protocol.DocumentFormattingParams{
			TextDocument: identifier(req),
			Options:      opts,
		})
	}
	if err != nil {
		return nil, err
	}
	return decode[[]protocol.TextEdit](raw)
}

func (e *Engine) Links(req *engine.Request) ([]protocol.DocumentLink, error) {
	raw, err := e.call(req, "textDocument/documentLink", protocol.DocumentLinkParams{TextDocument: identifier(req)})
	if err != nil {
		return nil, err
	}
	return decode[[]protocol.DocumentLink](raw)
}

// Symbols accepts hierarchical symbols or flat symbol information, which
// becomes a flat outline.
func (e *Engine) Symbols(req *engine.Request) ([]protocol.DocumentSymbol, error) {
	raw, err := e.call(req, "textDocument/documentSymbol", protocol.DocumentSymbolParams{TextDocument: identifier(req)})
	if err != nil || raw == nil {
		return nil, err
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	var symbols []protocol.DocumentSymbol
	for _, entry := range entries {
		var probe struct {
			Location *protocol.Location `json:"location"`
		}
		if err := json.Unmarshal(entry, &probe); err != nil {
			return nil, err
		}
		if probe.Location == nil {
			sym, err := decode[protocol.DocumentSymbol](entry)
			if err != nil {
				return nil, err
			}
			symbols = append(symbols, sym)
			continue
		}
		info, err := decode[protocol.SymbolInformation](entry)
		if err != nil {
			return nil, err
		}
		if info.Location.URI != req.Document.URI {
			continue
		}
		symbols = append(symbols, protocol.DocumentSymbol{
			Name:           info.Name,
			Kind:           info.Kind,
			Range:          info.Location.Range,
			SelectionRange: info.Location.Range,
		})
	}
	return symbols, nil
}

func (e *Engine) FoldingRanges(req *engine.Request) ([]protocol.FoldingRange, error) {
	raw, err := e.call(req, "textDocument/foldingRange", protocol.FoldingRangeParams{TextDocument: identifier(req)})
	if err != nil {
		return nil, err
	}
	return decode[[]protocol.FoldingRange](raw)
}

func (e *Engine) SelectionRanges(req *engine.Request, positions []protocol.Position) ([]*protocol.SelectionRange, error) {
	raw, err := e.call(req, "textDocument/selectionRange", protocol.SelectionRangeParams{
		TextDocument: identifier(req),
		Positions:    positions,
	})
	if err != nil {
		return nil, err
	}
	ranges, err := decode[[]*protocol.SelectionRange](raw)
	if err != nil {
		return nil, err
	}
	if ranges == nil {
		return make([]*protocol.SelectionRange, len(positions)), nil
	}
	return ranges, nil
}

func (e *Engine) Colors(req *engine.Request) ([]protocol.ColorInformation, error) {
	raw, err := e.call(req, "textDocument/documentColor", protocol.DocumentColorParams{TextDocument: identifier(req)})
	if err != nil {
		return nil, err
	}
	return decode[[]protocol.ColorInformation](raw)
}

func (e *Engine) ColorPresentations(req *engine.Request, color protocol.Color, rng protocol.Range) ([]protocol.ColorPresentation, error) {
	raw, err := e.call(req, "textDocument/colorPresentation", protocol.ColorPresentationParams{
		TextDocument: identifier(req),
		Color:        color,
		Range:        rng,
	})
	if err != nil {
		return nil, err
	}
	return decode[[]protocol.ColorPresentation](raw)
}

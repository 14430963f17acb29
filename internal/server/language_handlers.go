package server

import (
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Handlers answer nil when nothing applies; the dispatcher has already
// logged whatever went wrong.

func (s *Server) textDocumentCompletion(
	context *glsp.Context,
	params *protocol.CompletionParams,
) (any, error) {
	if list := s.dispatcher.Complete(s.ctx, params.TextDocument.URI, params.Position); list != nil {
		return list, nil
	}
	return nil, nil
}

func (s *Server) textDocumentHover(
	context *glsp.Context,
	params *protocol.HoverParams,
) (*protocol.Hover, error) {
	return s.dispatcher.Hover(s.ctx, params.TextDocument.URI, params.Position), nil
}

func (s *Server) textDocumentDefinition(
	context *glsp.Context,
	params *protocol.DefinitionParams,
) (any, error) {
	if links := s.dispatcher.Definition(s.ctx, params.TextDocument.URI, params.Position); links != nil {
		return links, nil
	}
	return nil, nil
}

func (s *Server) textDocumentReferences(
	context *glsp.Context,
	params *protocol.ReferenceParams,
) ([]protocol.Location, error) {
	return s.dispatcher.References(s.ctx, params.TextDocument.URI, params.Position, params.Context.IncludeDeclaration), nil
}

func (s *Server) textDocumentDocumentHighlight(
	context *glsp.Context,
	params *protocol.DocumentHighlightParams,
) ([]protocol.DocumentHighlight, error) {
	return s.dispatcher.Highlights(s.ctx, params.TextDocument.URI, params.Position), nil
}

func (s *Server) textDocumentPrepareRename(
	context *glsp.Context,
	params *protocol.PrepareRenameParams,
) (any, error) {
	if r := s.dispatcher.PrepareRename(s.ctx, params.TextDocument.URI, params.Position); r != nil {
		return r, nil
	}
	return nil, nil
}

func (s *Server) textDocumentRename(
	context *glsp.Context,
	params *protocol.RenameParams,
) (*protocol.WorkspaceEdit, error) {
	return s.dispatcher.Rename(s.ctx, params.TextDocument.URI, params.Position, params.NewName), nil
}

func (s *Server) textDocumentCodeAction(
	context *glsp.Context,
	params *protocol.CodeActionParams,
) (any, error) {
	if actions := s.dispatcher.CodeActions(s.ctx, params.TextDocument.URI, params.Range, params.Context); actions != nil {
		return actions, nil
	}
	return nil, nil
}

func (s *Server) textDocumentFormatting(
	context *glsp.Context,
	params *protocol.DocumentFormattingParams,
) ([]protocol.TextEdit, error) {
	return s.dispatcher.Format(s.ctx, params.TextDocument.URI, nil, params.Options), nil
}

func (s *Server) textDocumentRangeFormatting(
	context *glsp.Context,
	params *protocol.DocumentRangeFormattingParams,
) ([]protocol.TextEdit, error) {
	return s.dispatcher.Format(s.ctx, params.TextDocument.URI, &params.Range, params.Options), nil
}

func (s *Server) textDocumentDocumentLink(
	context *glsp.Context,
	params *protocol.DocumentLinkParams,
) ([]protocol.DocumentLink, error) {
	return s.dispatcher.Links(s.ctx, params.TextDocument.URI), nil
}

func (s *Server) textDocumentDocumentSymbol(
	context *glsp.Context,
	params *protocol.DocumentSymbolParams,
) (any, error) {
	if symbols := s.dispatcher.Symbols(s.ctx, params.TextDocument.URI); symbols != nil {
		return symbols, nil
	}
	return nil, nil
}

func (s *Server) textDocumentFoldingRange(
	context *glsp.Context,
	params *protocol.FoldingRangeParams,
) ([]protocol.FoldingRange, error) {
	return s.dispatcher.FoldingRanges(s.ctx, params.TextDocument.URI), nil
}

// textDocumentSelectionRange answers one range per requested position. A
// position without an answer gets the empty range at itself.
func (s *Server) textDocumentSelectionRange(
	context *glsp.Context,
	params *protocol.SelectionRangeParams,
) ([]protocol.SelectionRange, error) {
	ranges := s.dispatcher.SelectionRanges(s.ctx, params.TextDocument.URI, params.Positions)
	if ranges == nil {
		return nil, nil
	}
	out := make([]protocol.SelectionRange, len(params.Positions))
	for i, pos := range params.Positions {
		if i < len(ranges) && ranges[i] != nil {
			out[i] = *ranges[i]
			continue
		}
		out[i] = protocol.SelectionRange{Range: protocol.Range{Start: pos, End: pos}}
	}
	return out, nil
}

func (s *Server) textDocumentColor(
	context *glsp.Context,
	params *protocol.DocumentColorParams,
) ([]protocol.ColorInformation, error) {
	return s.dispatcher.Colors(s.ctx, params.TextDocument.URI), nil
}

func (s *Server) textDocumentColorPresentation(
	context *glsp.Context,
	params *protocol.ColorPresentationParams,
) ([]protocol.ColorPresentation, error) {
	return s.dispatcher.ColorPresentations(s.ctx, params.TextDocument.URI, params.Color, params.Range), nil
}

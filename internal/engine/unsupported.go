package engine

import (
	"context"

	"veneer/internal/document"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Unsupported answers every operation with "nothing here". Engines embed it
// and override what they implement.
type Unsupported struct{}

func (Unsupported) Parse(context.Context, *document.Document) Parsed { return nil }

func (Unsupported) Complete(*Request, protocol.Position) (*protocol.CompletionList, error) {
	return nil, nil
}

func (Unsupported) Hover(*Request, protocol.Position) (*protocol.Hover, error) { return nil, nil }

func (Unsupported) Definition(*Request, protocol.Position) ([]protocol.LocationLink, error) {
	return nil, nil
}

func (Unsupported) References(*Request, protocol.Position, bool) ([]protocol.Location, error) {
	return nil, nil
}

func (Unsupported) Highlights(*Request, protocol.Position) ([]protocol.DocumentHighlight, error) {
	return nil, nil
}

func (Unsupported) PrepareRename(*Request, protocol.Position) (*protocol.Range, error) {
	return nil, nil
}

func (Unsupported) Rename(*Request, protocol.Position, string) (*RenameResult, error) {
	return nil, nil
}

func (Unsupported) CodeActions(*Request, protocol.Range, protocol.CodeActionContext) ([]protocol.CodeAction, error) {
	return nil, nil
}

func (Unsupported) Validate(*Request) ([]protocol.Diagnostic, error) { return nil, nil }

func (Unsupported) Format(*Request, *protocol.Range, protocol.FormattingOptions) ([]protocol.TextEdit, error) {
	return nil, nil
}

func (Unsupported) Links(*Request) ([]protocol.DocumentLink, error) { return nil, nil }
func (Unsupported) Symbols(*Request) ([]protocol.DocumentSymbol, error) { return nil, nil }
func (Unsupported) FoldingRanges(*Request) ([]protocol.FoldingRange, error) { return nil, nil }

func (Unsupported) SelectionRanges(*Request, []protocol.Position) ([]*protocol.SelectionRange, error) {
	return nil, nil
}

func (Unsupported) Colors(*Request) ([]protocol.ColorInformation, error) { return nil, nil }

func (Unsupported) ColorPresentations(*Request, protocol.Color, protocol.Range) ([]protocol.ColorPresentation, error) {
	return nil, nil
}

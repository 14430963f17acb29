// Package engine defines the contract between the dispatcher and the
// analysis engines that answer editor queries for one document at a time.
//
// Engines work in their own coordinate space. For embedded dialects the
// document an engine sees is the generated one, and the dispatcher maps
// positions in and results out.
package engine

import (
	"context"
	"strings"

	"veneer/internal/document"
	"veneer/internal/index"
	"veneer/internal/transform"
	"veneer/internal/vocabulary"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Parsed is an engine's private parsed representation of a document. Only
// the engine that produced it may look inside.
type Parsed any

type Capability uint32

const (
	Completion Capability = 1 << iota
	Hover
	Definition
	References
	Highlights
	Rename
	CodeActions
	Validation
	Formatting
	Links
	Symbols
	Folding
	SelectionRanges
	Colors
)

var capabilityNames = []string{
	"completion", "hover", "definition", "references", "highlights",
	"rename", "codeActions", "validation", "formatting", "links", "symbols",
	"folding", "selectionRanges", "colors",
}

func (c Capability) String() string {
	var names []string
	for i, name := range capabilityNames {
		if c&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// All is every capability an engine can declare.
const All = Colors<<1 - 1

// Capabilities is what an engine declares about itself.
type Capabilities struct {
	Provides          Capability
	TriggerCharacters []string
}

func (c Capabilities) Has(want Capability) bool {
	return c.Provides&want == want
}

// Without returns c minus the given capabilities.
func (c Capabilities) Without(drop Capability) Capabilities {
	c.Provides &^= drop
	return c
}

// Workspace gives engines read access to the workspace index.
type Workspace interface {
	Definitions(name string) ([]index.Symbol, error)
	References(name string) ([]index.Symbol, error)
	Importers(path string) ([]index.Symbol, error)
}

// Request carries everything an engine call may look at. Document and
// Parsed are in the engine's coordinate space.
type Request struct {
	Context    context.Context
	Document   *document.Document
	Parsed     Parsed
	Vocabulary *vocabulary.Set
	// Settings is the settings section of the document's dialect
	// ("css", "scss", "html", ...).
	Settings map[string]any
	// Workspace may be nil.
	Workspace Workspace
}

// RenameResult lists the places a rename touches. Files are renamed after
// the text edits are applied.
type RenameResult struct {
	Locations []transform.RenameLocation
	Files     []FileRename
}

type FileRename struct {
	URI     protocol.DocumentUri
	NewName string
}

// Engine answers editor queries for documents of the dialects it is
// registered for. Operations return nil results for "nothing here"; an
// error means the engine itself failed.
type Engine interface {
	Name() string
	Capabilities() Capabilities

	// Parse never fails. A document that cannot be parsed yields a
	// degenerate value that the other operations handle.
	Parse(ctx context.Context, doc *document.Document) Parsed

	Complete(req *Request, pos protocol.Position) (*protocol.CompletionList, error)
	Hover(req *Request, pos protocol.Position) (*protocol.Hover, error)
	Definition(req *Request, pos protocol.Position) ([]protocol.LocationLink, error)
	References(req *Request, pos protocol.Position, includeDeclaration bool) ([]protocol.Location, error)
	Highlights(req *Request, pos protocol.Position) ([]protocol.DocumentHighlight, error)
	PrepareRename(req *Request, pos protocol.Position) (*protocol.Range, error)
	Rename(req *Request, pos protocol.Position, newName string) (*RenameResult, error)
	CodeActions(req *Request, rng protocol.Range, ctx protocol.CodeActionContext) ([]protocol.CodeAction, error)
	Validate(req *Request) ([]protocol.Diagnostic, error)
	Format(req *Request, rng *protocol.Range, opts protocol.FormattingOptions) ([]protocol.TextEdit, error)
	Links(req *Request) ([]protocol.DocumentLink, error)
	Symbols(req *Request) ([]protocol.DocumentSymbol, error)
	FoldingRanges(req *Request) ([]protocol.FoldingRange, error)
	// SelectionRanges returns one entry per position, nil where the
	// position has no selection range.
	SelectionRanges(req *Request, positions []protocol.Position) ([]*protocol.SelectionRange, error)
	Colors(req *Request) ([]protocol.ColorInformation, error)
	ColorPresentations(req *Request, color protocol.Color, rng protocol.Range) ([]protocol.ColorPresentation, error)
}

// Indexer is implemented by engines that contribute to the workspace
// index.
type Indexer interface {
	IndexSymbols(doc *document.Document, parsed Parsed) []index.Symbol
}

// Closer is implemented by engines holding external resources.
type Closer interface {
	Close() error
}

package server_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"veneer/internal/config"
	"veneer/internal/document"
	"veneer/internal/server"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

const waitFor = 2 * time.Second

// client records what the server sends.
type client struct {
	mu          sync.Mutex
	diagnostics []protocol.PublishDiagnosticsParams
}

func (c *client) notify(method string, params any) {
	if method != protocol.ServerTextDocumentPublishDiagnostics {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diagnostics = append(c.diagnostics, params.(protocol.PublishDiagnosticsParams))
}

// published returns what was published for uri, oldest first.
func (c *client) published(uri protocol.DocumentUri) []protocol.PublishDiagnosticsParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []protocol.PublishDiagnosticsParams
	for _, p := range c.diagnostics {
		if p.URI == uri {
			out = append(out, p)
		}
	}
	return out
}

func (c *client) sawVersion(uri protocol.DocumentUri, version protocol.UInteger, count int) bool {
	for _, p := range c.published(uri) {
		if p.Version != nil && *p.Version == version && len(p.Diagnostics) == count {
			return true
		}
	}
	return false
}

type fixture struct {
	root    string
	handler *protocol.Handler
	client  *client
	ctx     *glsp.Context
	result  protocol.InitializeResult
}

func setup(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o644))
	}

	s := server.New(config.Config{IndexPath: ":memory:"}, "test")
	t.Cleanup(func() { _ = s.Close() })

	c := &client{}
	f := &fixture{
		root:    root,
		handler: s.Handler(),
		client:  c,
		ctx:     &glsp.Context{Notify: c.notify},
	}
	rootURI := document.FileNameToURI(root)
	res, err := f.handler.Initialize(f.ctx, &protocol.InitializeParams{RootURI: &rootURI})
	require.NoError(t, err)
	f.result = res.(protocol.InitializeResult)
	return f
}

func (f *fixture) uri(name string) protocol.DocumentUri {
	return document.FileNameToURI(filepath.Join(f.root, name))
}

func (f *fixture) open(t *testing.T, name, languageID, text string) protocol.DocumentUri {
	t.Helper()
	uri := f.uri(name)
	require.NoError(t, f.handler.TextDocumentDidOpen(f.ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, LanguageID: languageID, Version: 1, Text: text},
	}))
	return uri
}

func pos(line, char uint32) protocol.Position {
	return protocol.Position{Line: line, Character: char}
}

func TestInitializeAdvertisesCapabilities(t *testing.T) {
	f := setup(t, nil)
	caps := f.result.Capabilities

	require.NotNil(t, f.result.ServerInfo)
	assert.Equal(t, "veneer", f.result.ServerInfo.Name)

	textSync, ok := caps.TextDocumentSync.(*protocol.TextDocumentSyncOptions)
	require.True(t, ok)
	assert.Equal(t, protocol.TextDocumentSyncKindIncremental, *textSync.Change)

	require.NotNil(t, caps.CompletionProvider)
	assert.Contains(t, caps.CompletionProvider.TriggerCharacters, "<")
	assert.Contains(t, caps.CompletionProvider.TriggerCharacters, ":")

	rename, ok := caps.RenameProvider.(protocol.RenameOptions)
	require.True(t, ok)
	assert.True(t, *rename.PrepareProvider)

	assert.NotNil(t, caps.ColorProvider)
	assert.NotNil(t, caps.SelectionRangeProvider)
	require.NotNil(t, caps.ExecuteCommandProvider)
	assert.Contains(t, caps.ExecuteCommandProvider.Commands, "veneer.reindex")
}

func TestDiagnosticsFollowEdits(t *testing.T) {
	f := setup(t, nil)
	uri := f.open(t, "a.css", "css", "a { colr: red; }")

	assert.Eventually(t, func() bool { return f.client.sawVersion(uri, 1, 1) }, waitFor, 10*time.Millisecond)

	require.NoError(t, f.handler.TextDocumentDidChange(f.ctx, &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri},
			Version:                2,
		},
		ContentChanges: []any{protocol.TextDocumentContentChangeEvent{
			Range: &protocol.Range{Start: pos(0, 4), End: pos(0, 8)},
			Text:  "color",
		}},
	}))
	assert.Eventually(t, func() bool { return f.client.sawVersion(uri, 2, 0) }, waitFor, 10*time.Millisecond)

	hover, err := f.handler.TextDocumentHover(f.ctx, &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri},
			Position:     pos(0, 5),
		},
	})
	require.NoError(t, err)
	require.NotNil(t, hover)
}

func TestCloseClearsDiagnostics(t *testing.T) {
	f := setup(t, nil)
	uri := f.open(t, "a.css", "css", "a {}")
	assert.Eventually(t, func() bool { return f.client.sawVersion(uri, 1, 1) }, waitFor, 10*time.Millisecond)

	require.NoError(t, f.handler.TextDocumentDidClose(f.ctx, &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	}))
	published := f.client.published(uri)
	last := published[len(published)-1]
	assert.Nil(t, last.Version)
	assert.Empty(t, last.Diagnostics)
	assert.NotNil(t, last.Diagnostics)

	hover, err := f.handler.TextDocumentHover(f.ctx, &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri},
			Position:     pos(0, 0),
		},
	})
	require.NoError(t, err)
	assert.Nil(t, hover)
}

func TestSettingsChangeRevalidates(t *testing.T) {
	f := setup(t, nil)
	uri := f.open(t, "a.css", "css", "a { colr: red; }")
	assert.Eventually(t, func() bool { return f.client.sawVersion(uri, 1, 1) }, waitFor, 10*time.Millisecond)

	require.NoError(t, f.handler.WorkspaceDidChangeConfiguration(f.ctx, &protocol.DidChangeConfigurationParams{
		Settings: map[string]any{"css": map[string]any{"lint": map[string]any{"unknownProperties": "ignore"}}},
	}))
	assert.Eventually(t, func() bool { return f.client.sawVersion(uri, 1, 0) }, waitFor, 10*time.Millisecond)
}

func TestWorkspaceIndex(t *testing.T) {
	f := setup(t, map[string]string{
		"theme.css": ":root {\n  --brand: red;\n}\n",
		"notes.txt": "--brand",
	})
	theme := f.uri("theme.css")

	query := func(q string) []protocol.SymbolInformation {
		symbols, err := f.handler.WorkspaceSymbol(f.ctx, &protocol.WorkspaceSymbolParams{Query: q})
		require.NoError(t, err)
		return symbols
	}
	require.Eventually(t, func() bool { return len(query("brand")) == 1 }, waitFor, 10*time.Millisecond)
	symbol := query("brnd")[0]
	assert.Equal(t, "--brand", symbol.Name)
	assert.Equal(t, theme, symbol.Location.URI)
	assert.Empty(t, query("spacing"))

	uri := f.open(t, "a.css", "css", "a { color: var(--brand); }")
	res, err := f.handler.TextDocumentDefinition(f.ctx, &protocol.DefinitionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri},
			Position:     pos(0, 16),
		},
	})
	require.NoError(t, err)
	links, ok := res.([]protocol.LocationLink)
	require.True(t, ok)
	require.Len(t, links, 1)
	assert.Equal(t, theme, links[0].TargetURI)

	_, err = f.handler.WorkspaceExecuteCommand(f.ctx, &protocol.ExecuteCommandParams{Command: "veneer.reindex"})
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return len(query("brand")) == 1 }, waitFor, 10*time.Millisecond)
}

func TestWatchedFileReindexedOnlyWhenModified(t *testing.T) {
	f := setup(t, map[string]string{"theme.css": ":root { --brand: red; }\n"})
	path := filepath.Join(f.root, "theme.css")

	query := func(q string) int {
		symbols, err := f.handler.WorkspaceSymbol(f.ctx, &protocol.WorkspaceSymbolParams{Query: q})
		require.NoError(t, err)
		return len(symbols)
	}
	changed := func() {
		require.NoError(t, f.handler.WorkspaceDidChangeWatchedFiles(f.ctx, &protocol.DidChangeWatchedFilesParams{
			Changes: []protocol.FileEvent{{URI: f.uri("theme.css"), Type: protocol.FileChangeTypeChanged}},
		}))
	}
	require.Eventually(t, func() bool { return query("brand") == 1 }, waitFor, 10*time.Millisecond)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(":root { --accent: red; }\n"), 0o644))
	require.NoError(t, os.Chtimes(path, info.ModTime(), info.ModTime()))
	changed()
	assert.Never(t, func() bool { return query("accent") == 1 }, 200*time.Millisecond, 10*time.Millisecond)

	later := info.ModTime().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))
	changed()
	assert.Eventually(t, func() bool { return query("accent") == 1 }, waitFor, 10*time.Millisecond)
	assert.Equal(t, 0, query("brand"))
}

func TestSelectionRangesKeepOneSlotPerPosition(t *testing.T) {
	f := setup(t, nil)
	uri := f.open(t, "a.css", "css", "a { color: red; }")

	positions := []protocol.Position{pos(0, 5), pos(0, 12)}
	ranges, err := f.handler.TextDocumentSelectionRange(f.ctx, &protocol.SelectionRangeParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
		Positions:    positions,
	})
	require.NoError(t, err)
	require.Len(t, ranges, len(positions))
	for i, r := range ranges {
		assert.LessOrEqual(t, r.Range.Start.Character, positions[i].Character)
	}
}

func TestFormatting(t *testing.T) {
	f := setup(t, nil)
	uri := f.open(t, "a.css", "css", "a {\ncolor: red;\n  }\n")

	edits, err := f.handler.TextDocumentFormatting(f.ctx, &protocol.DocumentFormattingParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
		Options:      protocol.FormattingOptions{"tabSize": 2, "insertSpaces": true},
	})
	require.NoError(t, err)
	assert.Equal(t, []protocol.TextEdit{
		{Range: protocol.Range{Start: pos(1, 0), End: pos(1, 11)}, NewText: "  color: red;"},
		{Range: protocol.Range{Start: pos(2, 0), End: pos(2, 3)}, NewText: "}"},
	}, edits)
}

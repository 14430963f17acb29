// Package remote is an engine backed by an external language server
// process, spoken to over JSON-RPC on its stdio.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"veneer/internal/config"
	"veneer/internal/document"
	"veneer/internal/engine"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

var log = commonlog.GetLogger("veneer.engine.remote")

// diagnosticsTimeout bounds how long Validate waits for the server to
// publish diagnostics for the synced version.
var diagnosticsTimeout = 2 * time.Second

const shutdownTimeout = time.Second

// diagnostics holds what the server published for one document version.
type diagnostics struct {
	version protocol.Integer
	list    []protocol.Diagnostic
	ready   chan struct{}
	done    bool
}

type Engine struct {
	name       string
	languageID string
	caps       engine.Capabilities

	conn   *jsonrpc2.Conn
	cmd    *exec.Cmd
	cancel context.CancelFunc

	mu     sync.Mutex
	synced map[protocol.DocumentUri]protocol.Integer
	diags  map[protocol.DocumentUri]*diagnostics
}

// Start launches the configured language server and performs the
// handshake.
func Start(cfg config.RemoteEngine, root string) (*Engine, error) {
	if cfg.Command == "" {
		return nil, errors.New("command is required for a remote engine")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Dir = absRoot
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start %s: %w", cfg.Command, err)
	}

	e, err := connect(ctx, cancel, &stdio{reader: stdout, writer: stdin}, cfg, absRoot)
	if err != nil {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
		return nil, err
	}
	e.cmd = cmd
	log.Infof("remote engine %s started: %s", e.name, cfg.Command)
	return e, nil
}

// Dial performs the handshake with a language server already connected to
// rwc.
func Dial(ctx context.Context, rwc io.ReadWriteCloser, cfg config.RemoteEngine, root string) (*Engine, error) {
	ctx, cancel := context.WithCancel(ctx)
	return connect(ctx, cancel, rwc, cfg, root)
}

func connect(ctx context.Context, cancel context.CancelFunc, rwc io.ReadWriteCloser, cfg config.RemoteEngine, root string) (*Engine, error) {
	if cfg.Dialect == "" {
		cancel()
		return nil, errors.New("dialect is required for a remote engine")
	}
	e := &Engine{
		name:       cfg.Dialect,
		languageID: cfg.LanguageID,
		cancel:     cancel,
		synced:     make(map[protocol.DocumentUri]protocol.Integer),
		diags:      make(map[protocol.DocumentUri]*diagnostics),
	}
	if e.languageID == "" {
		e.languageID = cfg.Dialect
	}

	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	e.conn = jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(e.handle))

	if err := e.initialize(ctx, root); err != nil {
		e.cancel()
		_ = e.conn.Close()
		return nil, fmt.Errorf("%s: initialize failed: %w", e.name, err)
	}
	return e, nil
}

func (e *Engine) initialize(ctx context.Context, root string) error {
	params := map[string]any{
		"processId":  os.Getpid(),
		"rootUri":    document.FileNameToURI(root),
		"clientInfo": map[string]any{"name": "veneer"},
		"capabilities": map[string]any{
			"textDocument": map[string]any{
				"synchronization":    map[string]any{},
				"completion":         map[string]any{},
				"hover":              map[string]any{"contentFormat": []string{"markdown", "plaintext"}},
				"definition":         map[string]any{"linkSupport": true},
				"references":         map[string]any{},
				"documentHighlight":  map[string]any{},
				"rename":             map[string]any{"prepareSupport": true},
				"codeAction":         map[string]any{},
				"formatting":         map[string]any{},
				"rangeFormatting":    map[string]any{},
				"documentLink":       map[string]any{},
				"documentSymbol":     map[string]any{"hierarchicalDocumentSymbolSupport": true},
				"foldingRange":       map[string]any{},
				"selectionRange":     map[string]any{},
				"colorProvider":      map[string]any{},
				"publishDiagnostics": map[string]any{"versionSupport": true},
			},
			"workspace": map[string]any{
				"workspaceEdit": map[string]any{
					"documentChanges":    true,
					"resourceOperations": []string{"rename"},
				},
			},
		},
	}
	var result struct {
		Capabilities map[string]any `json:"capabilities"`
	}
	if err := e.conn.Call(ctx, "initialize", params, &result); err != nil {
		return err
	}
	e.caps = capabilitiesOf(result.Capabilities)
	return e.conn.Notify(ctx, "initialized", map[string]any{})
}

// capabilitiesOf reads the server's capabilities. Diagnostics are pushed,
// so validation is always on.
func capabilitiesOf(server map[string]any) engine.Capabilities {
	caps := engine.Capabilities{Provides: engine.Validation}
	providers := []struct {
		key string
		cap engine.Capability
	}{
		{"completionProvider", engine.Completion},
		{"hoverProvider", engine.Hover},
		{"definitionProvider", engine.Definition},
		{"referencesProvider", engine.References},
		{"documentHighlightProvider", engine.Highlights},
		{"renameProvider", engine.Rename},
		{"codeActionProvider", engine.CodeActions},
		{"documentFormattingProvider", engine.Formatting},
		{"documentLinkProvider", engine.Links},
		{"documentSymbolProvider", engine.Symbols},
		{"foldingRangeProvider", engine.Folding},
		{"selectionRangeProvider", engine.SelectionRanges},
		{"colorProvider", engine.Colors},
	}
	for _, p := range providers {
		if v, ok := server[p.key]; ok && v != nil && v != false {
			caps.Provides |= p.cap
		}
	}
	if completion, ok := server["completionProvider"].(map[string]any); ok {
		caps.TriggerCharacters = config.Strings(completion, "triggerCharacters")
	}
	return caps
}

// handle serves what the server sends on its own.
func (e *Engine) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	switch req.Method {
	case "textDocument/publishDiagnostics":
		if req.Params == nil {
			return nil, nil
		}
		var params protocol.PublishDiagnosticsParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, err
		}
		e.publish(params)
		return nil, nil
	case "window/logMessage", "window/showMessage":
		if req.Params != nil {
			var params protocol.LogMessageParams
			if err := json.Unmarshal(*req.Params, &params); err == nil {
				log.Debugf("%s: %s", e.name, params.Message)
			}
		}
		return nil, nil
	case "workspace/configuration":
		var params struct {
			Items []json.RawMessage `json:"items"`
		}
		if req.Params != nil {
			_ = json.Unmarshal(*req.Params, &params)
		}
		return make([]any, len(params.Items)), nil
	case "client/registerCapability", "client/unregisterCapability", "window/workDoneProgress/create":
		return nil, nil
	}
	if req.Notif {
		return nil, nil
	}
	return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "method not handled"}
}

func (e *Engine) publish(params protocol.PublishDiagnosticsParams) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d := e.diags[params.URI]
	if d == nil {
		return
	}
	if params.Version != nil && protocol.Integer(*params.Version) != d.version {
		log.Debugf("%s: dropping diagnostics for stale version %d of %s", e.name, *params.Version, params.URI)
		return
	}
	d.list = params.Diagnostics
	if !d.done {
		d.done = true
		close(d.ready)
	}
}

func (e *Engine) Name() string {
	return e.name
}

func (e *Engine) Capabilities() engine.Capabilities {
	return e.caps
}

// synced is the parsed form of a document: the server holds the real
// state, this only records which version it was given.
type synced struct {
	uri     protocol.DocumentUri
	version protocol.Integer
}

// Parse sends the document to the server.
func (e *Engine) Parse(ctx context.Context, doc *document.Document) engine.Parsed {
	if err := e.sync(ctx, doc); err != nil {
		log.Errorf("%s: failed to sync %s: %s", e.name, doc.URI, err)
	}
	return &synced{uri: doc.URI, version: doc.Version}
}

func (e *Engine) sync(ctx context.Context, doc *document.Document) error {
	e.mu.Lock()
	version, open := e.synced[doc.URI]
	if open && version == doc.Version {
		e.mu.Unlock()
		return nil
	}
	e.synced[doc.URI] = doc.Version
	e.diags[doc.URI] = &diagnostics{version: doc.Version, ready: make(chan struct{})}
	e.mu.Unlock()

	if !open {
		return e.conn.Notify(ctx, "textDocument/didOpen", protocol.DidOpenTextDocumentParams{
			TextDocument: protocol.TextDocumentItem{
				URI:        doc.URI,
				LanguageID: e.languageID,
				Version:    doc.Version,
				Text:       doc.Text,
			},
		})
	}
	return e.conn.Notify(ctx, "textDocument/didChange", protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: doc.URI},
			Version:                doc.Version,
		},
		ContentChanges: []any{protocol.TextDocumentContentChangeEventWhole{Text: doc.Text}},
	})
}

// Forget tells the server a document was closed.
func (e *Engine) Forget(ctx context.Context, uri protocol.DocumentUri) error {
	e.mu.Lock()
	_, open := e.synced[uri]
	delete(e.synced, uri)
	delete(e.diags, uri)
	e.mu.Unlock()
	if !open {
		return nil
	}
	return e.conn.Notify(ctx, "textDocument/didClose", protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	})
}

// Close shuts the server down and releases the process.
func (e *Engine) Close() error {
	if e == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.conn.Call(ctx, "shutdown", nil, nil); err != nil {
		log.Debugf("%s: shutdown: %s", e.name, err)
	}
	_ = e.conn.Notify(ctx, "exit", nil)
	err := e.conn.Close()
	e.cancel()
	if e.cmd != nil && e.cmd.Process != nil {
		_ = e.cmd.Process.Kill()
		_, _ = e.cmd.Process.Wait()
	}
	if errors.Is(err, jsonrpc2.ErrClosed) {
		return nil
	}
	return err
}

type stdio struct {
	reader io.ReadCloser
	writer io.WriteCloser
}

func (s *stdio) Read(p []byte) (int, error)  { return s.reader.Read(p) }
func (s *stdio) Write(p []byte) (int, error) { return s.writer.Write(p) }
func (s *stdio) Close() error {
	_ = s.reader.Close()
	return s.writer.Close()
}

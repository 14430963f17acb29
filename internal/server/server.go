// Package server is the editor-protocol front of veneer: it keeps the
// document and settings stores current and hands every request to the
// dispatcher.
package server

import (
	"context"
	"errors"
	"sync"

	"veneer/internal/config"
	"veneer/internal/dispatch"
	"veneer/internal/document"
	"veneer/internal/index"
	"veneer/internal/scheduler"
	"veneer/internal/vocabulary"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"
)

const Name = "veneer"

var log = commonlog.GetLogger("veneer.server")

type Server struct {
	handler *protocol.Handler
	cfg     config.Config
	version string
	root    string

	docs       *document.Store
	settings   *config.Store
	dispatcher *dispatch.Dispatcher
	index      *index.Index
	scheduler  *scheduler.Scheduler
	watcher    *vocabulary.Watcher

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	notify glsp.NotifyFunc
	// held from the version check to the notification
	publishMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

func New(cfg config.Config, version string) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		version:  version,
		docs:     document.NewStore(),
		settings: config.NewStore(cfg.Settings),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.handler = &protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidSave:   s.textDocumentDidSave,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion:        s.textDocumentCompletion,
		TextDocumentHover:             s.textDocumentHover,
		TextDocumentDefinition:        s.textDocumentDefinition,
		TextDocumentReferences:        s.textDocumentReferences,
		TextDocumentDocumentHighlight: s.textDocumentDocumentHighlight,
		TextDocumentPrepareRename:     s.textDocumentPrepareRename,
		TextDocumentRename:            s.textDocumentRename,
		TextDocumentCodeAction:        s.textDocumentCodeAction,
		TextDocumentFormatting:        s.textDocumentFormatting,
		TextDocumentRangeFormatting:   s.textDocumentRangeFormatting,
		TextDocumentDocumentLink:      s.textDocumentDocumentLink,
		TextDocumentDocumentSymbol:    s.textDocumentDocumentSymbol,
		TextDocumentFoldingRange:      s.textDocumentFoldingRange,
		TextDocumentSelectionRange:    s.textDocumentSelectionRange,
		TextDocumentColor:             s.textDocumentColor,
		TextDocumentColorPresentation: s.textDocumentColorPresentation,

		WorkspaceDidChangeConfiguration: s.workspaceDidChangeConfiguration,
		WorkspaceDidChangeWatchedFiles:  s.workspaceDidChangeWatchedFiles,
		WorkspaceSymbol:                 s.workspaceSymbol,
		WorkspaceExecuteCommand:         s.workspaceExecuteCommand,
	}
	return s
}

// Handler exposes the handler table, mostly for tests.
func (s *Server) Handler() *protocol.Handler {
	return s.handler
}

// RunStdio serves the editor over stdin/stdout until the client goes away.
func (s *Server) RunStdio() error {
	defer s.Close()
	return server.NewServer(s.handler, Name, false).RunStdio()
}

// remember keeps the client's notify function for work that finishes after
// the handler that started it has returned.
func (s *Server) remember(context *glsp.Context) {
	if context == nil || context.Notify == nil {
		return
	}
	s.mu.Lock()
	s.notify = context.Notify
	s.mu.Unlock()
}

func (s *Server) notifyClient(method string, params any) {
	s.mu.Lock()
	notify := s.notify
	s.mu.Unlock()
	if notify != nil {
		notify(method, params)
	}
}

// Close stops background work and releases the index and remote engines.
// It is safe to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		var errs []error
		if s.scheduler != nil {
			s.scheduler.StopScheduler()
		}
		if s.watcher != nil {
			errs = append(errs, s.watcher.Close())
		}
		if s.dispatcher != nil {
			errs = append(errs, s.dispatcher.Close())
		}
		if s.index != nil {
			errs = append(errs, s.index.Close())
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

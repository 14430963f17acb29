package server

import (
	"fmt"
	"path/filepath"
	"time"

	"veneer/internal/dispatch"
	"veneer/internal/document"
	"veneer/internal/engine"
	"veneer/internal/engine/remote"
	"veneer/internal/index"
	"veneer/internal/scheduler"
	"veneer/internal/vocabulary"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

const (
	queueSize        = 64
	vocabularyQuiet  = 200 * time.Millisecond
	scanTaskName     = "workspace scan"
	indexFileName    = "index.sqlite"
	stateRootHashLen = 16
)

func (s *Server) initialize(
	context *glsp.Context,
	params *protocol.InitializeParams,
) (any, error) {
	s.remember(context)

	// Config
	cfg, err := s.cfg.Overlay(params.InitializationOptions)
	if err != nil {
		return nil, err
	}
	s.cfg = cfg
	if params.InitializationOptions != nil && cfg.Settings != nil {
		s.settings.Replace(cfg.Settings)
	}

	// Root
	s.root = rootOf(params, cfg.Root)
	log.Infof("workspace root: %s", s.root)
	for ext, dialect := range cfg.Extensions {
		document.RegisterExtension(ext, document.Dialect(dialect))
	}

	// Index
	var workspace engine.Workspace
	if ix, err := s.openIndex(); err != nil {
		log.Errorf("workspace index disabled: %s", err)
	} else {
		s.index = ix
		workspace = ix
	}

	// Engines
	registry, err := dispatch.NewRegistry(dispatch.Standard(s.startRemoteEngines()...)...)
	if err != nil {
		return nil, err
	}

	if w, err := vocabulary.NewWatcher(vocabularyQuiet, s.vocabularyChanged); err != nil {
		log.Warningf("custom data changes will not be noticed: %s", err)
	} else {
		s.watcher = w
		go w.Run(s.ctx)
	}

	s.dispatcher = dispatch.New(registry, s.docs, s.settings, dispatch.Options{
		Root:      s.root,
		Workspace: workspace,
		OnVocabulary: func(sources []string) {
			if s.watcher != nil {
				s.watcher.Watch(sources)
			}
		},
	})

	// Background work
	s.scheduler = scheduler.NewScheduler(queueSize)
	s.scheduler.RunScheduler(s.ctx)
	if s.index != nil {
		interval := time.Duration(cfg.ScanIntervalMinutes) * time.Minute
		s.scheduler.SchedulePeriodicTask(interval, scheduler.Task{
			Name:    scanTaskName,
			Execute: s.scanWorkspace,
		})
	}

	capabilities := s.handler.CreateServerCapabilities()
	syncKind := protocol.TextDocumentSyncKindIncremental
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &protocol.True,
		Change:    &syncKind,
		Save:      &protocol.SaveOptions{IncludeText: &protocol.True},
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: s.dispatcher.TriggerCharacters(),
	}
	capabilities.RenameProvider = protocol.RenameOptions{PrepareProvider: &protocol.True}
	capabilities.ExecuteCommandProvider = &protocol.ExecuteCommandOptions{
		Commands: []string{reindexCommand},
	}
	restrictCapabilities(&capabilities, registry.Capabilities())
	if s.index == nil {
		capabilities.WorkspaceSymbolProvider = nil
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    Name,
			Version: &s.version,
		},
	}, nil
}

// restrictCapabilities withdraws the providers no registered engine can
// serve.
func restrictCapabilities(c *protocol.ServerCapabilities, caps engine.Capability) {
	has := func(want engine.Capability) bool { return caps&want != 0 }
	if !has(engine.Completion) {
		c.CompletionProvider = nil
	}
	if !has(engine.Hover) {
		c.HoverProvider = nil
	}
	if !has(engine.Definition) {
		c.DefinitionProvider = nil
	}
	if !has(engine.References) {
		c.ReferencesProvider = nil
	}
	if !has(engine.Highlights) {
		c.DocumentHighlightProvider = nil
	}
	if !has(engine.Rename) {
		c.RenameProvider = nil
	}
	if !has(engine.CodeActions) {
		c.CodeActionProvider = nil
	}
	if !has(engine.Formatting) {
		c.DocumentFormattingProvider = nil
		c.DocumentRangeFormattingProvider = nil
	}
	if !has(engine.Links) {
		c.DocumentLinkProvider = nil
	}
	if !has(engine.Symbols) {
		c.DocumentSymbolProvider = nil
	}
	if !has(engine.Folding) {
		c.FoldingRangeProvider = nil
	}
	if !has(engine.SelectionRanges) {
		c.SelectionRangeProvider = nil
	}
	if !has(engine.Colors) {
		c.ColorProvider = nil
	}
}

func rootOf(params *protocol.InitializeParams, fallback string) string {
	root := fallback
	if params.RootURI != nil && *params.RootURI != "" {
		if path, err := document.URIToFileName(*params.RootURI); err == nil {
			root = path
		}
	} else if params.RootPath != nil && *params.RootPath != "" {
		root = *params.RootPath
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return root
}

// openIndex opens the configured index, or one under the state directory
// keyed by the workspace root.
func (s *Server) openIndex() (*index.Index, error) {
	path := s.cfg.IndexPath
	if path == "" {
		var err error
		if path, err = defaultIndexPath(s.root); err != nil {
			return nil, err
		}
	}
	log.Infof("workspace index: %s", path)
	return index.Open(path)
}

func (s *Server) startRemoteEngines() []*dispatch.Variant {
	var variants []*dispatch.Variant
	for _, rc := range s.cfg.Remote {
		e, err := remote.Start(rc, s.root)
		if err != nil {
			log.Errorf("remote engine for %s: %s", rc.Dialect, err)
			s.showMessage(protocol.MessageTypeWarning, fmt.Sprintf("%s support is unavailable: %s", rc.Dialect, err))
			continue
		}
		dialect := document.Dialect(rc.Dialect)
		for _, ext := range rc.Extensions {
			document.RegisterExtension(ext, dialect)
		}
		variants = append(variants, &dispatch.Variant{
			Dialect: dialect,
			Engine:  e,
			Family:  FamilyOf(dialect),
		})
	}
	return variants
}

// FamilyOf is the vocabulary family a dialect completes from.
func FamilyOf(dialect document.Dialect) vocabulary.Family {
	switch dialect {
	case document.SCSS, document.PostCSS:
		return vocabulary.FamilySCSS
	case document.Less:
		return vocabulary.FamilyLess
	case document.HTML, document.Template:
		return vocabulary.FamilyHTML
	}
	return vocabulary.FamilyCSS
}

func (s *Server) vocabularyChanged() {
	log.Info("custom data changed, reloading")
	if err := s.dispatcher.Reconfigure(s.ctx); err != nil {
		log.Errorf("reload failed: %s", err)
		return
	}
	s.revalidateAll()
}

func (s *Server) initialized(
	context *glsp.Context,
	params *protocol.InitializedParams,
) error {
	log.Info("client initialized")
	return nil
}

func (s *Server) shutdown(context *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)
	return s.Close()
}

func (s *Server) setTrace(context *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (s *Server) showMessage(kind protocol.MessageType, message string) {
	s.notifyClient(protocol.ServerWindowShowMessage, protocol.ShowMessageParams{
		Type:    kind,
		Message: message,
	})
}

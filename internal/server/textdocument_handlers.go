package server

import (
	"time"

	"veneer/internal/document"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func (s *Server) textDocumentDidOpen(
	context *glsp.Context,
	params *protocol.DidOpenTextDocumentParams,
) error {
	s.remember(context)
	doc := s.docs.Open(params.TextDocument)
	log.Debugf("opened %s as %q (version %d)", doc.URI, doc.Dialect, doc.Version)
	s.validate(doc)
	s.indexOpen(doc)
	return nil
}

func (s *Server) textDocumentDidChange(
	context *glsp.Context,
	params *protocol.DidChangeTextDocumentParams,
) error {
	s.remember(context)
	doc, err := s.docs.Change(params.TextDocument, params.ContentChanges)
	if err != nil {
		return err
	}
	s.validate(doc)
	s.indexOpen(doc)
	return nil
}

// textDocumentDidSave only matters when the client sent the saved text and
// it differs from what we hold.
func (s *Server) textDocumentDidSave(
	context *glsp.Context,
	params *protocol.DidSaveTextDocumentParams,
) error {
	s.remember(context)
	doc, ok := s.docs.Get(params.TextDocument.URI)
	if !ok {
		return nil
	}
	if params.Text != nil && *params.Text != doc.Text {
		whole := protocol.TextDocumentContentChangeEventWhole{Text: *params.Text}
		id := protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: params.TextDocument,
			Version:                doc.Version,
		}
		changed, err := s.docs.Change(id, []any{whole})
		if err != nil {
			return err
		}
		// same version, different text: the parse caches must not serve
		// the old tree
		s.dispatcher.Forget(s.ctx, doc)
		doc = changed
		s.validate(doc)
	}
	s.indexOpen(doc)
	return nil
}

func (s *Server) textDocumentDidClose(
	context *glsp.Context,
	params *protocol.DidCloseTextDocumentParams,
) error {
	s.remember(context)
	doc, ok := s.docs.Close(params.TextDocument.URI)
	if !ok {
		return nil
	}
	s.dispatcher.Forget(s.ctx, doc)
	s.publishMu.Lock()
	publishDiagnostics(context, doc.URI, nil, []protocol.Diagnostic{})
	s.publishMu.Unlock()

	// the index goes back to what is on disk
	if s.index != nil && s.dispatcher.Indexes(doc.Dialect) {
		if path, err := document.URIToFileName(doc.URI); err == nil {
			s.schedule("reindex "+path, func() error { return s.indexFile(path) })
		}
	}
	return nil
}

// validate computes diagnostics off the message loop and publishes them if
// doc is still the current version when they are ready.
func (s *Server) validate(doc *document.Document) {
	go func() {
		start := time.Now()
		diags := s.dispatcher.Validate(s.ctx, doc.URI)
		if diags == nil {
			return
		}
		s.publishMu.Lock()
		defer s.publishMu.Unlock()
		current, ok := s.docs.Get(doc.URI)
		if !ok || current.Version != diags.Version || current.Text != doc.Text {
			log.Debugf("dropping diagnostics for %s version %d", doc.URI, diags.Version)
			return
		}
		log.Debugf("validated %s in %s", doc.URI, time.Since(start))
		version := protocol.UInteger(diags.Version)
		s.publish(doc.URI, &version, diags.Items)
	}()
}

// revalidateAll refreshes diagnostics of every open document, after the
// settings or the vocabulary changed.
func (s *Server) revalidateAll() {
	for _, uri := range s.docs.URIs() {
		if doc, ok := s.docs.Get(uri); ok {
			s.validate(doc)
		}
	}
}

func (s *Server) publish(uri protocol.DocumentUri, version *protocol.UInteger, diagnostics []protocol.Diagnostic) {
	if diagnostics == nil {
		diagnostics = []protocol.Diagnostic{}
	}
	s.notifyClient(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Version:     version,
		Diagnostics: diagnostics,
	})
}

func publishDiagnostics(context *glsp.Context, uri protocol.DocumentUri, version *protocol.UInteger, diagnostics []protocol.Diagnostic) {
	context.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Version:     version,
		Diagnostics: diagnostics,
	})
}

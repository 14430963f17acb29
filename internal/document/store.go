package document

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

var ErrNotOpen = errors.New("document is not open")

// Source is the read side of the document store as seen by request
// handling code.
type Source interface {
	Get(uri protocol.DocumentUri) (*Document, bool)
	// Load returns the open document for uri, or reads it from disk.
	Load(uri protocol.DocumentUri) (*Document, error)
}

// Store keeps the latest snapshot of every open document.
type Store struct {
	mu   sync.RWMutex
	docs map[protocol.DocumentUri]*Document
}

func NewStore() *Store {
	return &Store{docs: make(map[protocol.DocumentUri]*Document)}
}

func (s *Store) Open(item protocol.TextDocumentItem) *Document {
	doc := New(item.URI, DialectFor(item.LanguageID, item.URI), item.Version, item.Text)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[item.URI] = doc
	return doc
}

// Change applies content changes to the open document and stores the new
// snapshot.
func (s *Store) Change(id protocol.VersionedTextDocumentIdentifier, changes []any) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.docs[id.URI]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotOpen, id.URI)
	}
	doc := old.WithChanges(id.Version, changes)
	s.docs[id.URI] = doc
	return doc, nil
}

func (s *Store) Close(uri protocol.DocumentUri) (*Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[uri]
	delete(s.docs, uri)
	return doc, ok
}

func (s *Store) Get(uri protocol.DocumentUri) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[uri]
	return doc, ok
}

// Load returns the open snapshot of uri or reads the file behind it. Files
// read from disk get version 0.
func (s *Store) Load(uri protocol.DocumentUri) (*Document, error) {
	if doc, ok := s.Get(uri); ok {
		return doc, nil
	}
	path, err := URIToFileName(uri)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return New(uri, DialectFor("", uri), 0, string(data)), nil
}

func (s *Store) URIs() []protocol.DocumentUri {
	s.mu.RLock()
	defer s.mu.RUnlock()
	uris := make([]protocol.DocumentUri, 0, len(s.docs))
	for uri := range s.docs {
		uris = append(uris, uri)
	}
	return uris
}

// URIToFileName converts a file:// URI into a local path.
func URIToFileName(uri protocol.DocumentUri) (string, error) {
	u, err := url.Parse(string(uri))
	if err != nil {
		return "", fmt.Errorf("failed to parse uri: %w", err)
	}
	if u.Scheme != "" && u.Scheme != "file" {
		return "", fmt.Errorf("unsupported uri scheme %q", u.Scheme)
	}
	return filepath.FromSlash(u.Path), nil
}

// FileNameToURI converts a local path into a file:// URI.
func FileNameToURI(path string) protocol.DocumentUri {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return protocol.DocumentUri(u.String())
}

// ResolveLink resolves a link target found in the document at base. Targets
// with a scheme are returned as they are; data: URIs and fragments do not
// resolve.
func ResolveLink(base protocol.DocumentUri, target string) (protocol.DocumentUri, bool) {
	target = strings.TrimSpace(target)
	if target == "" || strings.HasPrefix(target, "#") || strings.HasPrefix(target, "data:") {
		return "", false
	}
	if u, err := url.Parse(target); err == nil && u.Scheme != "" {
		return target, true
	}
	u, err := url.Parse(string(base))
	if err != nil {
		return "", false
	}
	target, _, _ = strings.Cut(target, "#")
	target, _, _ = strings.Cut(target, "?")
	if path.IsAbs(target) {
		u.Path = path.Clean(target)
	} else {
		u.Path = path.Join(path.Dir(u.Path), target)
	}
	u.RawQuery, u.Fragment = "", ""
	return u.String(), true
}

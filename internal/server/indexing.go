package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"veneer/internal/document"
	"veneer/internal/index"
	"veneer/internal/metrics"
	"veneer/internal/scanner"
	"veneer/internal/scheduler"
)

func (s *Server) schedule(name string, fn func() error) {
	if s.scheduler == nil {
		return
	}
	s.scheduler.ScheduleHighPriorityTask(scheduler.Task{
		Name:    name,
		Execute: func(context.Context) error { return fn() },
	})
}

// indexOpen records the symbols of an open document as they are now,
// saved or not.
func (s *Server) indexOpen(doc *document.Document) {
	if s.index == nil || !s.dispatcher.Indexes(doc.Dialect) {
		return
	}
	path, err := document.URIToFileName(doc.URI)
	if err != nil {
		return
	}
	s.schedule("index "+path, func() error {
		current, ok := s.docs.Get(doc.URI)
		if !ok || current != doc {
			// a newer version or a close is queued behind us
			return nil
		}
		return s.commit(path, time.Now().Unix(), doc)
	})
}

// indexFile records the file at path as it is on disk, or forgets it when
// it is gone.
func (s *Server) indexFile(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := s.index.Delete(path); err != nil && !errors.Is(err, index.ErrNotFound) {
			return err
		}
		return nil
	}
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	uri := document.FileNameToURI(path)
	doc := document.New(uri, document.DialectFor("", uri), 0, string(data))
	return s.commit(path, info.ModTime().Unix(), doc)
}

// indexChanged is indexFile for change notifications. A file whose
// modification time matches the index is left alone.
func (s *Server) indexChanged(path string) error {
	if info, err := os.Stat(path); err == nil {
		record, err := s.index.GetFile(path)
		switch {
		case err == nil && record.LastModified == info.ModTime().Unix():
			return nil
		case err != nil && !errors.Is(err, index.ErrNotFound):
			return err
		}
	}
	return s.indexFile(path)
}

func (s *Server) commit(path string, lastModified int64, doc *document.Document) error {
	symbols, err := s.dispatcher.IndexSymbols(s.ctx, doc)
	if err != nil {
		return err
	}
	if err := s.index.Commit(path, lastModified, symbols); err != nil {
		return fmt.Errorf("failed to index %s: %w", path, err)
	}
	metrics.RecordIndexedFile()
	return nil
}

// scanWorkspace brings the index in line with the files under the root:
// changed files are re-read, vanished ones are dropped and open documents
// are left to their own commits.
func (s *Server) scanWorkspace(ctx context.Context) error {
	start := time.Now()
	known := map[string]int64{}
	records, err := s.index.GetAllFiles()
	if err != nil {
		return err
	}
	for _, r := range records {
		known[r.Path] = r.LastModified
	}

	open := map[string]bool{}
	for _, uri := range s.docs.URIs() {
		if path, err := document.URIToFileName(uri); err == nil {
			open[path] = true
		}
	}

	seen := map[string]bool{}
	skip := func(path string, info fs.FileInfo) bool {
		if !s.dispatcher.Indexes(document.DialectForExtension(filepath.Ext(path))) {
			return true
		}
		seen[path] = true
		if open[path] {
			return true
		}
		last, ok := known[path]
		return ok && last >= info.ModTime().Unix()
	}

	var mu sync.Mutex
	indexed := 0
	err = scanner.Scan(ctx, s.root, skip, func(path string, info fs.FileInfo, data []byte) error {
		uri := document.FileNameToURI(path)
		doc := document.New(uri, document.DialectFor("", uri), 0, string(data))
		if err := s.commit(path, info.ModTime().Unix(), doc); err != nil {
			log.Warningf("%s", err)
			return nil
		}
		mu.Lock()
		indexed++
		mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}

	removed := 0
	for path := range known {
		if !seen[path] && !open[path] {
			if err := s.index.Delete(path); err == nil {
				removed++
			}
		}
	}
	log.Infof("workspace scan: %d indexed, %d removed in %s", indexed, removed, time.Since(start))
	return nil
}

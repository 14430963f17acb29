package server

import (
	"runtime"
	"sync"
	"unicode/utf8"

	"veneer/internal/document"
	"veneer/internal/index"
	"veneer/internal/scheduler"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

const (
	reindexCommand = "veneer.reindex"
	reloadCommand  = "veneer.reloadCustomData"

	maxWorkspaceSymbols = 128
	symbolTypos         = 1
	// shorter queries must match exactly
	minTypoQuery = 4
)

func (s *Server) workspaceDidChangeConfiguration(
	context *glsp.Context,
	params *protocol.DidChangeConfigurationParams,
) error {
	s.remember(context)
	// listeners run synchronously, so the vocabulary is current by now
	s.settings.Replace(params.Settings)
	s.revalidateAll()
	return nil
}

func (s *Server) workspaceDidChangeWatchedFiles(
	context *glsp.Context,
	params *protocol.DidChangeWatchedFilesParams,
) error {
	if s.index == nil {
		return nil
	}
	for _, change := range params.Changes {
		if _, open := s.docs.Get(change.URI); open {
			continue
		}
		path, err := document.URIToFileName(change.URI)
		if err != nil || !s.dispatcher.Indexes(document.DialectFor("", change.URI)) {
			continue
		}
		s.schedule("reindex "+path, func() error { return s.indexChanged(path) })
	}
	return nil
}

func (s *Server) workspaceExecuteCommand(
	context *glsp.Context,
	params *protocol.ExecuteCommandParams,
) (any, error) {
	s.remember(context)
	switch params.Command {
	case reindexCommand:
		return nil, s.reindex()
	case reloadCommand:
		go s.vocabularyChanged()
	}
	return nil, nil
}

// reindex throws the index away and queues a full scan.
func (s *Server) reindex() error {
	if s.index == nil {
		return nil
	}
	log.Info("reindexing workspace")
	if err := s.index.Clear(); err != nil {
		return err
	}
	s.scheduler.ScheduleHighPriorityTask(scheduler.Task{Name: scanTaskName, Execute: s.scanWorkspace})
	for _, uri := range s.docs.URIs() {
		if doc, ok := s.docs.Get(uri); ok {
			s.indexOpen(doc)
		}
	}
	return nil
}

// workspaceSymbol matches the query against every definition in the index,
// tolerating a typo in longer queries.
func (s *Server) workspaceSymbol(
	context *glsp.Context,
	params *protocol.WorkspaceSymbolParams,
) ([]protocol.SymbolInformation, error) {
	if s.index == nil {
		return nil, nil
	}
	defs, err := s.index.All(index.Definition)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}

	var hits []int
	if params.Query == "" {
		for i := range defs {
			if i == maxWorkspaceSymbols {
				break
			}
			hits = append(hits, i)
		}
	} else {
		k := 0
		if utf8.RuneCountInString(params.Query) >= minTypoQuery {
			k = symbolTypos
		}
		hits = filterByBitapFuzzy(params.Query, names, k, maxWorkspaceSymbols)
	}

	symbols := make([]protocol.SymbolInformation, 0, len(hits))
	for _, i := range hits {
		d := defs[i]
		symbols = append(symbols, protocol.SymbolInformation{
			Name: d.Name,
			Kind: protocol.SymbolKindVariable,
			Location: protocol.Location{
				URI:   document.FileNameToURI(d.Path),
				Range: d.Range,
			},
		})
	}
	return symbols, nil
}

// filterByBitapFuzzy returns the indexes of the names that contain pattern
// with at most k errors, in order, at most maxHits of them.
func filterByBitapFuzzy(pattern string, names []string, k, maxHits int) []int {
	m := utf8.RuneCountInString(pattern)
	if m == 0 {
		return nil
	}
	patternRunes := []rune(pattern)
	if m > 63 {
		patternRunes = patternRunes[:63]
		m = 63
	}

	var masks [128]uint64
	for i, r := range patternRunes {
		if r < 128 {
			masks[r] |= 1 << uint(i)
		}
	}
	highest := uint64(1) << uint(m-1)

	matched := make([]bool, len(names))
	var wg sync.WaitGroup
	sem := make(chan struct{}, runtime.GOMAXPROCS(0))
	for i, name := range names {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, text string) {
			defer wg.Done()
			defer func() { <-sem }()
			matched[i] = bitapFuzzyMatch(text, masks, highest, k)
		}(i, name)
	}
	wg.Wait()

	var hits []int
	for i, ok := range matched {
		if !ok {
			continue
		}
		hits = append(hits, i)
		if len(hits) == maxHits {
			break
		}
	}
	return hits
}

// bitapFuzzyMatch returns true if pattern appears in text with at most k errors
func bitapFuzzyMatch(text string, masks [128]uint64, highest uint64, k int) bool {
	r := make([]uint64, k+1)

	for _, cr := range text {
		var charMask uint64
		if cr < 128 {
			charMask = masks[cr]
		}

		r0 := ((r[0] << 1) | 1) & charMask
		prev := r[0]
		r[0] = r0

		for d := 1; d <= k; d++ {
			old := r[d]
			// match | substitution | insertion | deletion
			r[d] = ((old<<1)|1)&charMask | (prev<<1 | 1) | prev | (r[d-1]<<1 | 1)
			prev = old
		}

		for d := 0; d <= k; d++ {
			if r[d]&highest != 0 {
				return true
			}
		}
	}
	return false
}

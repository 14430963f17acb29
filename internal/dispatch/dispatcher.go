// Package dispatch routes editor requests to the engine serving a
// document's dialect. For embedded dialects it compiles the document,
// translates request coordinates into the generated document and maps the
// engine's answer back.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"veneer/internal/config"
	"veneer/internal/document"
	"veneer/internal/engine"
	"veneer/internal/index"
	"veneer/internal/metrics"
	"veneer/internal/parsecache"
	"veneer/internal/sourcemap"
	"veneer/internal/template"
	"veneer/internal/transform"
	"veneer/internal/vocabulary"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"golang.org/x/sync/singleflight"
)

var log = commonlog.GetLogger("veneer.dispatch")

var ErrUnknownDialect = errors.New("unknown dialect")

type state int32

const (
	uninitialized state = iota
	initializing
	ready
)

func (s state) String() string {
	switch s {
	case initializing:
		return "initializing"
	case ready:
		return "ready"
	}
	return "uninitialized"
}

type Options struct {
	// Root resolves relative custom data paths.
	Root string
	// Workspace is handed to engines for cross-file queries. May be nil.
	Workspace engine.Workspace
	// OnVocabulary is called after every vocabulary load with the custom
	// data files that were read.
	OnVocabulary func(sources []string)
}

type Dispatcher struct {
	registry *Registry
	docs     document.Source
	config   config.Source
	opts     Options

	state  atomic.Int32
	flight singleflight.Group
	// generation counts configuration changes; loaded is the generation
	// the current vocabulary was built from.
	generation atomic.Uint64
	loaded     atomic.Uint64
	vocab      atomic.Pointer[vocabulary.Bundle]
	compiled *parsecache.Cache[*template.Result]
}

func New(registry *Registry, docs document.Source, cfg config.Source, opts Options) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		docs:     docs,
		config:   cfg,
		opts:     opts,
		compiled: parsecache.New[*template.Result]("template"),
	}
	metrics.TrackCache(d.compiled.Name(), d.compiled.Stats)
	for _, v := range registry.Variants() {
		metrics.TrackCache(v.parsed.Name(), v.parsed.Stats)
	}
	cfg.OnConfigurationChanged(func() {
		if d.currentState() == uninitialized {
			d.generation.Add(1)
			return
		}
		if err := d.Reconfigure(context.Background()); err != nil {
			log.Errorf("reconfigure failed: %s", err)
		}
	})
	return d
}

func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

func (d *Dispatcher) currentState() state {
	return state(d.state.Load())
}

// ensureReady runs initialization once. Concurrent first requests wait for
// the same run.
func (d *Dispatcher) ensureReady(ctx context.Context) error {
	if d.currentState() == ready {
		return nil
	}
	_, err, _ := d.flight.Do("load", func() (any, error) {
		if d.currentState() == ready {
			return nil, nil
		}
		return nil, d.load(ctx)
	})
	return err
}

// Reconfigure reloads the vocabulary and swaps it for every variant at
// once. Requests arriving meanwhile wait for the reload. A load already
// running when the configuration changed does not count: it either starts
// over or Reconfigure runs another one.
func (d *Dispatcher) Reconfigure(ctx context.Context) error {
	want := d.generation.Add(1)
	for d.loaded.Load() < want {
		_, err, _ := d.flight.Do("load", func() (any, error) {
			return nil, d.load(ctx)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// load builds the vocabulary from the settings. When the configuration
// changes while it reads, the result is discarded and it reads again, so
// ready is only entered with a bundle of the latest settings.
func (d *Dispatcher) load(ctx context.Context) error {
	d.state.Store(int32(initializing))
	var (
		bundle     *vocabulary.Bundle
		sources    []string
		generation uint64
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		generation = d.generation.Load()
		cssPaths := d.stringsSetting(ctx, "css.customData")
		htmlPaths := d.stringsSetting(ctx, "html.customData")

		cssData, cssLoaded := vocabulary.Load(d.opts.Root, cssPaths)
		htmlData, htmlLoaded := vocabulary.Load(d.opts.Root, htmlPaths)
		sources = append(cssLoaded, htmlLoaded...)
		bundle = vocabulary.Build(cssData, htmlData, sources)
		if d.generation.Load() == generation {
			break
		}
		log.Debug("configuration changed during load, reloading")
	}

	d.vocab.Store(bundle)
	d.loaded.Store(generation)
	d.state.Store(int32(ready))
	log.Infof("vocabulary loaded (%d custom data files)", len(sources))
	if d.opts.OnVocabulary != nil {
		d.opts.OnVocabulary(sources)
	}
	return nil
}

func (d *Dispatcher) stringsSetting(ctx context.Context, key string) []string {
	v, ok := d.config.GetConfiguration(ctx, key)
	if !ok {
		return nil
	}
	return config.Strings(map[string]any{"v": v}, "v")
}

// settings returns the section for v layered over the defaults.
func (d *Dispatcher) settings(ctx context.Context, v *Variant) map[string]any {
	defaults, _ := config.Defaults()[v.Section].(map[string]any)
	var current map[string]any
	if got, ok := d.config.GetConfiguration(ctx, v.Section); ok {
		current, _ = got.(map[string]any)
	}
	return config.Merge(defaults, current)
}

// call is one request against one document, set up in the engine's
// coordinate space.
type call struct {
	op      string
	variant *Variant
	source  *document.Document
	req     *engine.Request
	// mapping is nil when the engine sees the source document itself.
	mapping  *sourcemap.Mapping
	compiled *template.Result
	mapper   transform.Mapper
}

func (c *call) dialect() string {
	return string(c.variant.Dialect)
}

// prepare resolves the document and its variant, makes sure the dispatcher
// is initialized and parses the document the engine will see. It returns
// nil when the request is not applicable.
func (d *Dispatcher) prepare(ctx context.Context, op string, uri protocol.DocumentUri, want engine.Capability) *call {
	doc, ok := d.docs.Get(uri)
	if !ok {
		log.Debugf("%s: %s is not open", op, uri)
		return nil
	}
	v, ok := d.registry.Lookup(doc.Dialect)
	if !ok {
		metrics.RecordNotApplicable(op, string(doc.Dialect), "dialect")
		return nil
	}
	if want != 0 && !v.Capabilities().Has(want) {
		metrics.RecordNotApplicable(op, string(doc.Dialect), "capability")
		return nil
	}
	if err := d.ensureReady(ctx); err != nil {
		log.Errorf("%s: initialization failed: %s", op, err)
		return nil
	}
	metrics.RecordRequest(op, string(doc.Dialect))

	c := &call{op: op, variant: v, source: doc, mapper: transform.Identity(doc.URI)}
	target := doc
	if v.Compile != nil {
		c.compiled = d.compiled.Get(doc, v.Compile)
		if c.compiled == nil {
			return nil
		}
		target = c.compiled.Generated
		c.mapping = c.compiled.Mapping()
		c.mapper = transform.Mapper{
			SourceURI:    doc.URI,
			GeneratedURI: target.URI,
			Range:        c.mapping.ToSourceRange,
		}
	}

	c.req = &engine.Request{
		Context:    ctx,
		Document:   target,
		Parsed:     v.parsed.Get(target, func(doc *document.Document) engine.Parsed { return v.Engine.Parse(ctx, doc) }),
		Vocabulary: d.vocab.Load().For(v.Family),
		Settings:   d.settings(ctx, v),
		Workspace:  d.opts.Workspace,
	}
	return c
}

func (c *call) position(pos protocol.Position) (protocol.Position, bool) {
	if c.mapping == nil {
		return pos, true
	}
	mapped, ok := c.mapping.ToGeneratedPosition(pos)
	if !ok {
		log.Debugf("%s: %s %d:%d falls in a gap", c.op, c.source.URI, pos.Line, pos.Character)
		metrics.RecordNotApplicable(c.op, c.dialect(), "gap")
	}
	return mapped, ok
}

func (c *call) rangeOf(r protocol.Range) (protocol.Range, bool) {
	if c.mapping == nil {
		return r, true
	}
	mapped, ok := c.mapping.ToGeneratedRange(r)
	if !ok {
		log.Debugf("%s: %s range falls in a gap", c.op, c.source.URI)
		metrics.RecordNotApplicable(c.op, c.dialect(), "gap")
	}
	return mapped, ok
}

// guard runs one engine call. Errors and panics are logged, counted and
// reported as no answer.
func guard[T any](c *call, fn func() (T, error)) (result T, ok bool) {
	name := c.variant.Engine.Name()
	start := time.Now()
	defer func() {
		metrics.RecordEngineLatency(c.op, name, time.Since(start))
		if r := recover(); r != nil {
			log.Errorf("%s: engine %s panicked on %s: %v", c.op, name, c.source.URI, r)
			metrics.RecordEngineFailure(c.op, name)
			var zero T
			result, ok = zero, false
		}
	}()
	res, err := fn()
	if err != nil {
		log.Errorf("%s: engine %s failed on %s: %s", c.op, name, c.source.URI, err)
		metrics.RecordEngineFailure(c.op, name)
		var zero T
		return zero, false
	}
	return res, true
}

// Forget drops everything cached for a closed document.
func (d *Dispatcher) Forget(ctx context.Context, doc *document.Document) {
	v, ok := d.registry.Lookup(doc.Dialect)
	if !ok {
		return
	}
	uri := doc.URI
	d.compiled.Evict(uri)
	if v.Compile != nil {
		uri += template.GeneratedSuffix
	}
	v.parsed.Evict(uri)
	if f, ok := v.Engine.(interface {
		Forget(context.Context, protocol.DocumentUri) error
	}); ok {
		if err := f.Forget(ctx, uri); err != nil {
			log.Warningf("%s: forget %s: %s", v.Engine.Name(), uri, err)
		}
	}
}

// IndexSymbols parses doc with its dialect's engine and returns the symbols
// the engine contributes to the workspace index, if it indexes at all.
func (d *Dispatcher) IndexSymbols(ctx context.Context, doc *document.Document) ([]index.Symbol, error) {
	v, ok := d.registry.Lookup(doc.Dialect)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, doc.Dialect)
	}
	ix, ok := v.Engine.(engine.Indexer)
	if !ok || v.Compile != nil {
		return nil, nil
	}
	// only open documents live in the parse cache; files read from disk
	// are parsed for the index and dropped
	var parsed engine.Parsed
	if open, ok := d.docs.Get(doc.URI); ok && open.Version == doc.Version && open.Text == doc.Text {
		parsed = v.parsed.Get(doc, func(doc *document.Document) engine.Parsed { return v.Engine.Parse(ctx, doc) })
	} else {
		parsed = v.Engine.Parse(ctx, doc)
	}
	return ix.IndexSymbols(doc, parsed), nil
}

// Indexes reports whether documents of dialect contribute to the workspace
// index.
func (d *Dispatcher) Indexes(dialect document.Dialect) bool {
	v, ok := d.registry.Lookup(dialect)
	if !ok || v.Compile != nil {
		return false
	}
	_, ok = v.Engine.(engine.Indexer)
	return ok
}

// TriggerCharacters is answerable before any document is open.
func (d *Dispatcher) TriggerCharacters() []string {
	return d.registry.TriggerCharacters()
}

// Close releases engines that hold external resources.
func (d *Dispatcher) Close() error {
	var errs []error
	for _, e := range d.registry.engines() {
		if c, ok := e.(engine.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

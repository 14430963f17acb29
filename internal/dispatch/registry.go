package dispatch

import (
	"fmt"
	"slices"
	"sort"

	"veneer/internal/document"
	"veneer/internal/engine"
	"veneer/internal/engine/css"
	"veneer/internal/engine/html"
	"veneer/internal/parsecache"
	"veneer/internal/template"
	"veneer/internal/vocabulary"
)

// postcssDenylist are the diagnostics the scss engine raises on PostCSS
// syntax it does not know.
var postcssDenylist = []string{
	"css-semicolonexpected",
	"css-ruleorselectorexpected",
	"unknownAtRules",
}

// Variant binds a dialect to the engine that serves it.
type Variant struct {
	Dialect document.Dialect
	Engine  engine.Engine
	Family  vocabulary.Family
	// Section is the settings section the engine reads.
	Section string
	// Deny drops diagnostics with these codes from validation.
	Deny []string
	// Compile, when set, turns the source document into the document the
	// engine analyses.
	Compile  func(*document.Document) *template.Result
	NoFormat bool

	parsed *parsecache.Cache[engine.Parsed]
}

func (v *Variant) Capabilities() engine.Capabilities {
	caps := v.Engine.Capabilities()
	if v.NoFormat {
		caps = caps.Without(engine.Formatting)
	}
	return caps
}

func (v *Variant) denied(code any) bool {
	s, ok := code.(string)
	return ok && slices.Contains(v.Deny, s)
}

// Registry is the closed set of variants, built once at startup.
type Registry struct {
	variants map[document.Dialect]*Variant
}

func NewRegistry(variants ...*Variant) (*Registry, error) {
	r := &Registry{variants: make(map[document.Dialect]*Variant, len(variants))}
	for _, v := range variants {
		if v.Engine == nil {
			return nil, fmt.Errorf("variant %q has no engine", v.Dialect)
		}
		if _, ok := r.variants[v.Dialect]; ok {
			return nil, fmt.Errorf("variant %q registered twice", v.Dialect)
		}
		if v.Section == "" {
			v.Section = string(v.Dialect)
		}
		v.parsed = parsecache.New[engine.Parsed](string(v.Dialect))
		r.variants[v.Dialect] = v
	}
	return r, nil
}

// Standard returns the built-in variants. Extra variants, such as remote
// engines, replace a built-in variant of the same dialect.
func Standard(extra ...*Variant) []*Variant {
	scss := css.New(css.ModeSCSS)
	markup := html.New()
	variants := []*Variant{
		{Dialect: document.CSS, Engine: css.New(css.ModeCSS), Family: vocabulary.FamilyCSS},
		{Dialect: document.SCSS, Engine: scss, Family: vocabulary.FamilySCSS},
		{Dialect: document.Less, Engine: css.New(css.ModeLess), Family: vocabulary.FamilyLess},
		{Dialect: document.PostCSS, Engine: scss, Family: vocabulary.FamilySCSS, Deny: postcssDenylist},
		{Dialect: document.HTML, Engine: markup, Family: vocabulary.FamilyHTML},
		{Dialect: document.Template, Engine: markup, Family: vocabulary.FamilyHTML, Compile: template.Compile, NoFormat: true},
	}
	for _, e := range extra {
		variants = slices.DeleteFunc(variants, func(v *Variant) bool { return v.Dialect == e.Dialect })
	}
	return append(variants, extra...)
}

func (r *Registry) Lookup(dialect document.Dialect) (*Variant, bool) {
	v, ok := r.variants[dialect]
	return v, ok
}

// Variants lists the variants ordered by dialect.
func (r *Registry) Variants() []*Variant {
	out := make([]*Variant, 0, len(r.variants))
	for _, v := range r.variants {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dialect < out[j].Dialect })
	return out
}

// TriggerCharacters is the union of every variant's trigger characters.
func (r *Registry) TriggerCharacters() []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range r.Variants() {
		for _, c := range v.Capabilities().TriggerCharacters {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Capabilities is the union of every variant's capabilities.
func (r *Registry) Capabilities() engine.Capability {
	var caps engine.Capability
	for _, v := range r.variants {
		caps |= v.Capabilities().Provides
	}
	return caps
}

// engines returns each distinct engine once.
func (r *Registry) engines() []engine.Engine {
	var out []engine.Engine
	for _, v := range r.Variants() {
		if !slices.Contains(out, v.Engine) {
			out = append(out, v.Engine)
		}
	}
	return out
}

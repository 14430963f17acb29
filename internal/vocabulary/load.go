package vocabulary

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("veneer.vocabulary")

//go:embed data/*.json
var builtin embed.FS

func mustBuiltin(name string) *Data {
	raw, err := builtin.ReadFile("data/" + name)
	if err != nil {
		panic(err)
	}
	d, err := Parse(raw)
	if err != nil {
		panic(fmt.Sprintf("builtin %s: %s", name, err))
	}
	return d
}

var (
	baseCSS  = mustBuiltin("css.json")
	baseSCSS = mustBuiltin("scss.json")
	baseLess = mustBuiltin("less.json")
	baseHTML = mustBuiltin("html.json")
)

// Parse decodes one custom data document and drops entries without a name.
func Parse(raw []byte) (*Data, error) {
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	d.Properties = named(d.Properties, "property")
	d.AtDirectives = named(d.AtDirectives, "at-directive")
	d.PseudoClasses = named(d.PseudoClasses, "pseudo-class")
	d.PseudoElements = named(d.PseudoElements, "pseudo-element")
	d.GlobalAttributes = named(d.GlobalAttributes, "attribute")
	tags := d.Tags[:0]
	for i, t := range d.Tags {
		if t.Name == "" {
			log.Warningf("skipping tag %d without a name", i)
			continue
		}
		tags = append(tags, t)
	}
	d.Tags = tags
	return &d, nil
}

func named(entries []Entry, kind string) []Entry {
	out := entries[:0]
	for i, e := range entries {
		if e.Name == "" {
			log.Warningf("skipping %s %d without a name", kind, i)
			continue
		}
		out = append(out, e)
	}
	return out
}

func LoadFile(path string) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read custom data: %w", err)
	}
	d, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse custom data %s: %w", path, err)
	}
	return d, nil
}

// Load reads every custom data file in paths. Relative paths resolve
// against root. A file that fails to load is logged and skipped; the rest
// are still returned.
func Load(root string, paths []string) ([]*Data, []string) {
	var data []*Data
	var loaded []string
	for _, p := range paths {
		if !filepath.IsAbs(p) && root != "" {
			p = filepath.Join(root, p)
		}
		d, err := LoadFile(p)
		if err != nil {
			log.Warningf("ignoring custom data: %s", err)
			continue
		}
		data = append(data, d)
		loaded = append(loaded, p)
	}
	return data, loaded
}

// Family names the vocabulary a dialect completes and validates against.
type Family string

const (
	FamilyCSS  Family = "css"
	FamilySCSS Family = "scss"
	FamilyLess Family = "less"
	FamilyHTML Family = "html"
)

// Bundle holds one Set per family. It is immutable; reconfiguration builds
// a new Bundle.
type Bundle struct {
	sets    map[Family]*Set
	sources []string
}

// Builtin is the bundle without any custom data.
func Builtin() *Bundle {
	return Build(nil, nil, nil)
}

// Build layers custom data on top of the built-in tables. CSS custom data
// applies to every stylesheet family.
func Build(cssData, htmlData []*Data, sources []string) *Bundle {
	css := append([]*Data{baseCSS}, cssData...)
	scss := append([]*Data{baseCSS, baseSCSS}, cssData...)
	less := append([]*Data{baseCSS, baseLess}, cssData...)
	html := append([]*Data{baseHTML}, htmlData...)

	b := &Bundle{
		sets: map[Family]*Set{
			FamilyCSS:  NewSet(css...),
			FamilySCSS: NewSet(scss...),
			FamilyLess: NewSet(less...),
			FamilyHTML: NewSet(html...),
		},
		sources: append([]string(nil), sources...),
	}
	for _, s := range b.sets {
		s.sources = b.sources
	}
	return b
}

func (b *Bundle) For(f Family) *Set {
	if s, ok := b.sets[f]; ok {
		return s
	}
	return b.sets[FamilyCSS]
}

// Sources lists the custom data files the bundle was built from.
func (b *Bundle) Sources() []string {
	return append([]string(nil), b.sources...)
}

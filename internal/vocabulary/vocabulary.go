// Package vocabulary holds the schema data the engines complete and
// validate against: CSS properties, at-rules and pseudo selectors, HTML tags
// and attributes. Data comes from built-in tables and from custom data files
// in the editor's custom data format.
package vocabulary

import (
	"encoding/json"
	"sort"
	"strings"
)

type Reference struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Description accepts either a plain string or a markup content object.
type Description string

func (d *Description) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*d = Description(s)
		return nil
	}
	var markup struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &markup); err != nil {
		return err
	}
	*d = Description(markup.Value)
	return nil
}

type Entry struct {
	Name        string      `json:"name"`
	Description Description `json:"description,omitempty"`
	Syntax      string      `json:"syntax,omitempty"`
	References  []Reference `json:"references,omitempty"`
	Values      []Entry     `json:"values,omitempty"`
	ValueSet    string      `json:"valueSet,omitempty"`
}

type Tag struct {
	Entry
	Attributes []Entry `json:"attributes,omitempty"`
	Void       bool    `json:"void,omitempty"`
}

type ValueSet struct {
	Name   string  `json:"name"`
	Values []Entry `json:"values"`
}

// Data is one custom data document.
type Data struct {
	Version          float64    `json:"version"`
	Properties       []Entry    `json:"properties,omitempty"`
	AtDirectives     []Entry    `json:"atDirectives,omitempty"`
	PseudoClasses    []Entry    `json:"pseudoClasses,omitempty"`
	PseudoElements   []Entry    `json:"pseudoElements,omitempty"`
	Tags             []Tag      `json:"tags,omitempty"`
	GlobalAttributes []Entry    `json:"globalAttributes,omitempty"`
	ValueSets        []ValueSet `json:"valueSets,omitempty"`
}

// Set is an immutable merged view of any number of Data documents. Later
// providers override earlier ones entry by entry.
type Set struct {
	properties       map[string]Entry
	atDirectives     map[string]Entry
	pseudoClasses    map[string]Entry
	pseudoElements   map[string]Entry
	tags             map[string]Tag
	globalAttributes map[string]Entry
	valueSets        map[string][]Entry
	sources          []string
}

func newSet() *Set {
	return &Set{
		properties:       map[string]Entry{},
		atDirectives:     map[string]Entry{},
		pseudoClasses:    map[string]Entry{},
		pseudoElements:   map[string]Entry{},
		tags:             map[string]Tag{},
		globalAttributes: map[string]Entry{},
		valueSets:        map[string][]Entry{},
	}
}

// NewSet merges providers in order.
func NewSet(providers ...*Data) *Set {
	s := newSet()
	for _, p := range providers {
		s.add(p)
	}
	return s
}

func (s *Set) add(d *Data) {
	if d == nil {
		return
	}
	put := func(m map[string]Entry, entries []Entry) {
		for _, e := range entries {
			if e.Name != "" {
				m[strings.ToLower(e.Name)] = e
			}
		}
	}
	put(s.properties, d.Properties)
	put(s.atDirectives, d.AtDirectives)
	put(s.pseudoClasses, d.PseudoClasses)
	put(s.pseudoElements, d.PseudoElements)
	put(s.globalAttributes, d.GlobalAttributes)
	for _, t := range d.Tags {
		if t.Name != "" {
			s.tags[strings.ToLower(t.Name)] = t
		}
	}
	for _, vs := range d.ValueSets {
		s.valueSets[vs.Name] = vs.Values
	}
}

func (s *Set) Property(name string) (Entry, bool) {
	e, ok := s.properties[strings.ToLower(name)]
	return e, ok
}

func (s *Set) AtDirective(name string) (Entry, bool) {
	e, ok := s.atDirectives[strings.ToLower(name)]
	return e, ok
}

func (s *Set) PseudoClass(name string) (Entry, bool) {
	e, ok := s.pseudoClasses[strings.ToLower(name)]
	return e, ok
}

func (s *Set) PseudoElement(name string) (Entry, bool) {
	e, ok := s.pseudoElements[strings.ToLower(name)]
	return e, ok
}

func (s *Set) Tag(name string) (Tag, bool) {
	t, ok := s.tags[strings.ToLower(name)]
	return t, ok
}

// Attribute looks an attribute up on tag first and among the global
// attributes second.
func (s *Set) Attribute(tag, name string) (Entry, bool) {
	name = strings.ToLower(name)
	if t, ok := s.Tag(tag); ok {
		for _, a := range t.Attributes {
			if strings.ToLower(a.Name) == name {
				return a, true
			}
		}
	}
	e, ok := s.globalAttributes[name]
	return e, ok
}

// AttributeValues lists the values of an attribute, resolving value sets.
func (s *Set) AttributeValues(tag, name string) []Entry {
	a, ok := s.Attribute(tag, name)
	if !ok {
		return nil
	}
	if len(a.Values) > 0 {
		return a.Values
	}
	return s.valueSets[a.ValueSet]
}

func (s *Set) Properties() []Entry     { return sorted(s.properties) }
func (s *Set) AtDirectives() []Entry   { return sorted(s.atDirectives) }
func (s *Set) PseudoClasses() []Entry  { return sorted(s.pseudoClasses) }
func (s *Set) PseudoElements() []Entry { return sorted(s.pseudoElements) }

func (s *Set) Tags() []Tag {
	tags := make([]Tag, 0, len(s.tags))
	for _, t := range s.tags {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags
}

// Attributes lists the attributes valid on tag, tag-specific ones first.
func (s *Set) Attributes(tag string) []Entry {
	var out []Entry
	seen := map[string]bool{}
	if t, ok := s.Tag(tag); ok {
		for _, a := range t.Attributes {
			seen[strings.ToLower(a.Name)] = true
			out = append(out, a)
		}
	}
	for _, a := range sorted(s.globalAttributes) {
		if !seen[strings.ToLower(a.Name)] {
			out = append(out, a)
		}
	}
	return out
}

// Sources lists the custom data files merged into the set.
func (s *Set) Sources() []string {
	return append([]string(nil), s.sources...)
}

func sorted(m map[string]Entry) []Entry {
	out := make([]Entry, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Markdown renders an entry for hover and completion documentation.
func (e Entry) Markdown() string {
	var b strings.Builder
	if e.Description != "" {
		b.WriteString(string(e.Description))
	}
	if e.Syntax != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Syntax: ")
		b.WriteString(e.Syntax)
	}
	for i, r := range e.References {
		if i == 0 {
			b.WriteString("\n\n")
		} else {
			b.WriteString(" | ")
		}
		b.WriteString("[" + r.Name + "](" + r.URL + ")")
	}
	return b.String()
}

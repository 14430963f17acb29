// Package template compiles templated HTML into plain HTML plus the map
// between the two.
//
// The template syntax is line oriented. A line whose first non-blank
// character is '@' is a directive (@if, @for, @include, @end, ...) and has
// no HTML counterpart. Within other lines "{{ expr }}" interpolations and
// "{{-- comment --}}" comments are dropped. Everything else is copied
// byte for byte.
package template

import (
	"strings"

	"veneer/internal/document"
	"veneer/internal/sourcemap"
)

// GeneratedSuffix is appended to a template URI to name its HTML.
const GeneratedSuffix = ".html"

type Directive struct {
	Name string
	// Start and End are source offsets of the directive line, newline
	// excluded.
	Start int
	End   int
}

type Result struct {
	Source    *document.Document
	Generated *document.Document
	Map       *sourcemap.Map
	// EmptyLineEnds are the source offsets at the end of blank lines.
	EmptyLineEnds []int
	Directives    []Directive
}

// Mapping returns the position-level view of the result.
func (r *Result) Mapping() *sourcemap.Mapping {
	return &sourcemap.Mapping{Map: r.Map, Source: r.Source, Generated: r.Generated}
}

// IsEmptyLineEnd reports whether offset is the end of a blank line.
func (r *Result) IsEmptyLineEnd(offset int) bool {
	for _, end := range r.EmptyLineEnds {
		if end == offset {
			return true
		}
		if end > offset {
			break
		}
	}
	return false
}

type compiler struct {
	src      string
	out      strings.Builder
	segments []sourcemap.Segment
	runStart int
}

// flush closes the verbatim run that ends at end.
func (c *compiler) flush(end int) {
	if c.runStart < 0 {
		return
	}
	n := end - c.runStart
	genEnd := c.out.Len()
	c.segments = append(c.segments, sourcemap.Segment{
		SourceStart:    c.runStart,
		SourceEnd:      end,
		GeneratedStart: genEnd - n,
		GeneratedEnd:   genEnd,
	})
	c.runStart = -1
}

func Compile(doc *document.Document) *Result {
	c := &compiler{src: doc.Text, runStart: -1}
	res := &Result{Source: doc}
	src := doc.Text

	lineStart := true
	for i := 0; i < len(src); {
		if lineStart {
			lineStart = false
			lineEnd := strings.IndexByte(src[i:], '\n')
			if lineEnd < 0 {
				lineEnd = len(src)
			} else {
				lineEnd += i
			}
			line := strings.TrimSuffix(src[i:lineEnd], "\r")
			trimmed := strings.TrimLeft(line, " \t")

			if strings.HasPrefix(trimmed, "@") {
				c.flush(i)
				res.Directives = append(res.Directives, Directive{
					Name:  directiveName(trimmed),
					Start: i,
					End:   i + len(line),
				})
				i = lineEnd + 1
				lineStart = true
				continue
			}
			if strings.TrimSpace(line) == "" {
				res.EmptyLineEnds = append(res.EmptyLineEnds, i+len(line))
			}
		}

		if strings.HasPrefix(src[i:], "{{") {
			c.flush(i)
			i = c.skipMustache(i)
			continue
		}

		if c.runStart < 0 {
			c.runStart = i
		}
		c.out.WriteByte(src[i])
		if src[i] == '\n' {
			lineStart = true
		}
		i++
	}
	c.flush(len(src))

	m, err := sourcemap.New(c.segments)
	if err != nil {
		// segments are produced in order; this is a bug
		panic(err)
	}
	res.Map = m
	res.Generated = document.New(doc.URI+GeneratedSuffix, document.HTML, doc.Version, c.out.String())
	return res
}

// skipMustache returns the offset just past the mustache starting at i. An
// unterminated one runs to the end of its line.
func (c *compiler) skipMustache(i int) int {
	closing := "}}"
	if strings.HasPrefix(c.src[i:], "{{--") {
		closing = "--}}"
	}
	if j := strings.Index(c.src[i+2:], closing); j >= 0 {
		return i + 2 + j + len(closing)
	}
	if nl := strings.IndexByte(c.src[i:], '\n'); nl >= 0 {
		return i + nl
	}
	return len(c.src)
}

func directiveName(line string) string {
	end := 1
	for end < len(line) && isNameByte(line[end]) {
		end++
	}
	return line[:end]
}

func isNameByte(b byte) bool {
	return b == '-' || b == '_' ||
		('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}

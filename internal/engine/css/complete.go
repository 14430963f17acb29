package css

import (
	"sort"
	"strings"

	"veneer/internal/engine"
	"veneer/internal/vocabulary"

	sitter "github.com/smacker/go-tree-sitter"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

type completionKind int

const (
	completeNothing completionKind = iota
	completeProperty
	completeValue
	completeAtRule
	completePseudo
	completeVariable
)

type completionContext struct {
	kind completionKind
	// property is the declaration's property in value position.
	property  string
	wordStart int
	word      string
}

// wordBefore returns the start of the identifier that ends at offset,
// including a leading sigil ('@', '$', ':' or "::").
func wordBefore(text string, offset int) int {
	start := offset
	for start > 0 && isIdentByte(text[start-1]) {
		start--
	}
	if start > 0 {
		switch text[start-1] {
		case '@', '$':
			start--
		case ':':
			start--
			if start > 0 && text[start-1] == ':' {
				start--
			}
		}
	}
	return start
}

// statementStart scans back from offset to the start of the current
// statement: just after the nearest '{', '}' or ';' outside parentheses.
// It also reports whether the statement is inside a block and the offset of
// a top-level ':' in it, or -1.
func statementStart(text string, offset int) (start int, inBlock bool, colon int) {
	colon = -1
	parens := 0
	i := offset - 1
scan:
	for ; i >= 0; i-- {
		switch text[i] {
		case ')':
			parens++
		case '(':
			if parens > 0 {
				parens--
			}
		case ':':
			// scanning backwards, so the leftmost colon wins
			if parens == 0 {
				colon = i
			}
		case ';', '{', '}':
			if parens == 0 {
				break scan
			}
		}
	}
	start = i + 1

	depth := 0
	for j := i; j >= 0; j-- {
		switch text[j] {
		case '}':
			depth++
		case '{':
			if depth == 0 {
				return start, true, colon
			}
			depth--
		}
	}
	return start, false, colon
}

func analyze(s *stylesheet, offset int) completionContext {
	text := s.doc.Text
	wordStart := wordBefore(text, offset)
	ctx := completionContext{wordStart: wordStart, word: text[wordStart:offset]}

	start, inBlock, colon := statementStart(text, wordStart)
	inValue := inBlock && colon >= 0

	switch {
	case strings.HasPrefix(ctx.word, "@") && !(s.mode == ModeLess && inValue):
		ctx.kind = completeAtRule
	case strings.HasPrefix(ctx.word, "$") && s.mode == ModeSCSS,
		strings.HasPrefix(ctx.word, "@") && s.mode == ModeLess,
		strings.HasPrefix(ctx.word, "--") && inValue,
		inValue && strings.HasSuffix(strings.TrimRight(text[:wordStart], " \t"), "var("):
		ctx.kind = completeVariable
	case inValue:
		ctx.kind = completeValue
		ctx.property = strings.TrimSpace(text[start:colon])
	case strings.HasPrefix(ctx.word, ":"):
		ctx.kind = completePseudo
	case inBlock:
		ctx.kind = completeProperty
	}
	return ctx
}

func (e *Engine) Complete(req *engine.Request, pos protocol.Position) (*protocol.CompletionList, error) {
	s := parsed(req)
	if s == nil || req.Vocabulary == nil {
		return nil, nil
	}
	offset := req.Document.OffsetAt(pos)
	ctx := analyze(s, offset)
	if ctx.kind == completeNothing {
		return nil, nil
	}
	edit := req.Document.RangeAt(ctx.wordStart, offset)

	var items []protocol.CompletionItem
	add := func(label string, kind protocol.CompletionItemKind, newText string, doc string) {
		item := protocol.CompletionItem{
			Label:    label,
			Kind:     &kind,
			TextEdit: protocol.TextEdit{Range: edit, NewText: newText},
		}
		if doc != "" {
			item.Documentation = protocol.MarkupContent{Kind: protocol.MarkupKindMarkdown, Value: doc}
		}
		items = append(items, item)
	}

	vocab := req.Vocabulary
	switch ctx.kind {
	case completeProperty:
		for _, p := range vocab.Properties() {
			add(p.Name, protocol.CompletionItemKindProperty, p.Name+": ", p.Markdown())
		}
	case completeValue:
		if p, ok := vocab.Property(ctx.property); ok {
			for _, v := range p.Values {
				add(v.Name, protocol.CompletionItemKindValue, v.Name, v.Markdown())
			}
		}
		for _, kw := range []string{"inherit", "initial", "unset", "revert"} {
			add(kw, protocol.CompletionItemKindKeyword, kw, "")
		}
		add("var()", protocol.CompletionItemKindFunction, "var(", "")
	case completeAtRule:
		for _, a := range vocab.AtDirectives() {
			add(a.Name, protocol.CompletionItemKindKeyword, a.Name, a.Markdown())
		}
	case completePseudo:
		pseudo := vocab.PseudoClasses()
		if strings.HasPrefix(ctx.word, "::") {
			pseudo = nil
		}
		pseudo = append(pseudo, vocab.PseudoElements()...)
		for _, p := range pseudo {
			add(p.Name, protocol.CompletionItemKindFunction, p.Name, p.Markdown())
		}
	case completeVariable:
		for _, name := range s.variableNames() {
			if name == ctx.word {
				continue
			}
			add(name, protocol.CompletionItemKindVariable, name, s.variableValue(name))
		}
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &protocol.CompletionList{IsIncomplete: false, Items: items}, nil
}

// variableNames lists the variables declared in the document.
func (s *stylesheet) variableNames() []string {
	seen := map[string]bool{}
	var names []string
	for _, occ := range s.occurrences() {
		if occ.definition && !seen[occ.name] {
			seen[occ.name] = true
			names = append(names, occ.name)
		}
	}
	sort.Strings(names)
	return names
}

// variableValue renders the declared values of a variable as markdown.
func (s *stylesheet) variableValue(name string) string {
	var b strings.Builder
	for _, occ := range s.occurrences() {
		if !occ.definition || occ.name != name || occ.declaration == nil {
			continue
		}
		if b.Len() == 0 {
			b.WriteString("```css\n")
		}
		b.WriteString(strings.TrimSpace(s.text(occ.declaration)))
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return ""
	}
	b.WriteString("```")
	return b.String()
}

func (e *Engine) Hover(req *engine.Request, pos protocol.Position) (*protocol.Hover, error) {
	s := parsed(req)
	if s == nil {
		return nil, nil
	}
	n := s.nodeAt(req.Document.OffsetAt(pos))
	if n == nil {
		return nil, nil
	}
	name := s.text(n)

	var contents string
	switch {
	case s.isVariable(name):
		contents = s.variableValue(name)
	case n.Type() == nodePropertyName && req.Vocabulary != nil:
		contents = entryMarkdown(req.Vocabulary.Property(name))
	case strings.HasPrefix(name, "@") && req.Vocabulary != nil:
		// "@media" is an anonymous token; unknown rules are at_keyword
		contents = entryMarkdown(req.Vocabulary.AtDirective(name))
	case req.Vocabulary != nil:
		contents = entryMarkdown(s.pseudoEntry(n, req.Vocabulary))
	}
	if contents == "" {
		return nil, nil
	}
	r := req.Document.RangeAt(int(n.StartByte()), int(n.EndByte()))
	return &protocol.Hover{
		Contents: protocol.MarkupContent{Kind: protocol.MarkupKindMarkdown, Value: contents},
		Range:    &r,
	}, nil
}

// pseudoEntry looks up the pseudo-class or pseudo-element whose name is n.
// The single-colon spelling of the old pseudo-elements falls back to the
// element.
func (s *stylesheet) pseudoEntry(n *sitter.Node, vocab *vocabulary.Set) (vocabulary.Entry, bool) {
	parent := n.Parent()
	if parent == nil {
		return vocabulary.Entry{}, false
	}
	start := int(n.StartByte())
	switch parent.Type() {
	case nodePseudoElement:
		if strings.HasSuffix(s.doc.Text[:start], "::") {
			return vocab.PseudoElement("::" + s.text(n))
		}
	case nodePseudoClass:
		if strings.HasSuffix(s.doc.Text[:start], ":") {
			if e, ok := vocab.PseudoClass(":" + s.text(n)); ok {
				return e, true
			}
			return vocab.PseudoElement("::" + s.text(n))
		}
	}
	return vocabulary.Entry{}, false
}

func entryMarkdown(e vocabulary.Entry, ok bool) string {
	if !ok {
		return ""
	}
	md := e.Markdown()
	if md == "" {
		return e.Name
	}
	return md
}

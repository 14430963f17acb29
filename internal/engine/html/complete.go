package html

import (
	"regexp"
	"strings"

	"veneer/internal/engine"
	"veneer/internal/sitteradapter"
	"veneer/internal/vocabulary"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// voidElements never have an end tag.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

func isVoid(vocab *vocabulary.Set, name string) bool {
	name = strings.ToLower(name)
	if voidElements[name] {
		return true
	}
	if vocab != nil {
		if tag, ok := vocab.Tag(name); ok {
			return tag.Void
		}
	}
	return false
}

type completionKind int

const (
	completeNothing completionKind = iota
	completeTag
	completeEndTag
	completeAttribute
	completeValue
)

type completionContext struct {
	kind      completionKind
	tag       string
	attribute string
	// replace is the start of the text the completion replaces.
	replace int
}

func isNameByte(b byte) bool {
	return b == '-' || b == '_' || b == ':' || b == '.' ||
		('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}

// analyze works on the text alone, which is usually broken while typing.
func analyze(text string, offset int) completionContext {
	lt := strings.LastIndexByte(text[:offset], '<')
	if lt < 0 || strings.LastIndexByte(text[:offset], '>') > lt {
		return completionContext{}
	}
	inside := text[lt+1 : offset]

	if rest, ok := strings.CutPrefix(inside, "/"); ok {
		if strings.IndexFunc(rest, isSpace) < 0 {
			return completionContext{kind: completeEndTag, replace: lt + 1}
		}
		return completionContext{}
	}
	nameEnd := 0
	for nameEnd < len(inside) && isNameByte(inside[nameEnd]) {
		nameEnd++
	}
	if nameEnd == len(inside) {
		return completionContext{kind: completeTag, replace: lt + 1}
	}
	tag := inside[:nameEnd]
	if tag == "" || strings.HasPrefix(inside, "!") {
		return completionContext{}
	}

	// walk the attributes to find out whether offset is inside a value
	var quote byte
	valueStart, attrName := -1, ""
	lastName := ""
	for i := nameEnd; i < len(inside); i++ {
		c := inside[i]
		switch {
		case quote != 0:
			if c == quote {
				quote, valueStart = 0, -1
			}
		case c == '"' || c == '\'':
			quote, valueStart, attrName = c, i+1, lastName
		case isNameByte(c):
			j := i
			for j < len(inside) && isNameByte(inside[j]) {
				j++
			}
			lastName = inside[i:j]
			i = j - 1
		}
	}
	if quote != 0 {
		return completionContext{kind: completeValue, tag: tag, attribute: attrName, replace: lt + 1 + valueStart}
	}

	start := len(inside)
	for start > nameEnd && isNameByte(inside[start-1]) {
		start--
	}
	if start > 0 && !isSpace(rune(inside[start-1])) {
		return completionContext{}
	}
	return completionContext{kind: completeAttribute, tag: tag, replace: lt + 1 + start}
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

var tagPattern = regexp.MustCompile(`<!--[\s\S]*?-->|<(/?)([A-Za-z][\w:.-]*)[^>]*?(/?)>`)

// openElement returns the innermost element left open before offset.
func openElement(vocab *vocabulary.Set, text string) string {
	var stack []string
	for _, m := range tagPattern.FindAllStringSubmatch(text, -1) {
		name := strings.ToLower(m[2])
		switch {
		case name == "":
			// comment
		case m[1] == "/":
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i] == name {
					stack = stack[:i]
					break
				}
			}
		case m[3] == "/" || isVoid(vocab, name):
		default:
			stack = append(stack, name)
		}
	}
	if len(stack) == 0 {
		return ""
	}
	return stack[len(stack)-1]
}

func (e *Engine) Complete(req *engine.Request, pos protocol.Position) (*protocol.CompletionList, error) {
	if parsed(req) == nil || req.Vocabulary == nil {
		return nil, nil
	}
	doc := req.Document
	offset := doc.OffsetAt(pos)
	ctx := analyze(doc.Text, offset)
	edit := doc.RangeAt(ctx.replace, offset)
	vocab := req.Vocabulary

	var items []protocol.CompletionItem
	add := func(label string, kind protocol.CompletionItemKind, newText, doc string) {
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

	switch ctx.kind {
	case completeTag:
		if open := openElement(vocab, doc.Text[:ctx.replace-1]); open != "" {
			add("/"+open, protocol.CompletionItemKindProperty, "/"+open+">", "")
		}
		for _, tag := range vocab.Tags() {
			add(tag.Name, protocol.CompletionItemKindProperty, tag.Name, tag.Markdown())
		}
	case completeEndTag:
		if open := openElement(vocab, doc.Text[:ctx.replace-1]); open != "" {
			add("/"+open, protocol.CompletionItemKindProperty, "/"+open+">", "")
		}
	case completeAttribute:
		for _, attr := range vocab.Attributes(ctx.tag) {
			add(attr.Name, protocol.CompletionItemKindValue, attr.Name, attr.Markdown())
		}
	case completeValue:
		for _, v := range vocab.AttributeValues(ctx.tag, ctx.attribute) {
			add(v.Name, protocol.CompletionItemKindValue, v.Name, v.Markdown())
		}
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &protocol.CompletionList{Items: items}, nil
}

func (e *Engine) Hover(req *engine.Request, pos protocol.Position) (*protocol.Hover, error) {
	m := parsed(req)
	if m == nil || req.Vocabulary == nil {
		return nil, nil
	}
	n := m.tree.NodeAt(req.Document.OffsetAt(pos))
	if n == nil {
		return nil, nil
	}

	var entry vocabulary.Entry
	var ok bool
	switch n.Type() {
	case nodeTagName:
		var tag vocabulary.Tag
		tag, ok = req.Vocabulary.Tag(m.text(n))
		entry = tag.Entry
	case nodeAttributeName:
		element := sitteradapter.Ancestor(n, nodeStartTag, nodeSelfClosingTag)
		tag := m.text(sitteradapter.ChildOfType(element, nodeTagName))
		entry, ok = req.Vocabulary.Attribute(tag, m.text(n))
	}
	if !ok {
		return nil, nil
	}
	contents := entry.Markdown()
	if contents == "" {
		contents = entry.Name
	}
	r := sitteradapter.Range(req.Document, n)
	return &protocol.Hover{
		Contents: protocol.MarkupContent{Kind: protocol.MarkupKindMarkdown, Value: contents},
		Range:    &r,
	}, nil
}

package css

import (
	"strings"

	"veneer/internal/config"
	"veneer/internal/engine"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// lexState follows strings and comments across lines so braces inside them
// do not count.
type lexState struct {
	mode      Mode
	quote     byte
	inComment bool
}

// scan advances over one line and returns the change in brace depth.
func (l *lexState) scan(line string) int {
	delta := 0
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case l.inComment:
			if c == '*' && i+1 < len(line) && line[i+1] == '/' {
				l.inComment = false
				i++
			}
		case l.quote != 0:
			if c == '\\' {
				i++
			} else if c == l.quote {
				l.quote = 0
			}
		case c == '"' || c == '\'':
			l.quote = c
		case c == '/' && i+1 < len(line) && line[i+1] == '*':
			l.inComment = true
			i++
		case c == '/' && i+1 < len(line) && line[i+1] == '/' && l.mode != ModeCSS && (i == 0 || line[i-1] != ':'):
			return delta
		case c == '{':
			delta++
		case c == '}':
			delta--
		}
	}
	// strings do not span lines
	l.quote = 0
	return delta
}

func leadingClosers(s string) int {
	n := 0
	for n < len(s) && s[n] == '}' {
		n++
	}
	return n
}

func (e *Engine) Format(req *engine.Request, rng *protocol.Range, opts protocol.FormattingOptions) ([]protocol.TextEdit, error) {
	doc := req.Document
	if doc == nil || !config.Bool(req.Settings, "format.enable", true) {
		return nil, nil
	}
	unit := config.IndentUnit(opts)
	lex := &lexState{mode: e.mode}
	depth := 0
	edits := []protocol.TextEdit{}

	for line := 0; line < doc.LineCount(); line++ {
		start := doc.LineStart(line)
		end := start + strings.IndexByte(doc.Text[start:]+"\n", '\n')
		content := strings.TrimSuffix(doc.Text[start:end], "\r")

		// a line continuing a block comment is left alone
		inComment := lex.inComment
		trimmed := strings.TrimSpace(content)
		lineDepth := max(depth-leadingClosers(trimmed), 0)
		depth = max(depth+lex.scan(content), 0)
		if inComment {
			continue
		}
		if rng != nil && (line < int(rng.Start.Line) || line > int(rng.End.Line)) {
			continue
		}

		want := ""
		if trimmed != "" {
			want = strings.Repeat(unit, lineDepth) + trimmed
		}
		if want != content {
			edits = append(edits, protocol.TextEdit{
				Range:   doc.RangeAt(start, start+len(content)),
				NewText: want,
			})
		}
	}
	return edits, nil
}

// Package css is the stylesheet engine. One implementation serves plain
// CSS, SCSS and Less; the modes differ in vocabulary and in which syntax is
// tolerated.
package css

import (
	"context"
	"strings"
	"sync"

	"veneer/internal/document"
	"veneer/internal/engine"
	"veneer/internal/sitteradapter"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/css"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("veneer.engine.css")

type Mode int

const (
	ModeCSS Mode = iota
	ModeSCSS
	ModeLess
)

func (m Mode) String() string {
	switch m {
	case ModeSCSS:
		return "scss"
	case ModeLess:
		return "less"
	}
	return "css"
}

// Node types of the tree-sitter CSS grammar.
const (
	nodeStylesheet        = "stylesheet"
	nodeRuleSet           = "rule_set"
	nodeSelectors         = "selectors"
	nodeBlock             = "block"
	nodeDeclaration       = "declaration"
	nodePropertyName      = "property_name"
	nodeImportStatement   = "import_statement"
	nodeMediaStatement    = "media_statement"
	nodeKeyframes         = "keyframes_statement"
	nodeKeyframeBlocks    = "keyframe_block_list"
	nodeSupportsStatement = "supports_statement"
	nodeAtRule            = "at_rule"
	nodeAtKeyword         = "at_keyword"
	nodeStringValue       = "string_value"
	nodePlainValue        = "plain_value"
	nodeColorValue        = "color_value"
	nodeCallExpression    = "call_expression"
	nodeFunctionName      = "function_name"
	nodeArguments         = "arguments"
	nodeComment           = "comment"
	nodePseudoClass       = "pseudo_class_selector"
	nodePseudoElement     = "pseudo_element_selector"
)

var triggerCharacters = []string{"/", "-", ":"}

type Engine struct {
	mode Mode
}

func New(mode Mode) *Engine {
	return &Engine{mode: mode}
}

func (e *Engine) Name() string {
	return e.mode.String()
}

func (e *Engine) Mode() Mode {
	return e.mode
}

func (e *Engine) Capabilities() engine.Capabilities {
	return engine.Capabilities{
		Provides:          engine.All,
		TriggerCharacters: triggerCharacters,
	}
}

// stylesheet is the parsed form of a document. The tree is parsed from a
// masked copy of the text with the same length, so node offsets are valid
// in the original text, which is what names are read from.
type stylesheet struct {
	tree *sitteradapter.Tree
	doc  *document.Document
	mode Mode

	once sync.Once
	occs []occurrence
	lnks []link
}

func (e *Engine) Parse(ctx context.Context, doc *document.Document) engine.Parsed {
	src := []byte(doc.Text)
	if e.mode != ModeCSS {
		src = mask(src, e.mode)
	}
	return &stylesheet{
		tree: sitteradapter.Parse(ctx, css.GetLanguage(), src),
		doc:  doc,
		mode: e.mode,
	}
}

func parsed(req *engine.Request) *stylesheet {
	s, _ := req.Parsed.(*stylesheet)
	if s == nil || s.doc.URI != req.Document.URI || s.doc.Version != req.Document.Version {
		return nil
	}
	return s
}

func (s *stylesheet) root() *sitter.Node {
	return s.tree.Root
}

// text is the original document text of n.
func (s *stylesheet) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	start, end := sitteradapter.Offsets(n)
	return s.doc.Text[start:end]
}

func (s *stylesheet) nodeAt(offset int) *sitter.Node {
	return s.tree.NodeAt(offset)
}

// isVariable reports whether name is a custom property, or a preprocessor
// variable in the matching mode.
func (s *stylesheet) isVariable(name string) bool {
	switch {
	case strings.HasPrefix(name, "--") && len(name) > 2:
		return true
	case s.mode == ModeSCSS && strings.HasPrefix(name, "$") && len(name) > 1:
		return true
	case s.mode == ModeLess && strings.HasPrefix(name, "@") && len(name) > 1:
		return isIdentifier(name[1:]) && !cssAtKeywords[strings.ToLower(name[1:])]
	}
	return false
}

func isIdentByte(b byte) bool {
	return b == '-' || b == '_' || b >= 0x80 ||
		('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isIdentByte(s[i]) {
			return false
		}
	}
	return true
}

// cssAtKeywords are the at-rules Less keeps as at-rules rather than
// variables.
var cssAtKeywords = map[string]bool{
	"charset": true, "import": true, "namespace": true, "media": true,
	"supports": true, "document": true, "page": true, "font-face": true,
	"keyframes": true, "viewport": true, "counter-style": true,
	"font-feature-values": true, "property": true, "layer": true,
	"container": true, "plugin": true, "scope": true, "starting-style": true,
	"-webkit-keyframes": true, "-moz-keyframes": true, "-o-keyframes": true,
}

// mask rewrites preprocessor syntax the CSS grammar does not know into
// same-length CSS: line comments become spaces, and variable sigils become
// '-' so "$gap: 4px" parses as a declaration of "-gap".
func mask(src []byte, mode Mode) []byte {
	out := make([]byte, len(src))
	copy(out, src)

	var quote byte
	for i := 0; i < len(out); i++ {
		c := out[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote || c == '\n' {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '/' && i+1 < len(out) && out[i+1] == '*':
			end := strings.Index(string(out[i+2:]), "*/")
			if end < 0 {
				return out
			}
			i += end + 3
		case c == '/' && i+1 < len(out) && out[i+1] == '/' && (i == 0 || out[i-1] != ':'):
			for ; i < len(out) && out[i] != '\n'; i++ {
				out[i] = ' '
			}
		case mode == ModeSCSS && c == '$' && i+1 < len(out) && isIdentByte(out[i+1]):
			out[i] = '-'
		case mode == ModeLess && c == '@' && i+1 < len(out) && isIdentByte(out[i+1]):
			end := i + 1
			for end < len(out) && isIdentByte(out[end]) {
				end++
			}
			if !cssAtKeywords[strings.ToLower(string(out[i+1:end]))] {
				out[i] = '-'
			}
			i = end - 1
		}
	}
	return out
}

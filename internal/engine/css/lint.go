package css

import (
	"fmt"
	"sort"
	"strings"

	"veneer/internal/config"
	"veneer/internal/engine"
	"veneer/internal/sitteradapter"

	sitter "github.com/smacker/go-tree-sitter"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Diagnostic codes.
const (
	codeRuleOrSelectorExpected = "css-ruleorselectorexpected"
	codeSemicolonExpected      = "css-semicolonexpected"
	codeRCurlyExpected         = "css-rcurlyexpected"
	codeSyntaxError            = "css-syntaxerror"
	codeUnknownAtRules         = "unknownAtRules"
	codeUnknownProperties      = "unknownProperties"
	codeEmptyRules             = "emptyRules"
)

// maxSuggestionDistance bounds the edit distance of a property suggested
// for an unknown one.
const maxSuggestionDistance = 2

type linter struct {
	s        *stylesheet
	req      *engine.Request
	source   string
	diags    []protocol.Diagnostic
	severity map[string]*protocol.DiagnosticSeverity
}

// level returns the configured severity of a lint, nil when ignored.
func (l *linter) level(code string) *protocol.DiagnosticSeverity {
	if sev, ok := l.severity[code]; ok {
		return sev
	}
	var sev *protocol.DiagnosticSeverity
	switch config.String(l.req.Settings, "lint."+code, config.LevelWarning) {
	case config.LevelError:
		v := protocol.DiagnosticSeverityError
		sev = &v
	case config.LevelWarning:
		v := protocol.DiagnosticSeverityWarning
		sev = &v
	}
	l.severity[code] = sev
	return sev
}

func (l *linter) report(n *sitter.Node, sev *protocol.DiagnosticSeverity, code, message string) {
	if sev == nil {
		return
	}
	l.diags = append(l.diags, protocol.Diagnostic{
		Range:    l.s.rangeOf(n),
		Severity: sev,
		Code:     &protocol.IntegerOrString{Value: code},
		Source:   &l.source,
		Message:  message,
	})
}

func (l *linter) syntax(n *sitter.Node, code, message string) {
	sev := protocol.DiagnosticSeverityError
	l.report(n, &sev, code, message)
}

func (e *Engine) Validate(req *engine.Request) ([]protocol.Diagnostic, error) {
	s := parsed(req)
	if s == nil || !config.Bool(req.Settings, "validate", true) {
		return nil, nil
	}
	l := &linter{
		s:        s,
		req:      req,
		source:   s.mode.String(),
		severity: map[string]*protocol.DiagnosticSeverity{},
	}
	sitteradapter.Walk(s.root(), l.visit)
	return l.diags, nil
}

func (l *linter) visit(n *sitter.Node) bool {
	switch {
	case n.IsError():
		l.syntax(n, codeRuleOrSelectorExpected, "at-rule or selector expected")
		return false
	case n.IsMissing():
		switch n.Type() {
		case ";":
			l.syntax(n, codeSemicolonExpected, "semi-colon expected")
		case "}":
			l.syntax(n, codeRCurlyExpected, "} expected")
		default:
			l.syntax(n, codeSyntaxError, fmt.Sprintf("%s expected", n.Type()))
		}
		return false
	}

	vocab := l.req.Vocabulary
	switch n.Type() {
	case nodeAtRule:
		if vocab == nil {
			break
		}
		kw := sitteradapter.ChildOfType(n, nodeAtKeyword)
		name := l.s.text(kw)
		if name == "" || l.s.isVariable(name) {
			break
		}
		if _, ok := vocab.AtDirective(strings.ToLower(name)); !ok {
			l.report(kw, l.level(codeUnknownAtRules), codeUnknownAtRules,
				fmt.Sprintf("Unknown at rule %s", name))
		}
	case nodePropertyName:
		name := l.s.text(n)
		if vocab == nil || !l.checkable(name) {
			break
		}
		if _, ok := vocab.Property(strings.ToLower(name)); !ok {
			l.report(n, l.level(codeUnknownProperties), codeUnknownProperties,
				fmt.Sprintf("Unknown property: '%s'", name))
		}
	case nodeRuleSet:
		if isEmptyBlock(sitteradapter.ChildOfType(n, nodeBlock)) {
			l.report(n, l.level(codeEmptyRules), codeEmptyRules, "Do not use empty rulesets")
		}
	}
	return true
}

// checkable reports whether a property name is expected to be in the
// vocabulary. Variables, vendor prefixed names and interpolations are not.
func (l *linter) checkable(name string) bool {
	if name == "" || l.s.isVariable(name) || strings.ContainsAny(name, "#{}") {
		return false
	}
	switch name[0] {
	case '-', '$', '@', '*', '_':
		return false
	}
	return true
}

func isEmptyBlock(block *sitter.Node) bool {
	if block == nil {
		return false
	}
	for i := 0; i < int(block.NamedChildCount()); i++ {
		if block.NamedChild(i).Type() != nodeComment {
			return false
		}
	}
	return true
}

func diagnosticCode(d protocol.Diagnostic) string {
	if d.Code == nil {
		return ""
	}
	code, _ := d.Code.Value.(string)
	return code
}

func (e *Engine) CodeActions(req *engine.Request, rng protocol.Range, ctx protocol.CodeActionContext) ([]protocol.CodeAction, error) {
	if req.Document == nil {
		return nil, nil
	}
	var actions []protocol.CodeAction
	quickFix := func(title string, d protocol.Diagnostic, newText string) {
		kind := protocol.CodeActionKind(protocol.CodeActionKindQuickFix)
		actions = append(actions, protocol.CodeAction{
			Title:       title,
			Kind:        &kind,
			Diagnostics: []protocol.Diagnostic{d},
			Edit: &protocol.WorkspaceEdit{
				Changes: map[protocol.DocumentUri][]protocol.TextEdit{
					req.Document.URI: {{Range: d.Range, NewText: newText}},
				},
			},
		})
	}

	for _, d := range ctx.Diagnostics {
		switch diagnosticCode(d) {
		case codeUnknownProperties:
			if req.Vocabulary == nil {
				continue
			}
			name := req.Document.Slice(d.Range)
			for _, candidate := range closestProperties(req, name) {
				quickFix(fmt.Sprintf("Rename to '%s'", candidate), d, candidate)
			}
		case codeEmptyRules:
			quickFix("Remove empty rule", d, "")
		}
	}
	return actions, nil
}

// closestProperties returns up to three known properties within
// maxSuggestionDistance of name, closest first.
func closestProperties(req *engine.Request, name string) []string {
	type candidate struct {
		name     string
		distance int
	}
	name = strings.ToLower(name)
	var candidates []candidate
	for _, p := range req.Vocabulary.Properties() {
		if d := levenshtein(name, p.Name); d <= maxSuggestionDistance {
			candidates = append(candidates, candidate{p.Name, d})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].name < candidates[j].name
	})
	var out []string
	for i := 0; i < len(candidates) && i < 3; i++ {
		out = append(out, candidates[i].name)
	}
	return out
}

// levenshtein is the edit distance between a and b.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

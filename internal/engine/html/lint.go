package html

import (
	"fmt"
	"strings"

	"veneer/internal/config"
	"veneer/internal/engine"
	"veneer/internal/sitteradapter"

	sitter "github.com/smacker/go-tree-sitter"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

const (
	codeUnclosedTag      = "html-unclosedtag"
	codeUnexpectedEndTag = "html-unexpectedendtag"
	codeSyntaxError      = "html-syntaxerror"
)

// optionalEndTags may be left open; the parser closes them implicitly.
var optionalEndTags = map[string]bool{
	"html": true, "head": true, "body": true, "p": true, "li": true,
	"dt": true, "dd": true, "option": true, "optgroup": true, "rb": true,
	"rt": true, "rtc": true, "rp": true, "colgroup": true, "caption": true,
	"thead": true, "tbody": true, "tfoot": true, "tr": true, "td": true,
	"th": true,
}

var source = "html"

func (e *Engine) Validate(req *engine.Request) ([]protocol.Diagnostic, error) {
	m := parsed(req)
	if m == nil || !config.Bool(req.Settings, "validate", true) {
		return nil, nil
	}
	var diags []protocol.Diagnostic
	report := func(n *sitter.Node, severity protocol.DiagnosticSeverity, code, message string) {
		diags = append(diags, protocol.Diagnostic{
			Range:    sitteradapter.Range(req.Document, n),
			Severity: &severity,
			Code:     &protocol.IntegerOrString{Value: code},
			Source:   &source,
			Message:  message,
		})
	}

	sitteradapter.Walk(m.tree.Root, func(n *sitter.Node) bool {
		switch {
		case n.Type() == nodeErroneousEndTag:
			name := m.text(sitteradapter.ChildOfType(n, nodeErroneousEndName))
			report(n, protocol.DiagnosticSeverityError, codeUnexpectedEndTag,
				fmt.Sprintf("Unexpected closing tag '%s'", name))
			return false
		case n.IsError():
			report(n, protocol.DiagnosticSeverityError, codeSyntaxError, "Unexpected token")
			return false
		case isElement(n):
			if sitteradapter.ChildOfType(n, nodeStartTag) == nil || sitteradapter.ChildOfType(n, nodeEndTag) != nil {
				break
			}
			name := tagName(n)
			tag := strings.ToLower(m.text(name))
			if tag == "" || isVoid(req.Vocabulary, tag) || optionalEndTags[tag] {
				break
			}
			report(name, protocol.DiagnosticSeverityWarning, codeUnclosedTag,
				fmt.Sprintf("Element '%s' is not closed", tag))
		}
		return true
	})
	return diags, nil
}

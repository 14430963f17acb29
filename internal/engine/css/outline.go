package css

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"veneer/internal/engine"
	"veneer/internal/sitteradapter"

	"github.com/lucasb-eyer/go-colorful"
	sitter "github.com/smacker/go-tree-sitter"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func (e *Engine) Symbols(req *engine.Request) ([]protocol.DocumentSymbol, error) {
	s := parsed(req)
	if s == nil {
		return nil, nil
	}
	return s.symbolsIn(s.root()), nil
}

func (s *stylesheet) symbolsIn(parent *sitter.Node) []protocol.DocumentSymbol {
	if parent == nil {
		return nil
	}
	var out []protocol.DocumentSymbol
	for i := 0; i < int(parent.NamedChildCount()); i++ {
		n := parent.NamedChild(i)
		switch n.Type() {
		case nodeRuleSet:
			selectors := sitteradapter.ChildOfType(n, nodeSelectors)
			if selectors == nil {
				continue
			}
			out = append(out, protocol.DocumentSymbol{
				Name:           strings.Join(strings.Fields(s.text(selectors)), " "),
				Kind:           protocol.SymbolKindClass,
				Range:          s.rangeOf(n),
				SelectionRange: s.rangeOf(selectors),
				Children:       s.symbolsIn(sitteradapter.ChildOfType(n, nodeBlock)),
			})
		case nodeDeclaration:
			prop := sitteradapter.ChildOfType(n, nodePropertyName)
			if name := s.text(prop); s.isVariable(name) {
				out = append(out, protocol.DocumentSymbol{
					Name:           name,
					Kind:           protocol.SymbolKindVariable,
					Range:          s.rangeOf(n),
					SelectionRange: s.rangeOf(prop),
				})
			}
		case nodeMediaStatement, nodeKeyframes, nodeSupportsStatement, nodeAtRule, nodeImportStatement:
			header := s.text(n)
			if i := strings.IndexAny(header, "{;"); i >= 0 {
				header = header[:i]
			}
			header = strings.Join(strings.Fields(header), " ")
			if header == "" {
				continue
			}
			body := sitteradapter.ChildOfType(n, nodeBlock)
			if body == nil {
				body = sitteradapter.ChildOfType(n, nodeKeyframeBlocks)
			}
			out = append(out, protocol.DocumentSymbol{
				Name:           header,
				Kind:           protocol.SymbolKindModule,
				Range:          s.rangeOf(n),
				SelectionRange: s.rangeOf(n.Child(0)),
				Children:       s.symbolsIn(body),
			})
		}
	}
	return out
}

func (e *Engine) FoldingRanges(req *engine.Request) ([]protocol.FoldingRange, error) {
	s := parsed(req)
	if s == nil {
		return nil, nil
	}
	var ranges []protocol.FoldingRange
	sitteradapter.Walk(s.root(), func(n *sitter.Node) bool {
		start, end := n.StartPoint().Row, n.EndPoint().Row
		switch n.Type() {
		case nodeBlock, nodeKeyframeBlocks:
			// the closing brace stays visible
			if end > start+1 {
				ranges = append(ranges, protocol.FoldingRange{StartLine: start, EndLine: end - 1})
			}
		case nodeComment:
			if end > start {
				kind := string(protocol.FoldingRangeKindComment)
				ranges = append(ranges, protocol.FoldingRange{StartLine: start, EndLine: end, Kind: &kind})
			}
			return false
		}
		return true
	})
	return ranges, nil
}

func (e *Engine) SelectionRanges(req *engine.Request, positions []protocol.Position) ([]*protocol.SelectionRange, error) {
	s := parsed(req)
	if s == nil {
		return nil, nil
	}
	out := make([]*protocol.SelectionRange, len(positions))
	for i, pos := range positions {
		out[i] = s.tree.SelectionRange(req.Document, req.Document.OffsetAt(pos))
	}
	return out, nil
}

func (e *Engine) Colors(req *engine.Request) ([]protocol.ColorInformation, error) {
	s := parsed(req)
	if s == nil {
		return nil, nil
	}
	var colors []protocol.ColorInformation
	sitteradapter.Walk(s.root(), func(n *sitter.Node) bool {
		var (
			c  protocol.Color
			ok bool
		)
		switch n.Type() {
		case nodeColorValue:
			c, ok = parseHexColor(s.text(n))
		case nodeCallExpression:
			name := strings.ToLower(s.text(sitteradapter.ChildOfType(n, nodeFunctionName)))
			c, ok = parseColorFunction(name, s.text(sitteradapter.ChildOfType(n, nodeArguments)))
		default:
			return true
		}
		if !ok {
			return true
		}
		colors = append(colors, protocol.ColorInformation{Range: s.rangeOf(n), Color: c})
		return false
	})
	return colors, nil
}

func (e *Engine) ColorPresentations(req *engine.Request, color protocol.Color, rng protocol.Range) ([]protocol.ColorPresentation, error) {
	c := colorful.Color{R: float64(color.Red), G: float64(color.Green), B: float64(color.Blue)}.Clamped()
	r, g, b := c.RGB255()
	alpha := float64(color.Alpha)
	opaque := alpha >= 1

	var labels []string
	if opaque {
		labels = append(labels, fmt.Sprintf("rgb(%d, %d, %d)", r, g, b))
	} else {
		labels = append(labels, fmt.Sprintf("rgba(%d, %d, %d, %s)", r, g, b, formatAlpha(alpha)))
	}
	if opaque {
		labels = append(labels, c.Hex())
	} else {
		labels = append(labels, fmt.Sprintf("%s%02x", c.Hex(), uint8(math.Round(alpha*255))))
	}
	h, sat, l := c.Hsl()
	if math.IsNaN(h) {
		h = 0
	}
	hsl := fmt.Sprintf("%d, %d%%, %d%%", int(math.Round(h)), int(math.Round(sat*100)), int(math.Round(l*100)))
	if opaque {
		labels = append(labels, "hsl("+hsl+")")
	} else {
		labels = append(labels, "hsla("+hsl+", "+formatAlpha(alpha)+")")
	}

	out := make([]protocol.ColorPresentation, 0, len(labels))
	for _, label := range labels {
		out = append(out, protocol.ColorPresentation{
			Label:    label,
			TextEdit: &protocol.TextEdit{Range: rng, NewText: label},
		})
	}
	return out, nil
}

func formatAlpha(a float64) string {
	return strconv.FormatFloat(math.Round(a*100)/100, 'f', -1, 64)
}

func toProtocol(c colorful.Color, alpha float64) protocol.Color {
	return protocol.Color{
		Red:   protocol.Decimal(c.R),
		Green: protocol.Decimal(c.G),
		Blue:  protocol.Decimal(c.B),
		Alpha: protocol.Decimal(alpha),
	}
}

// parseHexColor reads #rgb, #rgba, #rrggbb and #rrggbbaa.
func parseHexColor(text string) (protocol.Color, bool) {
	hex := strings.TrimPrefix(text, "#")
	switch len(hex) {
	case 3, 4:
		var b strings.Builder
		for i := 0; i < len(hex); i++ {
			b.WriteByte(hex[i])
			b.WriteByte(hex[i])
		}
		hex = b.String()
	case 6, 8:
	default:
		return protocol.Color{}, false
	}
	c, err := colorful.Hex("#" + hex[:6])
	if err != nil {
		return protocol.Color{}, false
	}
	alpha := 1.0
	if len(hex) == 8 {
		a, err := strconv.ParseUint(hex[6:], 16, 8)
		if err != nil {
			return protocol.Color{}, false
		}
		alpha = float64(a) / 255
	}
	return toProtocol(c, alpha), true
}

// parseColorFunction reads rgb(), rgba(), hsl() and hsla() in both the comma
// and the space separated syntax.
func parseColorFunction(name, args string) (protocol.Color, bool) {
	args = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(args), "("), ")")
	fields := strings.FieldsFunc(args, func(r rune) bool {
		return r == ',' || r == '/' || r == ' ' || r == '\t' || r == '\n'
	})
	if len(fields) != 3 && len(fields) != 4 {
		return protocol.Color{}, false
	}
	alpha := 1.0
	if len(fields) == 4 {
		a, ok := component(fields[3], 1)
		if !ok {
			return protocol.Color{}, false
		}
		alpha = clamp01(a)
	}

	switch name {
	case "rgb", "rgba":
		var rgb [3]float64
		for i := range rgb {
			v, ok := component(fields[i], 255)
			if !ok {
				return protocol.Color{}, false
			}
			rgb[i] = clamp01(v / 255)
		}
		return toProtocol(colorful.Color{R: rgb[0], G: rgb[1], B: rgb[2]}, alpha), true
	case "hsl", "hsla":
		h, err := strconv.ParseFloat(strings.TrimSuffix(fields[0], "deg"), 64)
		if err != nil {
			return protocol.Color{}, false
		}
		sat, ok1 := component(fields[1], 1)
		l, ok2 := component(fields[2], 1)
		if !ok1 || !ok2 {
			return protocol.Color{}, false
		}
		h = math.Mod(math.Mod(h, 360)+360, 360)
		return toProtocol(colorful.Hsl(h, clamp01(sat), clamp01(l)).Clamped(), alpha), true
	}
	return protocol.Color{}, false
}

// component parses a number or a percentage of scale.
func component(field string, scale float64) (float64, bool) {
	if pct, ok := strings.CutSuffix(field, "%"); ok {
		v, err := strconv.ParseFloat(pct, 64)
		return v / 100 * scale, err == nil
	}
	v, err := strconv.ParseFloat(field, 64)
	return v, err == nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

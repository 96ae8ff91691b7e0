package engine

import (
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/andybalholm/cascadia"
	cssast "github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"calmpage/palette"
)

// StyleFetcher loads an imported stylesheet; ok is false on any failure.
type StyleFetcher func(absURL string) (body []byte, ok bool)

// WithStyleFetcher lets @import rules pull in remote stylesheets.
func WithStyleFetcher(f StyleFetcher) Option {
	return func(d *Document) { d.fetchStyle = f }
}

const (
	maxImportDepth  = 16
	maxImportBudget = 16
	defaultViewW    = 1280
	defaultViewH    = 800
)

type propState struct {
	val       string
	spec      cascadia.Specificity
	order     int
	important bool
}

type cssRule struct {
	selector     cascadia.Sel
	specificity  cascadia.Specificity
	declarations []declaration
	order        int
}

// Stylesheet is the flattened rule list of every sheet applying to a
// document, in cascade order.
type Stylesheet struct {
	rules []cssRule
}

func (s *Stylesheet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

type cssParseContext struct {
	baseURL string
	width   int
	height  int
	fetch   StyleFetcher
	depth   int
	visited map[string]struct{}
	budget  *int
}

func (ctx *cssParseContext) child(newBase string) *cssParseContext {
	next := *ctx
	next.baseURL = newBase
	next.depth = ctx.depth + 1
	return &next
}

// AddStylesheet appends an external sheet (already fetched by the host) to
// the cascade, after the document's own <style> elements.
func (d *Document) AddStylesheet(css string) {
	d.extraCSS = append(d.extraCSS, css)
	d.sheetDirty = true
}

// Stylesheet returns the cascade, rebuilding it when a style element or
// linked sheet changed.
func (d *Document) Stylesheet() *Stylesheet {
	if d.sheet != nil && !d.sheetDirty {
		return d.sheet
	}
	d.sheet = d.buildStylesheet()
	d.sheetDirty = false
	return d.sheet
}

func (d *Document) buildStylesheet() *Stylesheet {
	w, h := defaultViewW, defaultViewH
	if d.layout != nil {
		if vp := d.layout.Viewport(); vp.W > 0 && vp.H > 0 {
			w, h = int(vp.W), int(vp.H)
		}
	}
	budget := maxImportBudget
	ctx := &cssParseContext{
		baseURL: d.baseURL,
		width:   w,
		height:  h,
		fetch:   d.fetchStyle,
		visited: map[string]struct{}{},
		budget:  &budget,
	}
	ss := &Stylesheet{}
	order := 0
	for _, n := range Elements(d.root) {
		if n.DataAtom != atom.Style {
			continue
		}
		if media := Attr(n, "media"); media != "" && !mediaRuleActive(media, ctx) {
			continue
		}
		rs, ord := parseCSSText(TextContent(n), order, ctx)
		ss.rules = append(ss.rules, rs...)
		order = ord
	}
	for _, css := range d.extraCSS {
		rs, ord := parseCSSText(css, order, ctx)
		ss.rules = append(ss.rules, rs...)
		order = ord
	}
	return ss
}

func parseCSSText(txt string, startOrder int, ctx *cssParseContext) ([]cssRule, int) {
	trimmed := strings.TrimSpace(txt)
	if trimmed == "" || ctx.depth >= maxImportDepth {
		return nil, startOrder
	}
	sheet, err := parser.Parse(trimmed)
	if err != nil {
		return nil, startOrder
	}
	rules := make([]cssRule, 0, len(sheet.Rules)*2)
	order := startOrder

	var walk func([]*cssast.Rule)
	walk = func(list []*cssast.Rule) {
		for _, rule := range list {
			if rule == nil {
				continue
			}
			switch rule.Kind {
			case cssast.AtRule:
				switch strings.ToLower(strings.TrimSpace(rule.Name)) {
				case "@media":
					if mediaRuleActive(rule.Prelude, ctx) {
						walk(rule.Rules)
					}
				case "@supports":
					walk(rule.Rules)
				case "@import":
					rs, ord := importRules(rule.Prelude, order, ctx)
					rules = append(rules, rs...)
					order = ord
				default:
					if rule.EmbedsRules() {
						walk(rule.Rules)
					}
				}
			case cssast.QualifiedRule:
				decls := convertDeclarations(rule.Declarations)
				if len(decls) == 0 || len(rule.Selectors) == 0 {
					continue
				}
				group, err := cascadia.ParseGroup(strings.Join(rule.Selectors, ","))
				if err != nil {
					continue
				}
				for _, sel := range group {
					if sel == nil || sel.PseudoElement() != "" {
						continue
					}
					rules = append(rules, cssRule{selector: sel, specificity: sel.Specificity(), declarations: decls, order: order})
					order++
				}
			}
		}
	}
	walk(sheet.Rules)
	return rules, order
}

func importRules(prelude string, order int, ctx *cssParseContext) ([]cssRule, int) {
	if ctx.fetch == nil {
		return nil, order
	}
	target, media := extractImportTarget(prelude)
	if target == "" || (media != "" && !mediaRuleActive(media, ctx)) {
		return nil, order
	}
	abs := resolveAbsURL(ctx.baseURL, target)
	if abs == "" {
		abs = target
	}
	if _, seen := ctx.visited[abs]; seen {
		return nil, order
	}
	ctx.visited[abs] = struct{}{}
	if *ctx.budget <= 0 {
		return nil, order
	}
	*ctx.budget--
	body, ok := ctx.fetch(abs)
	if !ok {
		return nil, order
	}
	return parseCSSText(string(body), order, ctx.child(abs))
}

func convertDeclarations(list []*cssast.Declaration) []declaration {
	out := make([]declaration, 0, len(list))
	for _, decl := range list {
		if decl == nil {
			continue
		}
		prop := strings.ToLower(strings.TrimSpace(decl.Property))
		val := strings.TrimSpace(decl.Value)
		if prop == "" || val == "" {
			continue
		}
		out = append(out, declaration{property: prop, value: val, important: decl.Important})
	}
	return out
}

func extractImportTarget(prelude string) (string, string) {
	s := strings.TrimSpace(prelude)
	if s == "" {
		return "", ""
	}
	if strings.HasPrefix(strings.ToLower(s), "url(") {
		end := strings.Index(s, ")")
		if end == -1 {
			return "", ""
		}
		return trimCSSString(s[4:end]), strings.TrimSpace(s[end+1:])
	}
	if (s[0] == '"' || s[0] == '\'') && len(s) > 1 {
		if idx := strings.IndexByte(s[1:], s[0]); idx != -1 {
			return s[1 : idx+1], strings.TrimSpace(s[idx+2:])
		}
	}
	fields := strings.Fields(s)
	return trimCSSString(fields[0]), strings.TrimSpace(strings.TrimPrefix(s, fields[0]))
}

func trimCSSString(v string) string {
	vv := strings.TrimSpace(v)
	if len(vv) >= 2 {
		if (vv[0] == '"' && vv[len(vv)-1] == '"') || (vv[0] == '\'' && vv[len(vv)-1] == '\'') {
			return vv[1 : len(vv)-1]
		}
	}
	return vv
}

func resolveAbsURL(base, href string) string {
	hu, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if base == "" {
		if hu.IsAbs() {
			return hu.String()
		}
		return ""
	}
	bu, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return bu.ResolveReference(hu).String()
}

func mediaRuleActive(prelude string, ctx *cssParseContext) bool {
	if strings.TrimSpace(prelude) == "" {
		return true
	}
	for _, raw := range strings.Split(prelude, ",") {
		query := strings.ToLower(strings.TrimSpace(raw))
		if query == "" {
			continue
		}
		mediaType := ""
		rest := query
		if parts := strings.Fields(query); len(parts) > 0 && !strings.HasPrefix(parts[0], "(") {
			mediaType = parts[0]
			rest = strings.TrimSpace(strings.TrimPrefix(query, mediaType))
			rest = strings.TrimSpace(strings.TrimPrefix(rest, "and"))
		}
		switch mediaType {
		case "", "all", "screen", "only":
			if evaluateMediaFeatures(rest, ctx) {
				return true
			}
		}
	}
	return false
}

func evaluateMediaFeatures(expr string, ctx *cssParseContext) bool {
	width, height := ctx.width, ctx.height
	for _, clause := range strings.Split(expr, " and ") {
		c := strings.TrimSpace(clause)
		if strings.HasPrefix(c, "screen") {
			continue
		}
		c = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(c, "("), ")"))
		if c == "" {
			continue
		}
		parts := strings.SplitN(c, ":", 2)
		feature := strings.TrimSpace(parts[0])
		value := ""
		if len(parts) == 2 {
			value = strings.TrimSpace(parts[1])
		}
		switch feature {
		case "orientation":
			orientation := "portrait"
			if width > height {
				orientation = "landscape"
			}
			if value != "" && value != orientation {
				return false
			}
		case "min-width":
			if px, ok := cssLengthToPx(value, width); ok && width < px {
				return false
			}
		case "max-width":
			if px, ok := cssLengthToPx(value, width); ok && width > px {
				return false
			}
		case "min-height":
			if px, ok := cssLengthToPx(value, height); ok && height < px {
				return false
			}
		case "max-height":
			if px, ok := cssLengthToPx(value, height); ok && height > px {
				return false
			}
		case "prefers-color-scheme":
			if value != "" && value != "light" {
				return false
			}
		case "prefers-reduced-motion":
			if value != "" && value != "reduce" {
				return false
			}
		}
	}
	return true
}

func cssLengthToPx(val string, base int) (int, bool) {
	v := strings.ToLower(strings.TrimSpace(val))
	num := func(s string) (float64, bool) {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	switch {
	case v == "":
		return 0, false
	case strings.HasSuffix(v, "px"):
		if f, ok := num(v[:len(v)-2]); ok {
			return int(f + 0.5), true
		}
	case strings.HasSuffix(v, "rem"):
		if f, ok := num(v[:len(v)-3]); ok {
			return int(f*16 + 0.5), true
		}
	case strings.HasSuffix(v, "em"):
		if f, ok := num(v[:len(v)-2]); ok {
			return int(f*16 + 0.5), true
		}
	case strings.HasSuffix(v, "%"), strings.HasSuffix(v, "vw"), strings.HasSuffix(v, "vh"):
		unit := 2
		if strings.HasSuffix(v, "%") {
			unit = 1
		}
		if f, ok := num(v[:len(v)-unit]); ok && base > 0 {
			return int(float64(base) * f / 100), true
		}
	default:
		if f, ok := num(v); ok {
			return int(f + 0.5), true
		}
	}
	return 0, false
}

var inlineSpecificity = cascadia.Specificity{1 << 12, 0, 0}

// ComputedStyle resolves the declarations that apply to n from the
// document cascade and its inline style. Properties are not inherited.
func (d *Document) ComputedStyle(n *html.Node) map[string]string {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	props := map[string]propState{}
	for _, rule := range d.Stylesheet().rules {
		if !rule.selector.Match(n) {
			continue
		}
		for _, decl := range rule.declarations {
			applyDeclaration(props, decl, rule.specificity, rule.order)
		}
	}
	for i, decl := range parseInlineStyle(Attr(n, "style")) {
		applyDeclaration(props, decl, inlineSpecificity, (1<<30)+i)
	}
	out := make(map[string]string, len(props))
	for k, st := range props {
		out[k] = st.val
	}
	return out
}

// ComputedValue is ComputedStyle for one property.
func (d *Document) ComputedValue(n *html.Node, prop string) string {
	return d.ComputedStyle(n)[strings.ToLower(prop)]
}

func applyDeclaration(store map[string]propState, decl declaration, spec cascadia.Specificity, order int) {
	prop := decl.property
	value := decl.value
	if prop == "background" {
		if hasImage(value) {
			applyDeclaration(store, declaration{property: "background-image", value: value, important: decl.important}, spec, order)
		}
		if col := extractColorFromValue(value); col != "" {
			prop = "background-color"
			value = col
		} else {
			return
		}
	}
	entry := propState{val: value, spec: spec, order: order, important: decl.important}
	prev, ok := store[prop]
	switch {
	case !ok:
		store[prop] = entry
	case prev.important && !decl.important:
	case decl.important && !prev.important:
		store[prop] = entry
	case prev.spec.Less(spec):
		store[prop] = entry
	case spec.Less(prev.spec):
	case order >= prev.order:
		store[prop] = entry
	}
}

func hasImage(value string) bool {
	lower := strings.ToLower(value)
	return strings.Contains(lower, "url(") || strings.Contains(lower, "gradient(")
}

func extractColorFromValue(input string) string {
	s := strings.TrimSpace(strings.ToLower(input))
	if !strings.ContainsAny(s, " (") && (strings.HasPrefix(s, "#") || s == "white" || s == "black") {
		return palette.NormalizeHex(s)
	}
	cleaned := stripFunctions(s, "url", "linear-gradient", "radial-gradient")
	for _, kw := range []string{"rgba(", "rgb("} {
		if idx := strings.Index(cleaned, kw); idx != -1 {
			if end := strings.IndexByte(cleaned[idx:], ')'); end != -1 {
				if hex := palette.NormalizeHex(cleaned[idx : idx+end+1]); hex != "" {
					return hex
				}
			}
		}
	}
	for _, part := range strings.FieldsFunc(cleaned, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == '/'
	}) {
		if strings.HasPrefix(part, "#") || part == "white" || part == "black" {
			if hex := palette.NormalizeHex(part); hex != "" {
				return hex
			}
		}
	}
	return ""
}

func stripFunctions(s string, names ...string) string {
	var b strings.Builder
	i := 0
	for i < len(s) {
		matched := false
		for _, name := range names {
			if !strings.HasPrefix(s[i:], name+"(") {
				continue
			}
			matched = true
			depth := 0
			j := i
			for j < len(s) {
				if s[j] == '(' {
					depth++
				} else if s[j] == ')' {
					depth--
					if depth == 0 {
						j++
						break
					}
				}
				j++
			}
			i = j
			break
		}
		if !matched {
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String()
}

// IsHidden reports whether n or an ancestor is removed from rendering or
// fully transparent.
func (d *Document) IsHidden(n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		if HasAttr(cur, "hidden") {
			return true
		}
		style := d.ComputedStyle(cur)
		if strings.TrimSpace(style["display"]) == "none" {
			return true
		}
		switch strings.TrimSpace(style["visibility"]) {
		case "hidden", "collapse":
			return true
		}
		if op, ok := style["opacity"]; ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(op), 64); err == nil && f <= 0 {
				return true
			}
		}
	}
	return false
}

package engine

import (
	"strings"

	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
)

type declaration struct {
	property  string
	value     string
	important bool
}

func (d declaration) String() string {
	if d.important {
		return d.property + ": " + d.value + " !important"
	}
	return d.property + ": " + d.value
}

func parseInlineStyle(inline string) []declaration {
	inline = strings.TrimSpace(inline)
	if inline == "" {
		return nil
	}
	src := inline
	if !strings.HasSuffix(src, ";") {
		src += ";"
	}
	if decls, err := parser.ParseDeclarations(src); err == nil {
		out := make([]declaration, 0, len(decls))
		for _, d := range decls {
			if d == nil {
				continue
			}
			prop := strings.ToLower(strings.TrimSpace(d.Property))
			val := strings.TrimSpace(d.Value)
			if prop == "" || val == "" {
				continue
			}
			out = append(out, declaration{property: prop, value: val, important: d.Important})
		}
		return out
	}
	var out []declaration
	for _, part := range strings.Split(inline, ";") {
		kv := strings.SplitN(part, ":", 2)
		if len(kv) != 2 {
			continue
		}
		prop := strings.ToLower(strings.TrimSpace(kv[0]))
		val, important := splitImportant(kv[1])
		if prop == "" || val == "" {
			continue
		}
		out = append(out, declaration{property: prop, value: val, important: important})
	}
	return out
}

func splitImportant(value string) (string, bool) {
	v := strings.TrimSpace(value)
	lower := strings.ToLower(v)
	if i := strings.LastIndex(lower, "!important"); i != -1 && strings.TrimSpace(lower[i+len("!important"):]) == "" {
		return strings.TrimSpace(v[:i]), true
	}
	return v, false
}

func formatInlineStyle(decls []declaration) string {
	parts := make([]string, len(decls))
	for i, d := range decls {
		parts[i] = d.String()
	}
	return strings.Join(parts, "; ")
}

// Style returns the inline value of prop, without any !important flag.
func Style(n *html.Node, prop string) string {
	v, _ := LookupStyle(n, prop)
	v, _ = splitImportant(v)
	return v
}

// LookupStyle reports the inline declaration of prop, if any, formatted
// with its priority so it can be written back verbatim.
func LookupStyle(n *html.Node, prop string) (string, bool) {
	prop = strings.ToLower(strings.TrimSpace(prop))
	for _, d := range parseInlineStyle(Attr(n, "style")) {
		if d.property == prop {
			if d.important {
				return d.value + " !important", true
			}
			return d.value, true
		}
	}
	return "", false
}

// SetStyle writes one inline declaration; value may end in !important.
func (d *Document) SetStyle(n *html.Node, prop, value string) {
	if n == nil || n.Type != html.ElementNode {
		return
	}
	prop = strings.ToLower(strings.TrimSpace(prop))
	val, important := splitImportant(value)
	if prop == "" {
		return
	}
	if val == "" {
		d.RemoveStyle(n, prop)
		return
	}
	decls := parseInlineStyle(Attr(n, "style"))
	next := declaration{property: prop, value: val, important: important}
	found := false
	for i := range decls {
		if decls[i].property == prop {
			decls[i] = next
			found = true
		}
	}
	if !found {
		decls = append(decls, next)
	}
	d.SetAttr(n, "style", formatInlineStyle(decls))
}

// RemoveStyle drops prop from the inline style; an emptied style attribute
// is removed entirely.
func (d *Document) RemoveStyle(n *html.Node, prop string) {
	if n == nil {
		return
	}
	prop = strings.ToLower(strings.TrimSpace(prop))
	decls := parseInlineStyle(Attr(n, "style"))
	keep := decls[:0]
	for _, decl := range decls {
		if decl.property != prop {
			keep = append(keep, decl)
		}
	}
	if len(keep) == len(decls) {
		return
	}
	if len(keep) == 0 {
		d.RemoveAttr(n, "style")
		return
	}
	d.SetAttr(n, "style", formatInlineStyle(keep))
}

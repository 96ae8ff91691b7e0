package engine

import (
	"encoding/json"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

const (
	markerPrefix = "data-calm-"
	absentValue  = "calm:absent"
)

type fieldKind int

const (
	styleField fieldKind = iota
	attrField
	textField
)

// Field names one piece of element state the ledger can snapshot.
type Field struct {
	kind fieldKind
	name string
}

// StyleField names one inline style property.
func StyleField(prop string) Field {
	return Field{kind: styleField, name: strings.ToLower(strings.TrimSpace(prop))}
}

// AttrField names one attribute.
func AttrField(name string) Field {
	return Field{kind: attrField, name: strings.ToLower(strings.TrimSpace(name))}
}

// TextField snapshots every descendant text node of an element.
var TextField = Field{kind: textField, name: "text"}

func (f Field) key() string {
	switch f.kind {
	case styleField:
		return "style-" + f.name
	case attrField:
		return "attr-" + f.name
	}
	return "text"
}

func fieldFromKey(key string) (Field, bool) {
	switch {
	case key == "text":
		return TextField, true
	case strings.HasPrefix(key, "style-"):
		return StyleField(strings.TrimPrefix(key, "style-")), true
	case strings.HasPrefix(key, "attr-"):
		return AttrField(strings.TrimPrefix(key, "attr-")), true
	}
	return Field{}, false
}

// Ledger records original element state under namespaced marker
// attributes so that every change it makes can be undone exactly. Modules
// mutate tracked state only through the ledger's setters, which capture
// before they write.
type Ledger struct {
	doc *Document
	ns  string
}

// NewLedger returns a ledger whose markers live under namespace.
func NewLedger(doc *Document, namespace string) *Ledger {
	return &Ledger{doc: doc, ns: namespace}
}

func (l *Ledger) Namespace() string { return l.ns }

func (l *Ledger) origPrefix() string { return markerPrefix + l.ns + "-orig-" }

// DoneAttr is the processed marker of this namespace.
func (l *Ledger) DoneAttr() string { return markerPrefix + l.ns + "-done" }

func (l *Ledger) markerFor(f Field) string { return l.origPrefix() + f.key() }

// rawStyleMarker holds the style attribute text as it was before the first
// style property was captured.
func (l *Ledger) rawStyleMarker() string { return l.origPrefix() + "style" }

// Captured reports whether f already has a snapshot on n.
func (l *Ledger) Captured(n *html.Node, f Field) bool {
	return HasAttr(n, l.markerFor(f))
}

// Capture stores the current value of each field not yet recorded on n.
// Fields already recorded keep their first snapshot.
func (l *Ledger) Capture(n *html.Node, fields ...Field) {
	if n == nil || n.Type != html.ElementNode {
		return
	}
	for _, f := range fields {
		marker := l.markerFor(f)
		if HasAttr(n, marker) {
			continue
		}
		if f.kind == styleField && !HasAttr(n, l.rawStyleMarker()) {
			raw, ok := LookupAttr(n, "style")
			if !ok {
				raw = absentValue
			}
			l.doc.SetAttr(n, l.rawStyleMarker(), raw)
		}
		l.doc.SetAttr(n, marker, currentValue(n, f))
	}
}

func currentValue(n *html.Node, f Field) string {
	switch f.kind {
	case styleField:
		if v, ok := LookupStyle(n, f.name); ok {
			return v
		}
		return absentValue
	case attrField:
		if v, ok := LookupAttr(n, f.name); ok {
			return v
		}
		return absentValue
	}
	var texts []string
	for _, t := range TextNodes(n) {
		texts = append(texts, t.Data)
	}
	b, err := json.Marshal(texts)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// Restore writes every recorded field of n back and clears this
// namespace's markers from it.
func (l *Ledger) Restore(n *html.Node) {
	if n == nil || n.Type != html.ElementNode {
		return
	}
	prefix := l.origPrefix()
	type snapshot struct {
		marker string
		field  Field
		value  string
	}
	var snaps []snapshot
	for _, a := range n.Attr {
		if !strings.HasPrefix(a.Key, prefix) {
			continue
		}
		if f, ok := fieldFromKey(strings.TrimPrefix(a.Key, prefix)); ok {
			snaps = append(snaps, snapshot{marker: a.Key, field: f, value: a.Val})
		}
	}
	// Whole-attribute snapshots go after style properties so a captured
	// style attribute wins; text goes last.
	sort.SliceStable(snaps, func(i, j int) bool { return snaps[i].field.kind < snaps[j].field.kind })
	for _, s := range snaps {
		l.write(n, s.field, s.value)
		l.doc.RemoveAttr(n, s.marker)
	}
	if raw, ok := LookupAttr(n, l.rawStyleMarker()); ok {
		l.restoreRawStyle(n, raw)
		l.doc.RemoveAttr(n, l.rawStyleMarker())
	}
	l.doc.RemoveAttr(n, l.DoneAttr())
}

// restoreRawStyle puts the original style text back when the restored
// declarations match it, so spacing and ordering survive a round trip.
// Declarations still owned by another namespace keep the rewritten form.
func (l *Ledger) restoreRawStyle(n *html.Node, raw string) {
	if raw == absentValue {
		return
	}
	cur, ok := LookupAttr(n, "style")
	if ok && cur == raw {
		return
	}
	if formatInlineStyle(parseInlineStyle(cur)) != formatInlineStyle(parseInlineStyle(raw)) {
		return
	}
	l.doc.SetAttr(n, "style", raw)
}

func (l *Ledger) write(n *html.Node, f Field, value string) {
	switch f.kind {
	case styleField:
		if value == absentValue {
			l.doc.RemoveStyle(n, f.name)
		} else {
			l.doc.SetStyle(n, f.name, value)
		}
	case attrField:
		if value == absentValue {
			l.doc.RemoveAttr(n, f.name)
		} else {
			l.doc.SetAttr(n, f.name, value)
		}
	case textField:
		var texts []string
		if err := json.Unmarshal([]byte(value), &texts); err != nil {
			l.doc.Logger().Printf("LEDGER: bad text snapshot on <%s>: %v", n.Data, err)
			return
		}
		l.writeTexts(n, texts)
	}
}

func (l *Ledger) writeTexts(n *html.Node, texts []string) {
	nodes := TextNodes(n)
	if len(nodes) != len(texts) {
		l.doc.SetText(n, strings.Join(texts, ""))
		return
	}
	for i, t := range nodes {
		l.doc.SetData(t, texts[i])
	}
}

// Tracked lists root and its descendants carrying any marker of this
// namespace, in document order.
func (l *Ledger) Tracked(root *html.Node) []*html.Node {
	var out []*html.Node
	for _, n := range Elements(root) {
		if l.Touched(n) {
			out = append(out, n)
		}
	}
	return out
}

// RestoreAll restores every tracked element under root and returns how
// many there were.
func (l *Ledger) RestoreAll(root *html.Node) int {
	tracked := l.Tracked(root)
	for _, n := range tracked {
		l.Restore(n)
	}
	return len(tracked)
}

// Touched reports whether n itself carries any marker of this namespace.
func (l *Ledger) Touched(n *html.Node) bool {
	if n == nil {
		return false
	}
	prefix := markerPrefix + l.ns + "-"
	for _, a := range n.Attr {
		if strings.HasPrefix(a.Key, prefix) {
			return true
		}
	}
	return false
}

func (l *Ledger) MarkDone(n *html.Node) { l.doc.SetAttr(n, l.DoneAttr(), "1") }

func (l *Ledger) IsDone(n *html.Node) bool { return HasAttr(n, l.DoneAttr()) }

// SetStyle captures prop and then writes it.
func (l *Ledger) SetStyle(n *html.Node, prop, value string) {
	l.Capture(n, StyleField(prop))
	l.doc.SetStyle(n, prop, value)
}

func (l *Ledger) RemoveStyle(n *html.Node, prop string) {
	l.Capture(n, StyleField(prop))
	l.doc.RemoveStyle(n, prop)
}

func (l *Ledger) SetAttr(n *html.Node, key, value string) {
	l.Capture(n, AttrField(key))
	l.doc.SetAttr(n, key, value)
}

func (l *Ledger) RemoveAttr(n *html.Node, key string) {
	l.Capture(n, AttrField(key))
	l.doc.RemoveAttr(n, key)
}

// SetTexts captures the text of n and rewrites its text nodes one by one,
// keeping the markup around them. A count mismatch collapses n to a single
// text node.
func (l *Ledger) SetTexts(n *html.Node, texts []string) {
	l.Capture(n, TextField)
	l.writeTexts(n, texts)
}

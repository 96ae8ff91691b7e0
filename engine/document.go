// Package engine is the reactive transformation engine: a live document with
// mutation observers and events, a ledger of original values, hover and
// click media gates, the reconciliation loop and the mode controller that
// composes them.
package engine

import (
	"bytes"
	"context"
	"io"
	"log"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Option configures a Document.
type Option func(*Document)

// WithLogger sets the logger used for degraded paths.
func WithLogger(l *log.Logger) Option {
	return func(d *Document) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithLayout attaches a geometry provider for overlap detection.
func WithLayout(l Layout) Option {
	return func(d *Document) { d.layout = l }
}

// WithBaseURL records the URL the document was loaded from.
func WithBaseURL(u string) Option {
	return func(d *Document) { d.baseURL = u }
}

// Document is a parsed HTML tree that behaves like a live page: every change
// made through its methods is reported to observers, events bubble to
// listeners, and asynchronous work resumes on the owning goroutine through
// Settle. A Document is not safe for concurrent use apart from Async.
type Document struct {
	root    *html.Node
	baseURL string
	logger  *log.Logger
	layout  Layout

	mutations uint64
	observers []*Observer
	flushing  bool

	listeners    map[*html.Node][]*listener
	nextListener uint64

	sheet      *Stylesheet
	sheetDirty bool
	extraCSS   []string
	fetchStyle StyleFetcher

	mu       sync.Mutex
	queue    []func()
	inflight int
	wake     chan struct{}
}

// Parse reads an HTML document.
func Parse(r io.Reader, opts ...Option) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return NewDocument(root, opts...), nil
}

// ParseString is Parse for an in-memory page.
func ParseString(s string, opts ...Option) (*Document, error) {
	return Parse(strings.NewReader(s), opts...)
}

// NewDocument wraps an already parsed tree.
func NewDocument(root *html.Node, opts ...Option) *Document {
	d := &Document{
		root:       root,
		logger:     log.Default(),
		listeners:  map[*html.Node][]*listener{},
		sheetDirty: true,
		wake:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Document) Root() *html.Node    { return d.root }
func (d *Document) BaseURL() string     { return d.baseURL }
func (d *Document) Logger() *log.Logger { return d.logger }
func (d *Document) Layout() Layout      { return d.layout }

// SetLayout swaps the geometry provider, e.g. after a browser measured the page.
func (d *Document) SetLayout(l Layout) { d.layout = l }

// Mutations counts every change applied since the document was created.
func (d *Document) Mutations() uint64 { return d.mutations }

// DocumentElement returns the <html> element.
func (d *Document) DocumentElement() *html.Node {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Html {
			return c
		}
	}
	if d.root.Type == html.ElementNode {
		return d.root
	}
	return nil
}

func (d *Document) Head() *html.Node { return d.childOfHTML(atom.Head) }
func (d *Document) Body() *html.Node { return d.childOfHTML(atom.Body) }

func (d *Document) childOfHTML(a atom.Atom) *html.Node {
	top := d.DocumentElement()
	if top == nil {
		return nil
	}
	for c := top.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return c
		}
	}
	return nil
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// OuterHTML renders a single node.
func OuterHTML(n *html.Node) string {
	if n == nil {
		return ""
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}

// IsAttached reports whether n is still reachable from the document root.
func (d *Document) IsAttached(n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == d.root {
			return true
		}
	}
	return false
}

// CreateElement builds a detached element. kv lists attribute key/value pairs.
func (d *Document) CreateElement(tag string, kv ...string) *html.Node {
	tag = strings.ToLower(tag)
	n := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	for i := 0; i+1 < len(kv); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: kv[i], Val: kv[i+1]})
	}
	return n
}

func (d *Document) CreateText(text string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: text}
}

// AppendChild moves child to the end of parent.
func (d *Document) AppendChild(parent, child *html.Node) {
	d.InsertBefore(parent, child, nil)
}

// InsertBefore moves child under parent before ref; a nil ref appends.
func (d *Document) InsertBefore(parent, child, ref *html.Node) {
	if parent == nil || child == nil || child == ref {
		return
	}
	if child.Parent != nil {
		d.RemoveNode(child)
	}
	if ref != nil && ref.Parent != parent {
		ref = nil
	}
	parent.InsertBefore(child, ref)
	d.record(MutationRecord{Kind: ChildList, Target: parent, Added: []*html.Node{child}})
}

// InsertAfter places child right after ref.
func (d *Document) InsertAfter(ref, child *html.Node) {
	if ref == nil || ref.Parent == nil {
		return
	}
	next := ref.NextSibling
	if next == child {
		return
	}
	d.InsertBefore(ref.Parent, child, next)
}

// RemoveNode detaches n; detached nodes are ignored.
func (d *Document) RemoveNode(n *html.Node) {
	if n == nil || n.Parent == nil {
		return
	}
	parent := n.Parent
	parent.RemoveChild(n)
	d.record(MutationRecord{Kind: ChildList, Target: parent, Removed: []*html.Node{n}})
}

// ReplaceWith puts repl where old was and detaches old.
func (d *Document) ReplaceWith(old, repl *html.Node) {
	if old == nil || repl == nil || old == repl || old.Parent == nil {
		return
	}
	if repl.Parent != nil {
		d.RemoveNode(repl)
	}
	parent := old.Parent
	parent.InsertBefore(repl, old)
	parent.RemoveChild(old)
	d.record(MutationRecord{
		Kind:    ChildList,
		Target:  parent,
		Added:   []*html.Node{repl},
		Removed: []*html.Node{old},
	})
}

// SetAttr writes an attribute; writing the current value is not a mutation.
func (d *Document) SetAttr(n *html.Node, key, val string) {
	if n == nil || n.Type != html.ElementNode {
		return
	}
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			old := n.Attr[i].Val
			if old == val {
				return
			}
			n.Attr[i].Val = val
			d.record(MutationRecord{Kind: Attributes, Target: n, Attribute: key, OldValue: old, HadValue: true})
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	d.record(MutationRecord{Kind: Attributes, Target: n, Attribute: key})
}

func (d *Document) RemoveAttr(n *html.Node, key string) {
	if n == nil {
		return
	}
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			old := n.Attr[i].Val
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			d.record(MutationRecord{Kind: Attributes, Target: n, Attribute: key, OldValue: old, HadValue: true})
			return
		}
	}
}

// SetText replaces every child of n with a single text node.
func (d *Document) SetText(n *html.Node, text string) {
	if n == nil {
		return
	}
	if n.Type == html.TextNode {
		d.SetData(n, text)
		return
	}
	var removed []*html.Node
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		removed = append(removed, c)
		c = next
	}
	var added []*html.Node
	if text != "" {
		t := d.CreateText(text)
		n.AppendChild(t)
		added = append(added, t)
	}
	if len(removed) == 0 && len(added) == 0 {
		return
	}
	d.record(MutationRecord{Kind: ChildList, Target: n, Added: added, Removed: removed})
}

// SetData rewrites a text node in place.
func (d *Document) SetData(n *html.Node, text string) {
	if n == nil || n.Type != html.TextNode || n.Data == text {
		return
	}
	old := n.Data
	n.Data = text
	d.record(MutationRecord{Kind: CharacterData, Target: n, OldValue: old, HadValue: true})
}

// SetInnerHTML parses fragment in the context of n and replaces its children.
func (d *Document) SetInnerHTML(n *html.Node, fragment string) error {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), n)
	if err != nil {
		return err
	}
	d.SetText(n, "")
	for _, c := range nodes {
		d.AppendChild(n, c)
	}
	return nil
}

// AddClass, RemoveClass and HasClass treat the class attribute as a set.
func (d *Document) AddClass(n *html.Node, class string) {
	if HasClass(n, class) {
		return
	}
	cur := strings.TrimSpace(Attr(n, "class"))
	if cur != "" {
		cur += " "
	}
	d.SetAttr(n, "class", cur+class)
}

func (d *Document) RemoveClass(n *html.Node, class string) {
	if !HasClass(n, class) {
		return
	}
	var keep []string
	for _, c := range strings.Fields(Attr(n, "class")) {
		if c != class {
			keep = append(keep, c)
		}
	}
	if len(keep) == 0 {
		d.RemoveAttr(n, "class")
		return
	}
	d.SetAttr(n, "class", strings.Join(keep, " "))
}

// ToggleClass adds or removes class according to on.
func (d *Document) ToggleClass(n *html.Node, class string, on bool) {
	if on {
		d.AddClass(n, class)
	} else {
		d.RemoveClass(n, class)
	}
}

func HasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(Attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// Attr returns the value of key on n, or "".
func Attr(n *html.Node, key string) string {
	v, _ := LookupAttr(n, key)
	return v
}

func LookupAttr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func HasAttr(n *html.Node, key string) bool {
	_, ok := LookupAttr(n, key)
	return ok
}

// IsElement reports whether n is an element with one of the given tags.
func IsElement(n *html.Node, tags ...string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if len(tags) == 0 {
		return true
	}
	for _, t := range tags {
		if strings.EqualFold(n.Data, t) {
			return true
		}
	}
	return false
}

// Contains reports whether b is a or one of its descendants.
func Contains(a, b *html.Node) bool {
	for cur := b; cur != nil; cur = cur.Parent {
		if cur == a {
			return true
		}
	}
	return false
}

// TextContent concatenates every descendant text node.
func TextContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.TextNode {
			b.WriteString(cur.Data)
			return
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if n != nil {
		walk(n)
	}
	return b.String()
}

// VisibleText is TextContent without script, style and template bodies,
// with whitespace collapsed.
func VisibleText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		switch cur.Type {
		case html.TextNode:
			if s := strings.TrimSpace(cur.Data); s != "" {
				parts = append(parts, s)
			}
			return
		case html.ElementNode:
			switch cur.DataAtom {
			case atom.Script, atom.Style, atom.Template, atom.Noscript:
				return
			}
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if n != nil {
		walk(n)
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// TextNodes lists the descendant text nodes of n in document order.
func TextNodes(n *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.TextNode {
			out = append(out, cur)
			return
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if n != nil {
		walk(n)
	}
	return out
}

// CloneNode deep-copies n into a detached tree.
func CloneNode(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.AppendChild(CloneNode(ch))
	}
	return c
}

// Elements lists root and its element descendants in document order.
func Elements(root *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}

// Async runs work off the document goroutine. The function it returns, if
// any, is queued and later executed by Settle on the owning goroutine.
func (d *Document) Async(work func() func()) {
	d.mu.Lock()
	d.inflight++
	d.mu.Unlock()
	go func() {
		var cont func()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Printf("ASYNC: task panicked: %v", r)
				cont = nil
			}
			d.mu.Lock()
			d.inflight--
			if cont != nil {
				d.queue = append(d.queue, cont)
			}
			d.mu.Unlock()
			select {
			case d.wake <- struct{}{}:
			default:
			}
		}()
		cont = work()
	}()
}

// Pending reports queued continuations plus tasks still running.
func (d *Document) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue) + d.inflight
}

// Settle runs queued continuations until no asynchronous work is left or ctx
// is done. Observers are flushed after every continuation.
func (d *Document) Settle(ctx context.Context) error {
	for {
		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		running := d.inflight
		d.mu.Unlock()

		for _, fn := range batch {
			fn()
			d.Flush()
		}
		if len(batch) > 0 {
			continue
		}
		if running == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.wake:
		}
	}
}

package engine

import (
	"golang.org/x/net/html"
)

// Detector inspects one element and transforms it when it qualifies,
// reporting whether it acted. A detector must recognise elements it has
// already processed and leave them alone; the loop relies on that to
// converge when it observes its own changes.
type Detector func(n *html.Node) bool

// Loop sweeps detectors over a subtree once and then over every subtree
// later inserted under it.
type Loop struct {
	doc       *Document
	name      string
	root      *html.Node
	detectors []Detector
	observer  *Observer
	applied   int
}

// NewLoop returns a stopped loop; name only appears in log lines.
func NewLoop(doc *Document, name string) *Loop {
	return &Loop{doc: doc, name: name}
}

// Start runs the initial sweep over root and then observes root for
// inserted nodes. It returns the number of initial applications.
func (l *Loop) Start(root *html.Node, detectors ...Detector) int {
	l.Stop()
	l.root = root
	l.detectors = detectors
	n := l.Sweep(root)
	l.observer = l.doc.Observe(root, ObserveOptions{ChildList: true, Subtree: true}, l.reconcile)
	l.doc.Logger().Printf("LOOP: %s started, %d applied", l.name, n)
	return n
}

// Stop disconnects the observer; records not yet delivered are dropped.
func (l *Loop) Stop() {
	if l.observer == nil {
		return
	}
	l.observer.Disconnect()
	l.observer = nil
	l.doc.Logger().Printf("LOOP: %s stopped after %d applications", l.name, l.applied)
}

func (l *Loop) Running() bool { return l.observer.Active() }

// Applied counts detector applications since the loop was created.
func (l *Loop) Applied() int { return l.applied }

// Sweep runs every detector over root and its descendants in document
// order and returns how many times a detector acted. Elements that a
// previous detector detached are skipped.
func (l *Loop) Sweep(root *html.Node) int {
	if root == nil {
		return 0
	}
	count := 0
	for _, n := range Elements(root) {
		for _, detect := range l.detectors {
			if !l.doc.IsAttached(n) {
				break
			}
			if detect(n) {
				count++
			}
		}
	}
	l.applied += count
	return count
}

func (l *Loop) reconcile(recs []MutationRecord) {
	var swept []*html.Node
	covered := func(n *html.Node) bool {
		for _, s := range swept {
			if Contains(s, n) {
				return true
			}
		}
		return false
	}
	for _, rec := range recs {
		for _, n := range rec.Added {
			if n.Type != html.ElementNode || !l.doc.IsAttached(n) || covered(n) {
				continue
			}
			l.Sweep(n)
			swept = append(swept, n)
		}
	}
}

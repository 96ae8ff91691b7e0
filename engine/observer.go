package engine

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MaxDeliveryRounds bounds how many times Flush hands records back to
// observers whose callbacks keep mutating the document.
const MaxDeliveryRounds = 32

type MutationKind int

const (
	ChildList MutationKind = iota + 1
	Attributes
	CharacterData
)

func (k MutationKind) String() string {
	switch k {
	case ChildList:
		return "childList"
	case Attributes:
		return "attributes"
	case CharacterData:
		return "characterData"
	}
	return "unknown"
}

// MutationRecord describes one change to the document.
type MutationRecord struct {
	Kind      MutationKind
	Target    *html.Node
	Added     []*html.Node
	Removed   []*html.Node
	Attribute string
	OldValue  string
	HadValue  bool
}

// ObserveOptions selects which records an observer receives.
type ObserveOptions struct {
	ChildList     bool
	Attributes    bool
	CharacterData bool
	Subtree       bool
}

// Observer queues records for a subtree until the document flushes them.
type Observer struct {
	doc     *Document
	root    *html.Node
	opts    ObserveOptions
	fn      func([]MutationRecord)
	pending []MutationRecord
	active  bool
}

// Observe starts recording mutations under root. Records are delivered in
// batches by Flush, never synchronously from the mutating call.
func (d *Document) Observe(root *html.Node, opts ObserveOptions, fn func([]MutationRecord)) *Observer {
	o := &Observer{doc: d, root: root, opts: opts, fn: fn, active: true}
	d.observers = append(d.observers, o)
	return o
}

// Disconnect stops the observer and drops anything it had queued.
func (o *Observer) Disconnect() {
	if o == nil || !o.active {
		return
	}
	o.active = false
	o.pending = nil
	obs := o.doc.observers[:0]
	for _, cur := range o.doc.observers {
		if cur != o {
			obs = append(obs, cur)
		}
	}
	o.doc.observers = obs
}

// TakeRecords empties the queue without invoking the callback.
func (o *Observer) TakeRecords() []MutationRecord {
	recs := o.pending
	o.pending = nil
	return recs
}

func (o *Observer) Active() bool { return o != nil && o.active }

func (o *Observer) wants(rec MutationRecord) bool {
	switch rec.Kind {
	case ChildList:
		if !o.opts.ChildList {
			return false
		}
	case Attributes:
		if !o.opts.Attributes {
			return false
		}
	case CharacterData:
		if !o.opts.CharacterData {
			return false
		}
	}
	if rec.Target == o.root {
		return true
	}
	return o.opts.Subtree && Contains(o.root, rec.Target)
}

func (d *Document) record(rec MutationRecord) {
	d.mutations++
	if touchesStyleSheet(rec) {
		d.sheetDirty = true
	}
	for _, o := range d.observers {
		if o.active && o.wants(rec) {
			o.pending = append(o.pending, rec)
		}
	}
}

func touchesStyleSheet(rec MutationRecord) bool {
	for cur := rec.Target; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && (cur.DataAtom == atom.Style || cur.DataAtom == atom.Link) {
			return true
		}
	}
	if rec.Kind != ChildList {
		return false
	}
	for _, list := range [][]*html.Node{rec.Added, rec.Removed} {
		for _, n := range list {
			if containsSheet(n) {
				return true
			}
		}
	}
	return false
}

func containsSheet(n *html.Node) bool {
	if n.Type == html.ElementNode && (n.DataAtom == atom.Style || n.DataAtom == atom.Link) {
		return true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if containsSheet(c) {
			return true
		}
	}
	return false
}

// Flush delivers queued records. Callbacks that mutate the document queue
// further records, delivered in a following round; after MaxDeliveryRounds
// the rest is dropped and logged. It returns the rounds delivered.
func (d *Document) Flush() int {
	if d.flushing {
		return 0
	}
	d.flushing = true
	defer func() { d.flushing = false }()

	for round := 0; ; round++ {
		var ready []*Observer
		for _, o := range d.observers {
			if o.active && len(o.pending) > 0 {
				ready = append(ready, o)
			}
		}
		if len(ready) == 0 {
			return round
		}
		if round >= MaxDeliveryRounds {
			dropped := 0
			for _, o := range ready {
				dropped += len(o.pending)
				o.pending = nil
			}
			d.logger.Printf("LOOP: dropped %d mutation records after %d delivery rounds", dropped, round)
			return round
		}
		for _, o := range ready {
			if !o.active {
				continue
			}
			recs := o.pending
			o.pending = nil
			o.fn(recs)
		}
	}
}

package engine

import (
	"time"

	"golang.org/x/net/html"
)

// Event types the modules listen for.
const (
	EventClick      = "click"
	EventMouseEnter = "mouseenter"
	EventMouseLeave = "mouseleave"
	EventKeyDown    = "keydown"
	EventWheel      = "wheel"
	EventEnded      = "ended"
	EventLoad       = "load"
	EventError      = "error"
)

var nonBubbling = map[string]bool{
	EventMouseEnter: true,
	EventMouseLeave: true,
	EventEnded:      true,
	EventLoad:       true,
	EventError:      true,
	"focus":         true,
	"blur":          true,
}

// Event is a simulated DOM event.
type Event struct {
	Type          string
	Target        *html.Node
	CurrentTarget *html.Node
	Key           string
	DeltaY        float64
	Time          time.Time

	prevented bool
	stopped   bool
}

func (e *Event) PreventDefault()        { e.prevented = true }
func (e *Event) DefaultPrevented() bool { return e.prevented }
func (e *Event) StopPropagation()       { e.stopped = true }

type listener struct {
	id  uint64
	typ string
	fn  func(*Event)
}

// AddEventListener registers fn on n and returns a function removing it.
// The remover may be called more than once.
func (d *Document) AddEventListener(n *html.Node, typ string, fn func(*Event)) func() {
	d.nextListener++
	l := &listener{id: d.nextListener, typ: typ, fn: fn}
	d.listeners[n] = append(d.listeners[n], l)
	return func() { d.removeListener(n, l.id) }
}

func (d *Document) removeListener(n *html.Node, id uint64) {
	list := d.listeners[n]
	for i, l := range list {
		if l.id == id {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(d.listeners, n)
		return
	}
	d.listeners[n] = list
}

// ListenerCount reports how many listeners are registered on n.
func (d *Document) ListenerCount(n *html.Node) int {
	return len(d.listeners[n])
}

// Dispatch delivers ev to target and, for bubbling types, to each ancestor.
// Pending mutation records are flushed once every listener has returned.
// It reports false when a listener called PreventDefault.
func (d *Document) Dispatch(target *html.Node, ev *Event) bool {
	if target == nil || ev == nil {
		return true
	}
	ev.Target = target
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	path := []*html.Node{target}
	if !nonBubbling[ev.Type] {
		for p := target.Parent; p != nil; p = p.Parent {
			path = append(path, p)
		}
	}
	for _, n := range path {
		ev.CurrentTarget = n
		snapshot := append([]*listener(nil), d.listeners[n]...)
		for _, l := range snapshot {
			if l.typ != ev.Type || !d.stillRegistered(n, l.id) {
				continue
			}
			l.fn(ev)
		}
		if ev.stopped {
			break
		}
	}
	d.Flush()
	return !ev.prevented
}

func (d *Document) stillRegistered(n *html.Node, id uint64) bool {
	for _, l := range d.listeners[n] {
		if l.id == id {
			return true
		}
	}
	return false
}

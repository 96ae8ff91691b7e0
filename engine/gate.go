package engine

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Trigger selects which user action drives a gate.
type Trigger int

const (
	TriggerHover Trigger = iota + 1
	TriggerClick
)

func (t Trigger) String() string {
	switch t {
	case TriggerHover:
		return "hover"
	case TriggerClick:
		return "click"
	}
	return "none"
}

type GateState int

const (
	Idle GateState = iota
	Active
)

func (s GateState) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

// Attributes read by the client runtime in served pages.
const (
	GateAttr        = "data-calm-gate"
	GateTriggerAttr = "data-calm-gate-trigger"
	GateStateAttr   = "data-calm-gate-state"
	GateRealAttr    = "data-calm-gate-real"
	GateStaticAttr  = "data-calm-gate-static"
	GateOverlayAttr = "data-calm-gate-overlay"
	GateSlotAttr    = "data-calm-gate-slot"
	GateIdleAttr    = "data-calm-gate-idle"
	GateActiveAttr  = "data-calm-gate-active"
)

// Captions are the overlay texts of a gate.
type Captions struct {
	ImageIdle   string
	ImageActive string
	VideoIdle   string
	VideoActive string
	VideoPaused string
}

func DefaultCaptions(t Trigger) Captions {
	c := Captions{
		ImageIdle:   "⚠ GIF – hover to play",
		ImageActive: "✋ GIF playing",
		VideoIdle:   "⚠ VIDEO – click to play",
		VideoActive: "",
		VideoPaused: "✋ VIDEO – click to play again",
	}
	if t == TriggerClick {
		c.ImageIdle = "⚠ GIF – click to play"
	}
	return c
}

const (
	overlayIdleBackground   = "rgba(0,0,0,0.55)"
	overlayActiveBackground = "rgba(0,0,0,0.35)"
)

// Gate is the Idle/Active state machine wrapping one risky media element.
// Image gates replace the element with a wrapper holding a static copy and
// keep the original aside; video gates move the video into the wrapper.
type Gate struct {
	ID      uuid.UUID
	Trigger Trigger

	RealURL   string
	StaticURL string

	doc      *Document
	ledger   *Ledger
	captions Captions
	state    GateState
	video    bool
	alive    bool

	source  *html.Node
	wrapper *html.Node
	slot    *html.Node
	overlay *html.Node

	removers []func()
}

func (g *Gate) State() GateState    { return g.state }
func (g *Gate) Alive() bool         { return g.alive }
func (g *Gate) Source() *html.Node  { return g.source }
func (g *Gate) Wrapper() *html.Node { return g.wrapper }
func (g *Gate) Slot() *html.Node    { return g.slot }
func (g *Gate) Overlay() *html.Node { return g.overlay }
func (g *Gate) IsVideo() bool       { return g.video }
func (g *Gate) Caption() string     { return TextContent(g.overlay) }

func (g *Gate) listen(n *html.Node, typ string, fn func(*Event)) {
	g.removers = append(g.removers, g.doc.AddEventListener(n, typ, fn))
}

// Activate moves an idle gate to Active.
func (g *Gate) Activate() {
	if !g.alive || g.state == Active {
		return
	}
	g.state = Active
	if g.video {
		g.doc.SetStyle(g.overlay, "display", "none")
		g.doc.SetText(g.overlay, g.captions.VideoActive)
	} else {
		g.doc.SetAttr(g.slot, "src", g.RealURL)
		g.doc.SetText(g.overlay, g.captions.ImageActive)
		g.doc.SetStyle(g.overlay, "background", overlayActiveBackground)
	}
	g.doc.SetAttr(g.wrapper, GateStateAttr, Active.String())
	g.doc.Logger().Printf("GATE: %s %s -> active", g.ID, g.Trigger)
}

// Deactivate returns an active gate to Idle. paused selects the caption a
// video shows after the user stopped it.
func (g *Gate) Deactivate(paused bool) {
	if !g.alive || g.state == Idle {
		return
	}
	g.state = Idle
	if g.video {
		caption := g.captions.VideoIdle
		if paused {
			caption = g.captions.VideoPaused
		}
		g.doc.SetText(g.overlay, caption)
		g.doc.SetStyle(g.overlay, "display", "flex")
	} else {
		g.doc.SetAttr(g.slot, "src", g.StaticURL)
		g.doc.SetText(g.overlay, g.captions.ImageIdle)
		g.doc.SetStyle(g.overlay, "background", overlayIdleBackground)
	}
	g.doc.SetAttr(g.wrapper, GateStateAttr, Idle.String())
	g.doc.Logger().Printf("GATE: %s %s -> idle", g.ID, g.Trigger)
}

// Dispose removes every listener, puts the original element back where the
// wrapper is and restores its recorded state. A disposed gate ignores
// late frame results.
func (g *Gate) Dispose() {
	if !g.alive {
		return
	}
	g.alive = false
	for _, rm := range g.removers {
		rm()
	}
	g.removers = nil
	if g.wrapper.Parent != nil {
		if g.video {
			g.doc.InsertBefore(g.wrapper.Parent, g.source, g.wrapper)
			g.doc.RemoveNode(g.wrapper)
		} else {
			g.doc.ReplaceWith(g.wrapper, g.source)
		}
	}
	g.ledger.Restore(g.source)
}

func (g *Gate) setStatic(uri string) {
	if !g.alive || uri == "" {
		return
	}
	g.StaticURL = uri
	g.doc.SetAttr(g.wrapper, GateStaticAttr, uri)
	if g.state == Idle {
		g.doc.SetAttr(g.slot, "src", uri)
	}
}

// GateConfig configures a Gatekeeper.
type GateConfig struct {
	// Namespace prefixes the wrapper and processed markers.
	Namespace    string
	ImageTrigger Trigger
	VideoTrigger Trigger
	Captions     Captions
	Frames       FrameSource
}

// Gatekeeper owns the gates of one module on one document.
type Gatekeeper struct {
	ctx    context.Context
	doc    *Document
	ledger *Ledger
	cfg    GateConfig
	gates  []*Gate
}

func NewGatekeeper(ctx context.Context, doc *Document, ledger *Ledger, cfg GateConfig) *Gatekeeper {
	if cfg.ImageTrigger == 0 {
		cfg.ImageTrigger = TriggerHover
	}
	if cfg.VideoTrigger == 0 {
		cfg.VideoTrigger = TriggerClick
	}
	if cfg.Captions == (Captions{}) {
		cfg.Captions = DefaultCaptions(cfg.ImageTrigger)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &Gatekeeper{ctx: ctx, doc: doc, ledger: ledger, cfg: cfg}
}

// WrapperAttr marks wrappers created by this gatekeeper.
func (k *Gatekeeper) WrapperAttr() string {
	return markerPrefix + k.cfg.Namespace + "-wrapper"
}

func (k *Gatekeeper) Gates() []*Gate { return k.gates }

// ByWrapper finds the live gate owning wrapper.
func (k *Gatekeeper) ByWrapper(wrapper *html.Node) *Gate {
	for _, g := range k.gates {
		if g.alive && g.wrapper == wrapper {
			return g
		}
	}
	return nil
}

// DisposeAll tears down every gate, newest first.
func (k *Gatekeeper) DisposeAll() int {
	n := 0
	for i := len(k.gates) - 1; i >= 0; i-- {
		if k.gates[i].alive {
			k.gates[i].Dispose()
			n++
		}
	}
	k.gates = nil
	return n
}

func (k *Gatekeeper) eligible(n *html.Node) bool {
	if k.ledger.IsDone(n) || !k.doc.IsAttached(n) || n.Parent == nil {
		return false
	}
	return Closest(n, "["+GateAttr+"]") == nil
}

// GateImage gates n when it is an animated image not yet processed.
func (k *Gatekeeper) GateImage(n *html.Node) bool {
	if !IsElement(n, "img") || !IsAnimatedImage(n) || !k.eligible(n) {
		return false
	}
	k.newImageGate(n)
	return true
}

// GateVideo gates a video element not yet processed.
func (k *Gatekeeper) GateVideo(n *html.Node) bool {
	if !IsElement(n, "video") || !k.eligible(n) {
		return false
	}
	k.newVideoGate(n)
	return true
}

func (k *Gatekeeper) newGate(src *html.Node, trigger Trigger) *Gate {
	g := &Gate{
		ID:       uuid.New(),
		Trigger:  trigger,
		doc:      k.doc,
		ledger:   k.ledger,
		captions: k.cfg.Captions,
		alive:    true,
		source:   src,
	}
	g.wrapper = k.doc.CreateElement("div",
		k.WrapperAttr(), g.ID.String(),
		GateAttr, g.ID.String(),
		GateTriggerAttr, trigger.String(),
		GateStateAttr, Idle.String(),
		"style", "position: relative; display: inline-block; cursor: pointer",
	)
	k.gates = append(k.gates, g)
	return g
}

func (k *Gatekeeper) overlay(caption string, video bool) *html.Node {
	style := "position: absolute; top: 0; left: 0; width: 100%; height: 100%; " +
		"background: " + overlayIdleBackground + "; color: white; display: flex; " +
		"align-items: center; justify-content: center; text-align: center; "
	if video {
		style += "font-size: 16px; font-family: sans-serif; z-index: 99999; cursor: pointer"
	} else {
		style += "font-size: 14px; pointer-events: none"
	}
	o := k.doc.CreateElement("div", GateOverlayAttr, "1", WidgetAttr, "1", "style", style)
	o.AppendChild(k.doc.CreateText(caption))
	return o
}

func (k *Gatekeeper) newImageGate(img *html.Node) *Gate {
	trigger := k.cfg.ImageTrigger
	g := k.newGate(img, trigger)
	g.RealURL = RealImageURL(img)
	g.StaticURL = Attr(img, "src")
	k.ledger.MarkDone(img)

	slotStyle := "pointer-events: none"
	if w := strings.TrimSpace(Attr(img, "width")); w != "" {
		slotStyle = "width: " + strings.TrimSuffix(w, "px") + "px; " + slotStyle
	}
	g.slot = k.doc.CreateElement("img",
		GateSlotAttr, "1",
		"src", g.StaticURL,
		"alt", Attr(img, "alt"),
		"style", slotStyle,
	)
	g.overlay = k.overlay(k.cfg.Captions.ImageIdle, false)
	g.wrapper.AppendChild(g.slot)
	g.wrapper.AppendChild(g.overlay)
	g.wrapper.Attr = append(g.wrapper.Attr,
		html.Attribute{Key: GateRealAttr, Val: g.RealURL},
		html.Attribute{Key: GateStaticAttr, Val: g.StaticURL},
		html.Attribute{Key: GateIdleAttr, Val: k.cfg.Captions.ImageIdle},
		html.Attribute{Key: GateActiveAttr, Val: k.cfg.Captions.ImageActive},
	)
	k.doc.ReplaceWith(img, g.wrapper)

	switch trigger {
	case TriggerHover:
		g.listen(g.wrapper, EventMouseEnter, func(*Event) { g.Activate() })
		g.listen(g.wrapper, EventMouseLeave, func(*Event) { g.Deactivate(false) })
		g.listen(g.wrapper, EventClick, func(e *Event) { e.PreventDefault() })
	case TriggerClick:
		g.listen(g.wrapper, EventClick, func(e *Event) {
			e.PreventDefault()
			if g.state == Idle {
				g.Activate()
			} else {
				g.Deactivate(false)
			}
		})
	}
	k.requestFrame(g)
	return g
}

func (k *Gatekeeper) requestFrame(g *Gate) {
	if k.cfg.Frames == nil || g.StaticURL == "" {
		return
	}
	target := g.StaticURL
	if abs := resolveAbsURL(k.doc.BaseURL(), target); abs != "" {
		target = abs
	}
	frames, ctx, logger := k.cfg.Frames, k.ctx, k.doc.Logger()
	k.doc.Async(func() func() {
		uri, err := frames.FirstFrame(ctx, target)
		return func() {
			if err != nil {
				logger.Printf("GATE: %s no static frame for %s: %v", g.ID, target, err)
				return
			}
			g.setStatic(uri)
		}
	})
}

func (k *Gatekeeper) newVideoGate(video *html.Node) *Gate {
	trigger := k.cfg.VideoTrigger
	g := k.newGate(video, trigger)
	g.video = true
	g.slot = video
	g.RealURL = Attr(video, "src")
	if g.RealURL == "" {
		if src := Query(video, "source[src]"); src != nil {
			g.RealURL = Attr(src, "src")
		}
	}
	g.StaticURL = Attr(video, "poster")
	k.ledger.MarkDone(video)

	g.overlay = k.overlay(k.cfg.Captions.VideoIdle, true)
	g.wrapper.Attr = append(g.wrapper.Attr,
		html.Attribute{Key: GateIdleAttr, Val: k.cfg.Captions.VideoIdle},
		html.Attribute{Key: GateActiveAttr, Val: k.cfg.Captions.VideoPaused},
	)
	k.doc.InsertBefore(video.Parent, g.wrapper, video)
	k.doc.AppendChild(g.wrapper, video)
	k.doc.AppendChild(g.wrapper, g.overlay)
	k.ledger.RemoveAttr(video, "autoplay")
	k.ledger.SetAttr(video, "controls", "")

	switch trigger {
	case TriggerClick:
		g.listen(g.overlay, EventClick, func(*Event) { g.Activate() })
		g.listen(video, EventClick, func(*Event) { g.Deactivate(true) })
	case TriggerHover:
		g.listen(g.wrapper, EventMouseEnter, func(*Event) { g.Activate() })
		g.listen(g.wrapper, EventMouseLeave, func(*Event) { g.Deactivate(false) })
	}
	g.listen(video, EventEnded, func(*Event) { g.Deactivate(false) })
	return g
}

// IsAnimatedImage reports whether img looks like a GIF: a .gif source, a
// GIF data attribute or a GIPHY media URL.
func IsAnimatedImage(img *html.Node) bool {
	if img == nil || img.DataAtom != atom.Img {
		return false
	}
	src := strings.ToLower(Attr(img, "src"))
	if strings.HasSuffix(src, ".gif") || strings.Contains(src, "giphy.com/media") {
		return true
	}
	if strings.HasPrefix(src, "data:image/gif") {
		return true
	}
	if Attr(img, "data-gif") != "" {
		return true
	}
	for _, key := range []string{"data-src", "data-original"} {
		if strings.HasSuffix(strings.ToLower(Attr(img, key)), ".gif") {
			return true
		}
	}
	return false
}

// RealImageURL finds the full animated source behind a possibly lazy or
// thumbnail img: explicit data attributes, the GIPHY still-suffix, a GIF
// <source> of an enclosing <picture>, then src.
func RealImageURL(img *html.Node) string {
	if v := Attr(img, "data-gif"); v != "" {
		return v
	}
	for _, key := range []string{"data-src", "data-original", "data-preview"} {
		if v := Attr(img, key); strings.HasSuffix(strings.ToLower(v), ".gif") {
			return v
		}
	}
	src := Attr(img, "src")
	if strings.Contains(src, "giphy.com/media") && strings.Contains(src, "_s.") {
		return strings.Replace(src, "_s.", ".", 1)
	}
	if pic := Closest(img, "picture"); pic != nil {
		if source := Query(pic, "source[srcset*='.gif'], source[type='image/gif']"); source != nil {
			if fields := strings.Fields(Attr(source, "srcset")); len(fields) > 0 {
				return fields[0]
			}
		}
	}
	return src
}

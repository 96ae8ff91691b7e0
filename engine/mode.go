package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"golang.org/x/net/html"
)

// State is the on/off view of one mode plus its named sub-flags and
// values. Hosts keep one per mode and pass it to the controller.
type State struct {
	mu      sync.RWMutex
	enabled bool
	flags   map[string]bool
	values  map[string]string
}

func NewState() *State {
	return &State{flags: map[string]bool{}, values: map[string]string{}}
}

func (s *State) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

func (s *State) setEnabled(on bool) {
	s.mu.Lock()
	s.enabled = on
	s.mu.Unlock()
}

func (s *State) Flag(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags[name]
}

// LookupFlag also reports whether the flag was ever set.
func (s *State) LookupFlag(name string) (on, set bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	on, set = s.flags[name]
	return on, set
}

func (s *State) SetFlag(name string, on bool) {
	s.mu.Lock()
	s.flags[name] = on
	s.mu.Unlock()
}

// Flags returns the names of the flags currently on, sorted.
func (s *State) Flags() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for k, on := range s.flags {
		if on {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func (s *State) Value(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[name]
}

func (s *State) SetValue(name, value string) {
	s.mu.Lock()
	s.values[name] = value
	s.mu.Unlock()
}

// Mode is the controller surface handed to collaborators such as the
// proxy or a settings UI.
type Mode interface {
	Name() string
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
	Toggle(ctx context.Context) error
	Enabled() bool
	SetFlag(ctx context.Context, name string, on bool) error
	Flag(name string) bool
}

// Module is one transformation. Enable registers detectors and performs
// first-time setup through the session; Disable undoes anything the
// session cannot undo by itself.
type Module interface {
	Name() string
	Enable(s *Session) error
	Disable(s *Session)
}

// FlagHandler is implemented by modules whose sub-flags act while enabled.
type FlagHandler interface {
	FlagChanged(s *Session, name string, on bool)
}

// StyleSpec names the stylesheet a module injects on enable.
type StyleSpec struct {
	ID       string
	Path     string
	Fallback string
}

// StyleProvider is implemented by modules with a stylesheet.
type StyleProvider interface {
	Style() StyleSpec
}

// PreferenceReader is implemented by modules reading preferences.
type PreferenceReader interface {
	PreferenceKeys() []string
}

// Controller drives one module on one document.
type Controller struct {
	module Module
	doc    *Document
	state  *State
	prefs  PreferenceStore
	assets AssetLoader
	frames FrameSource
	logger *log.Logger

	session *Session
}

type ControllerOption func(*Controller)

func WithState(s *State) ControllerOption {
	return func(c *Controller) {
		if s != nil {
			c.state = s
		}
	}
}

func WithPreferences(p PreferenceStore) ControllerOption {
	return func(c *Controller) { c.prefs = p }
}

func WithAssets(a AssetLoader) ControllerOption {
	return func(c *Controller) { c.assets = a }
}

func WithFrames(f FrameSource) ControllerOption {
	return func(c *Controller) { c.frames = f }
}

func NewController(doc *Document, m Module, opts ...ControllerOption) *Controller {
	c := &Controller{module: m, doc: doc, state: NewState(), logger: doc.Logger()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Name() string      { return c.module.Name() }
func (c *Controller) Module() Module    { return c.module }
func (c *Controller) State() *State     { return c.state }
func (c *Controller) Enabled() bool     { return c.state.Enabled() && c.session != nil }
func (c *Controller) Session() *Session { return c.session }

// Enable performs first-time setup and starts the reconciliation loop.
// Enabling an enabled mode does nothing.
func (c *Controller) Enable(ctx context.Context) error {
	if c.session != nil {
		return nil
	}
	name := c.module.Name()
	s := &Session{
		ctx:    ctx,
		Doc:    c.doc,
		Ledger: NewLedger(c.doc, name),
		Loop:   NewLoop(c.doc, name),
		State:  c.state,
		Frames: c.frames,
		assets: c.assets,
		live:   true,
	}
	var keys []string
	if pr, ok := c.module.(PreferenceReader); ok {
		keys = pr.PreferenceKeys()
	}
	s.Prefs = SafePrefs(ctx, c.prefs, c.logger, keys...)
	if sp, ok := c.module.(StyleProvider); ok {
		s.InjectStylesheet(sp.Style())
	}
	if err := c.module.Enable(s); err != nil {
		c.module.Disable(s)
		s.teardown()
		c.logger.Printf("MODE: %s failed to enable: %v", name, err)
		return fmt.Errorf("enable %s: %w", name, err)
	}
	root := s.ObserveRoot
	if root == nil {
		root = c.doc.Body()
	}
	if root == nil {
		root = c.doc.Root()
	}
	n := s.Loop.Start(root, s.detectors...)
	c.session = s
	c.state.setEnabled(true)
	c.doc.Flush()
	c.logger.Printf("MODE: %s enabled, %d initial applications", name, n)
	return nil
}

// Disable stops the loop and returns the document to its state before
// Enable. Disabling a disabled mode does nothing.
func (c *Controller) Disable(ctx context.Context) error {
	s := c.session
	if s == nil {
		c.state.setEnabled(false)
		return nil
	}
	s.Loop.Stop()
	c.module.Disable(s)
	restored := s.teardown()
	c.session = nil
	c.state.setEnabled(false)
	c.doc.Flush()
	c.logger.Printf("MODE: %s disabled, %d elements restored", c.module.Name(), restored)
	return nil
}

func (c *Controller) Toggle(ctx context.Context) error {
	if c.Enabled() {
		return c.Disable(ctx)
	}
	return c.Enable(ctx)
}

// SetFlag records a sub-flag and, while enabled, lets the module react.
func (c *Controller) SetFlag(ctx context.Context, name string, on bool) error {
	c.state.SetFlag(name, on)
	if c.session == nil {
		return nil
	}
	if fh, ok := c.module.(FlagHandler); ok {
		fh.FlagChanged(c.session, name, on)
		c.doc.Flush()
	}
	return nil
}

// SubToggle flips a sub-flag.
func (c *Controller) SubToggle(ctx context.Context, name string) error {
	return c.SetFlag(ctx, name, !c.state.Flag(name))
}

func (c *Controller) Flag(name string) bool { return c.state.Flag(name) }

// Session is what a module sees while it is enabled. Everything registered
// through it is undone when the mode is disabled.
type Session struct {
	Doc    *Document
	Ledger *Ledger
	Loop   *Loop
	State  *State
	Prefs  map[string]any
	Frames FrameSource
	// ObserveRoot overrides the subtree the loop watches (default <body>).
	ObserveRoot *html.Node

	ctx       context.Context
	assets    AssetLoader
	live      bool
	detectors []Detector
	injected  []*html.Node
	classes   []string
	removers  []func()
	cleanups  []func()
}

func (s *Session) Context() context.Context {
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

// Live is false once the mode was disabled; late async continuations
// check it before touching the document.
func (s *Session) Live() bool { return s.live }

func (s *Session) Logger() *log.Logger { return s.Doc.Logger() }

// Detect adds detectors to the reconciliation loop.
func (s *Session) Detect(d ...Detector) { s.detectors = append(s.detectors, d...) }

// Listen registers a listener removed on disable.
func (s *Session) Listen(n *html.Node, typ string, fn func(*Event)) {
	s.removers = append(s.removers, s.Doc.AddEventListener(n, typ, fn))
}

// OnDisable runs fn during teardown, before ledger restoration.
func (s *Session) OnDisable(fn func()) { s.cleanups = append(s.cleanups, fn) }

// Inject inserts n under parent before ref and removes it on disable.
func (s *Session) Inject(parent, n, ref *html.Node) {
	s.Doc.InsertBefore(parent, n, ref)
	s.injected = append(s.injected, n)
}

// Track schedules a node the module inserted itself for removal on disable.
func (s *Session) Track(n *html.Node) { s.injected = append(s.injected, n) }

// SetRootClass toggles a class on <html>; classes added this way are
// removed on disable.
func (s *Session) SetRootClass(class string, on bool) {
	root := s.Doc.DocumentElement()
	if root == nil {
		return
	}
	if on && !HasClass(root, class) {
		s.classes = append(s.classes, class)
	}
	s.Doc.ToggleClass(root, class, on)
}

// InjectStyle adds a <style> element with the given id unless one exists.
func (s *Session) InjectStyle(id, css string) *html.Node {
	if existing := s.Doc.GetElementByID(id); existing != nil {
		return existing
	}
	parent := s.Doc.Head()
	if parent == nil {
		parent = s.Doc.DocumentElement()
	}
	if parent == nil {
		return nil
	}
	style := s.Doc.CreateElement("style", "id", id)
	if css != "" {
		style.AppendChild(s.Doc.CreateText(css))
	}
	s.Inject(parent, style, nil)
	return style
}

// InjectStylesheet injects an empty style element now and fills it once the
// asset loader answers; a failed load falls back to spec.Fallback.
func (s *Session) InjectStylesheet(spec StyleSpec) *html.Node {
	if existing := s.Doc.GetElementByID(spec.ID); existing != nil {
		return existing
	}
	style := s.InjectStyle(spec.ID, "")
	if style == nil {
		return nil
	}
	if s.assets == nil || spec.Path == "" {
		s.Doc.SetText(style, spec.Fallback)
		return style
	}
	ctx, loader, logger := s.Context(), s.assets, s.Logger()
	s.Doc.Async(func() func() {
		body, err := loader.Load(ctx, spec.Path)
		return func() {
			if !s.live {
				return
			}
			css := string(body)
			if err != nil {
				logger.Printf("ASSET: %s unavailable, using inline fallback: %v", spec.Path, err)
				css = spec.Fallback
			}
			s.Doc.SetText(style, css)
		}
	})
	return style
}

func (s *Session) teardown() int {
	s.live = false
	for i := len(s.cleanups) - 1; i >= 0; i-- {
		s.cleanups[i]()
	}
	s.cleanups = nil
	for _, rm := range s.removers {
		rm()
	}
	s.removers = nil
	restored := s.Ledger.RestoreAll(s.Doc.Root())
	for i := len(s.injected) - 1; i >= 0; i-- {
		s.Doc.RemoveNode(s.injected[i])
	}
	s.injected = nil
	if root := s.Doc.DocumentElement(); root != nil {
		for _, c := range s.classes {
			s.Doc.RemoveClass(root, c)
		}
	}
	s.classes = nil
	return restored
}

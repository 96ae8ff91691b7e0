package affect

import (
	"context"
	"errors"
	"fmt"

	"calmpage/engine"
)

// Registry builds one controller per requested module on a document and
// keeps track of the order they were enabled in.
type Registry struct {
	doc         *engine.Document
	opts        []engine.ControllerOption
	controllers map[string]*engine.Controller
	enabled     []string
}

// NewRegistry applies opts to every controller it builds.
func NewRegistry(doc *engine.Document, opts ...engine.ControllerOption) *Registry {
	return &Registry{doc: doc, opts: opts, controllers: map[string]*engine.Controller{}}
}

// Mode returns the controller for name, building it on first use.
func (r *Registry) Mode(name string) (*engine.Controller, error) {
	key := canonicalName(name)
	if c, ok := r.controllers[key]; ok {
		return c, nil
	}
	m, err := New(name)
	if err != nil {
		return nil, err
	}
	c := engine.NewController(r.doc, m, r.opts...)
	r.controllers[key] = c
	return c, nil
}

// Enable turns the named modes on in order. Unknown names and failing
// modes are reported together; the others stay enabled.
func (r *Registry) Enable(ctx context.Context, names ...string) error {
	var errs []error
	for _, name := range names {
		c, err := r.Mode(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if c.Enabled() {
			continue
		}
		if err := c.Enable(ctx); err != nil {
			errs = append(errs, err)
			continue
		}
		r.enabled = append(r.enabled, c.Name())
	}
	return errors.Join(errs...)
}

// Disable turns one mode off. Modes enabled after it are taken down first
// and brought back afterwards so every ledger restores onto the state it
// captured.
func (r *Registry) Disable(ctx context.Context, name string) error {
	key := canonicalName(name)
	idx := -1
	for i, n := range r.enabled {
		if n == key {
			idx = i
		}
	}
	if idx < 0 {
		_, err := r.Mode(name)
		return err
	}
	later := append([]string(nil), r.enabled[idx+1:]...)
	for i := len(later) - 1; i >= 0; i-- {
		if err := r.controllers[later[i]].Disable(ctx); err != nil {
			return fmt.Errorf("disable %s: %w", later[i], err)
		}
	}
	if err := r.controllers[key].Disable(ctx); err != nil {
		return fmt.Errorf("disable %s: %w", key, err)
	}
	r.enabled = r.enabled[:idx]
	return r.Enable(ctx, later...)
}

// DisableAll turns every mode off, newest first.
func (r *Registry) DisableAll(ctx context.Context) error {
	var errs []error
	for i := len(r.enabled) - 1; i >= 0; i-- {
		if err := r.controllers[r.enabled[i]].Disable(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	r.enabled = nil
	return errors.Join(errs...)
}

// Enabled lists the enabled modes in the order they were turned on.
func (r *Registry) Enabled() []string { return append([]string(nil), r.enabled...) }

// SetFlag forwards a sub-flag to the named mode.
func (r *Registry) SetFlag(ctx context.Context, name, flag string, on bool) error {
	c, err := r.Mode(name)
	if err != nil {
		return err
	}
	return c.SetFlag(ctx, flag, on)
}

package proxy

import (
	"net/url"
	"strings"
	"sync"
)

// viewOptions is everything a client can choose about how a page is shown.
type viewOptions struct {
	Modes []string
	Flags map[string]map[string]bool
	Prefs map[string]any
}

func (o viewOptions) clone() viewOptions {
	out := viewOptions{
		Modes: append([]string(nil), o.Modes...),
		Flags: map[string]map[string]bool{},
		Prefs: map[string]any{},
	}
	for mode, fs := range o.Flags {
		out.Flags[mode] = map[string]bool{}
		for k, v := range fs {
			out.Flags[mode][k] = v
		}
	}
	for k, v := range o.Prefs {
		out.Prefs[k] = v
	}
	return out
}

// merge layers over on top of o. A non-empty mode list replaces the
// current one; flags and prefs are merged key by key.
func (o viewOptions) merge(over viewOptions) viewOptions {
	out := o.clone()
	if len(over.Modes) > 0 {
		out.Modes = append([]string(nil), over.Modes...)
	}
	for mode, fs := range over.Flags {
		if out.Flags[mode] == nil {
			out.Flags[mode] = map[string]bool{}
		}
		for k, v := range fs {
			out.Flags[mode][k] = v
		}
	}
	for k, v := range over.Prefs {
		out.Prefs[k] = v
	}
	return out
}

// viewOptionsFromQuery reads modes=, flags= and pref.<key>= parameters.
func viewOptionsFromQuery(q url.Values) viewOptions {
	opts := viewOptions{
		Modes: splitList(q["modes"]),
		Flags: parseFlags(q["flags"]),
		Prefs: map[string]any{},
	}
	for key, vs := range q {
		name, ok := strings.CutPrefix(key, "pref.")
		if !ok || name == "" || len(vs) == 0 {
			continue
		}
		opts.Prefs[name] = vs[len(vs)-1]
	}
	return opts
}

type viewPrefStore struct {
	mu   sync.RWMutex
	data map[string]viewOptions
}

func newViewPrefStore() *viewPrefStore {
	return &viewPrefStore{data: make(map[string]viewOptions)}
}

func (s *viewPrefStore) Remember(key string, opts viewOptions) {
	if key == "" {
		return
	}
	s.mu.Lock()
	s.data[key] = opts.clone()
	s.mu.Unlock()
}

// Apply layers the query on top of what the client chose last time.
func (s *viewPrefStore) Apply(key string, q url.Values) viewOptions {
	s.mu.RLock()
	pref, ok := s.data[key]
	s.mu.RUnlock()
	current := viewOptionsFromQuery(q)
	if !ok {
		return current
	}
	if q.Get("reset") != "" {
		return current
	}
	return pref.merge(current)
}

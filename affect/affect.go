// Package affect holds the page transformations, one engine.Module per
// condition, and a registry that builds controllers for them by name.
package affect

import (
	"sort"
	"strings"

	"calmpage/engine"
	"golang.org/x/net/html"
)

// Module names accepted by New and the registry.
const (
	NameBase       = "base"
	NameEpilepsy   = "epilepsy"
	NameADHD       = "adhd"
	NameAutism     = "autism"
	NameDyslexia   = "dyslexia"
	NameReader     = "reader"
	NameColorblind = "colorblind"
	NameSimplify   = "simplify"
)

var constructors = map[string]func() engine.Module{
	NameBase:       func() engine.Module { return NewBase() },
	NameEpilepsy:   func() engine.Module { return NewEpilepsy() },
	NameADHD:       func() engine.Module { return NewADHD() },
	NameAutism:     func() engine.Module { return NewAutism() },
	NameDyslexia:   func() engine.Module { return NewDyslexia() },
	NameReader:     func() engine.Module { return NewReader() },
	NameColorblind: func() engine.Module { return NewColorblind() },
	NameSimplify:   func() engine.Module { return NewSimplify() },
}

// Names lists every known module, sorted.
func Names() []string {
	out := make([]string, 0, len(constructors))
	for name := range constructors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// New builds a fresh module by name. Names are matched case-insensitively
// and "reader_mode"/"color_blindness" style aliases are accepted.
func New(name string) (engine.Module, error) {
	ctor, ok := constructors[canonicalName(name)]
	if !ok {
		return nil, &unknownModeError{name: name}
	}
	return ctor(), nil
}

type unknownModeError struct{ name string }

func (e *unknownModeError) Error() string { return "unknown mode " + e.name }

func (e *unknownModeError) Unwrap() error { return engine.ErrUnknownMode }

func canonicalName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.NewReplacer("_", "", "-", "", " ", "").Replace(n)
	switch n {
	case "readermode":
		return NameReader
	case "colorblindness":
		return NameColorblind
	}
	return n
}

func styleSpec(name, fallback string) engine.StyleSpec {
	return engine.StyleSpec{ID: "calm-" + name + "-style", Path: "css/" + name + ".css", Fallback: fallback}
}

// flagOn reads a sub-flag that is on until someone turns it off.
func flagOn(st *engine.State, name string) bool {
	on, set := st.LookupFlag(name)
	return on || !set
}

// skipContent reports elements no content detector should touch.
func skipContent(n *html.Node) bool {
	return engine.IsElement(n, "script", "style", "noscript", "template", "head", "meta", "link", "title") ||
		engine.IsOwned(n)
}

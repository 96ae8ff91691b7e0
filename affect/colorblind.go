package affect

import (
	"fmt"
	"strings"

	"calmpage/engine"
	"golang.org/x/net/html"
)

// Colour-blindness types; each is also accepted as a sub-flag.
const (
	Protanopia   = "protanopia"
	Deuteranopia = "deuteranopia"
	Tritanopia   = "tritanopia"

	// ValueType names the State value holding the active type.
	ValueType = "type"

	PrefColorblindType = "colorBlindnessType"

	FiltersID = "color-blindness-filters"
)

var colorblindTypes = []string{Protanopia, Deuteranopia, Tritanopia}

var colorMatrices = map[string]string{
	Protanopia:   "0.567,0.433,0,0,0 0.558,0.442,0,0,0 0,0.242,0.758,0,0 0,0,0,1,0",
	Deuteranopia: "0.625,0.375,0,0,0 0.7,0.3,0,0,0 0,0.3,0.7,0,0 0,0,0,1,0",
	Tritanopia:   "0.95,0.05,0,0,0 0,0.433,0.567,0,0 0,0.475,0.525,0,0 0,0,0,1,0",
	"none":       "1,0,0,0,0 0,1,0,0,0 0,0,1,0,0 0,0,0,1,0",
}

func filterSVG() string {
	var b strings.Builder
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" id="` + FiltersID +
		`" width="0" height="0" style="position: absolute; width: 0; height: 0; overflow: hidden">`)
	for _, name := range append(append([]string(nil), colorblindTypes...), "none") {
		fmt.Fprintf(&b, `<filter id="%s-filter"><feColorMatrix type="matrix" values="%s"></feColorMatrix></filter>`,
			name, colorMatrices[name])
	}
	b.WriteString(`</svg>`)
	return b.String()
}

// Colorblind filters the whole page through a colour matrix for the
// chosen type of colour blindness.
type Colorblind struct {
	active string
}

func NewColorblind() *Colorblind { return &Colorblind{} }

func (m *Colorblind) Name() string { return NameColorblind }

func (m *Colorblind) PreferenceKeys() []string { return []string{PrefColorblindType} }

// Active is the type whose filter is applied, or "".
func (m *Colorblind) Active() string { return m.active }

func (m *Colorblind) Enable(s *engine.Session) error {
	m.active = ""
	if err := m.injectFilters(s); err != nil {
		return err
	}
	m.apply(s, m.resolve(s))
	return nil
}

func (m *Colorblind) Disable(*engine.Session) { m.active = "" }

func (m *Colorblind) FlagChanged(s *engine.Session, name string, on bool) {
	if !isColorblindType(name) {
		return
	}
	if on {
		for _, t := range colorblindTypes {
			if t != name {
				s.State.SetFlag(t, false)
			}
		}
		s.State.SetValue(ValueType, name)
		m.apply(s, name)
		return
	}
	if m.active == name {
		s.State.SetValue(ValueType, "")
		m.apply(s, "")
	}
}

func isColorblindType(t string) bool {
	_, ok := colorMatrices[t]
	return ok && t != "none"
}

// resolve picks the type from the state value, then the type flags, then
// preferences.
func (m *Colorblind) resolve(s *engine.Session) string {
	if t := strings.ToLower(s.State.Value(ValueType)); isColorblindType(t) {
		return t
	}
	for _, t := range colorblindTypes {
		if s.State.Flag(t) {
			return t
		}
	}
	if t, ok := engine.PrefString(s.Prefs, PrefColorblindType); ok && isColorblindType(strings.ToLower(t)) {
		return strings.ToLower(t)
	}
	return ""
}

func (m *Colorblind) injectFilters(s *engine.Session) error {
	body := s.Doc.Body()
	if body == nil || s.Doc.GetElementByID(FiltersID) != nil {
		return nil
	}
	nodes, err := html.ParseFragment(strings.NewReader(filterSVG()), body)
	if err != nil {
		return fmt.Errorf("colour filters: %w", err)
	}
	for _, n := range nodes {
		n.Attr = append(n.Attr, html.Attribute{Key: engine.OwnedAttr, Val: "1"})
		s.Inject(body, n, nil)
	}
	return nil
}

func (m *Colorblind) apply(s *engine.Session, t string) {
	root := s.Doc.DocumentElement()
	if root == nil {
		return
	}
	m.active = t
	if t == "" {
		s.Ledger.Restore(root)
		return
	}
	s.Ledger.SetStyle(root, "filter", "url(#"+t+"-filter)")
}

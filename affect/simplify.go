package affect

import (
	"fmt"
	"strconv"
	"strings"

	"calmpage/engine"
	"calmpage/palette"
)

const (
	PrefFontFamily    = "fontFamily"
	PrefTextColor     = "textColor"
	PrefLineHeight    = "lineHeight"
	PrefLetterSpacing = "letterSpacing"

	// PrefSimplifySettings holds the four settings above as one object.
	PrefSimplifySettings = "simplifySettings"

	simplifyStyleID = "calm-simplify-settings"
)

// SimplifySettings are the user-tunable parts of the simplify style.
type SimplifySettings struct {
	FontFamily    string
	TextColor     string
	LineHeight    string
	LetterSpacing string
}

func DefaultSimplifySettings() SimplifySettings {
	return SimplifySettings{
		FontFamily:    `-apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif`,
		TextColor:     "#333333",
		LineHeight:    "1.5",
		LetterSpacing: "0",
	}
}

// settingsFromPrefs overlays stored settings on the defaults; malformed
// entries are ignored.
func settingsFromPrefs(prefs map[string]any) SimplifySettings {
	out := DefaultSimplifySettings()
	src := prefs
	if nested, ok := prefs[PrefSimplifySettings].(map[string]any); ok {
		src = nested
	}
	if v, ok := engine.PrefString(src, PrefFontFamily); ok && !strings.ContainsAny(v, "{};<>") {
		out.FontFamily = v
	}
	if v, ok := engine.PrefString(src, PrefTextColor); ok {
		if c, parsed := palette.Parse(v); parsed {
			out.TextColor = c.Hex()
		}
	}
	if v, ok := engine.PrefNumber(src, PrefLineHeight); ok && v > 0 {
		out.LineHeight = strconv.FormatFloat(v, 'f', -1, 64)
	}
	if v, ok := engine.PrefNumber(src, PrefLetterSpacing); ok {
		out.LetterSpacing = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return out
}

// CSS renders the settings as a stylesheet.
func (c SimplifySettings) CSS() string {
	return fmt.Sprintf(`* { font-family: %s !important; letter-spacing: %spx !important; }
body { color: %s !important; background: white !important; line-height: %s !important; }
p { margin-bottom: 1.2em !important; }
h1, h2, h3, h4, h5, h6 { color: #000 !important; line-height: 1.3 !important; margin-top: 1.5em !important; margin-bottom: 0.8em !important; }
a { color: #0066cc !important; }
a:hover { opacity: 0.8 !important; }
`, c.FontFamily, c.LetterSpacing, c.TextColor, c.LineHeight)
}

// Simplify applies consistent fonts, contrast and spacing.
type Simplify struct {
	settings SimplifySettings
}

func NewSimplify() *Simplify { return &Simplify{settings: DefaultSimplifySettings()} }

func (m *Simplify) Name() string { return NameSimplify }

func (m *Simplify) PreferenceKeys() []string {
	return []string{PrefSimplifySettings, PrefFontFamily, PrefTextColor, PrefLineHeight, PrefLetterSpacing}
}

func (m *Simplify) Settings() SimplifySettings { return m.settings }

func (m *Simplify) Enable(s *engine.Session) error {
	m.settings = settingsFromPrefs(s.Prefs)
	s.InjectStyle(simplifyStyleID, m.settings.CSS())
	return nil
}

func (m *Simplify) Disable(*engine.Session) {}

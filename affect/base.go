package affect

import "calmpage/engine"

const baseCSS = `html { -webkit-text-size-adjust: 100%; }
body { text-rendering: optimizeLegibility; }
:focus-visible { outline: 3px solid #1565c0 !important; outline-offset: 2px; }
img, video { max-width: 100%; height: auto; }
`

// Base only loads the shared stylesheet.
type Base struct{}

func NewBase() *Base { return &Base{} }

func (m *Base) Name() string { return NameBase }

func (m *Base) Style() engine.StyleSpec { return styleSpec(NameBase, baseCSS) }

func (m *Base) Enable(*engine.Session) error { return nil }

func (m *Base) Disable(*engine.Session) {}

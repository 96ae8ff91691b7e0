// Package palette holds the colour model used by the readability modes:
// parsing CSS colour strings, luminance, and HSL lightness shifts.
package palette

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// LinkLightnessStep is the lightness shift applied when deriving a link
// colour from the page: lighter on dark pages, darker on light ones.
const LinkLightnessStep = 0.18

// RGB is a colour sample with 8-bit channels.
type RGB struct {
	R uint8
	G uint8
	B uint8
}

var (
	White = RGB{R: 255, G: 255, B: 255}
	Black = RGB{}
)

// Hex formats the sample as a lower-case #rrggbb string.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// String implements fmt.Stringer.
func (c RGB) String() string { return c.Hex() }

// Luminance is the perceptual weighting 0.2126R + 0.7152G + 0.0722B
// normalised to [0,1].
func (c RGB) Luminance() float64 {
	l := (0.2126*float64(c.R) + 0.7152*float64(c.G) + 0.0722*float64(c.B)) / 255.0
	if l < 0 {
		return 0
	}
	if l > 1 {
		return 1
	}
	return l
}

// relativeLuminance is the WCAG definition with linearised channels.
func (c RGB) relativeLuminance() float64 {
	toLinear := func(channel uint8) float64 {
		v := float64(channel) / 255.0
		if v <= 0.03928 {
			return v / 12.92
		}
		return math.Pow((v+0.055)/1.055, 2.4)
	}
	return 0.2126*toLinear(c.R) + 0.7152*toLinear(c.G) + 0.0722*toLinear(c.B)
}

// ContrastRatio returns the WCAG contrast ratio between two samples (1..21).
func ContrastRatio(a, b RGB) float64 {
	la := a.relativeLuminance()
	lb := b.relativeLuminance()
	if la < lb {
		la, lb = lb, la
	}
	return (la + 0.05) / (lb + 0.05)
}

// IsNearWhite reports whether every channel is at least 245 or the
// luminance exceeds 0.95.
func IsNearWhite(c RGB) bool {
	if c.R >= 245 && c.G >= 245 && c.B >= 245 {
		return true
	}
	return c.Luminance() > 0.95
}

// IsNearBlack reports whether the luminance is below 0.15.
func IsNearBlack(c RGB) bool {
	return c.Luminance() < 0.15
}

// AdjustLightness shifts the HSL lightness by delta, clamping to [0,1].
func AdjustLightness(c RGB, delta float64) RGB {
	h, s, l := toColorful(c).Hsl()
	if math.IsNaN(h) {
		h = 0
	}
	if math.IsNaN(s) {
		s = 0
	}
	l += delta
	if l < 0 {
		l = 0
	} else if l > 1 {
		l = 1
	}
	return fromColorful(colorful.Hsl(h, s, l))
}

// LinkColorFor keeps the hue of link but moves it away from the page
// background: lighter on dark pages, darker otherwise.
func LinkColorFor(background, link RGB) RGB {
	if IsNearBlack(background) || background.Luminance() < 0.5 {
		return AdjustLightness(link, LinkLightnessStep)
	}
	return AdjustLightness(link, -LinkLightnessStep)
}

func toColorful(c RGB) colorful.Color {
	return colorful.Color{R: float64(c.R) / 255.0, G: float64(c.G) / 255.0, B: float64(c.B) / 255.0}
}

func fromColorful(c colorful.Color) RGB {
	r, g, b := c.Clamped().RGB255()
	return RGB{R: r, G: g, B: b}
}

// Parse accepts 3- or 6-digit hex, rgb()/rgba() and the keywords black and
// white. Anything else, including transparent, is reported as not ok.
func Parse(input string) (RGB, bool) {
	s := strings.TrimSpace(strings.ToLower(input))
	switch s {
	case "":
		return RGB{}, false
	case "black":
		return Black, true
	case "white":
		return White, true
	case "transparent":
		return RGB{}, false
	}
	if strings.HasPrefix(s, "rgb(") || strings.HasPrefix(s, "rgba(") {
		return parseFunctional(s)
	}
	return parseHex(s)
}

// NormalizeHex parses value and formats it as #rrggbb, or returns "".
func NormalizeHex(value string) string {
	c, ok := Parse(value)
	if !ok {
		return ""
	}
	return c.Hex()
}

func parseHex(value string) (RGB, bool) {
	hex := strings.TrimPrefix(value, "#")
	switch {
	case len(hex) == 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	case len(hex) >= 6:
		hex = hex[:6]
	default:
		return RGB{}, false
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return RGB{}, false
	}
	return RGB{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n)}, true
}

func parseFunctional(expr string) (RGB, bool) {
	open := strings.IndexByte(expr, '(')
	end := strings.LastIndexByte(expr, ')')
	if open < 0 || end <= open+1 {
		return RGB{}, false
	}
	inner := expr[open+1 : end]
	var parts []string
	if strings.Contains(inner, ",") {
		parts = strings.Split(inner, ",")
	} else {
		// rgb(10 20 30 / 50%)
		if slash := strings.IndexByte(inner, '/'); slash != -1 {
			inner = inner[:slash]
		}
		parts = strings.Fields(inner)
	}
	if len(parts) < 3 {
		return RGB{}, false
	}
	var out [3]uint8
	for i := 0; i < 3; i++ {
		v, ok := channel(parts[i])
		if !ok {
			return RGB{}, false
		}
		out[i] = v
	}
	return RGB{R: out[0], G: out[1], B: out[2]}, true
}

func channel(component string) (uint8, bool) {
	component = strings.TrimSpace(component)
	if component == "" {
		return 0, false
	}
	percent := strings.HasSuffix(component, "%")
	component = strings.TrimSuffix(component, "%")
	f, err := strconv.ParseFloat(component, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	if percent {
		if f < 0 {
			f = 0
		} else if f > 100 {
			f = 100
		}
		return uint8(f * 255.0 / 100.0), true
	}
	if f < 0 {
		f = 0
	} else if f > 255 {
		f = 255
	}
	return uint8(f), true
}

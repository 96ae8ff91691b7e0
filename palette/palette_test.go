package palette

import (
	"math"
	"strings"
	"testing"
)

func TestParseHexAndFunctional(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{"hex_passthrough", "#1a2b3c", "#1a2b3c", true},
		{"hex_shorthand", "#abc", "#aabbcc", true},
		{"hex_without_hash", "3a7", "#33aa77", true},
		{"hex_longer", "#abcdef7", "#abcdef", true},
		{"named_white", "white", "#ffffff", true},
		{"named_black", "black", "#000000", true},
		{"transparent_ignored", "transparent", "", false},
		{"rgb_function", "rgb(255, 64, 0)", "#ff4000", true},
		{"rgba_function", "RGBA(10%,20%,30%,0.5)", "#19334c", true},
		{"space_syntax", "rgb(1 2 3 / 50%)", "#010203", true},
		{"irregular", "rgb( 10% , 120 , -5 )", "#197800", true},
		{"bad_channel", "rgb(a, 2, 3)", "", false},
		{"too_few", "rgb(1,2)", "", false},
		{"invalid", "nope", "", false},
		{"empty", "", "", false},
		{"bad_hex", "#zzzzzz", "", false},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Parse(tc.input)
			if ok != tc.ok {
				t.Fatalf("Parse(%q) ok = %v, expected %v", tc.input, ok, tc.ok)
			}
			if ok && got.Hex() != tc.expected {
				t.Fatalf("Parse(%q) = %q, expected %q", tc.input, got.Hex(), tc.expected)
			}
		})
	}
}

func TestParseRoundTripStabilises(t *testing.T) {
	t.Parallel()
	first, ok := Parse("#3a7")
	if !ok {
		t.Fatal("Parse(#3a7) failed")
	}
	second, ok := Parse(first.Hex())
	if !ok {
		t.Fatalf("Parse(%q) failed", first.Hex())
	}
	if first.Hex() != second.Hex() {
		t.Fatalf("round trip drifted: %s -> %s", first.Hex(), second.Hex())
	}
	if NormalizeHex("#3a7") != "#33aa77" {
		t.Fatalf("NormalizeHex(#3a7) = %q", NormalizeHex("#3a7"))
	}
}

func TestLuminanceRange(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"#000", "#fff", "#808080", "rgb(12, 200, 99)", "#ff0000", "#00ff00", "#0000ff"} {
		c, ok := Parse(in)
		if !ok {
			t.Fatalf("Parse(%q) failed", in)
		}
		l := c.Luminance()
		if l < 0 || l > 1 {
			t.Fatalf("Luminance(%s) = %f out of range", in, l)
		}
	}
	if l := White.Luminance(); math.Abs(l-1) > 1e-9 {
		t.Fatalf("white luminance = %f", l)
	}
}

func TestNearWhiteAndNearBlack(t *testing.T) {
	t.Parallel()
	mustParse := func(s string) RGB {
		c, ok := Parse(s)
		if !ok {
			t.Fatalf("Parse(%q) failed", s)
		}
		return c
	}
	if !IsNearWhite(mustParse("#ffffff")) {
		t.Fatal("#ffffff should be near white")
	}
	if !IsNearWhite(mustParse("#f6f6f6")) {
		t.Fatal("#f6f6f6 should be near white")
	}
	if IsNearWhite(mustParse("#808080")) {
		t.Fatal("#808080 should not be near white")
	}
	if !IsNearBlack(mustParse("#000000")) {
		t.Fatal("#000000 should be near black")
	}
	if IsNearBlack(mustParse("#808080")) {
		t.Fatal("#808080 should not be near black")
	}
}

func TestAdjustLightness(t *testing.T) {
	t.Parallel()
	mid := AdjustLightness(Black, 0.5)
	if mid == Black {
		t.Fatal("AdjustLightness(black, 0.5) stayed black")
	}
	if mid.R != mid.G || mid.G != mid.B {
		t.Fatalf("expected grey, got %s", mid.Hex())
	}
	if mid.R < 120 || mid.R > 135 {
		t.Fatalf("expected mid grey, got %s", mid.Hex())
	}
	if got := AdjustLightness(mid, 2); got != White {
		t.Fatalf("lightness above 1 should clamp to white, got %s", got.Hex())
	}
	if got := AdjustLightness(White, -5); got != Black {
		t.Fatalf("lightness below 0 should clamp to black, got %s", got.Hex())
	}
}

func TestLinkColorForKeepsHueAndMovesAway(t *testing.T) {
	t.Parallel()
	link := RGB{R: 0x15, G: 0x65, B: 0xc0}
	onDark := LinkColorFor(Black, link)
	if onDark.Luminance() <= link.Luminance() {
		t.Fatalf("link on dark page should be lighter: %s -> %s", link.Hex(), onDark.Hex())
	}
	onLight := LinkColorFor(White, link)
	if onLight.Luminance() >= link.Luminance() {
		t.Fatalf("link on light page should be darker: %s -> %s", link.Hex(), onLight.Hex())
	}
	if onLight.B <= onLight.R {
		t.Fatalf("expected blue hue to survive, got %s", onLight.Hex())
	}
}

func TestContrastRatio(t *testing.T) {
	t.Parallel()
	if r := ContrastRatio(Black, White); math.Abs(r-21) > 0.01 {
		t.Fatalf("black/white contrast = %f", r)
	}
	if r := ContrastRatio(White, White); math.Abs(r-1) > 1e-9 {
		t.Fatalf("white/white contrast = %f", r)
	}
}

func TestParseIsCaseInsensitive(t *testing.T) {
	t.Parallel()
	input := strings.ToUpper("rgba(1,2,3,0.5)")
	if got := NormalizeHex(input); got != "#010203" {
		t.Fatalf("upper case rgba mismatch: got %q", got)
	}
}

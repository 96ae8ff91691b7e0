package proxy

import (
	"reflect"
	"testing"
)

func TestParseBool(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   string
		want bool
		ok   bool
	}{
		{"empty", "", false, false},
		{"zero", "0", false, true},
		{"one", "1", true, true},
		{"true", "TRUE", true, true},
		{"off", " off ", false, true},
		{"yes", "yes", true, true},
		{"junk", "maybe", false, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := parseBool(tc.in)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("parseBool(%q) = (%v,%v), want (%v,%v)", tc.in, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	t.Parallel()
	got := splitList([]string{"epilepsy, adhd", "adhd", "", " reader "})
	want := []string{"epilepsy", "adhd", "reader"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("splitList = %v, want %v", got, want)
	}
}

func TestParseFlags(t *testing.T) {
	t.Parallel()
	got := parseFlags([]string{"colorblind.deuteranopia,autism.hide-extras:off", "bad", "x.:on", "dyslexia.strip-inline-styles:maybe"})
	want := map[string]map[string]bool{
		"colorblind": {"deuteranopia": true},
		"autism":     {"hide-extras": false},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("parseFlags = %v, want %v", got, want)
	}
	if s := formatFlags(got); s != "autism.hide-extras:off,colorblind.deuteranopia:on" {
		t.Fatalf("formatFlags = %q", s)
	}
	if back := parseFlags([]string{formatFlags(got)}); !reflect.DeepEqual(back, want) {
		t.Fatalf("formatted flags do not parse back: %v", back)
	}
}

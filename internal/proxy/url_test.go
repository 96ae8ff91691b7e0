package proxy

import "testing"

func TestNormalizeTarget(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{name: "absolute", in: "https://example.com/a?b=1", want: "https://example.com/a?b=1", ok: true},
		{name: "bare host", in: " example.com/path ", want: "http://example.com/path", ok: true},
		{name: "scheme relative", in: "//example.com/x", want: "http://example.com/x", ok: true},
		{name: "encoded", in: "https%3A%2F%2Fexample.com%2Fp%3Fq%3D1", want: "https://example.com/p?q=1", ok: true},
		{name: "double encoded", in: "https%253A%252F%252Fexample.com%252F", want: "https://example.com/", ok: true},
		{name: "empty", in: "  ", ok: false},
		{name: "ftp", in: "ftp://example.com/file", ok: false},
		{name: "javascript", in: "javascript://alert(1)", ok: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := normalizeTarget(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("normalizeTarget(%q) = (%q,%v), want (%q,%v)", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestResolveURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		base string
		ref  string
		want string
	}{
		{name: "relative same dir", base: "https://example.com/path/dir/page.html", ref: "next.html", want: "https://example.com/path/dir/next.html"},
		{name: "root relative", base: "https://example.com/path/index.html", ref: "/other/page", want: "https://example.com/other/page"},
		{name: "absolute", base: "https://example.com/", ref: "http://other.org/x", want: "http://other.org/x"},
		{name: "no base", base: "", ref: "http://other.org/x", want: "http://other.org/x"},
		{name: "no base relative", base: "", ref: "x.html", want: ""},
		{name: "fragment", base: "https://example.com/", ref: "#top", want: ""},
		{name: "mailto", base: "https://example.com/", ref: "mailto:a@b.c", want: ""},
		{name: "data", base: "https://example.com/", ref: "data:image/png;base64,AA", want: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := resolveURL(tt.base, tt.ref); got != tt.want {
				t.Fatalf("resolveURL(%q, %q) = %q, want %q", tt.base, tt.ref, got, tt.want)
			}
		})
	}
}

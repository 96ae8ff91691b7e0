package proxy

import (
	neturl "net/url"
	"strings"
)

// normalizeTarget turns user input into an absolute http(s) URL. Input that
// arrives percent-encoded more than once is decoded until it has a scheme.
func normalizeTarget(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	for i := 0; i < 2 && !strings.Contains(s, "://") && strings.Contains(s, "%"); i++ {
		dec, err := neturl.QueryUnescape(s)
		if err != nil {
			break
		}
		s = dec
	}
	if s == "" {
		return "", false
	}
	if strings.HasPrefix(s, "//") {
		s = "http:" + s
	} else if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := neturl.Parse(s)
	if err != nil || u.Host == "" {
		return "", false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", false
	}
	return u.String(), true
}

// resolveURL resolves ref against base. It returns "" for references the
// proxy must leave alone: fragments, javascript:, mailto: and the like.
func resolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return ""
	}
	r, err := neturl.Parse(ref)
	if err != nil {
		return ""
	}
	if r.Scheme != "" && r.Scheme != "http" && r.Scheme != "https" {
		return ""
	}
	b, err := neturl.Parse(base)
	if err != nil || b.Scheme == "" {
		if r.IsAbs() {
			return r.String()
		}
		return ""
	}
	return b.ResolveReference(r).String()
}

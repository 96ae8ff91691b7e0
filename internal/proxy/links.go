package proxy

import (
	"net/url"
	"strings"

	"calmpage/assets"
	"calmpage/engine"
)

// resourceAttrs are made absolute before any mode sees the page, so media
// gates and frame fetches work with the upstream URLs.
var resourceAttrs = []struct{ sel, attr string }{
	{"img[src]", "src"},
	{"video[src]", "src"},
	{"video[poster]", "poster"},
	{"source[src]", "src"},
	{"audio[src]", "src"},
	{"iframe[src]", "src"},
	{"link[href]", "href"},
	{"script[src]", "src"},
}

func absolutize(doc *engine.Document, base string) {
	for _, ra := range resourceAttrs {
		for _, n := range doc.QueryAll(ra.sel) {
			if abs := resolveURL(base, engine.Attr(n, ra.attr)); abs != "" {
				doc.SetAttr(n, ra.attr, abs)
			}
		}
	}
	doc.Flush()
}

// rewriteLinks points page links back through the proxy so the chosen
// modes follow the reader around.
func rewriteLinks(doc *engine.Document, base string, opts viewOptions) int {
	n := 0
	for _, a := range doc.QueryAll("a[href]") {
		abs := resolveURL(base, engine.Attr(a, "href"))
		if abs == "" {
			continue
		}
		doc.SetAttr(a, "href", viewURL(abs, opts))
		n++
	}
	for _, g := range doc.QueryAll("[" + engine.GateAttr + "]") {
		for _, attr := range []string{engine.GateRealAttr, engine.GateStaticAttr} {
			if abs := resolveURL(base, engine.Attr(g, attr)); abs != "" {
				doc.SetAttr(g, attr, abs)
			}
		}
	}
	return n
}

func viewURL(target string, opts viewOptions) string {
	q := url.Values{}
	q.Set("url", target)
	if len(opts.Modes) > 0 {
		q.Set("modes", strings.Join(opts.Modes, ","))
	}
	if f := formatFlags(opts.Flags); f != "" {
		q.Set("flags", f)
	}
	return "/view?" + q.Encode()
}

// injectGateScript adds the client runtime when the page has media gates.
func injectGateScript(doc *engine.Document) bool {
	if doc.Query("["+engine.GateAttr+"]") == nil {
		return false
	}
	parent := doc.Head()
	if parent == nil {
		parent = doc.Body()
	}
	if parent == nil {
		return false
	}
	script := doc.CreateElement("script", "src", "/assets/"+assets.GateScript, "defer", "")
	doc.AppendChild(parent, script)
	return true
}

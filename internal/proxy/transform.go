package proxy

import (
	"bytes"
	"context"
	"net/http"

	"calmpage/affect"
	"calmpage/engine"
)

// page is an upstream document with the requested modes applied.
type page struct {
	URL      string
	Status   int
	Doc      *engine.Document
	Registry *affect.Registry
	Options  viewOptions
	Errors   []string
}

// resolveOptions layers site defaults, the client's remembered choices and
// the query, in that order, and remembers explicit choices for next time.
func (s *Server) resolveOptions(r *http.Request, key, target string) viewOptions {
	q := r.URL.Query()
	client := s.prefs.Apply(key, q)
	if len(q["modes"]) > 0 || len(q["flags"]) > 0 || len(client.Prefs) > 0 || q.Get("reset") != "" {
		s.prefs.Remember(key, client)
	}
	return s.sites.Find(target).viewOptions().merge(client)
}

func (s *Server) upstreamHeaders(r *http.Request, site *SiteConfig) http.Header {
	hdr := http.Header{}
	if v := r.Header.Get("Accept-Language"); v != "" {
		hdr.Set("Accept-Language", v)
	}
	if site != nil {
		for k, v := range site.Headers {
			hdr.Set(k, v)
		}
	}
	return hdr
}

// load fetches target and parses it, through the headless browser when one
// is configured so overlap checks see real boxes.
func (s *Server) load(ctx context.Context, r *http.Request, key, target string) (*engine.Document, string, int, error) {
	hdr := s.upstreamHeaders(r, s.sites.Find(target))
	jar := s.cookieJars.Get(key)
	if s.renderer != nil {
		snap, err := s.renderer.Render(ctx, target, hdr, jar)
		var doc *engine.Document
		if err == nil {
			doc, err = snap.Document(engine.WithLogger(s.logger))
		}
		if err == nil {
			return doc, snap.URL, http.StatusOK, nil
		}
		s.logger.Printf("BROWSER: %s failed, falling back to plain fetch: %v", target, err)
	}
	up, err := fetchUpstream(ctx, s.cfg.Client, target, hdr, jar)
	if err != nil {
		return nil, "", 0, err
	}
	doc, err := engine.Parse(bytes.NewReader(up.Body), engine.WithBaseURL(up.URL), engine.WithLogger(s.logger))
	if err != nil {
		return nil, "", 0, err
	}
	return doc, up.URL, up.Status, nil
}

// transform loads target and enables the resolved modes on it. Unknown
// modes and flags are logged and reported but do not fail the page.
func (s *Server) transform(ctx context.Context, r *http.Request, key, target string, opts viewOptions) (*page, error) {
	doc, final, status, err := s.load(ctx, r, key, target)
	if err != nil {
		return nil, err
	}
	absolutize(doc, final)
	p := &page{URL: final, Status: status, Doc: doc, Options: opts}
	p.Registry = affect.NewRegistry(doc,
		engine.WithPreferences(engine.MapPrefs(opts.Prefs)),
		engine.WithAssets(s.assets),
		engine.WithFrames(s.frames),
	)
	for mode, flags := range opts.Flags {
		for flag, on := range flags {
			if err := p.Registry.SetFlag(ctx, mode, flag, on); err != nil {
				p.Errors = append(p.Errors, err.Error())
			}
		}
	}
	if err := p.Registry.Enable(ctx, opts.Modes...); err != nil {
		s.logger.Printf("TRANSFORM: %s: %v", final, err)
		p.Errors = append(p.Errors, err.Error())
	}
	sctx, cancel := context.WithTimeout(ctx, s.cfg.SettleTimeout)
	defer cancel()
	if err := doc.Settle(sctx); err != nil {
		s.logger.Printf("TRANSFORM: %s did not settle: %v", final, err)
	}
	s.logger.Printf("TRANSFORM: %s modes=%v", final, p.Registry.Enabled())
	return p, nil
}

package proxy

import (
	"encoding/json"
	"net/http"

	"calmpage/engine"
)

type modeReport struct {
	Name    string   `json:"name"`
	Applied int      `json:"applied"`
	Tracked int      `json:"tracked"`
	Gates   int      `json:"gates,omitempty"`
	Flags   []string `json:"flags,omitempty"`
}

type pageReport struct {
	URL    string       `json:"url"`
	Status int          `json:"status"`
	Modes  []modeReport `json:"modes"`
	Errors []string     `json:"errors,omitempty"`
}

type gated interface {
	Gates() *engine.Gatekeeper
}

func buildReport(p *page) pageReport {
	rep := pageReport{URL: p.URL, Status: p.Status, Modes: []modeReport{}, Errors: p.Errors}
	for _, name := range p.Registry.Enabled() {
		c, err := p.Registry.Mode(name)
		if err != nil || c.Session() == nil {
			continue
		}
		sess := c.Session()
		mr := modeReport{
			Name:    name,
			Applied: sess.Loop.Applied(),
			Tracked: len(sess.Ledger.Tracked(p.Doc.Root())),
			Flags:   c.State().Flags(),
		}
		if g, ok := c.Module().(gated); ok && g.Gates() != nil {
			mr.Gates = len(g.Gates().Gates())
		}
		rep.Modes = append(rep.Modes, mr)
	}
	return rep
}

// handleReport transforms the page like /view but answers with what each
// mode did instead of the page itself.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	target, ok := s.target(w, r)
	if !ok {
		return
	}
	key := s.clientKey(w, r)
	p, err := s.transform(r.Context(), r, key, target, s.resolveOptions(r, key, target))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(buildReport(p))
}

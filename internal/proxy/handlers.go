package proxy

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"

	"calmpage/affect"
	"github.com/google/uuid"
)

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(s.cfg.IndexHTML)))
	io.WriteString(w, s.cfg.IndexHTML)
}

// clientKey identifies the caller, handing out a cookie to browsers that
// have neither the header nor the cookie yet.
func (s *Server) clientKey(w http.ResponseWriter, r *http.Request) string {
	if r.Header.Get(clientKeyHeader) == "" {
		if _, err := r.Cookie(clientCookie); err != nil {
			id := uuid.NewString()
			http.SetCookie(w, &http.Cookie{Name: clientCookie, Value: id, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
			return id
		}
	}
	return deriveClientKey(r)
}

func (s *Server) target(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		http.Error(w, "missing url", http.StatusBadRequest)
		return "", false
	}
	target, ok := normalizeTarget(raw)
	if !ok {
		http.Error(w, "bad url", http.StatusBadRequest)
		return "", false
	}
	return target, true
}

func (s *Server) serveFromCache(w http.ResponseWriter, key string) bool {
	data, ctype, ok := s.cache.Select(key)
	if !ok {
		return false
	}
	s.logger.Printf("CACHE hit %s", key)
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("X-Calm-Cache", "hit")
	w.Write(data)
	return true
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	target, ok := s.target(w, r)
	if !ok {
		return
	}
	key := s.clientKey(w, r)
	opts := s.resolveOptions(r, key, target)
	ck := cacheKey("view", target, opts)
	if s.serveFromCache(w, ck) {
		return
	}
	p, err := s.transform(r.Context(), r, key, target, opts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	rewriteLinks(p.Doc, p.URL, opts)
	injectGateScript(p.Doc)
	var buf bytes.Buffer
	if err := p.Doc.Render(&buf); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	const ctype = "text/html; charset=utf-8"
	if p.Status == http.StatusOK {
		s.cache.Store(ck, buf.Bytes(), ctype)
	}
	w.Header().Set("Content-Type", ctype)
	w.WriteHeader(p.Status)
	w.Write(buf.Bytes())
}

func (s *Server) serveArticle(w http.ResponseWriter, r *http.Request, kind, ctype string, extract func(*page) (string, error)) {
	target, ok := s.target(w, r)
	if !ok {
		return
	}
	key := s.clientKey(w, r)
	ck := cacheKey(kind, target, viewOptions{})
	if s.serveFromCache(w, ck) {
		return
	}
	p, err := s.transform(r.Context(), r, key, target, viewOptions{})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	text, err := extract(p)
	if errors.Is(err, affect.ErrNoArticle) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.cache.Store(ck, []byte(text), ctype)
	w.Header().Set("Content-Type", ctype)
	io.WriteString(w, text)
}

func (s *Server) handleArticle(w http.ResponseWriter, r *http.Request) {
	s.serveArticle(w, r, "article", "text/plain; charset=utf-8", func(p *page) (string, error) {
		text, err := affect.ArticleText(p.Doc)
		if err != nil {
			return "", err
		}
		return text + "\n", nil
	})
}

func (s *Server) handleArticleMarkdown(w http.ResponseWriter, r *http.Request) {
	s.serveArticle(w, r, "article.md", "text/markdown; charset=utf-8", func(p *page) (string, error) {
		return affect.ArticleMarkdown(p.Doc)
	})
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "pong\n")
}

package proxy

import (
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
)

const (
	clientKeyHeader = "X-Calm-Client"
	clientCookie    = "calm_client"
)

// cookieJarStore keeps one upstream cookie jar per client.
type cookieJarStore struct {
	mu   sync.Mutex
	jars map[string]http.CookieJar
}

func newCookieJarStore() *cookieJarStore {
	return &cookieJarStore{jars: make(map[string]http.CookieJar)}
}

func (s *cookieJarStore) Get(key string) http.CookieJar {
	s.mu.Lock()
	defer s.mu.Unlock()
	if jar, ok := s.jars[key]; ok {
		return jar
	}
	jar, _ := cookiejar.New(nil)
	s.jars[key] = jar
	return jar
}

// deriveClientKey prefers an explicit header, then the client cookie, then
// falls back to address and user agent.
func deriveClientKey(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(clientKeyHeader)); v != "" {
		return v
	}
	if c, err := r.Cookie(clientCookie); err == nil {
		if v := strings.TrimSpace(c.Value); v != "" {
			return v
		}
	}
	host := strings.TrimSpace(strings.Split(r.Header.Get("X-Forwarded-For"), ",")[0])
	if host == "" {
		h, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil || h == "" {
			h = r.RemoteAddr
		}
		host = h
	}
	return host + "|" + r.UserAgent()
}

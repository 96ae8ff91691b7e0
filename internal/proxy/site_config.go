package proxy

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// SiteConfig holds per-host defaults. Files live in the sites directory as
// <host>.json, <host>.yaml or <host>.yml; subdomains fall back to their
// parent domain.
type SiteConfig struct {
	Modes   []string                   `json:"modes" yaml:"modes"`
	Flags   map[string]map[string]bool `json:"flags,omitempty" yaml:"flags,omitempty"`
	Prefs   map[string]any             `json:"prefs,omitempty" yaml:"prefs,omitempty"`
	Headers map[string]string          `json:"headers,omitempty" yaml:"headers,omitempty"`
}

func (c *SiteConfig) viewOptions() viewOptions {
	if c == nil {
		return viewOptions{}
	}
	return viewOptions{Modes: c.Modes, Flags: c.Flags, Prefs: c.Prefs}
}

type siteConfigStore struct {
	dir   string
	mu    sync.RWMutex
	cache map[string]*SiteConfig
}

func newSiteConfigStore(dir string) *siteConfigStore {
	return &siteConfigStore{
		dir:   dir,
		cache: make(map[string]*SiteConfig),
	}
}

func (s *siteConfigStore) Find(target string) *SiteConfig {
	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	s.mu.RLock()
	if cfg, ok := s.cache[host]; ok {
		s.mu.RUnlock()
		return cfg
	}
	s.mu.RUnlock()

	var found *SiteConfig
	labels := strings.Split(host, ".")
	for i := 0; i < len(labels); i++ {
		if cfg := s.load(strings.Join(labels[i:], ".")); cfg != nil {
			found = cfg
			break
		}
	}
	s.mu.Lock()
	s.cache[host] = found
	s.mu.Unlock()
	return found
}

func (s *siteConfigStore) load(host string) *SiteConfig {
	if s.dir == "" {
		return nil
	}
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		data, err := os.ReadFile(filepath.Join(s.dir, host+ext))
		if err != nil {
			continue
		}
		var cfg SiteConfig
		if ext == ".json" {
			err = json.Unmarshal(data, &cfg)
		} else {
			err = yaml.Unmarshal(data, &cfg)
		}
		if err != nil {
			return nil
		}
		for i, m := range cfg.Modes {
			cfg.Modes[i] = strings.TrimSpace(strings.ToLower(m))
		}
		return &cfg
	}
	return nil
}

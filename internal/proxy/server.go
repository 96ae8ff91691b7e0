package proxy

import (
	"io/fs"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"calmpage/affect"
	"calmpage/assets"
	"calmpage/engine"
	"calmpage/internal/browser"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const defaultIndexHTML = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>calmpage</title></head><body>
<h1>calmpage</h1>
<form action="/view" method="get">
<p>URL: <input name="url" size="60"></p>
<p>
<label><input type="checkbox" name="modes" value="epilepsy"> Epilepsy</label>
<label><input type="checkbox" name="modes" value="adhd"> ADHD</label>
<label><input type="checkbox" name="modes" value="autism"> Autism</label>
<label><input type="checkbox" name="modes" value="dyslexia"> Dyslexia</label>
<label><input type="checkbox" name="modes" value="reader"> Reader</label>
<label><input type="checkbox" name="modes" value="colorblind"> Colour blindness</label>
<label><input type="checkbox" name="modes" value="simplify"> Simplify</label>
</p>
<p>Flags: <input name="flags" size="40" placeholder="colorblind.deuteranopia,autism.hide-extras:off"></p>
<button type="submit">View</button>
</form>
</body></html>`

const (
	defaultSitesDir      = "config/sites"
	defaultFrameCacheMB  = 64
	defaultSettleTimeout = 10 * time.Second
	defaultCacheTTL      = 2 * time.Minute
)

// Config describes server wiring and runtime behaviour.
type Config struct {
	IndexHTML     string
	SitesDir      string
	AssetsDir     string
	FrameCacheDir string
	FrameCacheMB  int
	BrowserLayout bool
	SettleTimeout time.Duration
	CacheTTL      time.Duration
	Logger        *log.Logger
	Clock         func() time.Time
	// Client fetches upstream pages; cookie jars are set per request.
	Client *http.Client
	// Frames overrides the static frame source of media gates.
	Frames engine.FrameSource
}

// DefaultConfig populates configuration from environment variables.
func DefaultConfig() Config {
	cfg := Config{
		IndexHTML:     defaultIndexHTML,
		Logger:        log.Default(),
		Clock:         time.Now,
		SitesDir:      strings.TrimSpace(os.Getenv("CALM_SITES_DIR")),
		AssetsDir:     strings.TrimSpace(os.Getenv("CALM_ASSETS_DIR")),
		FrameCacheDir: strings.TrimSpace(os.Getenv("CALM_FRAME_CACHE_DIR")),
		FrameCacheMB:  defaultFrameCacheMB,
	}
	if cfg.SitesDir == "" {
		cfg.SitesDir = defaultSitesDir
	}
	if v := strings.TrimSpace(os.Getenv("CALM_FRAME_CACHE_MB")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.FrameCacheMB = n
		}
	}
	if on, ok := parseBool(os.Getenv("CALM_BROWSER_LAYOUT")); ok {
		cfg.BrowserLayout = on
	}
	return cfg
}

// Server exposes the HTTP handlers implementing the proxy behaviour.
type Server struct {
	cfg        Config
	router     chi.Router
	logger     *log.Logger
	prefs      *viewPrefStore
	cookieJars *cookieJarStore
	cache      *pageCache
	sites      *siteConfigStore
	frames     engine.FrameSource
	assets     engine.AssetLoader
	assetFS    fs.FS
	renderer   *browser.Renderer
	clock      func() time.Time
}

// New wires a new proxy server with the provided configuration.
func New(cfg Config) *Server {
	if cfg.IndexHTML == "" {
		cfg.IndexHTML = defaultIndexHTML
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.SitesDir == "" {
		cfg.SitesDir = defaultSitesDir
	}
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = defaultSettleTimeout
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 15 * time.Second}
	}
	s := &Server{
		cfg:        cfg,
		logger:     cfg.Logger,
		prefs:      newViewPrefStore(),
		cookieJars: newCookieJarStore(),
		cache:      newPageCache(cfg.Clock, cfg.CacheTTL),
		sites:      newSiteConfigStore(cfg.SitesDir),
		frames:     cfg.Frames,
		assets:     assets.Loader(),
		assetFS:    assets.FS,
		clock:      cfg.Clock,
	}
	if s.frames == nil {
		mem := int64(cfg.FrameCacheMB) << 20
		s.frames = engine.NewFrameFetcher(engine.NewFrameCache(mem, cfg.FrameCacheDir, 4*mem))
	}
	if cfg.AssetsDir != "" {
		s.assets = engine.ChainAssets{engine.DirAssets(cfg.AssetsDir), assets.Loader()}
		s.assetFS = os.DirFS(cfg.AssetsDir)
	}
	if cfg.BrowserLayout {
		s.renderer = browser.NewRenderer(cfg.Logger, browser.Options{NetworkIdle: 500 * time.Millisecond})
	}
	s.registerRoutes()
	s.logger.Printf("SERVER: modes %s, sites %s", strings.Join(affect.Names(), ","), cfg.SitesDir)
	return s
}

// NewServer builds a server from the environment.
func NewServer() *Server {
	return New(DefaultConfig())
}

// Close releases the headless browser, if any.
func (s *Server) Close() {
	if s.renderer != nil {
		s.renderer.Close()
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler { return withLogging(s.logger, next) })
	r.Get("/", s.handleRoot)
	r.Get("/view", s.handleView)
	r.Get("/article", s.handleArticle)
	r.Get("/article.md", s.handleArticleMarkdown)
	r.Get("/report", s.handleReport)
	r.Get("/ping", s.handlePing)
	r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.FS(s.assetFS))))
	s.router = r
}

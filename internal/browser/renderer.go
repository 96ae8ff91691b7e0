// Package browser renders pages in headless Chrome and turns the result into
// an engine document with real geometry attached.
package browser

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const (
	defaultTimeout = 25 * time.Second
	defaultWidth   = 1280
	defaultHeight  = 900
)

// Options tune a Renderer.
type Options struct {
	Width, Height int
	Timeout       time.Duration
	// NetworkIdle waits until no request has been in flight for this long
	// before the page is measured.
	NetworkIdle time.Duration
}

// Renderer owns a Chrome allocator shared by every render.
type Renderer struct {
	allocator context.Context
	cancel    context.CancelFunc
	logger    *log.Logger
	opts      Options
}

func NewRenderer(logger *log.Logger, opts Options) *Renderer {
	if logger == nil {
		logger = log.Default()
	}
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = defaultHeight
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	flags := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.WindowSize(opts.Width, opts.Height),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), flags...)
	return &Renderer{allocator: allocCtx, cancel: cancel, logger: logger, opts: opts}
}

func (r *Renderer) Close() {
	if r.cancel != nil {
		r.cancel()
	}
}

// Render loads target, tags every element with IndexAttr, measures it and
// returns the tagged markup with the boxes. Cookies are read from and
// written back to jar when it is set.
func (r *Renderer) Render(ctx context.Context, target string, hdr http.Header, jar http.CookieJar) (*Snapshot, error) {
	if strings.TrimSpace(target) == "" {
		return nil, fmt.Errorf("browser: empty target url")
	}
	taskCtx, cancelTab := chromedp.NewContext(r.allocator)
	defer cancelTab()
	if ctx != nil {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithCancel(taskCtx)
		go func() {
			select {
			case <-ctx.Done():
				cancel()
			case <-taskCtx.Done():
			}
		}()
		defer cancel()
	}
	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, r.opts.Timeout)
	defer cancelTimeout()

	var (
		mu       sync.Mutex
		inFlight int
		lastSeen = time.Now()
	)
	chromedp.ListenTarget(taskCtx, func(ev interface{}) {
		switch ev.(type) {
		case *network.EventRequestWillBeSent:
			mu.Lock()
			inFlight++
			lastSeen = time.Now()
			mu.Unlock()
		case *network.EventLoadingFinished, *network.EventLoadingFailed:
			mu.Lock()
			if inFlight > 0 {
				inFlight--
			}
			lastSeen = time.Now()
			mu.Unlock()
		}
	})

	headers := http.Header{}
	for k, vs := range hdr {
		headers[k] = append([]string(nil), vs...)
	}
	actions := []chromedp.Action{network.Enable()}
	if ua := headers.Get("User-Agent"); ua != "" {
		actions = append(actions, emulation.SetUserAgentOverride(ua))
		headers.Del("User-Agent")
	}
	if extra := extraHeaders(headers); len(extra) > 0 {
		actions = append(actions, network.SetExtraHTTPHeaders(extra))
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("browser: %w", err)
	}
	if jar != nil {
		if params := cookieParams(jar.Cookies(u), u); len(params) > 0 {
			actions = append(actions, network.SetCookies(params))
		}
	}

	snap := &Snapshot{}
	var measured measurement
	var browserCookies []*network.Cookie
	actions = append(actions,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if r.opts.NetworkIdle > 0 {
		idle := r.opts.NetworkIdle
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			tick := time.NewTicker(50 * time.Millisecond)
			defer tick.Stop()
			for {
				mu.Lock()
				quiet := inFlight == 0 && time.Since(lastSeen) >= idle
				mu.Unlock()
				if quiet {
					return nil
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-tick.C:
				}
			}
		}))
	}
	actions = append(actions,
		chromedp.Evaluate(measureScript, &measured),
		chromedp.Location(&snap.URL),
		chromedp.OuterHTML("html", &snap.HTML, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			browserCookies, err = network.GetCookies().WithURLs([]string{target}).Do(ctx)
			return err
		}),
	)
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return nil, fmt.Errorf("browser: render %s: %w", target, err)
	}
	if snap.URL == "" {
		snap.URL = target
	}
	snap.Width, snap.Height = measured.Width, measured.Height
	snap.Boxes = measured.Boxes
	if jar != nil && len(browserCookies) > 0 {
		if final, err := url.Parse(snap.URL); err == nil {
			jar.SetCookies(final, httpCookies(browserCookies))
		}
	}
	r.logger.Printf("BROWSER: %s rendered, %d boxes", snap.URL, len(snap.Boxes))
	return snap, nil
}

func extraHeaders(h http.Header) network.Headers {
	out := network.Headers{}
	for k, vs := range h {
		name := http.CanonicalHeaderKey(k)
		if len(vs) == 0 || name == "Content-Length" {
			continue
		}
		out[name] = strings.Join(vs, ", ")
	}
	return out
}

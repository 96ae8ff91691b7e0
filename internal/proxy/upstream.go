package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html/charset"
)

const (
	defaultUpstreamUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120 Safari/537.36 calmpage"
	maxUpstreamBody   = 8 << 20
)

// upstreamPage is a fetched page, already decoded to UTF-8.
type upstreamPage struct {
	URL    string
	Status int
	Body   []byte
}

// fetchUpstream loads target with the client's cookie jar. Error statuses
// still return the body so the page can be transformed like any other.
func fetchUpstream(ctx context.Context, client *http.Client, target string, hdr http.Header, jar http.CookieJar) (*upstreamPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("upstream: %w", err)
	}
	copyHeader(req.Header, hdr)
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", defaultUpstreamUA)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")
	}
	if req.Header.Get("Accept-Language") == "" {
		req.Header.Set("Accept-Language", "en,*;q=0.5")
	}

	c := *client
	if jar != nil {
		c.Jar = jar
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: %w", err)
	}
	defer resp.Body.Close()

	ctype := resp.Header.Get("Content-Type")
	if ctype != "" && !strings.Contains(ctype, "html") && !strings.HasPrefix(ctype, "text/") {
		return nil, fmt.Errorf("upstream: %s is %s, not a page", target, ctype)
	}
	r, err := charset.NewReader(io.LimitReader(resp.Body, maxUpstreamBody), ctype)
	if err != nil {
		return nil, fmt.Errorf("upstream: %w", err)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("upstream: %w", err)
	}
	return &upstreamPage{URL: resp.Request.URL.String(), Status: resp.StatusCode, Body: body}, nil
}

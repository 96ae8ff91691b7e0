package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// FrameSource produces a still image for an animated source.
type FrameSource interface {
	// FirstFrame returns a data: URI of the first frame of the image at url.
	FirstFrame(ctx context.Context, url string) (string, error)
}

const (
	defaultFrameWidth = 1280
	maxFrameBytes     = 16 << 20
	maxFramePixels    = 40 << 20
)

// FrameFetcher downloads images, decodes their first frame, scales it down
// to MaxWidth and encodes it as PNG. Results are cached by URL.
type FrameFetcher struct {
	Client    *http.Client
	Cache     *FrameCache
	MaxWidth  int
	UserAgent string
}

func NewFrameFetcher(cache *FrameCache) *FrameFetcher {
	return &FrameFetcher{
		Client:    &http.Client{Timeout: 8 * time.Second},
		Cache:     cache,
		MaxWidth:  defaultFrameWidth,
		UserAgent: "calmpage-frames/1.0",
	}
}

func (f *FrameFetcher) FirstFrame(ctx context.Context, url string) (string, error) {
	key := fmt.Sprintf("png|w=%d|%s", f.MaxWidth, url)
	if b, ok := f.Cache.Get(key); ok {
		return pngDataURI(b), nil
	}
	raw, err := f.load(ctx, url)
	if err != nil {
		return "", err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", url, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxFramePixels {
		return "", fmt.Errorf("decode %s: %dx%d exceeds the frame pixel budget", url, cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", url, err)
	}
	img, _, _ = clampImageToWidth(img, f.MaxWidth)
	var out bytes.Buffer
	if err := imaging.Encode(&out, imaging.Clone(img), imaging.PNG); err != nil {
		return "", fmt.Errorf("encode frame: %w", err)
	}
	f.Cache.Put(key, out.Bytes())
	return pngDataURI(out.Bytes()), nil
}

func (f *FrameFetcher) load(ctx context.Context, url string) ([]byte, error) {
	if strings.HasPrefix(url, "data:") {
		return decodeDataURI(url)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "image/*")
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes))
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("fetch %s: empty body", url)
	}
	return raw, nil
}

func decodeDataURI(uri string) ([]byte, error) {
	comma := strings.IndexByte(uri, ',')
	if comma == -1 {
		return nil, fmt.Errorf("malformed data uri")
	}
	meta, payload := uri[len("data:"):comma], uri[comma+1:]
	if strings.HasSuffix(meta, ";base64") {
		return base64.StdEncoding.DecodeString(payload)
	}
	return []byte(payload), nil
}

func pngDataURI(b []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(b)
}

func clampImageToWidth(img image.Image, maxWidth int) (image.Image, int, int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxWidth <= 0 || w <= 0 || h <= 0 || w <= maxWidth {
		return img, w, h
	}
	scaledH := int(math.Round(float64(h) * float64(maxWidth) / float64(w)))
	if scaledH < 1 {
		scaledH = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, scaledH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst, maxWidth, scaledH
}

package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tinyGIF(t *testing.T, w, h int) []byte {
	t.Helper()
	pal := color.Palette{color.Black, color.White}
	anim := &gif.GIF{}
	for i := 0; i < 2; i++ {
		frame := image.NewPaletted(image.Rect(0, 0, w, h), pal)
		frame.SetColorIndex(0, 0, uint8(i))
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, 10)
	}
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, anim))
	return buf.Bytes()
}

func decodeFrame(t *testing.T, uri string) image.Image {
	t.Helper()
	const prefix = "data:image/png;base64,"
	require.True(t, strings.HasPrefix(uri, prefix))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, prefix))
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	return img
}

func TestFrameFetcherFirstFrame(t *testing.T) {
	t.Parallel()
	body := tinyGIF(t, 20, 10)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/anim.gif" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/gif")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	f := NewFrameFetcher(NewFrameCache(1<<20, "", 0))
	f.MaxWidth = 10
	ctx := context.Background()

	uri, err := f.FirstFrame(ctx, srv.URL+"/anim.gif")
	require.NoError(t, err)
	img := decodeFrame(t, uri)
	assert.Equal(t, 10, img.Bounds().Dx())
	assert.Equal(t, 5, img.Bounds().Dy())

	again, err := f.FirstFrame(ctx, srv.URL+"/anim.gif")
	require.NoError(t, err)
	assert.Equal(t, uri, again)
	assert.EqualValues(t, 1, hits.Load(), "second request is served from cache")

	_, err = f.FirstFrame(ctx, srv.URL+"/missing.gif")
	assert.ErrorContains(t, err, "status 404")
}

func TestFrameFetcherDataURI(t *testing.T) {
	t.Parallel()
	f := NewFrameFetcher(nil)
	src := "data:image/gif;base64," + base64.StdEncoding.EncodeToString(tinyGIF(t, 4, 4))
	uri, err := f.FirstFrame(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 4, decodeFrame(t, uri).Bounds().Dx())

	_, err = f.FirstFrame(context.Background(), "data:text/plain,hello")
	assert.Error(t, err)
}

func TestFrameFetcherRejectsHugeCanvas(t *testing.T) {
	t.Parallel()
	// Header and logical screen descriptor only: 10000x10000, no image data.
	header := []byte("GIF89a\x10\x27\x10\x27\x00\x00\x00\x3b")
	src := "data:image/gif;base64," + base64.StdEncoding.EncodeToString(header)
	uri, err := NewFrameFetcher(nil).FirstFrame(context.Background(), src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pixel budget")
	assert.Empty(t, uri)
}

func TestFrameCacheMemoryEviction(t *testing.T) {
	t.Parallel()
	c := NewFrameCache(10, "", 0)
	c.Put("a", []byte("12345"))
	c.Put("b", []byte("12345"))
	_, ok := c.Get("a")
	require.True(t, ok)
	c.Put("c", []byte("12345"))

	_, ok = c.Get("b")
	assert.False(t, ok, "least recently used entry is evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, c.mem.count())

	c.Put("huge", bytes.Repeat([]byte("x"), 11))
	_, ok = c.Get("huge")
	assert.False(t, ok)
}

func TestFrameCacheDiskTier(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	c := NewFrameCache(0, dir, 1<<20)
	c.Put("k", []byte("frame"))

	fresh := NewFrameCache(1<<10, dir, 1<<20)
	b, ok := fresh.Get("k")
	require.True(t, ok)
	assert.Equal(t, "frame", string(b))
	assert.Equal(t, 1, fresh.mem.count(), "disk hits are promoted to memory")

	var nilCache *FrameCache
	_, ok = nilCache.Get("k")
	assert.False(t, ok)
	nilCache.Put("k", []byte("x"))
}

func TestFrameCacheDiskPrune(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	c := NewFrameCache(0, dir, 8)
	c.Put("a", []byte("12345"))
	c.Put("b", []byte("12345"))
	_, okA := c.Get("a")
	_, okB := c.Get("b")
	assert.False(t, okA && okB, "directory is pruned to its budget")
}

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreferenceAccessors(t *testing.T) {
	t.Parallel()
	m := map[string]any{
		"font":    " OpenDyslexic ",
		"size":    "18px",
		"spacing": json.Number("1.5"),
		"lines":   2,
		"bold":    "true",
		"dark":    false,
		"empty":   "  ",
	}
	s, ok := PrefString(m, "font")
	assert.True(t, ok)
	assert.Equal(t, "OpenDyslexic", s)
	_, ok = PrefString(m, "empty")
	assert.False(t, ok)

	for key, want := range map[string]float64{"size": 18, "spacing": 1.5, "lines": 2} {
		got, ok := PrefNumber(m, key)
		assert.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}
	_, ok = PrefNumber(m, "font")
	assert.False(t, ok)

	b, ok := PrefBool(m, "bold")
	assert.True(t, ok && b)
	b, ok = PrefBool(m, "dark")
	assert.True(t, ok)
	assert.False(t, b)
	_, ok = PrefBool(m, "missing")
	assert.False(t, ok)
}

func TestAssetLoaders(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := FSAssets{FS: fstest.MapFS{"css/a.css": {Data: []byte("a{}")}}}

	b, err := mem.Load(ctx, "/css/../css/a.css")
	require.NoError(t, err)
	assert.Equal(t, "a{}", string(b))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/static/b.css" {
			_, _ = w.Write([]byte("b{}"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()
	remote := HTTPAssets{Base: srv.URL + "/static", Client: srv.Client()}

	b, err = remote.Load(ctx, "b.css")
	require.NoError(t, err)
	assert.Equal(t, "b{}", string(b))

	chain := ChainAssets{mem, nil, remote}
	b, err = chain.Load(ctx, "b.css")
	require.NoError(t, err)
	assert.Equal(t, "b{}", string(b))

	_, err = chain.Load(ctx, "c.css")
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.ErrorContains(t, err, "status 404")

	_, err = ChainAssets{}.Load(ctx, "x")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

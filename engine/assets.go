package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
	"time"
)

// AssetLoader fetches a named resource (stylesheet, font) by logical path.
type AssetLoader interface {
	Load(ctx context.Context, name string) ([]byte, error)
}

// AssetFunc adapts a function to AssetLoader.
type AssetFunc func(ctx context.Context, name string) ([]byte, error)

func (f AssetFunc) Load(ctx context.Context, name string) ([]byte, error) { return f(ctx, name) }

// FSAssets serves assets from a file system, e.g. an embed.FS.
type FSAssets struct {
	FS fs.FS
}

func (a FSAssets) Load(_ context.Context, name string) ([]byte, error) {
	if a.FS == nil {
		return nil, fs.ErrNotExist
	}
	return fs.ReadFile(a.FS, strings.TrimPrefix(path.Clean("/"+name), "/"))
}

// DirAssets serves assets from a directory on disk.
func DirAssets(dir string) FSAssets { return FSAssets{FS: os.DirFS(dir)} }

// HTTPAssets fetches assets relative to a base URL.
type HTTPAssets struct {
	Base   string
	Client *http.Client
}

func (a HTTPAssets) Load(ctx context.Context, name string) ([]byte, error) {
	target := resolveAbsURL(strings.TrimSuffix(a.Base, "/")+"/", strings.TrimPrefix(name, "/"))
	if target == "" {
		return nil, fmt.Errorf("asset %q: bad base %q", name, a.Base)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/css,*/*;q=0.1")
	client := a.Client
	if client == nil {
		client = &http.Client{Timeout: 8 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("asset %s: status %d", target, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}

// ChainAssets tries each loader in turn.
type ChainAssets []AssetLoader

func (c ChainAssets) Load(ctx context.Context, name string) ([]byte, error) {
	var errs []error
	for _, l := range c {
		if l == nil {
			continue
		}
		b, err := l.Load(ctx, name)
		if err == nil {
			return b, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fs.ErrNotExist
	}
	return nil, errors.Join(errs...)
}

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
)

// PreferenceStore is the external key-value store modules read at enable
// time. Implementations may fail or panic; callers go through SafePrefs.
type PreferenceStore interface {
	Get(ctx context.Context, keys ...string) (map[string]any, error)
}

// PrefsFunc adapts a function to PreferenceStore.
type PrefsFunc func(ctx context.Context, keys ...string) (map[string]any, error)

func (f PrefsFunc) Get(ctx context.Context, keys ...string) (map[string]any, error) {
	return f(ctx, keys...)
}

// MapPrefs is an in-memory store.
type MapPrefs map[string]any

func (m MapPrefs) Get(_ context.Context, keys ...string) (map[string]any, error) {
	out := make(map[string]any, len(m))
	if len(keys) == 0 {
		for k, v := range m {
			out[k] = v
		}
		return out, nil
	}
	for _, k := range keys {
		if v, ok := m[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// SafePrefs reads keys from store and never fails: a nil store, an error
// or a panic all yield an empty map.
func SafePrefs(ctx context.Context, store PreferenceStore, logger *log.Logger, keys ...string) (out map[string]any) {
	out = map[string]any{}
	if store == nil {
		return out
	}
	defer func() {
		if r := recover(); r != nil {
			if logger != nil {
				logger.Printf("PREFS: store panicked: %v", r)
			}
			out = map[string]any{}
		}
	}()
	got, err := store.Get(ctx, keys...)
	if err != nil {
		if logger != nil {
			logger.Printf("PREFS: store unavailable: %v", err)
		}
		return out
	}
	for k, v := range got {
		out[k] = v
	}
	return out
}

// PrefString returns a non-empty string preference.
func PrefString(m map[string]any, key string) (string, bool) {
	switch v := m[key].(type) {
	case string:
		s := strings.TrimSpace(v)
		return s, s != ""
	case fmt.Stringer:
		s := strings.TrimSpace(v.String())
		return s, s != ""
	}
	return "", false
}

// PrefNumber accepts any numeric representation, including numeric strings
// with a px suffix.
func PrefNumber(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSuffix(strings.TrimSpace(v), "px")
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	return 0, false
}

func PrefBool(m map[string]any, key string) (bool, bool) {
	switch v := m[key].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return b, err == nil
	}
	return false, false
}

package proxy

import (
	"net/http"
	"sort"
	"strings"
)

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseBool accepts the spellings people type into query strings.
func parseBool(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes", "y":
		return true, true
	case "0", "false", "off", "no", "n":
		return false, true
	}
	return false, false
}

// splitList flattens repeated and comma separated values, dropping blanks
// and duplicates while keeping the first occurrence order.
func splitList(values []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" || seen[part] {
				continue
			}
			seen[part] = true
			out = append(out, part)
		}
	}
	return out
}

// parseFlags reads "mode.flag" entries with an optional ":on"/":off"
// suffix.
func parseFlags(values []string) map[string]map[string]bool {
	out := map[string]map[string]bool{}
	for _, entry := range splitList(values) {
		name, state, hasState := strings.Cut(entry, ":")
		on := true
		if hasState {
			v, ok := parseBool(state)
			if !ok {
				continue
			}
			on = v
		}
		mode, flag, ok := strings.Cut(name, ".")
		mode, flag = strings.TrimSpace(mode), strings.TrimSpace(flag)
		if !ok || mode == "" || flag == "" {
			continue
		}
		if out[mode] == nil {
			out[mode] = map[string]bool{}
		}
		out[mode][flag] = on
	}
	return out
}

// formatFlags is the inverse of parseFlags, sorted for stable keys.
func formatFlags(flags map[string]map[string]bool) string {
	var parts []string
	for mode, fs := range flags {
		for flag, on := range fs {
			state := "on"
			if !on {
				state = "off"
			}
			parts = append(parts, mode+"."+flag+":"+state)
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

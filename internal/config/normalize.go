package config

import (
	"strconv"
	"strings"
)

// ParseBool maps the recognized admin-UI forms of a toggle to a boolean.
// Recognized: true/false, yes/no, 1/0 (strings case-insensitive), native
// bools, and numbers. Anything else, including nil and "", yields def.
func ParseBool(v any, def bool) bool {
	switch t := v.(type) {
	case nil:
		return def
	case bool:
		return t
	case float64:
		if t == 0 {
			return false
		}
		return true
	case int:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
		return def
	}
	return def
}

// NormalizeID coerces the shapes the admin UI produces for an id field
// (string, number, single-element array, or object with an id-ish member)
// into an integer id. Returns 0 when no usable id is present.
func NormalizeID(v any) int64 {
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		return int64(t)
	case int:
		return int64(t)
	case int64:
		return t
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0
		}
		return n
	case []any:
		if len(t) == 0 {
			return 0
		}
		return NormalizeID(t[0])
	case map[string]any:
		for _, k := range []string{"id", "value", "group_id", "board_id"} {
			if raw, ok := t[k]; ok {
				if id := NormalizeID(raw); id != 0 {
					return id
				}
			}
		}
		return 0
	}
	return 0
}

// NormalizeGroupIDs coerces a group-list field into positive group ids.
func NormalizeGroupIDs(v any) []int64 {
	var out []int64
	switch t := v.(type) {
	case []any:
		for _, raw := range t {
			if id := NormalizeID(raw); id > 0 {
				out = append(out, id)
			}
		}
	default:
		if id := NormalizeID(v); id > 0 {
			out = append(out, id)
		}
	}
	return out
}

// LooksLikeURL reports whether s is a usable image/link reference as-is.
func LooksLikeURL(s string) bool {
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "//")
}

// NormalizeImageURL resolves an image field to a URL. Literal URLs pass
// through; anything else is treated as a name looked up in the plugin
// image map (exact, then lower-cased). Unresolvable values yield "".
func NormalizeImageURL(v any, images map[string]string) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []any:
		if len(t) == 0 {
			return ""
		}
		return NormalizeImageURL(t[0], images)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return ""
		}
		if LooksLikeURL(s) {
			return s
		}
		if u, ok := images[s]; ok {
			return u
		}
		if u, ok := images[strings.ToLower(s)]; ok {
			return u
		}
		return ""
	case map[string]any:
		for _, k := range []string{"url", "src", "image_url", "image"} {
			if raw, ok := t[k].(string); ok && LooksLikeURL(strings.TrimSpace(raw)) {
				return strings.TrimSpace(raw)
			}
		}
		for _, k := range []string{"name", "id", "value"} {
			if raw, ok := t[k].(string); ok && strings.TrimSpace(raw) != "" {
				return NormalizeImageURL(strings.TrimSpace(raw), images)
			}
		}
		return ""
	}
	return ""
}

func normalizeString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func normalizeInt(v any, def int) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return def
		}
		return n
	}
	return def
}

package scraper

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Extractor pulls one logical field out of a loosely typed upstream row
// (a decoded JSON object or array). It reports false when nothing usable was found.
type Extractor[T any] func(row any) (T, bool)

// First tries each extractor in order and returns the first match.
func First[T any](row any, chain ...Extractor[T]) (T, bool) {
	for _, ex := range chain {
		if v, ok := ex(row); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// lookup finds key in an object, exact match first, then case-insensitively.
func lookup(row any, key string) (any, bool) {
	m, ok := row.(map[string]any)
	if !ok {
		return nil, false
	}
	if v, ok := m[key]; ok && v != nil {
		return v, true
	}
	for k, v := range m {
		if v != nil && strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

// StringField returns the first non-empty string stored under one of keys.
func StringField(keys ...string) Extractor[string] {
	return func(row any) (string, bool) {
		for _, k := range keys {
			v, ok := lookup(row, k)
			if !ok {
				continue
			}
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s), true
			}
		}
		return "", false
	}
}

// TextField is like StringField but also renders numbers, e.g. numeric ids or years.
func TextField(keys ...string) Extractor[string] {
	return func(row any) (string, bool) {
		for _, k := range keys {
			v, ok := lookup(row, k)
			if !ok {
				continue
			}
			if s, ok := toText(v); ok {
				return s, true
			}
		}
		return "", false
	}
}

// PriceField returns the first positive amount under one of keys. Strings go through ParsePrice.
func PriceField(keys ...string) Extractor[float64] {
	return func(row any) (float64, bool) {
		for _, k := range keys {
			v, ok := lookup(row, k)
			if !ok {
				continue
			}
			if n, ok := toPrice(v); ok && n > 0 {
				return n, true
			}
		}
		return 0, false
	}
}

// DateField returns the first value under one of keys that ParseDate accepts.
func DateField(keys ...string) Extractor[time.Time] {
	return func(row any) (time.Time, bool) {
		for _, k := range keys {
			v, ok := lookup(row, k)
			if !ok {
				continue
			}
			s, ok := toText(v)
			if !ok {
				continue
			}
			if t, ok := ParseDate(s); ok {
				return t, true
			}
		}
		return time.Time{}, false
	}
}

// StringAt scans the first n cells of an array row for a string accepted by match.
func StringAt(n int, match func(string) bool) Extractor[string] {
	return func(row any) (string, bool) {
		cells, ok := row.([]any)
		if !ok {
			return "", false
		}
		for i := 0; i < len(cells) && i < n; i++ {
			if s, ok := cells[i].(string); ok && match(s) {
				return strings.TrimSpace(s), true
			}
		}
		return "", false
	}
}

// PriceIn returns the first positive amount anywhere in an array row.
func PriceIn() Extractor[float64] {
	return func(row any) (float64, bool) {
		cells, ok := row.([]any)
		if !ok {
			return 0, false
		}
		for _, c := range cells {
			if n, ok := toPrice(c); ok && n > 0 {
				return n, true
			}
		}
		return 0, false
	}
}

func toText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		t = strings.TrimSpace(t)
		return t, t != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	case int:
		return strconv.Itoa(t), true
	}
	return "", false
}

func toPrice(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case int:
		return float64(t), true
	case string:
		return ParsePrice(t)
	}
	return 0, false
}

// Items unwraps the list shapes upstream APIs use: a bare array, {data: [...]},
// or the paged {data: [meta, [...]]}.
func Items(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case map[string]any:
		data, ok := lookup(t, "data")
		if !ok {
			return nil, false
		}
		arr, ok := data.([]any)
		if !ok {
			return nil, false
		}
		if len(arr) == 2 {
			if _, meta := arr[0].(map[string]any); meta {
				if inner, ok := arr[1].([]any); ok {
					return inner, true
				}
			}
		}
		return arr, true
	}
	return nil, false
}

// DecodeJSON unmarshals into a generic tree, keeping numbers as float64.
func DecodeJSON(b []byte) (any, error) {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}

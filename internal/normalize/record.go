// Package normalize maps the backend's many historical payload shapes onto
// the canonical conversation and message types. It is the only package that
// knows raw backend field names. Nothing here returns an error: missing or
// malformed fields fall back to documented defaults.
package normalize

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

type record map[string]any

// decode parses raw JSON keeping numbers exact. Invalid or empty input yields nil.
func decode(raw []byte) any {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}

// records accepts a bare array or an object holding the array under one of keys.
func records(raw []byte, keys ...string) []record {
	var items []any
	switch v := decode(raw).(type) {
	case []any:
		items = v
	case map[string]any:
		for _, k := range keys {
			if arr, ok := v[k].([]any); ok {
				items = arr
				break
			}
		}
	}
	out := make([]record, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, record(m))
		}
	}
	return out
}

func (r record) lookup(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// str returns the first non-empty string-like value among keys.
func (r record) str(keys ...string) string {
	for _, k := range keys {
		if s := scalarString(r[k]); s != "" {
			return s
		}
	}
	return ""
}

func (r record) obj(keys ...string) record {
	for _, k := range keys {
		if m, ok := r[k].(map[string]any); ok {
			return record(m)
		}
	}
	return nil
}

func (r record) integer(keys ...string) (int, bool) {
	for _, k := range keys {
		switch v := r[k].(type) {
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return clampInt(f), true
			}
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return clampInt(f), true
			}
		}
	}
	return 0, false
}

// clampInt converts f to an int, saturating at the 32-bit range so a
// malformed counter can never wrap.
func clampInt(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int(f)
}

func (r record) boolean(keys ...string) (bool, bool) {
	v, ok := r.lookup(keys...)
	if !ok {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case json.Number:
		return b.String() != "0", true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "1", "true", "yes", "t":
			return true, true
		case "0", "false", "no", "f", "":
			return false, true
		}
	}
	return false, false
}

func (r record) time(keys ...string) (time.Time, bool) {
	for _, k := range keys {
		if t, ok := parseTime(r[k]); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	}
	return ""
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05-07",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime accepts the string layouts above and unix seconds or milliseconds.
func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.UTC(), true
			}
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return unixTime(n), true
		}
	case json.Number:
		if n, err := t.Float64(); err == nil {
			return unixTime(n), true
		}
	}
	return time.Time{}, false
}

func unixTime(n float64) time.Time {
	if n > 1e12 {
		return time.UnixMilli(int64(n)).UTC()
	}
	sec, frac := math.Modf(n)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

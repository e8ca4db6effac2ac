// Package raw reads environment variables during bootstrap, before the
// logger exists; it must not import the logger
package raw

import (
	"os"
	"slices"
	"strconv"
	"strings"
)

// Env is a prefixed view over a variable lookup
type Env struct {
	prefix string
	lookup func(string) (string, bool)
}

// New reads the process environment
func New() Env { return Env{lookup: os.LookupEnv} }

// Map reads from m, for tests and fixed setups
func Map(m map[string]string) Env {
	return Env{lookup: func(k string) (string, bool) { v, ok := m[k]; return v, ok }}
}

// Prefix narrows the view, e.g. New().Prefix("LOG_")
func (e Env) Prefix(p string) Env { return Env{prefix: e.prefix + p, lookup: e.lookup} }

func (e Env) value(key string) string {
	v, _ := e.lookup(e.prefix + key)
	return strings.TrimSpace(v)
}

// String is the trimmed value or def when unset or blank
func (e Env) String(key, def string) string {
	if v := e.value(key); v != "" {
		return v
	}
	return def
}

// Bool accepts what strconv.ParseBool does plus yes/no; anything else is def
func (e Env) Bool(key string, def bool) bool {
	switch v := strings.ToLower(e.value(key)); v {
	case "yes":
		return true
	case "no":
		return false
	default:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def
		}
		return b
	}
}

// Int is a non-negative integer or def
func (e Env) Int(key string, def int) int {
	n, err := strconv.Atoi(e.value(key))
	if err != nil || n < 0 {
		return def
	}
	return n
}

// OneOf is the lowercased value when allowed lists it, def otherwise
func (e Env) OneOf(key, def string, allowed ...string) string {
	v := strings.ToLower(e.value(key))
	if slices.Contains(allowed, v) {
		return v
	}
	return def
}

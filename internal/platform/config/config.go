// Package config reads typed settings from environment variables
//
// Settings are optional: a missing value takes the default and a malformed one
// logs a warning and takes the default. Only enum mismatches panic, since a
// typo there usually selects a different backend or mode.
package config

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"hitclust/internal/platform/logger"
)

// Conf is a prefixed view over the environment, e.g. New().Prefix("CORE_RUNS_")
type Conf struct {
	prefix string
	lookup func(string) (string, bool)
}

// New reads the process environment
func New() Conf { return Conf{lookup: os.LookupEnv} }

// FromMap reads from m instead of the environment
func FromMap(m map[string]string) Conf {
	return Conf{lookup: func(k string) (string, bool) { v, ok := m[k]; return v, ok }}
}

// Prefix narrows the view by p
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p, lookup: c.lookup} }

func (c Conf) key(k string) string { return c.prefix + k }

func (c Conf) value(k string) string {
	v, _ := c.lookup(c.key(k))
	return strings.TrimSpace(v)
}

// Has reports whether key is set to something other than blanks
func (c Conf) Has(key string) bool { return c.value(key) != "" }

// may parses key, falling back to def when it is unset, unparsable or rejected by ok
func may[T any](c Conf, key string, def T, what string, parse func(string) (T, error), ok func(T) bool) T {
	s := c.value(key)
	if s == "" {
		return def
	}
	v, err := parse(s)
	if err == nil && (ok == nil || ok(v)) {
		return v
	}
	logger.Get().Warn().
		Str("key", c.key(key)).
		Str("value", s).
		Interface("default", def).
		Msgf("invalid %s; using default", what)
	return def
}

func (c Conf) MayString(key, def string) string {
	return may(c, key, def, "string", func(s string) (string, error) { return s, nil }, nil)
}

func (c Conf) MayInt(key string, def int) int {
	return may(c, key, def, "int", strconv.Atoi, nil)
}

// MayIntIn is MayInt limited to [lo, hi]
func (c Conf) MayIntIn(key string, def, lo, hi int) int {
	return may(c, key, def, "int in range", strconv.Atoi, func(v int) bool { return v >= lo && v <= hi })
}

// MayFloatMin is a float no smaller than lo
func (c Conf) MayFloatMin(key string, def, lo float64) float64 {
	parse := func(s string) (float64, error) { return strconv.ParseFloat(s, 64) }
	return may(c, key, def, "float", parse, func(v float64) bool { return v >= lo })
}

func (c Conf) MayBool(key string, def bool) bool {
	return may(c, key, def, "bool", strconv.ParseBool, nil)
}

// MayDuration takes Go duration syntax, e.g. 250ms or 2s
func (c Conf) MayDuration(key string, def time.Duration) time.Duration {
	return may(c, key, def, "duration", time.ParseDuration, nil)
}

// MayAddr is a listen address; a bare port like "8080" becomes ":8080" and port 0 picks a free one
func (c Conf) MayAddr(key, def string) string {
	return may(c, key, def, "listen address", func(s string) (string, error) {
		if !strings.Contains(s, ":") {
			s = ":" + s
		}
		_, port, err := net.SplitHostPort(s)
		if err != nil {
			return "", err
		}
		if p, err := strconv.Atoi(port); err != nil || p < 0 || p > 65535 {
			return "", strconv.ErrRange
		}
		return s, nil
	}, nil)
}

// MayCSV splits a comma separated list, dropping blank items
func (c Conf) MayCSV(key string, def []string) []string {
	var out []string
	for p := range strings.SplitSeq(c.value(key), ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// MayEnum is one of allowed, compared case-insensitively; anything else panics
func (c Conf) MayEnum(key, def string, allowed ...string) string {
	v := c.value(key)
	if v == "" {
		return def
	}
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return a
		}
	}
	logger.Get().Panic().Str("key", c.key(key)).Str("value", v).Strs("allowed", allowed).Msg("invalid enum value")
	return ""
}

// MayFile is the path when it names a regular file; a set but unusable path warns and yields ""
func (c Conf) MayFile(key string) string {
	p := c.value(key)
	if p == "" {
		return ""
	}
	if st, err := os.Stat(p); err != nil || !st.Mode().IsRegular() {
		logger.Get().Warn().Str("key", c.key(key)).Str("value", p).Msg("file not readable; ignoring")
		return ""
	}
	return p
}

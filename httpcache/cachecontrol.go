package httpcache

import (
	"strconv"
	"strings"
	"time"
)

// CacheControl holds the directives parsed from one Cache-Control header
// value. Directive names are compared case-insensitively; unknown directives
// are preserved as-is.
type CacheControl struct {
	directives map[string]string
}

// ParseCacheControl parses a raw Cache-Control header value.
// Malformed input never fails; it degrades to "no applicable directive".
// When a directive is repeated, the last occurrence wins.
func ParseCacheControl(value string) CacheControl {
	m := make(map[string]string)
	for _, directive := range strings.Split(value, ",") {
		directive = strings.TrimSpace(directive)
		if directive == "" {
			continue
		}
		name, arg, _ := strings.Cut(directive, "=")
		// directive names are case-insensitive, arguments may be quoted
		m[strings.ToLower(name)] = strings.Trim(arg, "\"")
	}
	return CacheControl{m}
}

// Get returns the raw argument for a directive and whether it is present.
func (c CacheControl) Get(directive string) (string, bool) {
	val, ok := c.directives[directive]
	return val, ok
}

// Has reports whether the directive is present, with or without an argument.
func (c CacheControl) Has(directive string) bool {
	_, ok := c.Get(directive)
	return ok
}

// Seconds returns the integer-seconds argument of a directive.
// Directives with non-numeric or negative arguments are treated as absent.
func (c CacheControl) Seconds(directive string) (int, bool) {
	val, ok := c.Get(directive)
	if !ok {
		return 0, false
	}
	secs, err := strconv.Atoi(val)
	if err != nil || secs < 0 {
		return 0, false
	}
	return secs, true
}

// SharedTTL returns the freshness lifetime this header grants a shared
// cache. s-maxage takes precedence over max-age.
func (c CacheControl) SharedTTL() (time.Duration, bool) {
	if secs, ok := c.Seconds("s-maxage"); ok {
		return time.Duration(secs) * time.Second, true
	}
	if secs, ok := c.Seconds("max-age"); ok {
		return time.Duration(secs) * time.Second, true
	}
	return 0, false
}

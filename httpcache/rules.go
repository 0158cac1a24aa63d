package httpcache

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/edgekit/edgekit/store"
)

// Next yields the candidate record for the rule further down the chain,
// or nil when there is no candidate.
type Next func() *store.Record

// Rule is one link in the cacheability and validator chain. A rule returns
// the record to use (possibly a synthesized conditional result), nil to stop
// the chain ("do not use or store this response"), or delegates to next.
type Rule func(r *http.Request, next Next) *store.Record

// readRules is the fixed-order chain applied when deciding whether a stored
// record may be served for a request. Order matters.
func readRules() []Rule {
	return []Rule{
		securityRule,
		methodRule,
		cacheControlRule,
		rangeRule,
		modifiedSinceRule,
		unmodifiedSinceRule,
	}
}

// writeRules is the subset applied when deciding whether a freshly produced
// response may be stored.
func writeRules() []Rule {
	return []Rule{
		securityRule,
		storeMethodRule,
		cacheControlRule,
	}
}

// applyRules composes the rules via continuation passing, each rule wrapping
// the next, with the candidate record at the end of the chain.
func applyRules(rules []Rule, r *http.Request, rec *store.Record) *store.Record {
	next := func() *store.Record { return rec }
	for i := len(rules) - 1; i >= 0; i-- {
		rule, inner := rules[i], next
		next = func() *store.Record { return rule(r, inner) }
	}
	return next()
}

// securityRule bypasses caching for requests carrying credentials, so
// per-principal responses never leak across users.
func securityRule(r *http.Request, next Next) *store.Record {
	if r.Header.Get("Authorization") != "" || r.Header.Get("Cookie") != "" {
		return nil
	}
	return next()
}

// methodRule serves only GET from cache directly. HEAD is served by cloning
// a cached GET result's status and headers with an empty body. Everything
// else bypasses.
func methodRule(r *http.Request, next Next) *store.Record {
	switch r.Method {
	case http.MethodGet:
		return next()
	case http.MethodHead:
		rec := next()
		if rec == nil {
			return nil
		}
		head := &store.Record{StatusCode: rec.StatusCode, Header: rec.Header.Clone()}
		return head
	default:
		return nil
	}
}

// storeMethodRule is the write-path method rule: only GET results become
// primary entries.
func storeMethodRule(r *http.Request, next Next) *store.Record {
	if r.Method != http.MethodGet {
		return nil
	}
	return next()
}

// cacheControlRule rejects no-store responses, and zero-TTL responses that
// carry no validator to revalidate against.
func cacheControlRule(r *http.Request, next Next) *store.Record {
	rec := next()
	if rec == nil {
		return nil
	}
	cc := ParseCacheControl(rec.Header.Get("Cache-Control"))
	if cc.Has("no-store") {
		return nil
	}
	if secs, ok := cc.Seconds("max-age"); ok && secs == 0 {
		if rec.Header.Get("ETag") == "" && rec.Header.Get("Last-Modified") == "" {
			return nil
		}
	}
	return rec
}

// rangeRule allows a bytes=0-N range that covers the candidate's whole body,
// which is equivalent to a full-body request. Any other range shape bypasses
// because partial-content semantics are not modeled by the cache.
func rangeRule(r *http.Request, next Next) *store.Record {
	rng := r.Header.Get("Range")
	if rng == "" {
		return next()
	}
	rec := next()
	if rec == nil {
		return nil
	}
	if rangeCoversBody(rng, rec) {
		return rec
	}
	return nil
}

func rangeCoversBody(rng string, rec *store.Record) bool {
	spec, ok := strings.CutPrefix(rng, "bytes=")
	if !ok {
		return false
	}
	start, end, found := strings.Cut(spec, "-")
	if !found || start != "0" {
		return false
	}
	last, err := strconv.Atoi(end)
	if err != nil {
		return false
	}
	length := len(rec.Body)
	if cl := rec.Header.Get("Content-Length"); cl != "" {
		if declared, err := strconv.Atoi(cl); err == nil {
			length = declared
		}
	}
	return last+1 == length
}

// modifiedSinceRule short-circuits with 304 Not Modified when the candidate
// is not strictly newer than the If-Modified-Since precondition. A genuinely
// modified resource falls through with the original response.
func modifiedSinceRule(r *http.Request, next Next) *store.Record {
	since, ok := parseHTTPDate(r.Header.Get("If-Modified-Since"))
	if !ok {
		return next()
	}
	rec := next()
	if rec == nil {
		return nil
	}
	modified, ok := parseHTTPDate(rec.Header.Get("Last-Modified"))
	if !ok {
		return rec
	}
	if modified.After(since) {
		return rec
	}
	return notModified(rec)
}

// unmodifiedSinceRule short-circuits with 412 Precondition Failed when the
// candidate is newer than the If-Unmodified-Since precondition.
func unmodifiedSinceRule(r *http.Request, next Next) *store.Record {
	since, ok := parseHTTPDate(r.Header.Get("If-Unmodified-Since"))
	if !ok {
		return next()
	}
	rec := next()
	if rec == nil {
		return nil
	}
	modified, ok := parseHTTPDate(rec.Header.Get("Last-Modified"))
	if !ok {
		return rec
	}
	if modified.After(since) {
		return preconditionFailed(rec)
	}
	return rec
}

func notModified(rec *store.Record) *store.Record {
	header := rec.Header.Clone()
	header.Del("Content-Length")
	return &store.Record{
		StatusCode: http.StatusNotModified,
		Header:     header,
	}
}

func preconditionFailed(rec *store.Record) *store.Record {
	header := make(http.Header)
	header.Set("Content-Type", "text/plain; charset=utf-8")
	body := fmt.Sprintf("resource modified at %s", rec.Header.Get("Last-Modified"))
	return &store.Record{
		StatusCode: http.StatusPreconditionFailed,
		Header:     header,
		Body:       []byte(body),
	}
}

// parseHTTPDate parses an HTTP date header value. Unparseable or absent
// values are treated as absent, never as errors.
func parseHTTPDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	t, err := http.ParseTime(value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

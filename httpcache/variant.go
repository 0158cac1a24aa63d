package httpcache

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/edgekit/edgekit/store"
)

// VariantHeader is the reserved internal header that carries the serialized
// variant set and shared TTL on the record stored at a primary key. It is
// bookkeeping only and must never reach a client response.
const VariantHeader = "X-Edgekit-Variants"

var (
	// ErrEmptyVariant is returned when a variant is created with no
	// distinguishing header after ignored headers are excluded.
	ErrEmptyVariant = errors.New("variant has no distinguishing header")
	// ErrNotAVariant is returned when restoring a variant from a record
	// that does not carry the variant header.
	ErrNotAVariant = errors.New("record is not a variant envelope")
)

// Variant is the bookkeeping envelope for a family of cached responses that
// vary on one or more request headers. The set of header names only ever
// grows and the shared TTL only ever widens, which keeps concurrent
// last-writer-wins envelope updates superset-safe.
type Variant struct {
	names    []string
	ttl      time.Duration
	modified bool
}

// NewVariant creates an envelope for the given Vary header names.
// It fails with ErrEmptyVariant if the set is empty after normalization.
func NewVariant(names []string) (*Variant, error) {
	normalized := normalizeVaryNames(names)
	if len(normalized) == 0 {
		return nil, ErrEmptyVariant
	}
	return &Variant{names: normalized, modified: true}, nil
}

// RestoreVariant reads an envelope back from a stored record.
// It fails with ErrNotAVariant if the record does not carry one.
func RestoreVariant(rec *store.Record) (*Variant, error) {
	value := rec.Header.Get(VariantHeader)
	if value == "" {
		return nil, ErrNotAVariant
	}
	v := &Variant{}
	namesPart, ttlPart, _ := strings.Cut(value, ";")
	v.names = normalizeVaryNames([]string{namesPart})
	if ttlPart = strings.TrimSpace(ttlPart); ttlPart != "" {
		if secs, err := strconv.Atoi(strings.TrimPrefix(ttlPart, "ttl=")); err == nil && secs > 0 {
			v.ttl = time.Duration(secs) * time.Second
		}
	}
	return v, nil
}

// Names returns the sorted header names the family varies on.
func (v *Variant) Names() []string {
	return v.names
}

// TTL returns the family's shared freshness lifetime, zero if none is known.
func (v *Variant) TTL() time.Duration {
	return v.ttl
}

// Modified reports whether the envelope changed since it was created or
// restored and therefore needs to be persisted again.
func (v *Variant) Modified() bool {
	return v.modified
}

// Append merges new header names into the variant set. The set only grows;
// input that adds nothing new leaves the envelope unmodified, which is what
// prevents a redundant envelope write on every cache hit.
func (v *Variant) Append(names []string) {
	merged := normalizeVaryNames(append(slices.Clone(v.names), names...))
	if !slices.Equal(merged, v.names) {
		v.names = merged
		v.modified = true
	}
}

// ExpireAfter widens the family's shared TTL from a response's
// Cache-Control. The TTL is monotonic: it is raised only when the new value
// is strictly larger, and a response without an applicable directive is a
// no-op.
func (v *Variant) ExpireAfter(resHeader http.Header) {
	cc := ParseCacheControl(resHeader.Get("Cache-Control"))
	if ttl, ok := cc.SharedTTL(); ok && ttl > v.ttl {
		v.ttl = ttl
		v.modified = true
	}
}

// Record returns the envelope record to store at the primary key. It is a
// bodyless record whose only payload is the variant header; it is used for
// lookup bookkeeping and is never returned as a response.
func (v *Variant) Record() *store.Record {
	header := make(http.Header)
	value := strings.Join(v.names, ", ")
	if v.ttl > 0 {
		value += fmt.Sprintf("; ttl=%d", int(v.ttl.Seconds()))
	}
	header.Set(VariantHeader, value)
	return &store.Record{
		StatusCode: http.StatusNoContent,
		Header:     header,
	}
}

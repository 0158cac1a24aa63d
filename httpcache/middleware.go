// Package httpcache is an HTTP-semantics-aware response cache for edge
// request handlers. It layers cache-key derivation, freshness and validator
// evaluation, and Vary-aware variant storage on top of a key-value blob
// store that has no native concept of HTTP.
package httpcache

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/edgekit/edgekit/store"
)

// Config configures the cache middleware.
type Config struct {
	// Store holds the cached records. An in-memory store is used if nil.
	Store store.Store
	// Name optionally names this cache instance, for logging.
	Name string
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
	// Defer optionally registers cache writes as background work, letting
	// the response return to the client before the write is confirmed.
	// The caller's mechanism is responsible for running the work to
	// completion. Writes happen inline when nil.
	Defer func(func() error)
}

// Middleware wires key derivation, the variant envelope and the rule chain
// into get/set operations invoked by the request dispatch lifecycle.
type Middleware struct {
	store   store.Store
	name    string
	log     zerolog.Logger
	deferFn func(func() error)
}

// New creates a cache middleware.
func New(cfg Config) *Middleware {
	s := cfg.Store
	if s == nil {
		s = store.NewMemory()
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	if cfg.Name != "" {
		logger = logger.With().Str("cache", cfg.Name).Logger()
	}
	return &Middleware{
		store:   s,
		name:    cfg.Name,
		log:     logger,
		deferFn: cfg.Defer,
	}
}

// Get looks up a cached response for the request. A nil record means MISS.
// Store faults are logged and degrade to a miss; they never fail the
// request.
func (m *Middleware) Get(ctx context.Context, r *http.Request) *store.Record {
	key := PrimaryKey(r)
	logger := m.log.With().Str("key", key).Logger()

	rec := m.fetch(ctx, key, logger)
	if rec == nil {
		return nil
	}

	if variant, err := RestoreVariant(rec); err == nil {
		// the primary slot holds only bookkeeping; the response lives
		// at the variant key for this request's header values
		vkey := VariantKey(key, variant.Names(), r.Header)
		rec = m.fetch(ctx, vkey, logger)
		if rec == nil {
			return nil
		}
	}

	// a previously cached conditional result is a terminal outcome
	if rec.StatusCode == http.StatusNotModified {
		return rec
	}

	result := applyRules(readRules(), r, rec)
	if result != nil {
		// never expose internal bookkeeping
		result.Header.Del(VariantHeader)
	}
	return result
}

// Set stores a response produced for the request, if the write-path rules
// allow it. It reports whether anything was written (or scheduled to be
// written via the configured Defer mechanism).
func (m *Middleware) Set(ctx context.Context, r *http.Request, rec *store.Record) bool {
	if applyRules(writeRules(), r, rec) == nil {
		return false
	}

	key := PrimaryKey(r)
	logger := m.log.With().Str("key", key).Logger()
	expires := recordExpiry(rec)

	vary := normalizeVaryNames(rec.Header.Values("Vary"))
	if len(vary) == 0 {
		m.put(ctx, key, expires, rec, logger)
		return true
	}

	variant := m.loadVariant(ctx, key, logger)
	if variant == nil {
		var err error
		if variant, err = NewVariant(vary); err != nil {
			// unreachable: vary is non-empty and already normalized
			logger.Error().Err(err).Msg("Could not create variant envelope")
			return false
		}
	} else {
		variant.Append(vary)
	}
	variant.ExpireAfter(rec.Header)

	if variant.Modified() {
		// may convert a plain primary entry into an envelope, one way
		m.put(ctx, key, envelopeExpiry(variant), variant.Record(), logger)
	}
	vkey := VariantKey(key, variant.Names(), r.Header)
	m.put(ctx, vkey, expires, rec, logger)
	return true
}

// Handler integrates the cache into a dispatch lifecycle: cached hits are
// served directly, misses fall through to next and the produced response is
// considered for storage.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rec := m.Get(r.Context(), r); rec != nil {
			serveRecord(w, rec)
			return
		}
		w.Header().Set("Cache-Status", "edgekit; fwd=uri-miss")
		saver := newRecorder(w)
		next.ServeHTTP(saver, r)
		if rec := saver.record(); rec != nil {
			m.Set(context.WithoutCancel(r.Context()), r, rec)
		}
	})
}

// fetch reads and decodes one record, degrading any fault to absence.
func (m *Middleware) fetch(ctx context.Context, key string, logger zerolog.Logger) *store.Record {
	b, ok, err := m.store.Get(ctx, key)
	if err != nil {
		logger.Warn().Err(err).Msg("Cache read failed")
		return nil
	}
	if !ok {
		return nil
	}
	rec, err := store.DecodeRecord(b)
	if err != nil {
		logger.Warn().Err(err).Msg("Could not decode cached record")
		return nil
	}
	return rec
}

// loadVariant returns the variant envelope at key, or nil if the slot is
// empty or holds a plain record.
func (m *Middleware) loadVariant(ctx context.Context, key string, logger zerolog.Logger) *Variant {
	rec := m.fetch(ctx, key, logger)
	if rec == nil {
		return nil
	}
	variant, err := RestoreVariant(rec)
	if err != nil {
		return nil
	}
	return variant
}

// put serializes and writes one record, inline or deferred.
func (m *Middleware) put(ctx context.Context, key string, expires time.Time, rec *store.Record, logger zerolog.Logger) {
	b, err := store.EncodeRecord(rec)
	if err != nil {
		logger.Error().Err(err).Msg("Could not encode record")
		return
	}
	write := func() error {
		if err := m.store.Put(ctx, key, expires, b); err != nil {
			logger.Error().Err(err).Msg("Cache write failed")
			return err
		}
		logger.Trace().Time("expires", expires).Msg("Cache write")
		return nil
	}
	if m.deferFn != nil {
		m.deferFn(write)
		return
	}
	write()
}

// recordExpiry derives the store-level expiry for a response record.
// Responses with no applicable TTL never expire at the store level; the rule
// chain still governs whether they may be served.
func recordExpiry(rec *store.Record) time.Time {
	cc := ParseCacheControl(rec.Header.Get("Cache-Control"))
	if ttl, ok := cc.SharedTTL(); ok && ttl > 0 {
		return time.Now().Add(ttl)
	}
	return time.Time{}
}

func envelopeExpiry(v *Variant) time.Time {
	if ttl := v.TTL(); ttl > 0 {
		return time.Now().Add(ttl)
	}
	return time.Time{}
}

func serveRecord(w http.ResponseWriter, rec *store.Record) {
	copyHeader(w.Header(), rec.Header)
	w.Header().Set("Cache-Status", "edgekit; hit")
	w.WriteHeader(rec.StatusCode)
	if len(rec.Body) > 0 {
		w.Write(rec.Body)
	}
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

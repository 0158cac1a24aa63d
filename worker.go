// Package edgekit is a middleware toolkit for edge request handlers built
// on the standard net/http request/response model. It provides a request
// dispatch lifecycle with method-based routing and pluggable middleware
// chains, an HTTP-semantics-aware response cache (package httpcache), CORS
// negotiation (package cors) and a WebSocket upgrade layer (package
// websocket).
package edgekit

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Middleware wraps a handler to add behavior around dispatch.
type Middleware func(http.Handler) http.Handler

// Worker is the request dispatch lifecycle. Routes are method-scoped
// patterns with named captures; middleware registered with Use wraps the
// whole router. Background work registered with WaitUntil may outlive the
// request that scheduled it and is awaited by Wait.
type Worker struct {
	router chi.Router
	chain  []Middleware
	log    zerolog.Logger

	buildOnce sync.Once
	handler   http.Handler

	group errgroup.Group
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the worker's logger. The global zerolog logger is used
// otherwise.
func WithLogger(logger zerolog.Logger) Option {
	return func(w *Worker) { w.log = logger }
}

// New creates a Worker.
func New(opts ...Option) *Worker {
	w := &Worker{
		router: chi.NewRouter(),
		log:    log.Logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Use appends middleware to the chain. Must be called before the first
// request is served.
func (w *Worker) Use(mw ...Middleware) {
	w.chain = append(w.chain, mw...)
}

// Get registers a handler for GET requests matching pattern.
func (w *Worker) Get(pattern string, h http.HandlerFunc) { w.router.Get(pattern, h) }

// Head registers a handler for HEAD requests matching pattern.
func (w *Worker) Head(pattern string, h http.HandlerFunc) { w.router.Head(pattern, h) }

// Post registers a handler for POST requests matching pattern.
func (w *Worker) Post(pattern string, h http.HandlerFunc) { w.router.Post(pattern, h) }

// Put registers a handler for PUT requests matching pattern.
func (w *Worker) Put(pattern string, h http.HandlerFunc) { w.router.Put(pattern, h) }

// Delete registers a handler for DELETE requests matching pattern.
func (w *Worker) Delete(pattern string, h http.HandlerFunc) { w.router.Delete(pattern, h) }

// Options registers a handler for OPTIONS requests matching pattern.
func (w *Worker) Options(pattern string, h http.HandlerFunc) { w.router.Options(pattern, h) }

// Handle registers a handler for all methods matching pattern.
func (w *Worker) Handle(pattern string, h http.Handler) { w.router.Handle(pattern, h) }

// Param returns the named path capture from the matched route pattern.
func Param(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// ServeHTTP implements http.Handler. The middleware chain is composed
// around the router on first use, outermost first.
func (w *Worker) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	w.buildOnce.Do(func() {
		h := http.Handler(w.router)
		for i := len(w.chain) - 1; i >= 0; i-- {
			h = w.chain[i](h)
		}
		w.handler = h
	})
	w.handler.ServeHTTP(rw, r)
}

// WaitUntil registers background work tied to the worker, such as a cache
// write that must complete even though the response has already been sent.
func (w *Worker) WaitUntil(fn func() error) {
	w.group.Go(fn)
}

// Wait blocks until all background work registered with WaitUntil has
// finished and returns the first error, if any.
func (w *Worker) Wait() error {
	return w.group.Wait()
}

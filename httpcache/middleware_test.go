package httpcache

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/edgekit/edgekit/store"
)

func TestCacheHitSkipsHandler(t *testing.T) {
	var handleCount int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleCount++
		w.Header().Set("Cache-Control", "max-age=60")
		w.Write([]byte("Hello world"))
	})
	mw := New(Config{}).Handler(handler)

	mw.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "http://example.com/", nil))
	rr := httptest.NewRecorder()
	mw.ServeHTTP(rr, httptest.NewRequest("GET", "http://example.com/", nil))

	if handleCount != 1 {
		t.Fatalf("handler called %d times", handleCount)
	}
	if body, _ := io.ReadAll(rr.Result().Body); string(body) != "Hello world" {
		t.Fatalf("body is %s", body)
	}
	if status := rr.Result().Header.Get("Cache-Status"); status != "edgekit; hit" {
		t.Fatalf("cache status is %q", status)
	}
}

func TestSingleRecordWrittenAtPrimaryKey(t *testing.T) {
	mem := store.NewMemory()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "max-age=60")
		w.Write([]byte("Hello world"))
	})
	mw := New(Config{Store: mem}).Handler(handler)

	req := httptest.NewRequest("GET", "http://example.com/page", nil)
	mw.ServeHTTP(httptest.NewRecorder(), req)

	if mem.Len() != 1 {
		t.Fatalf("store holds %d entries", mem.Len())
	}
	if _, ok, _ := mem.Get(context.Background(), PrimaryKey(req)); !ok {
		t.Fatal("no record at primary key")
	}
}

func TestVaryProducesDistinctVariants(t *testing.T) {
	mem := store.NewMemory()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "max-age=60")
		w.Header().Set("Vary", "Origin")
		w.Write([]byte("for " + r.Header.Get("Origin")))
	})
	mw := New(Config{Store: mem}).Handler(handler)

	request := func(origin string) *httptest.ResponseRecorder {
		r := httptest.NewRequest("GET", "http://example.com/", nil)
		r.Header.Set("Origin", origin)
		rr := httptest.NewRecorder()
		mw.ServeHTTP(rr, r)
		return rr
	}

	request("https://a")
	request("https://b")

	// envelope at the primary key plus one record per origin
	if mem.Len() != 3 {
		t.Fatalf("store holds %d entries", mem.Len())
	}

	for _, origin := range []string{"https://a", "https://b"} {
		rr := request(origin)
		if body, _ := io.ReadAll(rr.Result().Body); string(body) != "for "+origin {
			t.Fatalf("replay for %s returned %q", origin, body)
		}
		if status := rr.Result().Header.Get("Cache-Status"); status != "edgekit; hit" {
			t.Fatalf("replay for %s was not a hit (%q)", origin, status)
		}
		if rr.Result().Header.Get(VariantHeader) != "" {
			t.Fatal("internal variant header leaked to client")
		}
	}
}

func TestAuthorizationBypassesCache(t *testing.T) {
	mem := store.NewMemory()
	var handleCount int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleCount++
		w.Header().Set("Cache-Control", "max-age=60")
		w.Write([]byte("secret"))
	})
	mw := New(Config{Store: mem}).Handler(handler)

	for i := 0; i < 2; i++ {
		r := httptest.NewRequest("GET", "http://example.com/", nil)
		r.Header.Set("Authorization", "Bearer x")
		mw.ServeHTTP(httptest.NewRecorder(), r)
	}

	if handleCount != 2 {
		t.Fatalf("handler called %d times", handleCount)
	}
	if mem.Len() != 0 {
		t.Fatalf("store holds %d entries", mem.Len())
	}
}

func TestPostNeverCached(t *testing.T) {
	mem := store.NewMemory()
	var handleCount int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleCount++
		w.Header().Set("Cache-Control", "max-age=60")
		w.Write([]byte("result"))
	})
	mw := New(Config{Store: mem}).Handler(handler)

	// prime a GET entry, then make sure POSTs neither read nor write it
	mw.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "http://example.com/", nil))
	mw.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "http://example.com/", nil))
	mw.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "http://example.com/", nil))

	if handleCount != 3 {
		t.Fatalf("handler called %d times", handleCount)
	}
	if mem.Len() != 1 {
		t.Fatalf("store holds %d entries", mem.Len())
	}
}

func TestHeadServedFromCachedGet(t *testing.T) {
	var handleCount int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleCount++
		w.Header().Set("Cache-Control", "max-age=60")
		w.Header().Set("Content-Type", "text/test")
		w.Write([]byte("Hello world"))
	})
	mw := New(Config{}).Handler(handler)

	mw.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "http://example.com/", nil))
	rr := httptest.NewRecorder()
	mw.ServeHTTP(rr, httptest.NewRequest("HEAD", "http://example.com/", nil))

	if handleCount != 1 {
		t.Fatalf("handler called %d times", handleCount)
	}
	if body, _ := io.ReadAll(rr.Result().Body); len(body) != 0 {
		t.Fatalf("HEAD body is %q", body)
	}
	if ct := rr.Result().Header.Get("Content-Type"); ct != "text/test" {
		t.Fatalf("content type is %q", ct)
	}
}

func TestConditionalHit(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "max-age=60")
		w.Header().Set("Last-Modified", "Sun, 05 Oct 2025 12:41:17 GMT")
		w.Write([]byte("content"))
	})
	mw := New(Config{}).Handler(handler)
	mw.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "http://example.com/", nil))

	r := httptest.NewRequest("GET", "http://example.com/", nil)
	r.Header.Set("If-Modified-Since", "Sun, 05 Oct 2025 12:42:17 GMT")
	rr := httptest.NewRecorder()
	mw.ServeHTTP(rr, r)

	if rr.Code != http.StatusNotModified {
		t.Fatalf("status is %d", rr.Code)
	}
	if body, _ := io.ReadAll(rr.Result().Body); len(body) != 0 {
		t.Fatalf("304 body is %q", body)
	}
}

func TestStoreFaultForcesMiss(t *testing.T) {
	var handleCount int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleCount++
		w.Header().Set("Cache-Control", "max-age=60")
		w.Write([]byte("still works"))
	})
	mw := New(Config{Store: failingStore{}}).Handler(handler)

	rr := httptest.NewRecorder()
	mw.ServeHTTP(rr, httptest.NewRequest("GET", "http://example.com/", nil))

	if handleCount != 1 {
		t.Fatal("handler not reached")
	}
	if body, _ := io.ReadAll(rr.Result().Body); string(body) != "still works" {
		t.Fatalf("body is %q", body)
	}
}

func TestDeferredWrites(t *testing.T) {
	mem := store.NewMemory()
	var pending []func() error
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "max-age=60")
		w.Write([]byte("later"))
	})
	mw := New(Config{
		Store: mem,
		Defer: func(fn func() error) { pending = append(pending, fn) },
	}).Handler(handler)

	mw.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "http://example.com/", nil))

	if mem.Len() != 0 {
		t.Fatal("write happened inline despite Defer")
	}
	for _, fn := range pending {
		if err := fn(); err != nil {
			t.Fatal(err)
		}
	}
	if mem.Len() != 1 {
		t.Fatalf("store holds %d entries after flush", mem.Len())
	}
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, io.ErrUnexpectedEOF
}

func (failingStore) Put(context.Context, string, time.Time, []byte) error {
	return io.ErrUnexpectedEOF
}

func (failingStore) Purge(context.Context, string) error { return nil }

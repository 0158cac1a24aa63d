package httpcache

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPrimaryKeyQueryOrder(t *testing.T) {
	r1 := httptest.NewRequest("GET", "http://example.com/page?a=1&b=2", nil)
	r2 := httptest.NewRequest("GET", "http://example.com/page?b=2&a=1", nil)
	if PrimaryKey(r1) != PrimaryKey(r2) {
		t.Fatalf("keys differ: %s vs %s", PrimaryKey(r1), PrimaryKey(r2))
	}
}

func TestPrimaryKeyRepeatedParams(t *testing.T) {
	r := httptest.NewRequest("GET", "http://example.com/page?b=2&a=4&c=3&a=1", nil)
	key := PrimaryKey(r)
	want := "http://example.com/page?a=4&a=1&b=2&c=3"
	if key != want {
		t.Fatalf("key is %s, want %s", key, want)
	}
}

func TestPrimaryKeyIgnoresFragmentAndMethod(t *testing.T) {
	r1 := httptest.NewRequest("GET", "http://example.com/page?a=1", nil)
	r1.URL.Fragment = "section"
	r2 := httptest.NewRequest("HEAD", "http://example.com/page?a=1", nil)
	if PrimaryKey(r1) != PrimaryKey(r2) {
		t.Fatalf("keys differ: %s vs %s", PrimaryKey(r1), PrimaryKey(r2))
	}
}

func TestVariantKeyCommutative(t *testing.T) {
	h := http.Header{}
	h.Set("Origin", "https://a")
	h.Set("X-Lang", "fi")
	k1 := VariantKey("http://example.com/", []string{"Origin", "X-Lang"}, h)
	k2 := VariantKey("http://example.com/", []string{"X-Lang", "Origin"}, h)
	if k1 != k2 {
		t.Fatalf("keys differ: %s vs %s", k1, k2)
	}
}

func TestVariantKeySensitivity(t *testing.T) {
	names := []string{"Origin"}
	a := http.Header{}
	a.Set("Origin", "https://a")
	b := http.Header{}
	b.Set("Origin", "https://b")
	if VariantKey("k", names, a) == VariantKey("k", names, b) {
		t.Fatal("different varying header values must produce different keys")
	}

	// a header outside the variant set must not matter
	a2 := a.Clone()
	a2.Set("X-Other", "whatever")
	if VariantKey("k", names, a) != VariantKey("k", names, a2) {
		t.Fatal("non-varying header changed the key")
	}
}

func TestVariantKeyExcludesAcceptEncoding(t *testing.T) {
	h := http.Header{}
	h.Set("Origin", "https://a")
	h.Set("Accept-Encoding", "gzip")
	with := VariantKey("k", []string{"Accept-Encoding", "Origin"}, h)
	without := VariantKey("k", []string{"Origin"}, h)
	if with != without {
		t.Fatalf("accept-encoding fragmented the key: %s vs %s", with, without)
	}
}

func TestVariantKeyNamespace(t *testing.T) {
	r := httptest.NewRequest("GET", "http://example.com/", nil)
	primary := PrimaryKey(r)
	variant := VariantKey(primary, []string{"Origin"}, http.Header{})
	if primary == variant {
		t.Fatal("primary and variant keys collide")
	}
}

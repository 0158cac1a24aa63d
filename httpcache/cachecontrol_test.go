package httpcache

import (
	"testing"
	"time"
)

func TestParseCacheControl(t *testing.T) {
	cc := ParseCacheControl("max-age=60, no-store, private, custom=\"thing\"")

	if secs, ok := cc.Seconds("max-age"); !ok || secs != 60 {
		t.Fatalf("max-age is %d (%v)", secs, ok)
	}
	if !cc.Has("no-store") || !cc.Has("private") {
		t.Fatal("boolean directives missing")
	}
	if val, _ := cc.Get("custom"); val != "thing" {
		t.Fatalf("custom directive is %q", val)
	}
}

func TestParseCacheControlCaseInsensitive(t *testing.T) {
	cc := ParseCacheControl("Max-Age=30,NO-STORE")
	if secs, ok := cc.Seconds("max-age"); !ok || secs != 30 {
		t.Fatalf("max-age is %d (%v)", secs, ok)
	}
	if !cc.Has("no-store") {
		t.Fatal("no-store missing")
	}
}

func TestParseCacheControlMalformed(t *testing.T) {
	for _, value := range []string{"", ",,,", "max-age=abc", "max-age=-5", "max-age"} {
		cc := ParseCacheControl(value)
		if _, ok := cc.Seconds("max-age"); ok {
			t.Fatalf("%q should have no numeric max-age", value)
		}
	}
}

func TestSharedTTLPrecedence(t *testing.T) {
	cc := ParseCacheControl("max-age=60, s-maxage=120")
	if ttl, ok := cc.SharedTTL(); !ok || ttl != 120*time.Second {
		t.Fatalf("shared TTL is %s", ttl)
	}

	cc = ParseCacheControl("max-age=60")
	if ttl, ok := cc.SharedTTL(); !ok || ttl != 60*time.Second {
		t.Fatalf("shared TTL is %s", ttl)
	}

	if _, ok := ParseCacheControl("no-cache").SharedTTL(); ok {
		t.Fatal("no-cache should grant no TTL")
	}
}

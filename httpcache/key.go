package httpcache

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
)

// variantKeyPrefix namespaces variant keys away from primary keys, which are
// canonical URLs and therefore never start with this prefix.
const variantKeyPrefix = "variant:"

// PrimaryKey derives the canonical cache key for a request's base identity.
// The key ignores request method and body, strips the URL fragment and sorts
// query parameters, so requests differing only in query order or fragment
// map to the same key.
func PrimaryKey(r *http.Request) string {
	return canonicalURL(r)
}

func canonicalURL(r *http.Request) string {
	u := *r.URL
	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = sortQuery(u.RawQuery)
	if u.Scheme == "" {
		u.Scheme = "http"
	}
	if u.Host == "" {
		u.Host = r.Host
	}
	return u.String()
}

// sortQuery sorts raw query parameters lexicographically by key. The sort is
// stable, so repeated keys (a=4&a=1) keep their relative order while still
// sorting ahead of later keys.
func sortQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	params := strings.Split(rawQuery, "&")
	sort.SliceStable(params, func(i, j int) bool {
		ki, _, _ := strings.Cut(params[i], "=")
		kj, _, _ := strings.Cut(params[j], "=")
		return ki < kj
	})
	return strings.Join(params, "&")
}

// VariantKey derives the cache key for one specific combination of varying
// header values. It is a pure function of (baseKey, names, request headers):
// the names are normalized internally, so supplying them in any order yields
// the same key. The serialized form is a compact JSON tuple of the base key
// and the ordered [name, value] pairs, encoded URL-safe.
func VariantKey(baseKey string, names []string, reqHeader http.Header) string {
	pairs := make([][2]string, 0, len(names))
	for _, name := range normalizeVaryNames(names) {
		pairs = append(pairs, [2]string{name, reqHeader.Get(name)})
	}
	payload, err := json.Marshal([]any{baseKey, pairs})
	if err != nil {
		// marshalling strings cannot fail
		panic(err)
	}
	return variantKeyPrefix + base64.RawURLEncoding.EncodeToString(payload)
}

// normalizeVaryNames lower-cases, trims, deduplicates and sorts header
// names, dropping empty members and headers that must never fragment the
// cache (Accept-Encoding).
func normalizeVaryNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, raw := range names {
		for _, name := range strings.Split(raw, ",") {
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" || ignoredVaryHeaders[name] {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// ignoredVaryHeaders never participate in variant selection. Compressed and
// uncompressed payloads must not fragment the cache.
var ignoredVaryHeaders = map[string]bool{
	"accept-encoding": true,
}

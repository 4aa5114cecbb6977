package urlutil

import (
	"net/url"
	"sort"
	"strings"
)

// DefaultTrackingKeys are query parameters that carry analytics state and
// never change the document a URL identifies. Canonicalization drops them
// so the same page is not admitted twice under different campaign tags.
var DefaultTrackingKeys = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"gclid":        {},
	"fbclid":       {},
	"msclkid":      {},
	"mc_cid":       {},
	"mc_eid":       {},
	"ref":          {},
}

// Canonicalize applies a deterministic normalization to a URL, producing a canonical form.
// It maps equivalent URL spellings to a single canonical representation.
//
// The normalization follows these rules:
//   - Scheme and host are lowercased
//   - Path is cleaned (trailing slashes removed, except for root "/")
//   - Fragments are removed
//   - Tracking query keys are removed; surviving parameters are sorted
//     lexicographically by key (then value)
//   - Default ports are omitted (e.g., :80 for http, :443 for https)
//
// trackingKeys may be nil, in which case DefaultTrackingKeys is used.
//
// Properties:
//   - Pure: no state, no memory
//   - Deterministic: same input always produces same output
//   - Idempotent: Canonicalize(Canonicalize(url)) == Canonicalize(url)
//   - Context-free: does not depend on crawl history
func Canonicalize(sourceUrl url.URL, trackingKeys map[string]struct{}) url.URL {
	if trackingKeys == nil {
		trackingKeys = DefaultTrackingKeys
	}

	// Create a copy to avoid mutating the original
	canonical := sourceUrl

	// Lowercase scheme and host
	canonical.Scheme = lowerASCII(canonical.Scheme)
	canonical.Host = lowerASCII(canonical.Host)

	// Remove default port if present
	if host, port := canonical.Hostname(), canonical.Port(); port != "" {
		if (canonical.Scheme == "http" && port == "80") ||
			(canonical.Scheme == "https" && port == "443") {
			canonical.Host = host
		}
	}

	// Clean the path: remove trailing slashes (except root)
	if len(canonical.Path) > 1 {
		canonical.Path = stripTrailingSlash(canonical.Path)
	}

	// Remove fragment (anchor)
	canonical.Fragment = ""
	canonical.RawFragment = ""

	canonical.RawQuery = normalizeQuery(canonical.RawQuery, trackingKeys)
	canonical.ForceQuery = false

	return canonical
}

// normalizeQuery drops tracking keys and re-encodes the remaining
// parameters in lexicographic key order. Values under the same key keep
// their original relative order after a stable sort.
func normalizeQuery(rawQuery string, trackingKeys map[string]struct{}) string {
	if rawQuery == "" {
		return ""
	}

	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		// Unparseable query strings are dropped rather than preserved:
		// keeping malformed state would break idempotence.
		return ""
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		if _, tracked := trackingKeys[key]; tracked {
			continue
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		vals := values[key]
		sort.Strings(vals)
		for _, val := range vals {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			if val != "" {
				b.WriteByte('=')
				b.WriteString(url.QueryEscape(val))
			}
		}
	}
	return b.String()
}

// HostSlug converts a hostname into a filesystem-safe token used in
// session identifiers: the "www." prefix is dropped and dots become
// underscores, e.g. "www.docs.example.org" -> "docs_example_org".
func HostSlug(host string) string {
	slug := lowerASCII(host)
	slug = strings.TrimPrefix(slug, "www.")
	if i := strings.IndexByte(slug, ':'); i >= 0 {
		slug = slug[:i]
	}
	slug = strings.ReplaceAll(slug, ".", "_")
	return slug
}

// Resolve fills in the scheme and host of a relative URL. Absolute
// URLs pass through unchanged; scheme-relative URLs inherit only the
// scheme.
func Resolve(sourceUrl url.URL, scheme string, host string) url.URL {
	resolved := sourceUrl
	if resolved.Scheme == "" {
		resolved.Scheme = scheme
	}
	if resolved.Host == "" {
		resolved.Host = host
	}
	return resolved
}

// lowerASCII converts ASCII characters to lowercase without allocating.
// This is faster than strings.ToLower for ASCII-only strings.
func lowerASCII(s string) string {
	var needsLower bool
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			needsLower = true
			break
		}
	}
	if !needsLower {
		return s
	}
	b := make([]byte, len(s))
	copy(b, s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// stripTrailingSlash removes trailing slashes from a path.
func stripTrailingSlash(path string) string {
	for len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	return path
}

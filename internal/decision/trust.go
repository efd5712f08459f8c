package decision

import (
	"slices"
	"strings"
)

// nonHostChars never occur in a resolved host.
const nonHostChars = "/?#@:\\ \t\r\n\v\f"

// suffixMarker prefixes trusted entries that match a domain and all of its subdomains.
const suffixMarker = "."

// TrustRegistry is the immutable set of trusted domains. Entries are either an
// exact domain ("google.com") or a suffix pattern (".edu.sa") that matches the
// domain itself and every subdomain of it.
//
// A TrustRegistry is read-only after construction and safe for concurrent use.
type TrustRegistry struct {
	exact    map[string]struct{}
	suffixes []string
}

// EntryRewrite describes a configured entry that NewTrustRegistry had to change
// to make it comparable with resolved domains. To is empty when the entry was dropped.
type EntryRewrite struct {
	From string
	To   string
}

// NewTrustRegistry builds a registry from configured entries. Every entry is
// trimmed and lower-cased; entries written as URLs are reduced to their host
// with Resolve and a leading "www." is removed. Entries that had to be changed
// or were dropped are returned so the caller can report them.
func NewTrustRegistry(entries []string) (*TrustRegistry, []EntryRewrite) {
	r := &TrustRegistry{exact: make(map[string]struct{}, len(entries))}

	var rewrites []EntryRewrite
	for _, entry := range entries {
		normalized := normalizeEntry(entry)
		if normalized == "" || normalized == suffixMarker {
			rewrites = append(rewrites, EntryRewrite{From: entry})

			continue
		}
		if normalized != entry {
			rewrites = append(rewrites, EntryRewrite{From: entry, To: normalized})
		}

		if strings.HasPrefix(normalized, suffixMarker) {
			if !slices.Contains(r.suffixes, normalized) {
				r.suffixes = append(r.suffixes, normalized)
			}

			continue
		}
		r.exact[normalized] = struct{}{}
	}

	return r, rewrites
}

func normalizeEntry(entry string) string {
	e := strings.ToLower(strings.TrimSpace(entry))
	if strings.Contains(e, "://") {
		if host, degraded := Resolve(e); !degraded {
			return host
		}
	}
	if strings.HasPrefix(e, suffixMarker) {
		return suffixMarker + strings.TrimPrefix(e[1:], wwwPrefix)
	}

	return strings.TrimPrefix(e, wwwPrefix)
}

// IsTrusted reports whether domain is trusted, either by exact membership or
// by falling under a configured suffix entry. Suffix entries only match
// host-shaped domains: raw input carrying URL delimiters or whitespace (a
// degraded resolve of "host/path?q") is matched exactly or not at all.
func (r *TrustRegistry) IsTrusted(domain string) bool {
	if r == nil || domain == "" {
		return false
	}
	if _, ok := r.exact[domain]; ok {
		return true
	}
	if strings.ContainsAny(domain, nonHostChars) {
		return false
	}

	for _, suffix := range r.suffixes {
		if strings.HasSuffix(domain, suffix) || domain == suffix[1:] {
			return true
		}
	}

	return false
}

// Len returns the number of distinct entries held by the registry.
func (r *TrustRegistry) Len() int {
	if r == nil {
		return 0
	}

	return len(r.exact) + len(r.suffixes)
}

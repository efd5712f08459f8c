package decision

import (
	"net/url"
	"strings"
)

const wwwPrefix = "www."

// Resolve derives the normalized domain of a raw URL string.
//
// The host component is extracted with net/url, lower-cased and stripped of a
// single leading "www.". Port and IPv6 brackets are not part of the result.
// Resolve never fails: when the input cannot be parsed, or parses without a
// host (empty input, missing scheme, free text), the lower-cased input is
// returned verbatim and degraded is true.
func Resolve(raw string) (domain string, degraded bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(raw), true
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return strings.ToLower(raw), true
	}

	return strings.TrimPrefix(host, wwwPrefix), false
}

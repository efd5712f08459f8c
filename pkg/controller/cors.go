package controller

import (
	"net/http"
	"slices"
	"strings"
)

const (
	corsMethods       = "GET, POST, OPTIONS"
	corsAllowHeaders  = "Content-Type, Accept, Origin, Cache-Control, X-Request-Id, X-Forwarded-For"
	corsExposeHeaders = "X-Request-Id"
	corsMaxAge        = "600"
)

// WithCORS answers cross-origin requests for the listed origins. With no
// origins every caller is allowed and the wildcard is sent. OPTIONS
// preflights end here with 204 No Content.
func WithCORS(next http.Handler, origins ...string) http.Handler {
	allowed := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			allowed = append(allowed, o)
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		switch origin := r.Header.Get("Origin"); {
		case len(allowed) == 0:
			h.Set("Access-Control-Allow-Origin", "*")
		case slices.Contains(allowed, origin):
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
		default:
			h.Add("Vary", "Origin")
		}
		h.Set("Access-Control-Allow-Methods", corsMethods)
		h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
		h.Set("Access-Control-Expose-Headers", corsExposeHeaders)

		if r.Method == http.MethodOptions {
			h.Set("Access-Control-Max-Age", corsMaxAge)
			w.WriteHeader(http.StatusNoContent)

			return
		}

		next.ServeHTTP(w, r)
	})
}

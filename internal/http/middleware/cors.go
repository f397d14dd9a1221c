package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

type originMatcher struct {
	exact    map[string]struct{}
	suffixes []string
}

func newOriginMatcher(origins []string) originMatcher {
	m := originMatcher{exact: make(map[string]struct{}, len(origins))}
	for _, entry := range origins {
		entry = strings.TrimSpace(entry)
		switch {
		case entry == "":
		case strings.HasPrefix(entry, "*."):
			m.suffixes = append(m.suffixes, strings.ToLower(entry[1:]))
		default:
			m.exact[entry] = struct{}{}
		}
	}
	return m
}

// allows aceita origem exata ou subdomínio de uma entrada "*."; o domínio raiz não casa.
func (m originMatcher) allows(origin string) bool {
	if origin == "" {
		return false
	}
	if _, ok := m.exact[origin]; ok {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, suffix := range m.suffixes {
		if strings.HasSuffix(host, suffix) && host != suffix[1:] {
			return true
		}
	}
	return false
}

// CORS libera apenas origens de ALLOW_ORIGINS: exatas (https://app.safetap.ph)
// ou por subdomínio quando a entrada começa com "*." (*.safetap.ph).
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	matcher := newOriginMatcher(allowedOrigins)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if matcher.allows(origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Vary", "Origin")
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-Id")
				h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

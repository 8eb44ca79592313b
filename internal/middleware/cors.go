package middleware

import (
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// CORSConfig controls which browser origins may call the API.
// With AllowCredentials set, origins must be listed explicitly; a bare "*"
// is ignored. Entries of the form "https://*.example.com" match any subdomain.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int // seconds
}

// DefaultCORSConfig allows the PressKit web client at the given origins to
// send credentialed requests and read the correlation and rate-limit headers.
func DefaultCORSConfig(origins ...string) CORSConfig {
	return CORSConfig{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", RequestIDHeader, TraceparentHeader},
		ExposedHeaders: []string{
			RequestIDHeader,
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
			"Retry-After",
		},
		AllowCredentials: true,
		MaxAge:           24 * 60 * 60,
	}
}

type originPattern struct {
	scheme string
	host   string // exact host, or the suffix after "*."
	wild   bool
}

type corsPolicy struct {
	cfg      CORSConfig
	exact    map[string]struct{}
	patterns []originPattern
	anyOK    bool
	methods  string
	headers  string
	exposed  string
	maxAge   string
}

func newCORSPolicy(cfg CORSConfig) *corsPolicy {
	p := &corsPolicy{
		cfg:     cfg,
		exact:   make(map[string]struct{}, len(cfg.AllowedOrigins)),
		methods: strings.Join(cfg.AllowedMethods, ", "),
		headers: strings.Join(cfg.AllowedHeaders, ", "),
		exposed: strings.Join(cfg.ExposedHeaders, ", "),
	}
	if cfg.MaxAge > 0 {
		p.maxAge = strconv.Itoa(cfg.MaxAge)
	}
	for _, o := range cfg.AllowedOrigins {
		o = strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
		switch {
		case o == "":
		case o == "*":
			p.anyOK = !cfg.AllowCredentials
		case strings.Contains(o, "://*."):
			scheme, host, _ := strings.Cut(o, "://*.")
			p.patterns = append(p.patterns, originPattern{scheme: scheme, host: host, wild: true})
		default:
			p.exact[o] = struct{}{}
		}
	}
	return p
}

func (p *corsPolicy) allows(origin string) bool {
	origin = strings.ToLower(origin)
	if p.anyOK {
		return true
	}
	if _, ok := p.exact[origin]; ok {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	for _, pat := range p.patterns {
		if u.Scheme == pat.scheme && strings.HasSuffix(u.Host, "."+pat.host) {
			return true
		}
	}
	return false
}

func (p *corsPolicy) allowsMethod(method string) bool {
	return method == "" || slices.Contains(p.cfg.AllowedMethods, strings.ToUpper(method))
}

// CORS answers preflight requests and decorates responses for allowed origins.
// Requests without an Origin header pass through untouched. A disallowed
// origin gets no CORS headers, and its preflight is rejected with 403.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	p := newCORSPolicy(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			h := w.Header()
			h.Add("Vary", "Origin")

			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if !p.allows(origin) {
				if preflight {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Access-Control-Allow-Origin", origin)
			if cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			if !preflight {
				if p.exposed != "" {
					h.Set("Access-Control-Expose-Headers", p.exposed)
				}
				next.ServeHTTP(w, r)
				return
			}

			h.Add("Vary", "Access-Control-Request-Method")
			h.Add("Vary", "Access-Control-Request-Headers")
			if !p.allowsMethod(r.Header.Get("Access-Control-Request-Method")) {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			h.Set("Access-Control-Allow-Methods", p.methods)
			h.Set("Access-Control-Allow-Headers", p.headers)
			if p.maxAge != "" {
				h.Set("Access-Control-Max-Age", p.maxAge)
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

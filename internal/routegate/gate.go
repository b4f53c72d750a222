package routegate

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"studiofront/internal/session"
)

// Class tags a route prefix as publicly reachable or credential-gated.
// Protected is the zero value so an ambiguous entry fails closed.
type Class int

const (
	Protected Class = iota
	Public
)

// Rule classifies one path prefix.
type Rule struct {
	Prefix string
	Class  Class
}

// Gate is the request interceptor that runs before every handler. It decides
// allow / redirect-to-login / reject-401 from the route table and the
// credential carried by the request, and injects the credential as a bearer
// header on API-bound requests so the gateway can forward it.
type Gate struct {
	rules      []Rule
	apiPrefix  []string
	loginPath  string
	creds      *session.Store
	callbackQP string
}

// Options configures a Gate.
type Options struct {
	Rules       []Rule
	APIPrefixes []string
	LoginPath   string
	Credentials *session.Store
}

// New builds a Gate. Public rules take precedence over protected ones no
// matter their order in the table, so auth-adjacent routes can never be
// locked behind the credential they would grant.
func New(opts Options) *Gate {
	login := opts.LoginPath
	if login == "" {
		login = "/login"
	}
	api := opts.APIPrefixes
	if len(api) == 0 {
		api = []string{"/api/", "/gateway/"}
	}
	return &Gate{
		rules:      opts.Rules,
		apiPrefix:  api,
		loginPath:  login,
		creds:      opts.Credentials,
		callbackQP: "callbackUrl",
	}
}

// Decision is the outcome of classifying one request.
type Decision int

const (
	Allow Decision = iota
	RedirectLogin
	RejectUnauthenticated
)

// Classify resolves the gate decision for a path given whether a credential
// is present. Exposed separately from the middleware for direct testing and
// for callers that pre-flight navigation.
func (g *Gate) Classify(path string, hasCredential bool) Decision {
	public := false
	protected := false
	for _, r := range g.rules {
		if !matchPrefix(path, r.Prefix) {
			continue
		}
		switch r.Class {
		case Public:
			public = true
		case Protected:
			protected = true
		}
	}
	if public {
		return Allow
	}
	if !protected || hasCredential {
		return Allow
	}
	if g.isAPIPath(path) {
		return RejectUnauthenticated
	}
	return RedirectLogin
}

// matchPrefix matches on path-segment boundaries so a rule for /login does
// not capture /loginhelp. The bare "/" rule matches only the root itself.
func matchPrefix(path, prefix string) bool {
	if prefix == "/" {
		return path == "/"
	}
	prefix = strings.TrimSuffix(prefix, "/")
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func (g *Gate) isAPIPath(path string) bool {
	for _, p := range g.apiPrefix {
		if matchPrefix(path, p) {
			return true
		}
	}
	return false
}

// Middleware enforces the gate on every request.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := g.creds.TokenFromRequest(r)

		switch g.Classify(r.URL.Path, token != "") {
		case RejectUnauthenticated:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{
					"code":    "unauthorized",
					"message": "authentication required",
				},
			})
			return
		case RedirectLogin:
			dest := g.loginPath + "?" + g.callbackQP + "=" + url.QueryEscape(r.URL.Path)
			http.Redirect(w, r, dest, http.StatusFound)
			return
		}

		// Carry the credential forward as a bearer header on API-bound
		// requests; the forwarding gateway relays it to the backend.
		if token != "" && g.isAPIPath(r.URL.Path) {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		next.ServeHTTP(w, r)
	})
}

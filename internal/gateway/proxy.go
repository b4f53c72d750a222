package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configures a Proxy.
type Options struct {
	BackendBaseURL string
	Prefix         string
	HTTPClient     *http.Client
	Timeout        time.Duration
	Logger         zerolog.Logger
}

// Proxy relays /gateway-prefixed requests to the generation backend. It
// preserves method, query string, and body, and passes the backend response
// back verbatim. Transport failures collapse to one uniform 500 body; this
// layer never retries.
type Proxy struct {
	httpClient *http.Client
	baseURL    string
	prefix     string
	logger     zerolog.Logger
}

// New builds a Proxy for the given backend base URL.
func New(opts Options) *Proxy {
	base := strings.TrimRight(opts.BackendBaseURL, "/")
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "/gateway"
	}
	prefix = strings.TrimRight(prefix, "/")
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Proxy{
		httpClient: client,
		baseURL:    base,
		prefix:     prefix,
		logger:     opts.Logger,
	}
}

// writeMethods are the methods whose bodies get a forced JSON content type.
var writeMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// hop-by-hop headers per RFC 9110 §7.6.1; never forwarded.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, p.prefix)
	rest = strings.TrimPrefix(rest, "/")

	target := p.baseURL + "/" + rest
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		p.fail(w, err)
		return
	}
	copyHeaders(req.Header, r.Header)
	if writeMethods[r.Method] {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.fail(w, err)
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

// fail converts any transport-level failure into the single structured 500
// the caller contract promises. Backend errors (non-2xx) are not failures;
// they relay through untouched.
func (p *Proxy) fail(w http.ResponseWriter, err error) {
	p.logger.Error().Err(err).Msg("gateway relay failed")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Failed to proxy request"})
}

func copyHeaders(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
	for _, h := range hopHeaders {
		dst.Del(h)
	}
	dst.Del("Host")
}

package middleware

import (
	"context"
	"net/http"

	"golang.org/x/text/language"
)

type localeContextKey struct{}

// LocaleKey is the context key carrying the resolved UI locale.
var LocaleKey = localeContextKey{}

// Locale resolves the request locale from the X-Locale header or the
// Accept-Language negotiation, falling back to the configured default.
func Locale(supported []string, fallback string) func(http.Handler) http.Handler {
	if fallback == "" {
		fallback = "en"
	}
	tags := make([]language.Tag, 0, len(supported)+1)
	tags = append(tags, language.Make(fallback))
	for _, s := range supported {
		if s != fallback {
			tags = append(tags, language.Make(s))
		}
	}
	matcher := language.NewMatcher(tags)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accept := r.Header.Get("X-Locale")
			if accept == "" {
				accept = r.Header.Get("Accept-Language")
			}
			locale := fallback
			if accept != "" {
				if prefs, _, err := language.ParseAcceptLanguage(accept); err == nil && len(prefs) > 0 {
					_, idx, _ := matcher.Match(prefs...)
					base, _ := tags[idx].Base()
					locale = base.String()
				}
			}
			ctx := context.WithValue(r.Context(), LocaleKey, locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LocaleFromContext returns the resolved locale, defaulting to English.
func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok {
		return v
	}
	return "en"
}

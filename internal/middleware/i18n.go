package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// LocaleKey carries the negotiated BCP 47 locale in the request context.
type LocaleKey struct{}

// CountryKey carries the resolved ISO country code in the request context.
type CountryKey struct{}

// CountryLookup resolves an IP address into an ISO country code.
type CountryLookup func(ip string) (string, error)

// countryLocales maps countries with a strong default language onto a locale.
// Anything absent falls back to English.
var countryLocales = map[string]string{
	"ID": "id-ID",
	"JP": "ja-JP",
	"KR": "ko-KR",
	"CN": "zh-CN",
	"TW": "zh-TW",
	"BR": "pt-BR",
	"DE": "de-DE",
	"FR": "fr-FR",
	"ES": "es-ES",
	"MX": "es-MX",
}

// I18N resolves the caller's country and locale and stores both in the
// request context. A nil lookup skips geo resolution.
func I18N(lookup CountryLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			country := resolveCountry(r, lookup)
			if country != "" {
				ctx = context.WithValue(ctx, CountryKey{}, country)
			}

			if _, ok := ctx.Value(LocaleKey{}).(string); !ok {
				ctx = context.WithValue(ctx, LocaleKey{}, detectLocale(r.Header.Get("Accept-Language"), country))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LocaleFromContext returns the negotiated locale, defaulting to en-US.
func LocaleFromContext(ctx context.Context) string {
	if locale, ok := ctx.Value(LocaleKey{}).(string); ok && locale != "" {
		return locale
	}
	return "en-US"
}

// ResolvedCountry returns the country set by I18N, or empty.
func ResolvedCountry(ctx context.Context) string {
	country, _ := ctx.Value(CountryKey{}).(string)
	return country
}

// ClientIP extracts the originating client address, honoring proxy headers.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return strings.TrimSpace(real)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func resolveCountry(r *http.Request, lookup CountryLookup) string {
	// Edge proxies often resolve the country already; trust their headers.
	for _, header := range []string{"CF-IPCountry", "X-Country"} {
		if v := strings.ToUpper(strings.TrimSpace(r.Header.Get(header))); len(v) == 2 {
			return v
		}
	}

	if lookup == nil {
		return ""
	}
	country, err := lookup(ClientIP(r))
	if err != nil {
		return ""
	}
	return country
}

func detectLocale(acceptLanguage, country string) string {
	if acceptLanguage != "" {
		first, _, _ := strings.Cut(acceptLanguage, ",")
		first, _, _ = strings.Cut(strings.TrimSpace(first), ";")
		if first != "" && first != "*" {
			return first
		}
	}

	if locale, ok := countryLocales[country]; ok {
		return locale
	}
	return "en-US"
}

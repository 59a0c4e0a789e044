package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDetectLocalePrefersAcceptLanguage(t *testing.T) {
	if got := detectLocale("ja-JP,ja;q=0.9", "ID"); got != "ja-JP" {
		t.Fatalf("expected ja-JP, got %s", got)
	}
}

func TestDetectLocaleFallsBackToCountry(t *testing.T) {
	if got := detectLocale("", "ID"); got != "id-ID" {
		t.Fatalf("expected id-ID, got %s", got)
	}
	if got := detectLocale("*", "XX"); got != "en-US" {
		t.Fatalf("expected en-US, got %s", got)
	}
}

func TestClientIPHonorsForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:4567"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	if got := ClientIP(req); got != "203.0.113.7" {
		t.Fatalf("expected forwarded address, got %s", got)
	}
}

func TestI18NSetsCountryAndLocale(t *testing.T) {
	lookup := func(ip string) (string, error) {
		if ip == "203.0.113.7" {
			return "BR", nil
		}
		return "", errors.New("unknown")
	}

	var locale, country string
	handler := I18N(lookup)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale = LocaleFromContext(r.Context())
		country = ResolvedCountry(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:1234"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if country != "BR" {
		t.Fatalf("expected country BR, got %q", country)
	}
	if locale != "pt-BR" {
		t.Fatalf("expected locale pt-BR, got %q", locale)
	}
}

func TestRateLimiterBlocksOverLimit(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)

	if !rl.Allow("u1") || !rl.Allow("u1") {
		t.Fatal("expected first two requests to pass")
	}
	if rl.Allow("u1") {
		t.Fatal("expected third request to be limited")
	}
	if !rl.Allow("u2") {
		t.Fatal("expected separate key to have its own budget")
	}
}

func TestRateLimiterHandlerReturns429(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/thumbnails", nil)
	req = req.WithContext(ContextWithUserID(req.Context(), "user-1"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request limited, got %d", rec.Code)
	}
}

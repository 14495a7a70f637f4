package policy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/md-rashed-zaman/batfeed/libs/auth"
)

func TestPermissions(t *testing.T) {
	p := NewPermissions(ViewPast, ViewCalendarData("availability"), " ", CreateEvent("availability"))
	if !p.CanViewPast() || !p.CanViewEventType("availability") || !p.CanCreateEvent("availability") {
		t.Fatalf("expected granted permissions, got %v", p)
	}
	if p.CanViewEventType("pricing") || p.CanCreateEvent("pricing") {
		t.Fatalf("pricing must not be granted")
	}
	if len(p) != 3 {
		t.Fatalf("blank permissions must be dropped, got %d", len(p))
	}
	if !NewPermissions(Everything).CanViewEventType("anything") {
		t.Fatalf("wildcard must grant everything")
	}
}

func TestTokenProviderMiddleware(t *testing.T) {
	secret := "test-secret"
	anonymous := NewPermissions(ViewCalendarData("availability"))
	provider := NewTokenProvider(auth.NewVerifier(secret, nil), anonymous)

	var got Permissions
	h := provider.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = provider.Permissions(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/calendar-events", nil))
	if rw.Code != http.StatusOK || got.CanViewPast() || !got.CanViewEventType("availability") {
		t.Fatalf("anonymous request: code %d perms %v", rw.Code, got)
	}

	token, err := auth.SignHS256(auth.Claims{
		Sub:         "user-1",
		Permissions: []string{ViewPast},
		Iat:         time.Now().Unix(),
		Exp:         time.Now().Add(time.Hour).Unix(),
	}, secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/calendar-events", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK || !got.CanViewPast() || got.CanViewEventType("availability") {
		t.Fatalf("token request: code %d perms %v", rw.Code, got)
	}

	req = httptest.NewRequest(http.MethodGet, "/calendar-events", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rw.Code)
	}
}

func TestStaticProvider(t *testing.T) {
	p := NewStaticProvider(NewPermissions(ViewPast))
	if !p.Permissions(context.Background()).CanViewPast() {
		t.Fatalf("expected static permissions")
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"makemyoutfit/internal/session"
)

func runSession(t *testing.T, req *http.Request) (string, *httptest.ResponseRecorder) {
	t.Helper()
	var seen string
	handler := Session(SessionOptions{TTL: 30 * time.Minute})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionIDFromContext(r.Context())
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return seen, rec
}

func TestSessionMintsToken(t *testing.T) {
	id, rec := runSession(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if !session.Valid(id) {
		t.Fatalf("expected minted token, got %q", id)
	}
	if rec.Header().Get(SessionHeader) != id {
		t.Fatalf("header = %q, want %q", rec.Header().Get(SessionHeader), id)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != SessionCookie || cookies[0].Value != id || !cookies[0].HttpOnly {
		t.Fatalf("unexpected cookies %+v", cookies)
	}
	if cookies[0].MaxAge != 1800 {
		t.Fatalf("MaxAge = %d", cookies[0].MaxAge)
	}
}

func TestSessionReusesHeaderThenCookie(t *testing.T) {
	headerID := session.NewID()
	cookieID := session.NewID()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionHeader, headerID)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: cookieID})
	if id, _ := runSession(t, req); id != headerID {
		t.Fatalf("header should win, got %q", id)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionHeader, "not-a-token")
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: cookieID})
	if id, _ := runSession(t, req); id != cookieID {
		t.Fatalf("malformed header should fall back to cookie, got %q", id)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "tampered"})
	if id, _ := runSession(t, req); id == "tampered" || !session.Valid(id) {
		t.Fatalf("malformed cookie should be replaced, got %q", id)
	}
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://app.example.test"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/images/generate", nil)
	req.Header.Set("Origin", "https://app.example.test")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example.test" {
		t.Fatalf("origin not allowed: %+v", rec.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.test")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unexpected origin allowed")
	}
}

package storage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestFileStoreWrite(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "http://localhost:8080/static/")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	err = store.Write(context.Background(), Object{Bucket: "outputs", Name: "OUT-1.png", ContentType: "image/png", Data: []byte("png"), Public: true})
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "outputs", "OUT-1.png"))
	if err != nil || string(data) != "png" {
		t.Fatalf("file not written: %q, %v", data, err)
	}

	if got := store.PublicURL("outputs", "OUT-1.png"); got != "http://localhost:8080/static/outputs/OUT-1.png" {
		t.Fatalf("PublicURL = %q", got)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	err = store.Write(context.Background(), Object{Bucket: "..", Name: "../etc/passwd", Data: []byte("x")})
	if err == nil {
		t.Fatal("expected traversal to be rejected")
	}
}

func TestFileStoreCannotSign(t *testing.T) {
	store, _ := NewFileStore(t.TempDir(), "")
	if _, err := store.SignedWriteURL(context.Background(), "b", "n", "image/png", time.Minute); !errors.Is(err, ErrSigningUnsupported) {
		t.Fatalf("expected ErrSigningUnsupported, got %v", err)
	}
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "bucket/a.png", want: "bucket/a.png"},
		{in: "/bucket//a.png", want: "bucket/a.png"},
		{in: `bucket\a.png`, want: "bucket/a.png"},
		{in: "bucket/../../x", wantErr: true},
		{in: "  ", wantErr: true},
	}
	for _, tc := range tests {
		got, err := sanitizeKey(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("sanitizeKey(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("sanitizeKey(%q) = %q, %v", tc.in, got, err)
		}
	}
}

func newTestMinio(t *testing.T, handler http.Handler) (*MinioStore, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	store, err := NewMinioStore(MinioOptions{
		Endpoint:      srv.URL,
		AccessKey:     "access",
		SecretKey:     "secret",
		Region:        "auto",
		PublicBaseURL: "https://storage.googleapis.com",
	})
	if err != nil {
		t.Fatalf("NewMinioStore: %v", err)
	}
	return store, srv
}

func TestMinioStoreSignedWriteURLPerformsNoRequest(t *testing.T) {
	var hits int32
	store, srv := newTestMinio(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))

	raw, err := store.SignedWriteURL(context.Background(), "user-media", "u/abc/OUT-1.png", "image/png", 15*time.Minute)
	if err != nil {
		t.Fatalf("SignedWriteURL returned error: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse signed url: %v", err)
	}
	if !strings.HasPrefix(raw, srv.URL) {
		t.Fatalf("signed url %q does not target the endpoint %q", raw, srv.URL)
	}
	if u.Path != "/user-media/u/abc/OUT-1.png" {
		t.Fatalf("unexpected path %q", u.Path)
	}
	q := u.Query()
	if q.Get("X-Amz-Expires") != "900" {
		t.Fatalf("X-Amz-Expires = %q", q.Get("X-Amz-Expires"))
	}
	if !strings.Contains(q.Get("X-Amz-SignedHeaders"), "content-type") {
		t.Fatalf("content type not bound: %q", q.Get("X-Amz-SignedHeaders"))
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("presigning performed %d requests", hits)
	}

	if got := store.PublicURL("user-media", "u/abc/OUT-1.png"); got != "https://storage.googleapis.com/user-media/u/abc/OUT-1.png" {
		t.Fatalf("PublicURL = %q", got)
	}
}

func TestMinioStoreWritePublicObject(t *testing.T) {
	var method, path, acl, contentType string
	store, _ := newTestMinio(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		acl = r.Header.Get("X-Amz-Acl")
		contentType = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	}))

	err := store.Write(context.Background(), Object{Bucket: "outputs", Name: "OUT-1.png", ContentType: "image/png", Data: []byte("png"), Public: true})
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if method != http.MethodPut || path != "/outputs/OUT-1.png" {
		t.Fatalf("unexpected request %s %s", method, path)
	}
	if acl != "public-read" {
		t.Fatalf("X-Amz-Acl = %q", acl)
	}
	if contentType != "image/png" {
		t.Fatalf("Content-Type = %q", contentType)
	}
}

func TestMinioStoreWriteFailure(t *testing.T) {
	store, _ := newTestMinio(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`))
	}))

	err := store.Write(context.Background(), Object{Bucket: "outputs", Name: "OUT-1.png", Data: []byte("png")})
	if err == nil {
		t.Fatal("expected write error")
	}
}

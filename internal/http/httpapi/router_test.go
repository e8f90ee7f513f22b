package httpapi

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"makemyoutfit/internal/adapter/repo"
	"makemyoutfit/internal/http/handlers"
	"makemyoutfit/internal/middleware"
	"makemyoutfit/internal/outfit"
	"makemyoutfit/internal/providers/genai"
	"makemyoutfit/internal/providers/image"
	"makemyoutfit/internal/session"
	"makemyoutfit/internal/storage"
)

// fakeGemini answers every call with the next queued image.
type fakeGemini struct {
	mu     sync.Mutex
	images [][]byte
	calls  [][]genai.Part
}

func (f *fakeGemini) GenerateContent(ctx context.Context, apiKey string, parts []genai.Part) ([]genai.Part, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, parts)
	img := []byte("png")
	if len(f.images) > 0 {
		img, f.images = f.images[0], f.images[1:]
	}
	return []genai.Part{genai.ImagePart("image/png", img)}, nil
}

func (f *fakeGemini) Model() string { return "fake" }

func newTestServer(t *testing.T, gemini *fakeGemini) *httptest.Server {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.NewFileStore(dir, "http://placeholder/static")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	svc, err := outfit.NewService(outfit.Options{
		Generator: image.NewGeminiGenerator(gemini, nil),
		Sessions:  session.New(session.Options{}),
		Store:     store,
		Signer:    store,
		History:   repo.NewMemoryHistoryRepository(),
		Bucket:    "outfits",
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	router := NewRouter(handlers.NewApp(svc, nil), RouterOptions{
		CORSOrigins:     []string{"https://app.test"},
		RateLimitPerMin: 100,
		StaticDir:       dir,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

type client struct {
	t       *testing.T
	base    string
	session string
}

func (c *client) do(method, path, body string, headers map[string]string) *http.Response {
	c.t.Helper()
	req, err := http.NewRequest(method, c.base+path, strings.NewReader(body))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.session != "" {
		req.Header.Set(middleware.SessionHeader, c.session)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	if sid := resp.Header.Get(middleware.SessionHeader); sid != "" && c.session == "" {
		c.session = sid
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &fakeGemini{})
	resp, err := http.Get(srv.URL + "/v1/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestGenerateReviseArchiveFlow(t *testing.T) {
	gemini := &fakeGemini{images: [][]byte{[]byte("first"), []byte("second")}}
	srv := newTestServer(t, gemini)
	c := &client{t: t, base: srv.URL}
	key := map[string]string{handlers.APIKeyHeader: "k"}

	resp := c.do(http.MethodPost, "/api/images/generate", `{"outfitId":"OUT-1","prompt":"linen suit"}`, key)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate status = %d", resp.StatusCode)
	}
	if !session.Valid(c.session) {
		t.Fatalf("expected a minted session id, got %q", c.session)
	}
	var gen map[string]string
	decode(t, resp, &gen)
	if gen["outfitId"] != "OUT-1" || gen["imageUrl"] != "http://placeholder/static/outfits/OUT-1.png" {
		t.Fatalf("unexpected generate response %+v", gen)
	}

	static, err := http.Get(srv.URL + "/static/outfits/OUT-1.png")
	if err != nil {
		t.Fatalf("get static: %v", err)
	}
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(static.Body)
	static.Body.Close()
	if static.StatusCode != http.StatusOK || buf.String() != "first" {
		t.Fatalf("static status=%d body=%q", static.StatusCode, buf.String())
	}

	resp = c.do(http.MethodPost, "/api/images/revise", `{"revisionText":"make it navy","directClientUpload":true}`, key)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("revise status = %d", resp.StatusCode)
	}
	var rev map[string]string
	decode(t, resp, &rev)
	if rev["outfitId"] != "OUT-1" || rev["imageBase64"] == "" {
		t.Fatalf("unexpected revise response %+v", rev)
	}
	if len(gemini.calls) != 2 || gemini.calls[1][1].Image == nil || string(gemini.calls[1][1].Image.Data) != "first" {
		t.Fatalf("revise did not send the prior image: %+v", gemini.calls)
	}

	resp = c.do(http.MethodGet, "/api/outfits", "", nil)
	var hist struct {
		Items []map[string]string `json:"items"`
	}
	decode(t, resp, &hist)
	if len(hist.Items) != 2 || hist.Items[0]["kind"] != "revise" || hist.Items[1]["kind"] != "generate" {
		t.Fatalf("unexpected history %+v", hist.Items)
	}

	resp = c.do(http.MethodGet, "/api/session/archive", "", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "application/zip" {
		t.Fatalf("archive status=%d type=%q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	var archive bytes.Buffer
	_, _ = archive.ReadFrom(resp.Body)
	zr, err := zip.NewReader(bytes.NewReader(archive.Bytes()), int64(archive.Len()))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 1 || zr.File[0].Name != "OUT-1.png" {
		t.Fatalf("unexpected archive entries %d", len(zr.File))
	}
}

func TestReviseWithoutPriorImage(t *testing.T) {
	gemini := &fakeGemini{}
	srv := newTestServer(t, gemini)
	c := &client{t: t, base: srv.URL}

	resp := c.do(http.MethodPost, "/api/images/revise", `{"revisionText":"x"}`, map[string]string{handlers.APIKeyHeader: "k"})
	var body map[string]string
	decode(t, resp, &body)
	if resp.StatusCode != http.StatusBadRequest || body["error"] != "No prior image to revise in this session." {
		t.Fatalf("status=%d body=%+v", resp.StatusCode, body)
	}
	if len(gemini.calls) != 0 {
		t.Fatalf("upstream should not be called")
	}
}

func TestSignedURLUnsupportedOnFilesystem(t *testing.T) {
	srv := newTestServer(t, &fakeGemini{})
	c := &client{t: t, base: srv.URL}
	key := map[string]string{handlers.APIKeyHeader: "k"}

	resp := c.do(http.MethodPost, "/api/images/generate", `{"prompt":"coat"}`, key)
	resp.Body.Close()

	resp = c.do(http.MethodPost, "/api/storage/signed-url", `{"fileName":"a.png"}`, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, &fakeGemini{})
	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/images/generate", nil)
	req.Header.Set("Origin", "https://app.test")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "https://app.test" {
		t.Fatalf("allow origin = %q", resp.Header.Get("Access-Control-Allow-Origin"))
	}
}

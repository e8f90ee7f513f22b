// Package client talks to the outfit API over HTTP. It keeps the session
// token returned by the server so that generate and revise calls share the
// same session image state, and it implements the direct-upload flow: fetch
// a signed URL, PUT the image, and fall back to a data: URL when either step
// fails.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"makemyoutfit/internal/domain"
	"makemyoutfit/internal/infra"
)

const (
	sessionHeader = "X-Session-ID"
	apiKeyHeader  = "X-API-Key"

	defaultTimeout = 180 * time.Second
	maxErrorBody   = 64 << 10
)

// ErrNoAPIKey is returned by Generate and Revise when no key is configured.
var ErrNoAPIKey = errors.New("client: api key is required")

// APIError is a non-2xx answer from the outfit API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("outfit api %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("outfit api %d: %s", e.Status, e.Message)
}

type Options struct {
	BaseURL    string
	APIKey     string
	SessionID  string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *infra.Logger

	mu        sync.Mutex
	sessionID string
}

func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		apiKey:     strings.TrimSpace(opts.APIKey),
		httpClient: hc,
		logger:     infra.OrNop(opts.Logger),
		sessionID:  strings.TrimSpace(opts.SessionID),
	}
}

// SessionID returns the session token the server last reported.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Photo is a local image sent inline.
type Photo struct {
	Data []byte
	MIME string
}

func (p *Photo) inline() *inlineImage {
	if p == nil || len(p.Data) == 0 {
		return nil
	}
	return &inlineImage{Data: base64.StdEncoding.EncodeToString(p.Data), MimeType: p.MIME}
}

type GenerateInput struct {
	OutfitID     string
	Prompt       string
	Width        int
	Height       int
	TryOn        bool
	UserInfo     domain.UserInfo
	Photo        *Photo
	DirectUpload bool
}

type ReviseInput struct {
	OutfitID     string
	RevisionText string
	Photo        *Photo
	DirectUpload bool
}

// Image is a generate or revise result. URL is set for managed uploads,
// Data for direct uploads.
type Image struct {
	OutfitID string
	URL      string
	Data     []byte
}

type Grant struct {
	SignedURL string
	PublicURL string
	ExpiresAt time.Time
}

type inlineImage struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType,omitempty"`
}

type userInfoBody struct {
	FullName string  `json:"fullName,omitempty"`
	Email    string  `json:"email,omitempty"`
	HeightCm float64 `json:"heightCm,omitempty"`
	ChestCm  float64 `json:"chestCm,omitempty"`
	WaistCm  float64 `json:"waistCm,omitempty"`
	HipsCm   float64 `json:"hipsCm,omitempty"`
}

type imageBody struct {
	OutfitID    string `json:"outfitId"`
	ImageURL    string `json:"imageUrl"`
	ImageBase64 string `json:"imageBase64"`
}

func (b imageBody) image() (Image, error) {
	img := Image{OutfitID: b.OutfitID, URL: b.ImageURL}
	if b.ImageURL == "" {
		data, err := base64.StdEncoding.DecodeString(b.ImageBase64)
		if err != nil {
			return Image{}, fmt.Errorf("client: decode imageBase64: %w", err)
		}
		if len(data) == 0 {
			return Image{}, errors.New("client: response carried neither imageUrl nor imageBase64")
		}
		img.Data = data
	}
	return img, nil
}

func (c *Client) Estimate(ctx context.Context, heightCm float64, photo *Photo) (domain.Measurements, error) {
	var out struct {
		ChestCm int `json:"chestCm"`
		WaistCm int `json:"waistCm"`
		HipsCm  int `json:"hipsCm"`
	}
	body := map[string]any{"heightCm": heightCm, "userImage": photo.inline()}
	if err := c.call(ctx, http.MethodPost, "/api/measurements/estimate", false, body, &out); err != nil {
		return domain.Measurements{}, err
	}
	return domain.Measurements{ChestCm: out.ChestCm, WaistCm: out.WaistCm, HipsCm: out.HipsCm}, nil
}

func (c *Client) Generate(ctx context.Context, in GenerateInput) (Image, error) {
	if c.apiKey == "" {
		return Image{}, ErrNoAPIKey
	}
	body := map[string]any{
		"outfitId": in.OutfitID,
		"prompt":   in.Prompt,
		"options": map[string]any{
			"width":  in.Width,
			"height": in.Height,
			"tryOn":  in.TryOn,
		},
		"userInfo": userInfoBody{
			FullName: in.UserInfo.FullName,
			Email:    in.UserInfo.Email,
			HeightCm: in.UserInfo.HeightCm,
			ChestCm:  in.UserInfo.ChestCm,
			WaistCm:  in.UserInfo.WaistCm,
			HipsCm:   in.UserInfo.HipsCm,
		},
		"userImage":          in.Photo.inline(),
		"directClientUpload": in.DirectUpload,
	}
	var out imageBody
	if err := c.call(ctx, http.MethodPost, "/api/images/generate", true, body, &out); err != nil {
		return Image{}, err
	}
	return out.image()
}

func (c *Client) Revise(ctx context.Context, in ReviseInput) (Image, error) {
	if c.apiKey == "" {
		return Image{}, ErrNoAPIKey
	}
	body := map[string]any{
		"outfitId":           in.OutfitID,
		"revisionText":       in.RevisionText,
		"userImage":          in.Photo.inline(),
		"directClientUpload": in.DirectUpload,
	}
	var out imageBody
	if err := c.call(ctx, http.MethodPost, "/api/images/revise", true, body, &out); err != nil {
		return Image{}, err
	}
	return out.image()
}

func (c *Client) SignedURL(ctx context.Context, fileName, contentType, bucket string) (Grant, error) {
	var out struct {
		SignedURL string `json:"signedUrl"`
		PublicURL string `json:"publicUrl"`
		ExpiresAt string `json:"expiresAt"`
	}
	body := map[string]string{"fileName": fileName, "contentType": contentType, "bucketName": bucket}
	if err := c.call(ctx, http.MethodPost, "/api/storage/signed-url", false, body, &out); err != nil {
		return Grant{}, err
	}
	if out.SignedURL == "" {
		return Grant{}, errors.New("client: signed url missing in response")
	}
	grant := Grant{SignedURL: out.SignedURL, PublicURL: out.PublicURL}
	if out.ExpiresAt != "" {
		if t, err := time.Parse(time.RFC3339, out.ExpiresAt); err == nil {
			grant.ExpiresAt = t
		}
	}
	return grant, nil
}

// Upload PUTs data to a signed URL with the content type it was signed for.
func (c *Client) Upload(ctx context.Context, signedURL, contentType string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, signedURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("client: build upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(data))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: upload: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("client: upload: status %d", resp.StatusCode)
	}
	return nil
}

// Delivery reports where a directly uploaded image ended up. Fallback is set
// when URL is a data: URL because the signed upload failed; Err then holds
// the reason.
type Delivery struct {
	URL      string
	Fallback bool
	Err      error
}

// Deliver uploads a direct-upload image through a signed URL under
// "<outfitId>.png". Any failure degrades to a data: URL instead of an error.
func (c *Client) Deliver(ctx context.Context, img Image, bucket string) Delivery {
	name := img.OutfitID
	if name == "" {
		name = fmt.Sprintf("outfit-%d", time.Now().UnixMilli())
	}
	name += ".png"

	grant, err := c.SignedURL(ctx, name, domain.ArtifactMIME, bucket)
	if err == nil {
		err = c.Upload(ctx, grant.SignedURL, domain.ArtifactMIME, img.Data)
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("object", name).Msg("direct upload failed, falling back to data url")
		return Delivery{URL: DataURL(domain.ArtifactMIME, img.Data), Fallback: true, Err: err}
	}
	return Delivery{URL: grant.PublicURL}
}

// DataURL encodes data as a base64 data: URL.
func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func (c *Client) call(ctx context.Context, method, path string, withKey bool, body, out any) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if sid := c.SessionID(); sid != "" {
		req.Header.Set(sessionHeader, sid)
	}
	if withKey {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if sid := resp.Header.Get(sessionHeader); sid != "" {
		c.mu.Lock()
		c.sessionID = sid
		c.mu.Unlock()
	}
	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("outfit api call")

	if resp.StatusCode/100 != 2 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s response: %w", path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		apiErr.Code = body.Code
		apiErr.Message = body.Error
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(raw))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

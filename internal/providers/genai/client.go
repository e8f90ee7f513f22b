package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"makemyoutfit/internal/domain"
	"makemyoutfit/internal/infra"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.5-flash-image-preview"
)

// Part is one segment of a request or response. Exactly one of Text and
// Image is set.
type Part struct {
	Text  string
	Image *Blob
}

// Blob is inline binary content.
type Blob struct {
	MIMEType string
	Data     []byte
}

// TextPart and ImagePart build request segments.
func TextPart(text string) Part {
	return Part{Text: text}
}

func ImagePart(mime string, data []byte) Part {
	return Part{Image: &Blob{MIMEType: mime, Data: data}}
}

// Options controls how the Gemini client is configured.
type Options struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client calls generateContent over plain HTTPS. The API key is supplied per
// call because callers bring their own.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiCandidate struct {
	Content      *geminiContent `json:"content"`
	FinishReason string         `json:"finishReason,omitempty"`
}

type geminiPromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates     []geminiCandidate     `json:"candidates"`
	PromptFeedback *geminiPromptFeedback `json:"promptFeedback,omitempty"`
}

// NewClient constructs a Gemini client with sane defaults. Callers may provide
// a nil HTTP client; one with a generous timeout is created.
func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}

	return &Client{
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		logger:     infra.OrNop(opts.Logger),
	}
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string {
	return c.model
}

// GenerateContent sends parts as a single user turn and returns the parts of
// the first candidate. Upstream failures come back as *domain.GenerationError.
func (c *Client) GenerateContent(ctx context.Context, apiKey string, parts []Part) ([]Part, error) {
	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{Role: "user", Parts: encodeParts(parts)}},
	}

	var response geminiGenerateContentResponse
	if err := c.invokeGemini(ctx, apiKey, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.model)), payload, &response); err != nil {
		return nil, err
	}

	out, err := decodeResponse(response)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("model", c.model).
		Int("parts", len(out)).
		Msg("genai: generate content")
	return out, nil
}

func (c *Client) invokeGemini(ctx context.Context, apiKey, path string, payload any, out any) error {
	endpoint := c.baseURL + path
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("model", c.model).Msg("genai: request failed")
		return &domain.GenerationError{Reason: fmt.Sprintf("invoke gemini: %v", err), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.GenerationError{Status: resp.StatusCode, Reason: fmt.Sprintf("read response: %v", err), Err: err}
	}

	c.logger.Debug().
		Str("model", c.model).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("genai: upstream responded")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.GenerationError{Status: resp.StatusCode, Reason: string(data)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &domain.GenerationError{Reason: "decode gemini response: " + err.Error(), Err: err}
	}
	return nil
}

func encodeParts(parts []Part) []geminiPart {
	out := make([]geminiPart, 0, len(parts))
	for _, p := range parts {
		if p.Image != nil {
			mime := p.Image.MIMEType
			if mime == "" {
				mime = domain.ArtifactMIME
			}
			out = append(out, geminiPart{InlineData: &geminiInlineData{
				MimeType: mime,
				Data:     base64.StdEncoding.EncodeToString(p.Image.Data),
			}})
			continue
		}
		out = append(out, geminiPart{Text: p.Text})
	}
	return out
}

func decodeResponse(resp geminiGenerateContentResponse) ([]Part, error) {
	if len(resp.Candidates) == 0 {
		blockReason := ""
		if resp.PromptFeedback != nil {
			blockReason = resp.PromptFeedback.BlockReason
		}
		return nil, noCandidates(blockReason)
	}

	first := resp.Candidates[0]
	if first.Content == nil || len(first.Content.Parts) == 0 {
		return nil, noContent(first.FinishReason)
	}

	out := make([]Part, 0, len(first.Content.Parts))
	for _, p := range first.Content.Parts {
		switch {
		case p.InlineData != nil && p.InlineData.Data != "":
			data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				return nil, &domain.GenerationError{Reason: "decode inline data: " + err.Error(), Err: err}
			}
			out = append(out, ImagePart(p.InlineData.MimeType, data))
		case p.Text != "":
			out = append(out, TextPart(p.Text))
		}
	}
	return out, nil
}

func noCandidates(blockReason string) error {
	if blockReason != "" {
		return &domain.GenerationError{Reason: "prompt blocked: " + blockReason}
	}
	return &domain.GenerationError{Reason: "unrecognized response: no candidates"}
}

func noContent(finishReason string) error {
	if finishReason != "" {
		return &domain.GenerationError{Reason: "unrecognized response: empty content (finish reason " + finishReason + ")"}
	}
	return &domain.GenerationError{Reason: "unrecognized response: empty content"}
}

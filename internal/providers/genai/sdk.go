package genai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	sdk "google.golang.org/genai"

	"makemyoutfit/internal/domain"
	"makemyoutfit/internal/infra"
)

// SDKClient is the alternative transport built on google.golang.org/genai.
// It produces the same normalized parts as Client.
type SDKClient struct {
	baseURL    string
	apiVersion string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// NewSDKClient accepts the same options as NewClient. A trailing API version
// segment on BaseURL ("/v1beta") is split off and passed to the SDK
// separately.
func NewSDKClient(opts Options) *SDKClient {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	root, version := splitAPIVersion(baseURL)

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}

	return &SDKClient{
		baseURL:    root,
		apiVersion: version,
		model:      model,
		httpClient: client,
		logger:     infra.OrNop(opts.Logger),
	}
}

func (c *SDKClient) Model() string {
	return c.model
}

// GenerateContent builds a short-lived SDK client for the caller's key and
// performs one generateContent call.
func (c *SDKClient) GenerateContent(ctx context.Context, apiKey string, parts []Part) ([]Part, error) {
	client, err := sdk.NewClient(ctx, &sdk.ClientConfig{
		APIKey:     apiKey,
		Backend:    sdk.BackendGeminiAPI,
		HTTPClient: c.httpClient,
		HTTPOptions: sdk.HTTPOptions{
			BaseURL:    c.baseURL + "/",
			APIVersion: c.apiVersion,
		},
	})
	if err != nil {
		return nil, &domain.GenerationError{Reason: "create genai client: " + err.Error(), Err: err}
	}

	contents := []*sdk.Content{sdk.NewContentFromParts(toSDKParts(parts), sdk.RoleUser)}
	resp, err := client.Models.GenerateContent(ctx, c.model, contents, &sdk.GenerateContentConfig{})
	if err != nil {
		c.logger.Warn().Err(err).Str("model", c.model).Msg("genai sdk: generate content failed")
		return nil, fromSDKError(err)
	}

	out, err := fromSDKResponse(resp)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("model", c.model).
		Int("parts", len(out)).
		Msg("genai sdk: generate content")
	return out, nil
}

func toSDKParts(parts []Part) []*sdk.Part {
	out := make([]*sdk.Part, 0, len(parts))
	for _, p := range parts {
		if p.Image != nil {
			mime := p.Image.MIMEType
			if mime == "" {
				mime = domain.ArtifactMIME
			}
			out = append(out, &sdk.Part{InlineData: &sdk.Blob{MIMEType: mime, Data: p.Image.Data}})
			continue
		}
		out = append(out, sdk.NewPartFromText(p.Text))
	}
	return out
}

func fromSDKResponse(resp *sdk.GenerateContentResponse) ([]Part, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		blockReason := ""
		if resp != nil && resp.PromptFeedback != nil {
			blockReason = string(resp.PromptFeedback.BlockReason)
		}
		return nil, noCandidates(blockReason)
	}

	first := resp.Candidates[0]
	if first == nil || first.Content == nil || len(first.Content.Parts) == 0 {
		finishReason := ""
		if first != nil {
			finishReason = string(first.FinishReason)
		}
		return nil, noContent(finishReason)
	}

	out := make([]Part, 0, len(first.Content.Parts))
	for _, p := range first.Content.Parts {
		switch {
		case p == nil:
		case p.InlineData != nil && len(p.InlineData.Data) > 0:
			out = append(out, ImagePart(p.InlineData.MIMEType, p.InlineData.Data))
		case p.Text != "":
			out = append(out, TextPart(p.Text))
		}
	}
	return out, nil
}

func fromSDKError(err error) error {
	var apiErr sdk.APIError
	if errors.As(err, &apiErr) {
		return &domain.GenerationError{Status: apiErr.Code, Reason: apiErr.Message, Err: err}
	}
	var apiErrPtr *sdk.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &domain.GenerationError{Status: apiErrPtr.Code, Reason: apiErrPtr.Message, Err: err}
	}
	return &domain.GenerationError{Reason: err.Error(), Err: err}
}

func splitAPIVersion(baseURL string) (string, string) {
	i := strings.LastIndex(baseURL, "/")
	if i < 0 {
		return baseURL, "v1beta"
	}
	last := baseURL[i+1:]
	if strings.HasPrefix(last, "v1") {
		return baseURL[:i], last
	}
	return baseURL, "v1beta"
}

package image

import (
	"context"
	"strings"

	"makemyoutfit/internal/domain"
	"makemyoutfit/internal/infra"
	"makemyoutfit/internal/providers/genai"
)

// GeminiGenerator turns outfit requests into Gemini calls and extracts the
// resulting image.
type GeminiGenerator struct {
	transport Transport
	logger    *infra.Logger
}

func NewGeminiGenerator(transport Transport, logger *infra.Logger) *GeminiGenerator {
	return &GeminiGenerator{transport: transport, logger: infra.OrNop(logger)}
}

func (g *GeminiGenerator) Generate(ctx context.Context, apiKey string, req OutfitRequest) ([]byte, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, domain.ErrMissingCredential
	}
	parts, err := g.transport.GenerateContent(ctx, apiKey, GenerationParts(req))
	if err != nil {
		return nil, err
	}
	img, err := ExtractImage(parts)
	if err != nil {
		g.logger.Warn().Err(err).Str("model", g.transport.Model()).Msg("image: generation returned no image")
		return nil, err
	}
	return img, nil
}

func (g *GeminiGenerator) Revise(ctx context.Context, apiKey string, req RevisionRequest) ([]byte, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, domain.ErrMissingCredential
	}
	if len(req.PriorImage) == 0 {
		return nil, domain.ErrNoPriorImage
	}
	if strings.TrimSpace(req.RevisionText) == "" {
		return nil, domain.InvalidInput("revisionText is required")
	}
	parts, err := g.transport.GenerateContent(ctx, apiKey, RevisionParts(req))
	if err != nil {
		return nil, err
	}
	img, err := ExtractImage(parts)
	if err != nil {
		g.logger.Warn().Err(err).Str("model", g.transport.Model()).Msg("image: revision returned no image")
		return nil, err
	}
	return img, nil
}

// ExtractImage returns the first inline image. Without one, the first text
// part becomes the failure reason.
func ExtractImage(parts []genai.Part) ([]byte, error) {
	for _, p := range parts {
		if p.Image != nil && len(p.Image.Data) > 0 {
			return p.Image.Data, nil
		}
	}
	for _, p := range parts {
		if p.Text != "" {
			return nil, &domain.GenerationError{Reason: p.Text}
		}
	}
	return nil, &domain.GenerationError{Reason: "No image content returned"}
}

var _ Generator = (*GeminiGenerator)(nil)

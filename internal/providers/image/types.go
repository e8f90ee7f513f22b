package image

import (
	"context"

	"makemyoutfit/internal/domain"
	"makemyoutfit/internal/providers/genai"
)

// Transport is the Gemini call surface. Both genai.Client and
// genai.SDKClient satisfy it.
type Transport interface {
	GenerateContent(ctx context.Context, apiKey string, parts []genai.Part) ([]genai.Part, error)
	Model() string
}

// OutfitRequest asks for a fresh outfit render.
type OutfitRequest struct {
	Prompt   string
	Width    int
	Height   int
	TryOn    bool
	Photo    *domain.Photo
	UserInfo domain.UserInfo
}

// RevisionRequest edits PriorImage according to RevisionText.
type RevisionRequest struct {
	RevisionText string
	PriorImage   []byte
	Photo        *domain.Photo
}

// Generator is the contract the outfit controller depends on. Both calls
// return the produced image bytes.
type Generator interface {
	Generate(ctx context.Context, apiKey string, req OutfitRequest) ([]byte, error)
	Revise(ctx context.Context, apiKey string, req RevisionRequest) ([]byte, error)
}

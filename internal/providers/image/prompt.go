package image

import (
	"fmt"
	"math"
	"strings"

	"makemyoutfit/internal/domain"
	"makemyoutfit/internal/providers/genai"
)

const (
	tryOnInstruction         = "Fit the newly designed outfit onto the person photo realistically (pose-aware), keep the face and body intact."
	revisionTryOnInstruction = "If appropriate, also reflect the change on the try-on preview while keeping likeness consistent."
)

// MasterInstruction wraps a short outfit description in the house creative
// brief.
func MasterInstruction(description string) string {
	return "create a unique " + strings.TrimSpace(description) +
		", can be any material or combination of materials, " +
		"can use any combination of accessories or jewelry, " +
		"can use any combination of cutouts, can use any combination of straps, " +
		"emphasis for accents or eye drawing details."
}

// GenerationParts builds the request segments for a new render. The photo is
// only forwarded when try-on is enabled.
func GenerationParts(req OutfitRequest) []genai.Part {
	width, height := req.Width, req.Height
	if width <= 0 {
		width = domain.DefaultImageWidth
	}
	if height <= 0 {
		height = domain.DefaultImageHeight
	}

	text := fmt.Sprintf("%s Generate a detailed full outfit render. Aspect: %dx%d.", req.Prompt, width, height)
	if req.TryOn {
		if sentence := measurementSentence(req.UserInfo); sentence != "" {
			text += " " + sentence
		}
	}

	parts := []genai.Part{genai.TextPart(text)}
	if req.TryOn && req.Photo != nil && len(req.Photo.Data) > 0 {
		parts = append(parts,
			genai.ImagePart(photoMIME(req.Photo), req.Photo.Data),
			genai.TextPart(tryOnInstruction),
		)
	}
	return parts
}

// RevisionParts builds the request segments for editing the prior image.
func RevisionParts(req RevisionRequest) []genai.Part {
	parts := []genai.Part{
		genai.TextPart(fmt.Sprintf("Edit this outfit exactly as instructed: %s. Preserve overall style and realism.", req.RevisionText)),
		genai.ImagePart(domain.ArtifactMIME, req.PriorImage),
	}
	if req.Photo != nil && len(req.Photo.Data) > 0 {
		parts = append(parts,
			genai.ImagePart(photoMIME(req.Photo), req.Photo.Data),
			genai.TextPart(revisionTryOnInstruction),
		)
	}
	return parts
}

func photoMIME(p *domain.Photo) string {
	if p.MIME == "" {
		return domain.ArtifactMIME
	}
	return p.MIME
}

func measurementSentence(u domain.UserInfo) string {
	var fields []string
	add := func(label string, v float64) {
		if v > 0 && !math.IsInf(v, 0) {
			fields = append(fields, fmt.Sprintf("%s %s cm", label, formatCm(v)))
		}
	}
	add("height", u.HeightCm)
	add("chest", u.ChestCm)
	add("waist", u.WaistCm)
	add("hips", u.HipsCm)
	if len(fields) == 0 {
		return ""
	}
	return "Body measurements: " + strings.Join(fields, ", ") + "."
}

func formatCm(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%d", int(v))
	}
	return fmt.Sprintf("%.1f", v)
}

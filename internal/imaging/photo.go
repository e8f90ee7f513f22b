// Package imaging decodes inline image payloads sent by clients.
package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/webp"

	"makemyoutfit/internal/domain"
)

// Format is an image container recognised by DetectFormat.
type Format string

const (
	JPEG Format = "jpeg"
	PNG  Format = "png"
	GIF  Format = "gif"
	WEBP Format = "webp"
)

// MIME returns the content type for the format.
func (f Format) MIME() string {
	return "image/" + string(f)
}

// DetectFormat sniffs the container format from the image header.
func DetectFormat(data []byte) (Format, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	switch format {
	case "jpeg":
		return JPEG, nil
	case "png":
		return PNG, nil
	case "gif":
		return GIF, nil
	case "webp":
		return WEBP, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// DecodeBase64 turns an inline payload into a Photo. Both bare base64 and
// data URLs ("data:image/png;base64,...") are accepted. When no MIME type is
// declared it is sniffed from the bytes, falling back to image/png.
func DecodeBase64(payload, declaredMIME string) (*domain.Photo, error) {
	payload = strings.TrimSpace(payload)
	mime := NormalizeMIME(declaredMIME)
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		header, data, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(header, ";base64") {
			return nil, domain.InvalidInput("image data URL must be base64 encoded")
		}
		if mime == "" {
			mime = NormalizeMIME(strings.TrimSuffix(header, ";base64"))
		}
		payload = data
	}
	if payload == "" {
		return nil, domain.InvalidInput("image data is empty")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(payload); err != nil {
			return nil, domain.InvalidInput("image data is not valid base64")
		}
	}
	if len(data) == 0 {
		return nil, domain.InvalidInput("image data is empty")
	}

	if mime == "" {
		if format, err := DetectFormat(data); err == nil {
			mime = format.MIME()
		} else {
			mime = domain.ArtifactMIME
		}
	}
	return &domain.Photo{Data: data, MIME: mime}, nil
}

// NormalizeMIME lower-cases a content type and folds common aliases.
func NormalizeMIME(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch mime {
	case "image/jpg", "image/pjpeg":
		return "image/jpeg"
	case "image/x-png":
		return "image/png"
	}
	return mime
}

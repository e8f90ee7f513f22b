package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"makemyoutfit/internal/domain"
	"makemyoutfit/internal/imaging"
)

// MaxBodyBytes bounds JSON request bodies. Inline photos arrive base64
// encoded, so the limit is well above the raw photo size.
const MaxBodyBytes = 25 << 20

// flexFloat accepts a JSON number, a numeric string or an empty string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

type inlineImage struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

func (img *inlineImage) photo() (*domain.Photo, error) {
	if img == nil || strings.TrimSpace(img.Data) == "" {
		return nil, nil
	}
	return imaging.DecodeBase64(img.Data, img.MimeType)
}

type estimateRequest struct {
	HeightCm  flexFloat    `json:"heightCm"`
	UserImage *inlineImage `json:"userImage"`
}

type estimateResponse struct {
	ChestCm int `json:"chestCm"`
	WaistCm int `json:"waistCm"`
	HipsCm  int `json:"hipsCm"`
}

type generateOptions struct {
	Width  flexFloat `json:"width"`
	Height flexFloat `json:"height"`
	TryOn  bool      `json:"tryOn"`
}

type userInfo struct {
	FullName string    `json:"fullName"`
	Email    string    `json:"email"`
	HeightCm flexFloat `json:"heightCm"`
	ChestCm  flexFloat `json:"chestCm"`
	WaistCm  flexFloat `json:"waistCm"`
	HipsCm   flexFloat `json:"hipsCm"`
}

func (u userInfo) toDomain() domain.UserInfo {
	return domain.UserInfo{
		FullName: strings.TrimSpace(u.FullName),
		Email:    strings.TrimSpace(u.Email),
		HeightCm: float64(u.HeightCm),
		ChestCm:  float64(u.ChestCm),
		WaistCm:  float64(u.WaistCm),
		HipsCm:   float64(u.HipsCm),
	}
}

type generateRequest struct {
	OutfitID           string          `json:"outfitId"`
	MasterPrompt       string          `json:"masterPrompt"`
	Prompt             string          `json:"prompt"`
	Options            generateOptions `json:"options"`
	UserInfo           userInfo        `json:"userInfo"`
	UserImage          *inlineImage    `json:"userImage"`
	DirectClientUpload bool            `json:"directClientUpload"`
}

type reviseRequest struct {
	OutfitID           string       `json:"outfitId"`
	RevisionText       string       `json:"revisionText"`
	UserImage          *inlineImage `json:"userImage"`
	DirectClientUpload bool         `json:"directClientUpload"`
}

type imageResponse struct {
	OutfitID    string `json:"outfitId,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	ImageBase64 string `json:"imageBase64,omitempty"`
}

type signedURLRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	BucketName  string `json:"bucketName"`
}

type signedURLResponse struct {
	SignedURL string `json:"signedUrl"`
	PublicURL string `json:"publicUrl"`
	ExpiresAt string `json:"expiresAt"`
}

type historyItem struct {
	ID           string `json:"id"`
	OutfitID     string `json:"outfitId"`
	Kind         string `json:"kind"`
	PromptText   string `json:"promptText,omitempty"`
	RevisionText string `json:"revisionText,omitempty"`
	ImageURL     string `json:"imageUrl,omitempty"`
	Delivery     string `json:"delivery"`
	CreatedAt    string `json:"createdAt"`
}

type historyResponse struct {
	Items []historyItem `json:"items"`
}

// decodeBody reads a bounded JSON body into dst. It writes the error response
// itself and reports whether the handler may continue.
func (a *App) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large")
			return false
		}
		a.error(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return false
	}
	return true
}

package handlers

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"makemyoutfit/internal/domain"
	"makemyoutfit/internal/middleware"
	"makemyoutfit/internal/session"
)

// APIKeyHeader carries the caller's Gemini key. It is never stored.
const APIKeyHeader = "X-API-Key"

func (a *App) EstimateMeasurements(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if !a.decodeBody(w, r, &req) {
		return
	}
	photo, err := req.UserImage.photo()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	m, err := a.Outfits.EstimateMeasurements(float64(req.HeightCm), photo)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, estimateResponse{ChestCm: m.ChestCm, WaistCm: m.WaistCm, HipsCm: m.HipsCm})
}

func (a *App) ImagesGenerate(w http.ResponseWriter, r *http.Request) {
	apiKey := strings.TrimSpace(r.Header.Get(APIKeyHeader))
	if apiKey == "" {
		a.fail(w, r, domain.ErrMissingCredential)
		return
	}
	var req generateRequest
	if !a.decodeBody(w, r, &req) {
		return
	}
	photo, err := req.UserImage.photo()
	if err != nil {
		a.fail(w, r, err)
		return
	}

	res, err := a.Outfits.Generate(r.Context(), middleware.SessionIDFromContext(r.Context()), apiKey, domain.GenerateRequest{
		OutfitID:    req.OutfitID,
		Prompt:      req.MasterPrompt,
		Description: req.Prompt,
		Options: domain.Options{
			Width:  int(req.Options.Width),
			Height: int(req.Options.Height),
			TryOn:  req.Options.TryOn,
		},
		UserInfo:     req.UserInfo.toDomain(),
		Photo:        photo,
		DirectUpload: req.DirectClientUpload,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toImageResponse(res))
}

func (a *App) ImagesRevise(w http.ResponseWriter, r *http.Request) {
	apiKey := strings.TrimSpace(r.Header.Get(APIKeyHeader))
	if apiKey == "" {
		a.fail(w, r, domain.ErrMissingCredential)
		return
	}
	var req reviseRequest
	if !a.decodeBody(w, r, &req) {
		return
	}
	photo, err := req.UserImage.photo()
	if err != nil {
		a.fail(w, r, err)
		return
	}

	res, err := a.Outfits.Revise(r.Context(), middleware.SessionIDFromContext(r.Context()), apiKey, domain.ReviseRequest{
		OutfitID:     req.OutfitID,
		RevisionText: req.RevisionText,
		Photo:        photo,
		DirectUpload: req.DirectClientUpload,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toImageResponse(res))
}

func toImageResponse(res domain.Result) imageResponse {
	out := imageResponse{OutfitID: res.OutfitID, ImageURL: res.ImageURL}
	if res.ImageURL == "" {
		out.ImageBase64 = base64.StdEncoding.EncodeToString(res.Image)
	}
	return out
}

func (a *App) SignedURL(w http.ResponseWriter, r *http.Request) {
	var req signedURLRequest
	if !a.decodeBody(w, r, &req) {
		return
	}
	grant, err := a.Outfits.IssueUploadGrant(r.Context(), middleware.SessionIDFromContext(r.Context()), domain.GrantRequest{
		FileName:    req.FileName,
		ContentType: req.ContentType,
		Bucket:      req.BucketName,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, signedURLResponse{
		SignedURL: grant.WriteURL,
		PublicURL: grant.PublicURL,
		ExpiresAt: grant.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (a *App) ListOutfits(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			a.error(w, http.StatusBadRequest, "invalid_input", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := a.Outfits.History(r.Context(), middleware.SessionIDFromContext(r.Context()), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]historyItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, historyItem{
			ID:           e.ID,
			OutfitID:     e.OutfitID,
			Kind:         string(e.Kind),
			PromptText:   e.PromptText,
			RevisionText: e.RevisionText,
			ImageURL:     e.ImageURL,
			Delivery:     string(e.Delivery),
			CreatedAt:    e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	a.json(w, http.StatusOK, historyResponse{Items: items})
}

func (a *App) SessionArchive(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.SessionIDFromContext(r.Context())
	data, err := a.Outfits.Archive(sessionID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "outfits-"+session.Namespace(sessionID)+".zip"))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"makemyoutfit/internal/domain"
	"makemyoutfit/internal/infra"
)

// OutfitService is the controller the handlers delegate to.
type OutfitService interface {
	EstimateMeasurements(heightCm float64, photo *domain.Photo) (domain.Measurements, error)
	Generate(ctx context.Context, sessionID, apiKey string, req domain.GenerateRequest) (domain.Result, error)
	Revise(ctx context.Context, sessionID, apiKey string, req domain.ReviseRequest) (domain.Result, error)
	IssueUploadGrant(ctx context.Context, sessionID string, req domain.GrantRequest) (domain.UploadGrant, error)
	History(ctx context.Context, sessionID string, limit int) ([]domain.HistoryEntry, error)
	Archive(sessionID string) ([]byte, error)
}

type App struct {
	Outfits OutfitService
	Logger  *infra.Logger
}

func NewApp(outfits OutfitService, logger *infra.Logger) *App {
	return &App{Outfits: outfits, Logger: infra.OrNop(logger)}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorResponse{Error: message, Code: code})
}

// fail maps a service error to its HTTP status and error body.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrMissingCredential):
		a.error(w, http.StatusUnauthorized, "missing_credential", "Missing X-API-Key header")
	case errors.Is(err, domain.ErrNoPriorImage):
		a.error(w, http.StatusBadRequest, "no_prior_image", "No prior image to revise in this session.")
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, http.StatusBadRequest, "invalid_input", detail(err, domain.ErrInvalidInput))
	case errors.Is(err, domain.ErrForbidden):
		a.error(w, http.StatusForbidden, "forbidden", detail(err, domain.ErrForbidden))
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", detail(err, domain.ErrNotFound))
	case errors.Is(err, domain.ErrGenerationFailed):
		a.logFailure(r, err, "generation failed")
		a.error(w, http.StatusBadGateway, "generation_failed", err.Error())
	case errors.Is(err, domain.ErrUploadFailed):
		a.logFailure(r, err, "managed upload failed")
		a.error(w, http.StatusBadGateway, "upload_failed", "Failed to store generated image")
	default:
		a.logFailure(r, err, "request failed")
		a.error(w, http.StatusInternalServerError, "internal", "Internal server error")
	}
}

func (a *App) logFailure(r *http.Request, err error, msg string) {
	a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg(msg)
}

// detail strips the "<sentinel>: " prefix added by the domain wrappers.
func detail(err, sentinel error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
		return rest
	}
	return msg
}

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

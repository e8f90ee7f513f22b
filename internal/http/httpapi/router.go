package httpapi

import (
	"net/http"
	"time"

	"makemyoutfit/internal/http/handlers"
	"makemyoutfit/internal/infra"
	"makemyoutfit/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RouterOptions carries the HTTP concerns that live outside the handlers.
type RouterOptions struct {
	Logger          *infra.Logger
	CORSOrigins     []string
	RateLimitPerMin int
	SessionTTL      time.Duration
	CookieSecure    bool
	// StaticDir is served under /static when the filesystem storage driver
	// is active. Empty disables the route.
	StaticDir string
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(*infra.OrNop(opts.Logger)),
		middleware.CORS(opts.CORSOrigins),
	)

	// Health
	r.Get("/v1/healthz", app.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Session(middleware.SessionOptions{TTL: opts.SessionTTL, Secure: opts.CookieSecure}))

		r.Post("/measurements/estimate", app.EstimateMeasurements)
		r.Post("/storage/signed-url", app.SignedURL)
		r.Get("/outfits", app.ListOutfits)
		r.Get("/session/archive", app.SessionArchive)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
			r.Post("/images/generate", app.ImagesGenerate)
			r.Post("/images/revise", app.ImagesRevise)
		})
	})

	if opts.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
	}

	return r
}

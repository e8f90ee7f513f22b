package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"makemyoutfit/internal/adapter/repo"
	"makemyoutfit/internal/domain"
	"makemyoutfit/internal/events"
	"makemyoutfit/internal/http/handlers"
	httpapi "makemyoutfit/internal/http/httpapi"
	"makemyoutfit/internal/infra"
	"makemyoutfit/internal/outfit"
	"makemyoutfit/internal/providers/genai"
	"makemyoutfit/internal/providers/image"
	"makemyoutfit/internal/session"
	"makemyoutfit/internal/storage"
)

const sweepInterval = time.Minute

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Object storage
	var (
		store     storage.ObjectStore
		signer    storage.URLSigner
		staticDir string
	)
	switch cfg.StorageDriver {
	case infra.StorageDriverS3:
		s, err := storage.NewMinioStore(storage.MinioOptions{
			Endpoint:      cfg.StorageEndpoint,
			AccessKey:     cfg.StorageAccessKey,
			SecretKey:     cfg.StorageSecretKey,
			Region:        cfg.StorageRegion,
			UseSSL:        cfg.StorageUseSSL,
			PublicBaseURL: cfg.StorageBaseURL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init object storage")
		}
		store, signer = s, s
	default:
		s, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init filesystem storage")
		}
		store, signer = s, s
		staticDir = s.BasePath()
	}

	// Gemini transport
	genaiOpts := genai.Options{
		BaseURL:    cfg.GeminiBaseURL,
		Model:      cfg.GeminiModel,
		HTTPClient: &http.Client{Timeout: cfg.GeminiTimeout},
		Logger:     &logger,
	}
	var transport image.Transport = genai.NewClient(genaiOpts)
	if cfg.GeminiTransport == infra.GeminiTransportSDK {
		transport = genai.NewSDKClient(genaiOpts)
	}

	// History: Postgres when configured, in-process otherwise
	var history domain.HistoryRepository = repo.NewMemoryHistoryRepository()
	if cfg.DatabaseURL != "" {
		dbpool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer dbpool.Close()

		pg := repo.NewHistoryRepository(infra.NewSQLRunner(dbpool, &logger))
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare history schema")
		}
		history = pg
	}

	// Events are optional
	var publisher domain.EventPublisher = events.Nop{}
	if cfg.AMQPURL != "" {
		p, err := events.Dial(cfg.AMQPURL, cfg.AMQPExchange, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect amqp")
		}
		defer p.Close()
		publisher = p
	}

	sessions := session.New(session.Options{TTL: cfg.SessionTTL, MaxSessions: cfg.SessionMax})
	go sessions.Run(ctx, sweepInterval, func(removed int) {
		logger.Debug().Int("removed", removed).Int("active", sessions.Len()).Msg("sessions swept")
	})

	svc, err := outfit.NewService(outfit.Options{
		Generator:        image.NewGeminiGenerator(transport, &logger),
		Sessions:         sessions,
		Store:            store,
		Signer:           signer,
		History:          history,
		Events:           publisher,
		Bucket:           cfg.Bucket,
		SignedURLBuckets: cfg.SignedURLBuckets,
		SignedURLTTL:     cfg.SignedURLTTL,
		Logger:           &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build outfit service")
	}

	router := httpapi.NewRouter(handlers.NewApp(svc, &logger), httpapi.RouterOptions{
		Logger:          &logger,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		SessionTTL:      cfg.SessionTTL,
		CookieSecure:    cfg.SessionCookieSecure,
		StaticDir:       staticDir,
	})

	server := infra.NewHTTPServer(cfg, router)

	if !cfg.SignedUploadsEnabled() {
		logger.Warn().
			Str("storage", cfg.StorageDriver).
			Msg("signed upload URLs need STORAGE_DRIVER=s3; /api/storage/signed-url will answer 403")
	}

	go func() {
		logger.Info().
			Str("storage", cfg.StorageDriver).
			Str("gemini_transport", cfg.GeminiTransport).
			Str("model", transport.Model()).
			Msgf("API listening on %s", server.Addr())
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

//	@title			File Gateway API
//	@version		1.0
//	@description	Store and retrieve named byte objects through an object store or a network file share.
//
//	@host		localhost:8000
//	@BasePath	/

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/supriyameruva/filegate/internal/auth"
	"github.com/supriyameruva/filegate/internal/authflow"
	"github.com/supriyameruva/filegate/internal/config"
	"github.com/supriyameruva/filegate/internal/credential"
	"github.com/supriyameruva/filegate/internal/files"
	appMiddleware "github.com/supriyameruva/filegate/internal/middleware"
	"github.com/supriyameruva/filegate/internal/session"
	"github.com/supriyameruva/filegate/internal/storage"

	_ "github.com/supriyameruva/filegate/docs/swagger"
)

func main() {
	cfg := config.Load()

	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	kind, err := cfg.CredentialKind()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid storage configuration")
	}
	log.Info().Str("credential_kind", kind).Str("object_store", cfg.ObjectStoreDriver).Msg("starting")

	sessions := session.NewStore(cfg.SessionTTL)
	defer sessions.Close()

	var flow *authflow.Controller
	if cfg.OAuthConfigured() {
		flow = authflow.New(authflow.Config{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			RedirectURL:  cfg.OAuthRedirectURL,
			Scopes:       cfg.OAuthScopes,
			Endpoints: authflow.Endpoints{
				AuthorizeURL: cfg.AuthorizeURL(),
				TokenURL:     cfg.TokenURL(),
			},
		}, sessions, nil)
	}

	provider, err := buildProvider(cfg, kind, sessions, flow)
	if err != nil {
		log.Fatal().Err(err).Msg("credential provider init failed")
	}

	var object storage.Gateway
	switch cfg.ObjectStoreDriver {
	case "s3":
		object, err = storage.NewS3Backend(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey,
			cfg.Container, cfg.S3UseSSL, provider)
		if err != nil {
			log.Fatal().Err(err).Msg("object storage init failed")
		}
	default:
		object = storage.NewAzureBackend(cfg.AccountURL, provider)
	}

	var share storage.Gateway
	if shareBackend, err := storage.NewShareBackend(cfg.SharePath, provider); err != nil {
		log.Warn().Err(err).Msg("file share unavailable, share routes will fail")
	} else {
		share = shareBackend
	}

	gateway := storage.NewMux(object, share)

	objectTarget := storage.Target{Kind: storage.ObjectStore, Container: cfg.Container}
	shareTarget := storage.Target{Kind: storage.Share, BasePath: cfg.ShareBasePath}

	filesSvc := files.NewService(gateway, cfg.AllowedExtensions, cfg.OverwriteExisting,
		cfg.BackendTimeout, objectTarget, shareTarget)
	filesHandler := files.NewHandler(filesSvc, cfg.MaxUploadBytes)
	authHandler := auth.NewHandler(flow, sessions, cfg.SessionSecret, cfg.SessionTTL)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Throttle(cfg.MaxInFlight))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(appMiddleware.Session(sessions, cfg.SessionSecret))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Swagger UI — available at http://localhost:8000/swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Get("/", authHandler.Index)
	r.Get("/login", authHandler.Login)
	r.Post("/login", authHandler.Login)
	r.Get("/callback", authHandler.Callback)
	r.Get("/logout", authHandler.Logout)

	r.Get("/upload", filesHandler.UploadShare)
	r.Post("/upload", filesHandler.UploadShare)
	r.Get("/upload_blob", filesHandler.UploadBlob)
	r.Post("/upload_blob", filesHandler.UploadBlob)
	r.Get("/list", filesHandler.ListShare)
	r.Get("/list_blobs", filesHandler.ListBlobs)
	r.Get("/download/{name}", filesHandler.DownloadShare)
	r.Get("/download_blob/{name}", filesHandler.DownloadBlob)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.AppEnv).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-quit
	log.Info().Msg("shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}

	log.Info().Msg("server stopped")
}

func buildProvider(cfg *config.Config, kind string, sessions *session.Store, flow *authflow.Controller) (credential.Provider, error) {
	switch kind {
	case config.CredentialConnectionString:
		return credential.NewConnectionString(cfg.ConnectionString)
	case config.CredentialSAS:
		return credential.NewSAS(cfg.SASToken)
	case config.CredentialDelegated:
		return credential.NewDelegated(sessions, flow), nil
	default:
		return credential.NewManagedIdentity(), nil
	}
}

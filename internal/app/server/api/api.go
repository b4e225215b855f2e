package api

import (
	changesAPI "crmsync/internal/app/server/api/http/changes"
	connectionAPI "crmsync/internal/app/server/api/http/connection"
	deadletterAPI "crmsync/internal/app/server/api/http/deadletter"
	healthAPI "crmsync/internal/app/server/api/http/health"
	mappingAPI "crmsync/internal/app/server/api/http/mapping"
	"crmsync/internal/app/server/api/http/middleware"
	"crmsync/internal/app/server/api/http/middleware/apikey"
	"crmsync/internal/app/server/api/http/middleware/logger"
	oauthAPI "crmsync/internal/app/server/api/http/oauth"
	webhookAPI "crmsync/internal/app/server/api/http/webhook"
	"crmsync/internal/app/server"
	"crmsync/internal/app/server/config"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"
)

type Handlers struct {
	Health     *healthAPI.Handler
	Webhook    *webhookAPI.Handler
	OAuth      *oauthAPI.Handler
	Changes    *changesAPI.Handler
	Mapping    *mappingAPI.Handler
	Connection *connectionAPI.Handler
	DeadLetter *deadletterAPI.Handler
}

// New builds the chi mux with every operation registered through huma.
func New(cfg *config.Config, services *server.Services, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()

	humaConfig := huma.DefaultConfig("CRM Sync API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}

	API := humachi.New(mux, humaConfig)

	h := handlers(cfg, services, log)
	h.Health.SetupRoutes(API)
	h.Webhook.SetupRoutes(API)
	h.OAuth.SetupRoutes(API)
	h.Changes.SetupRoutes(API)
	h.Mapping.SetupRoutes(API)
	h.Connection.SetupRoutes(API)
	h.DeadLetter.SetupRoutes(API)

	return mux
}

func handlers(cfg *config.Config, services *server.Services, log *slog.Logger) *Handlers {
	apikeyMW := apikey.New(cfg.Server.APIKey, log)
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	middlewares.Add(loggerMW.Middleware())
	healthHandler := healthAPI.NewHandler(log, middlewares.GetAllAndClear())

	// Webhook and OAuth callbacks authenticate by routing token / code, not
	// by the internal API key.
	middlewares.Add(loggerMW.Middleware())
	webhookHandler := webhookAPI.NewHandler(services.Webhooks, log, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware())
	oauthHandler := oauthAPI.NewHandler(services.Credentials, services.Connections,
		cfg.Server.UIReturnURL, log, middlewares.GetAllAndClear())

	middlewares.Add(apikeyMW.Middleware())
	middlewares.Add(loggerMW.Middleware())
	changesHandler := changesAPI.NewHandler(services.Detector, log, middlewares.GetAllAndClear())

	middlewares.Add(apikeyMW.Middleware())
	middlewares.Add(loggerMW.Middleware())
	mappingHandler := mappingAPI.NewHandler(services.Mappings, log, middlewares.GetAllAndClear())

	middlewares.Add(apikeyMW.Middleware())
	middlewares.Add(loggerMW.Middleware())
	connectionHandler := connectionAPI.NewHandler(services.Connections, log, middlewares.GetAllAndClear())

	middlewares.Add(apikeyMW.Middleware())
	middlewares.Add(loggerMW.Middleware())
	deadLetterHandler := deadletterAPI.NewHandler(services.Queue, log, middlewares.GetAllAndClear())

	return &Handlers{
		Health:     healthHandler,
		Webhook:    webhookHandler,
		OAuth:      oauthHandler,
		Changes:    changesHandler,
		Mapping:    mappingHandler,
		Connection: connectionHandler,
		DeadLetter: deadLetterHandler,
	}
}

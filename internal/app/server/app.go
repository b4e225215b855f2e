// Package server wires the storage layer into the domain services shared by
// the API binary and the worker binary.
package server

import (
	"fmt"

	"golang.org/x/exp/slog"
	"golang.org/x/oauth2"

	"crmsync/internal/app/server/config"
	"crmsync/internal/app/server/crypto"
	"crmsync/internal/domain/connection"
	"crmsync/internal/domain/credential"
	"crmsync/internal/domain/detector"
	"crmsync/internal/domain/mapping"
	"crmsync/internal/domain/queue"
	"crmsync/internal/domain/webhook"
	"crmsync/internal/infrastructure/storage/postgres"
	"crmsync/internal/local"
	"crmsync/internal/provider"
)

type Services struct {
	Queue       queue.Servicer
	Mappings    mapping.Servicer
	Connections connection.Servicer
	Credentials credential.Servicer
	Webhooks    webhook.Servicer
	Detector    detector.Servicer
	Providers   provider.Registry
	Local       local.Store
}

func NewServices(cfg *config.Config, storage *postgres.Storage, log *slog.Logger) (*Services, error) {
	pool := storage.Pool()

	cipher, err := crypto.NewTokenCipher(cfg.Server.CredentialSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to init token cipher: %w", err)
	}

	queueRepo := postgres.NewQueueRepository(pool, log)
	queueService := queue.NewService(queueRepo, log, &queue.ServiceConfig{
		BackoffBase: cfg.Sync.BackoffBase,
		BackoffCap:  cfg.Sync.BackoffCap,
	})

	mappingRepo := postgres.NewMappingRepository(pool, log)
	mappingService := mapping.NewService(mappingRepo, log)

	connectionRepo := postgres.NewConnectionRepository(pool, log)
	connectionService := connection.NewService(connectionRepo, queueService, log)

	credentialRepo := postgres.NewCredentialRepository(pool, cipher, log)
	exchanger := credential.NewOAuthExchanger(oauthConfigs(cfg))
	credentialService := credential.NewService(credentialRepo, exchanger, connectionService, log)

	webhookRepo := postgres.NewWebhookRepository(pool, log)
	webhookService := webhook.NewService(webhookRepo, connectionService, queueService, cfg.WebhookSecrets(), log)

	detectorService := detector.NewService(connectionService, mappingService, queueService, detector.ServiceConfig{
		EchoWindow: cfg.Sync.EchoWindow,
	}, log)

	services := &Services{
		Queue:       queueService,
		Mappings:    mappingService,
		Connections: connectionService,
		Credentials: credentialService,
		Webhooks:    webhookService,
		Detector:    detectorService,
		Providers:   providerRegistry(cfg),
		Local: local.NewHTTPClient(local.HTTPClientOptions{
			BaseURL: cfg.Local.BaseURL,
			APIKey:  cfg.Local.APIKey,
		}),
	}
	return services, nil
}

func oauthConfigs(cfg *config.Config) map[string]*oauth2.Config {
	configs := make(map[string]*oauth2.Config, len(cfg.Providers))
	for name, p := range cfg.Providers {
		configs[name] = &oauth2.Config{
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			RedirectURL:  p.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  p.AuthURL,
				TokenURL: p.TokenURL,
			},
		}
	}
	return configs
}

func providerRegistry(cfg *config.Config) provider.Registry {
	registry := make(provider.Registry, len(cfg.Providers))
	for name, p := range cfg.Providers {
		registry[name] = provider.NewHTTPClient(provider.HTTPClientOptions{
			BaseURL:   p.APIBaseURL,
			UserAgent: "crmsync",
		})
	}
	return registry
}

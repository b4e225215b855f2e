package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPath  = "../../.env"
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env       string
	DB        db
	Server    server
	Worker    worker
	Sync      sync
	Local     localAPI
	Providers map[string]Provider
}

type db struct {
	DatabaseURI string `env:"DATABASE_URI"`
	Migrations  string `env:"MIGRATIONS_PATH"`
}

type server struct {
	RunAddress string `env:"RUN_ADDRESS"`
	// APIKey guards the internal API the host CRM calls.
	APIKey string `env:"INTERNAL_API_KEY"`
	// UIReturnURL is where the OAuth callback sends the user afterwards.
	UIReturnURL string `env:"UI_RETURN_URL"`
	// CredentialSecret derives the key that seals OAuth tokens at rest.
	CredentialSecret string `env:"CREDENTIAL_SECRET"`
}

type worker struct {
	PollInterval time.Duration `env:"WORKER_POLL_INTERVAL"`
	BatchSize    int           `env:"WORKER_BATCH_SIZE"`
	Parallelism  int           `env:"WORKER_PARALLELISM"`
}

type sync struct {
	EchoWindow  time.Duration `env:"SYNC_ECHO_WINDOW"`
	BackoffBase time.Duration `env:"SYNC_BACKOFF_BASE"`
	BackoffCap  time.Duration `env:"SYNC_BACKOFF_CAP"`
}

type localAPI struct {
	BaseURL string `env:"LOCAL_API_URL"`
	APIKey  string `env:"LOCAL_API_KEY"`
}

// Provider is one external system's OAuth application plus API endpoints.
type Provider struct {
	ClientID      string
	ClientSecret  string
	AuthURL       string
	TokenURL      string
	APIBaseURL    string
	WebhookSecret string
	RedirectURL   string
}

func MustLoad() *Config {
	if err := godotenv.Load(envPath); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	viper.AutomaticEnv()
	viper.SetDefault("app_env", EnvLocal)
	viper.SetDefault("run_address", ":8080")
	viper.SetDefault("migrations_path", "migrations")
	viper.SetDefault("worker_poll_interval", "2s")
	viper.SetDefault("worker_batch_size", 20)
	viper.SetDefault("worker_parallelism", 8)
	viper.SetDefault("sync_echo_window", "10s")
	viper.SetDefault("sync_backoff_base", "30s")
	viper.SetDefault("sync_backoff_cap", "1h")
	// Not secure as a default; set CREDENTIAL_SECRET outside local runs.
	viper.SetDefault("credential_secret", "local-credential-secret")

	config := Config{
		Env: viper.GetString("app_env"),
		DB: db{
			DatabaseURI: viper.GetString("database_uri"),
			Migrations:  viper.GetString("migrations_path"),
		},
		Server: server{
			RunAddress:       viper.GetString("run_address"),
			APIKey:           viper.GetString("internal_api_key"),
			UIReturnURL:      viper.GetString("ui_return_url"),
			CredentialSecret: viper.GetString("credential_secret"),
		},
		Worker: worker{
			PollInterval: viper.GetDuration("worker_poll_interval"),
			BatchSize:    viper.GetInt("worker_batch_size"),
			Parallelism:  viper.GetInt("worker_parallelism"),
		},
		Sync: sync{
			EchoWindow:  viper.GetDuration("sync_echo_window"),
			BackoffBase: viper.GetDuration("sync_backoff_base"),
			BackoffCap:  viper.GetDuration("sync_backoff_cap"),
		},
		Local: localAPI{
			BaseURL: viper.GetString("local_api_url"),
			APIKey:  viper.GetString("local_api_key"),
		},
		Providers: loadProviders(),
	}

	return &config
}

// loadProviders reads the SYNC_PROVIDERS list and one env group per name,
// e.g. HUBSPOT_CLIENT_ID, HUBSPOT_TOKEN_URL, HUBSPOT_WEBHOOK_SECRET.
func loadProviders() map[string]Provider {
	providers := make(map[string]Provider)
	for _, name := range strings.Split(viper.GetString("sync_providers"), ",") {
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "" {
			continue
		}
		providers[name] = Provider{
			ClientID:      viper.GetString(name + "_client_id"),
			ClientSecret:  viper.GetString(name + "_client_secret"),
			AuthURL:       viper.GetString(name + "_auth_url"),
			TokenURL:      viper.GetString(name + "_token_url"),
			APIBaseURL:    viper.GetString(name + "_api_base_url"),
			WebhookSecret: viper.GetString(name + "_webhook_secret"),
			RedirectURL:   viper.GetString(name + "_redirect_url"),
		}
	}
	return providers
}

// WebhookSecrets collects the per-provider HMAC keys for the intake service.
func (c *Config) WebhookSecrets() map[string]string {
	secrets := make(map[string]string, len(c.Providers))
	for name, p := range c.Providers {
		if p.WebhookSecret != "" {
			secrets[name] = p.WebhookSecret
		}
	}
	return secrets
}

package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Credential store backends selectable via CREDENTIAL_STORE.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

type Config struct {
	Env  string
	Port int

	HubSpot         HubSpotConfig
	CredentialStore CredentialStoreConfig
	Database        DatabaseConfig
	Redis           RedisConfig
	CORS            CORSConfig
	Log             LogConfig
	Export          ExportConfig
}

// HubSpotConfig carries the OAuth application settings and upstream base
// URLs. The base URLs are overridable so tests can point the clients at
// local servers.
type HubSpotConfig struct {
	ClientID      string
	ClientSecret  string
	RedirectURI   string
	Scopes        []string
	AuthorizeURL  string
	APIBaseURL    string
	WebhookSecret string
	StateTTL      time.Duration
	HTTPTimeout   time.Duration
}

// CredentialStoreConfig selects the backing store for portal credentials.
type CredentialStoreConfig struct {
	Backend string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ExportConfig toggles tabular exports on the line-item endpoint.
type ExportConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")

	cfg.HubSpot = HubSpotConfig{
		ClientID:      v.GetString("HUBSPOT_CLIENT_ID"),
		ClientSecret:  v.GetString("HUBSPOT_CLIENT_SECRET"),
		RedirectURI:   v.GetString("HUBSPOT_REDIRECT_URI"),
		Scopes:        splitAndTrim(v.GetString("HUBSPOT_SCOPES")),
		AuthorizeURL:  v.GetString("HUBSPOT_AUTHORIZE_URL"),
		APIBaseURL:    v.GetString("HUBSPOT_API_BASE_URL"),
		WebhookSecret: v.GetString("HUBSPOT_WEBHOOK_SECRET"),
		StateTTL:      parseDuration(v.GetString("HUBSPOT_STATE_TTL"), 10*time.Minute),
		HTTPTimeout:   parseDuration(v.GetString("HUBSPOT_HTTP_TIMEOUT"), 10*time.Second),
	}

	cfg.CredentialStore = CredentialStoreConfig{
		Backend: strings.ToLower(v.GetString("CREDENTIAL_STORE")),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Export = ExportConfig{
		Enabled: v.GetBool("ENABLE_EXPORTS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)

	v.SetDefault("HUBSPOT_CLIENT_ID", "")
	v.SetDefault("HUBSPOT_CLIENT_SECRET", "")
	v.SetDefault("HUBSPOT_REDIRECT_URI", "http://localhost:8080/oauth/callback")
	v.SetDefault("HUBSPOT_SCOPES", "crm.objects.companies.read,crm.objects.deals.read,crm.objects.line_items.read")
	v.SetDefault("HUBSPOT_AUTHORIZE_URL", "https://app.hubspot.com/oauth/authorize")
	v.SetDefault("HUBSPOT_API_BASE_URL", "https://api.hubapi.com")
	v.SetDefault("HUBSPOT_WEBHOOK_SECRET", "")
	v.SetDefault("HUBSPOT_STATE_TTL", "10m")
	v.SetDefault("HUBSPOT_HTTP_TIMEOUT", "10s")

	v.SetDefault("CREDENTIAL_STORE", StoreMemory)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "crm_bridge")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_EXPORTS", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

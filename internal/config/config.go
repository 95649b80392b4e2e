// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/supriyameruva/filegate/internal/apperr"
	"github.com/supriyameruva/filegate/internal/validate"
)

// Credential kind labels derived from the configured storage settings.
const (
	CredentialManagedIdentity  = "managed_identity"
	CredentialConnectionString = "connection_string"
	CredentialSAS              = "sas"
	CredentialDelegated        = "delegated"
)

// Config holds all runtime configuration for the service.
type Config struct {
	Port   string
	AppEnv string

	// Session handling
	SessionSecret string
	SessionTTL    time.Duration

	// Upload policy
	MaxUploadBytes    int64
	AllowedExtensions map[string]bool
	OverwriteExisting bool

	// Per-operation backend deadline and request concurrency bound
	BackendTimeout time.Duration
	MaxInFlight    int

	// Object store. Driver selects the implementation; "azure" talks to
	// Azure Blob Storage, "s3" to any S3-compatible endpoint.
	ObjectStoreDriver string
	Container         string

	// Azure settings. ConnectionString, SASToken and the OAuth client are
	// mutually exclusive ways of reaching the account.
	AccountURL       string
	ConnectionString string
	SASToken         string

	// S3-compatible settings (OBJECT_STORE_DRIVER=s3)
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool

	// Network file share, reached through its OS mount point.
	SharePath     string
	ShareBasePath string

	// Delegated (three-legged) authorization. Leaving ClientID empty
	// disables the OAuth flow and enables the placeholder form login.
	OAuthClientID     string
	OAuthClientSecret string
	OAuthTenant       string
	OAuthRedirectURL  string
	OAuthScopes       []string
}

// Load reads configuration from a .env file (if present) and environment
// variables.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, reading from environment")
	}

	return &Config{
		Port:   getEnv("PORT", "8000"),
		AppEnv: getEnv("APP_ENV", "development"),

		SessionSecret: getEnv("SECRET_KEY", "change_me_in_production"),
		SessionTTL:    getDuration("SESSION_TTL", time.Hour),

		MaxUploadBytes:    getInt64("MAX_CONTENT_LENGTH", 16<<20),
		AllowedExtensions: getExtensions("ALLOWED_EXTENSIONS"),
		OverwriteExisting: getEnv("OVERWRITE_EXISTING", "false") == "true",

		BackendTimeout: getDuration("BACKEND_TIMEOUT", 30*time.Second),
		MaxInFlight:    int(getInt64("MAX_IN_FLIGHT", 64)),

		ObjectStoreDriver: getEnv("OBJECT_STORE_DRIVER", "azure"),
		Container:         getEnv("STORAGE_CONTAINER", "uploads"),

		AccountURL:       getEnv("STORAGE_ACCOUNT_URL", ""),
		ConnectionString: getEnv("STORAGE_CONNECTION_STRING", ""),
		SASToken:         getEnv("STORAGE_SAS_TOKEN", ""),

		S3Endpoint:  getEnv("S3_ENDPOINT", "localhost:9000"),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),
		S3UseSSL:    getEnv("S3_USE_SSL", "false") == "true",

		SharePath:     getEnv("SHARE_PATH", "/mnt/myfiles"),
		ShareBasePath: getEnv("SHARE_BASE_PATH", ""),

		OAuthClientID:     getEnv("OAUTH_CLIENT_ID", ""),
		OAuthClientSecret: getEnv("OAUTH_CLIENT_SECRET", ""),
		OAuthTenant:       getEnv("OAUTH_TENANT", "common"),
		OAuthRedirectURL:  getEnv("OAUTH_REDIRECT_URL", ""),
		OAuthScopes:       getList("OAUTH_SCOPES", "openid offline_access https://storage.azure.com/user_impersonation"),
	}
}

// CredentialKind derives the single credential kind the process runs with.
// Exactly one of the storage credential settings may be configured.
func (c *Config) CredentialKind() (string, error) {
	set := 0
	if c.ConnectionString != "" {
		set++
	}
	if c.SASToken != "" {
		set++
	}
	if c.OAuthClientID != "" {
		set++
	}
	if set > 1 {
		return "", apperr.New(apperr.KindInvalidConfig,
			"connection string, SAS token and OAuth client are mutually exclusive")
	}

	switch {
	case c.ConnectionString != "":
		return CredentialConnectionString, nil
	case c.SASToken != "":
		if c.AccountURL == "" {
			return "", apperr.New(apperr.KindInvalidConfig, "STORAGE_ACCOUNT_URL is required with a SAS token")
		}
		return CredentialSAS, nil
	case c.OAuthClientID != "":
		if c.AccountURL == "" {
			return "", apperr.New(apperr.KindInvalidConfig, "STORAGE_ACCOUNT_URL is required with delegated authorization")
		}
		return CredentialDelegated, nil
	default:
		if c.ObjectStoreDriver == "azure" && c.AccountURL == "" {
			return "", apperr.New(apperr.KindInvalidConfig, "STORAGE_ACCOUNT_URL is required for managed identity")
		}
		return CredentialManagedIdentity, nil
	}
}

// OAuthConfigured reports whether the delegated authorization flow is enabled.
func (c *Config) OAuthConfigured() bool {
	return c.OAuthClientID != ""
}

// AuthorizeURL returns the provider's authorization endpoint.
func (c *Config) AuthorizeURL() string {
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/authorize", c.OAuthTenant)
}

// TokenURL returns the provider's token endpoint.
func (c *Config) TokenURL() string {
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", c.OAuthTenant)
}

// IsProduction returns true when the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("ignoring unparseable integer setting")
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("ignoring unparseable duration setting")
		return fallback
	}
	return d
}

func getList(key, fallback string) []string {
	return strings.Fields(getEnv(key, fallback))
}

func getExtensions(key string) map[string]bool {
	v := os.Getenv(key)
	if v == "" {
		return validate.DefaultAllowedExtensions()
	}
	allowed := make(map[string]bool)
	for _, ext := range strings.Split(v, ",") {
		ext = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(ext, ".")))
		if ext != "" {
			allowed[ext] = true
		}
	}
	return allowed
}

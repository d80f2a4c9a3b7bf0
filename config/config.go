package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/cutoutlab/bg-removal-service/pkg/errors"
)

type Environment string

const (
	EnvLocal      Environment = "LOCAL"
	EnvDev        Environment = "DEV"
	EnvProduction Environment = "PROD"
)

// ProviderName identifies which background-removal provider the relay
// forwards uploads to.
type ProviderName string

const (
	ProviderRemoveBG ProviderName = "removebg"
	ProviderPixian   ProviderName = "pixian"
)

// AuthScheme selects how the provider credential is attached to the
// outbound request. Exactly one auth header is ever set.
type AuthScheme string

const (
	AuthApiKeyHeader AuthScheme = "api_key_header"
	AuthBearerToken  AuthScheme = "bearer_token"
	AuthBasicAuth    AuthScheme = "basic_auth"
)

type ServerConfig struct {
	Port           int
	Host           string
	GinMode        string
	AllowedOrigins []string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// ProviderConfig holds everything needed to reach the external
// background-removal service. Credential values are loaded once at startup
// and never mutated afterwards.
type ProviderConfig struct {
	Name       ProviderName
	Endpoint   string // empty means the adapter's default endpoint
	AuthScheme AuthScheme
	Key        string // API key, bearer token, or basic-auth user
	Secret     string // basic-auth password; unused by the other schemes
	Timeout    time.Duration
}

// Configured reports whether a usable credential was supplied.
func (p ProviderConfig) Configured() bool {
	if p.AuthScheme == AuthBasicAuth {
		return p.Key != "" && p.Secret != ""
	}
	return p.Key != ""
}

type UploadConfig struct {
	MaxSizeBytes  int64
	TempDir       string
	SweepInterval time.Duration
	MaxTempAge    time.Duration
}

type Config struct {
	Env      Environment
	Server   ServerConfig
	Logging  LoggingConfig
	Provider ProviderConfig
	Upload   UploadConfig
}

// IsProduction controls whether internal error detail is echoed back to
// clients and whether unknown CORS origins are rejected.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

const (
	DefaultPort         = 3001
	DefaultMaxSizeBytes = 10 << 20 // 10 MiB
	minProviderTimeout  = 30 * time.Second
	maxProviderTimeout  = 60 * time.Second
)

func LoadServerConfig(env Environment) ServerConfig {
	ginMode := "release"
	if env == EnvLocal {
		ginMode = "debug"
	}

	origins := splitAndTrim(os.Getenv("ALLOWED_ORIGINS"))
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	return ServerConfig{
		Port:           int(getEnvAsInt("PORT", DefaultPort)),
		Host:           getEnv("SERVER_HOST", ""),
		GinMode:        getEnv("GIN_MODE", ginMode),
		AllowedOrigins: origins,
	}
}

func LoadLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "json"),
	}
}

func LoadProviderConfig() (ProviderConfig, error) {
	name := ProviderName(strings.ToLower(getEnv("PROVIDER", string(ProviderRemoveBG))))

	cfg := ProviderConfig{
		Name:     name,
		Endpoint: os.Getenv("PROVIDER_ENDPOINT"),
		Timeout:  clampTimeout(getEnvAsInt("PROVIDER_TIMEOUT_SECONDS", 45)),
	}

	switch name {
	case ProviderRemoveBG:
		cfg.AuthScheme = AuthApiKeyHeader
		cfg.Key = os.Getenv("REMOVE_BG_API_KEY")
	case ProviderPixian:
		cfg.AuthScheme = AuthBasicAuth
		cfg.Key = os.Getenv("PIXIAN_API_ID")
		cfg.Secret = os.Getenv("PIXIAN_API_SECRET")
	default:
		return ProviderConfig{}, errors.NewConfigurationError("unknown provider: " + string(name))
	}

	// Explicit override wins over the provider's conventional scheme.
	if scheme := os.Getenv("PROVIDER_AUTH_SCHEME"); scheme != "" {
		switch AuthScheme(scheme) {
		case AuthApiKeyHeader, AuthBearerToken, AuthBasicAuth:
			cfg.AuthScheme = AuthScheme(scheme)
		default:
			return ProviderConfig{}, errors.NewConfigurationError("unknown auth scheme: " + scheme)
		}
		if cfg.AuthScheme == AuthBearerToken {
			cfg.Key = getEnv("PROVIDER_BEARER_TOKEN", cfg.Key)
		}
	}

	return cfg, nil
}

func LoadUploadConfig() UploadConfig {
	tempDir := os.Getenv("UPLOAD_TEMP_DIR")
	if tempDir == "" {
		tempDir = os.TempDir() + string(os.PathSeparator) + "bg-relay"
	}

	return UploadConfig{
		MaxSizeBytes:  getEnvAsInt("UPLOAD_MAX_SIZE_BYTES", DefaultMaxSizeBytes),
		TempDir:       tempDir,
		SweepInterval: time.Duration(getEnvAsInt("TEMP_SWEEP_INTERVAL_MINUTES", 10)) * time.Minute,
		MaxTempAge:    time.Duration(getEnvAsInt("TEMP_MAX_AGE_MINUTES", 30)) * time.Minute,
	}
}

func LoadConfig(logger *slog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env file found, using environment variables")
	}

	env := Environment(getEnv("APP_ENV", string(EnvLocal)))

	providerConfig, err := LoadProviderConfig()
	if err != nil {
		return nil, err
	}

	config := &Config{
		Env:      env,
		Server:   LoadServerConfig(env),
		Logging:  LoadLoggingConfig(),
		Provider: providerConfig,
		Upload:   LoadUploadConfig(),
	}

	if !config.Provider.Configured() {
		logger.Warn("Provider credential not configured, uploads will fail until it is set",
			"provider", config.Provider.Name,
		)
	}

	return config, nil
}

func clampTimeout(seconds int64) time.Duration {
	d := time.Duration(seconds) * time.Second
	if d < minProviderTimeout {
		return minProviderTimeout
	}
	if d > maxProviderTimeout {
		return maxProviderTimeout
	}
	return d
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

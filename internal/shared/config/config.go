package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLServer SQLServerConfig
	Database  DatabaseConfig
	KurrentDB KurrentDBConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Log       LogConfig
	TCM       TCMConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

// SQLServerConfig points at the clinical store that owns the he.* stored procedures.
type SQLServerConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	Encrypt        bool
	CommandTimeout time.Duration
}

// ConnectionString builds a go-mssqldb connection string.
func (c SQLServerConfig) ConnectionString() string {
	connStr := fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s",
		c.Host, c.Port, c.Database, c.User, c.Password)
	if c.Encrypt {
		connStr += ";encrypt=true;TrustServerCertificate=true"
	} else {
		connStr += ";encrypt=disable"
	}
	return connStr
}

// DatabaseConfig is the PostgreSQL directory store (accounts, tenant links, members).
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// KurrentDBConfig holds configuration for KurrentDB (EventStoreDB).
type KurrentDBConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Insecure bool
	Username string
	Password string
}

type AuthConfig struct {
	Enabled   bool
	JWTSecret string
	Issuer    string
	TokenTTL  time.Duration
	// DevTokens exposes POST /api/auth/token for local integration work.
	DevTokens bool
}

type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// ReadmissionMode selects how 30-day readmissions are counted.
type ReadmissionMode string

const (
	// ReadmissionLinked counts discharges followed by a same-patient admission within 30 days.
	ReadmissionLinked ReadmissionMode = "linked"
	// ReadmissionWindow counts READMITTED/R visits admitted in the lookback window.
	ReadmissionWindow ReadmissionMode = "window"
)

type TCMConfig struct {
	ReadmissionMode ReadmissionMode
}

const devJWTSecret = "dev-secret-change-in-prod"

// Load reads configuration from the environment and an optional .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	setDefaults(v)

	// a missing .env is fine
	_ = v.ReadInConfig()

	env := v.GetString("ENV")
	production := env == "production"

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetInt("SERVER_PORT"),
			Env:  env,
		},
		SQLServer: SQLServerConfig{
			Host:           v.GetString("MSSQL_HOST"),
			Port:           v.GetInt("MSSQL_PORT"),
			User:           v.GetString("MSSQL_USER"),
			Password:       v.GetString("MSSQL_PASSWORD"),
			Database:       v.GetString("MSSQL_DATABASE"),
			Encrypt:        v.GetBool("MSSQL_ENCRYPT"),
			CommandTimeout: time.Duration(v.GetInt("MSSQL_COMMAND_TIMEOUT_SECONDS")) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Database: v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
			MaxConns: v.GetInt32("DB_MAX_CONNS"),
			MinConns: v.GetInt32("DB_MIN_CONNS"),
		},
		KurrentDB: KurrentDBConfig{
			Enabled:  v.GetBool("KURRENTDB_ENABLED"),
			Host:     v.GetString("KURRENTDB_HOST"),
			Port:     v.GetInt("KURRENTDB_PORT"),
			Insecure: v.GetBool("KURRENTDB_INSECURE"),
			Username: v.GetString("KURRENTDB_USERNAME"),
			Password: v.GetString("KURRENTDB_PASSWORD"),
		},
		Auth: AuthConfig{
			Enabled:   boolWithFallback(v, "AUTH_ENABLED", production),
			JWTSecret: v.GetString("JWT_SECRET"),
			Issuer:    v.GetString("JWT_ISSUER"),
			TokenTTL:  time.Duration(v.GetInt("JWT_TTL_MINUTES")) * time.Minute,
			DevTokens: boolWithFallback(v, "AUTH_DEV_TOKENS", !production),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: v.GetInt("RATE_LIMIT_RPS"),
			Burst:             v.GetInt("RATE_LIMIT_BURST"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("CORS_ORIGINS")),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Pretty: v.GetBool("LOG_PRETTY"),
		},
		TCM: TCMConfig{
			ReadmissionMode: ReadmissionMode(strings.ToLower(v.GetString("TCM_READMISSION_MODE"))),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("ENV", "development")

	v.SetDefault("MSSQL_HOST", "localhost")
	v.SetDefault("MSSQL_PORT", 1433)
	v.SetDefault("MSSQL_USER", "sa")
	v.SetDefault("MSSQL_PASSWORD", "")
	v.SetDefault("MSSQL_DATABASE", "HealthExtent")
	v.SetDefault("MSSQL_ENCRYPT", false)
	v.SetDefault("MSSQL_COMMAND_TIMEOUT_SECONDS", 60)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "healthextent")
	v.SetDefault("DB_PASSWORD", "healthextent")
	v.SetDefault("DB_NAME", "healthextent")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_CONNS", 4)
	v.SetDefault("DB_MIN_CONNS", 0)

	v.SetDefault("KURRENTDB_ENABLED", true)
	v.SetDefault("KURRENTDB_HOST", "localhost")
	v.SetDefault("KURRENTDB_PORT", 2113)
	v.SetDefault("KURRENTDB_INSECURE", true)
	v.SetDefault("KURRENTDB_USERNAME", "")
	v.SetDefault("KURRENTDB_PASSWORD", "")

	v.SetDefault("JWT_SECRET", devJWTSecret)
	v.SetDefault("JWT_ISSUER", "healthextent")
	v.SetDefault("JWT_TTL_MINUTES", 60)

	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("CORS_ORIGINS", "*")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)

	v.SetDefault("TCM_READMISSION_MODE", string(ReadmissionLinked))
}

// Validate rejects configurations that are unsafe or meaningless to run.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.TCM.ReadmissionMode {
	case ReadmissionLinked, ReadmissionWindow:
	default:
		return fmt.Errorf("TCM_READMISSION_MODE must be %q or %q, got %q",
			ReadmissionLinked, ReadmissionWindow, c.TCM.ReadmissionMode)
	}
	if c.Auth.Enabled && c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("JWT_TTL_MINUTES must be positive")
	}
	if c.IsProduction() {
		if c.Auth.JWTSecret == "" || c.Auth.JWTSecret == devJWTSecret {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if c.Auth.DevTokens {
			return fmt.Errorf("AUTH_DEV_TOKENS must be disabled in production")
		}
	}
	return nil
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func boolWithFallback(v *viper.Viper, key string, fallback bool) bool {
	if v.IsSet(key) {
		return v.GetBool(key)
	}
	return fallback
}

func splitList(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			result = append(result, p)
		}
	}
	return result
}

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// WaitConfig controls the database readiness poller.
// MaxAttempts of 0 waits forever.
type WaitConfig struct {
	Interval     time.Duration
	ProbeTimeout time.Duration
	MaxAttempts  int
}

// SuperuserConfig holds the optional administrative account created on startup.
type SuperuserConfig struct {
	Username string
	Password string
	Email    string
}

// Enabled reports whether enough credentials were supplied to create the account.
func (s SuperuserConfig) Enabled() bool {
	return s.Username != "" && s.Password != ""
}

// ServerConfig holds the admin HTTP server settings.
type ServerConfig struct {
	Bind      string
	Workers   int
	AccessLog string
	ErrorLog  string
}

// PathsConfig describes the container filesystem layout.
type PathsConfig struct {
	AppRoot    string
	MediaRoot  string
	StaticRoot string
}

// LogsDir is where the server log files live.
func (p PathsConfig) LogsDir() string { return filepath.Join(p.AppRoot, "logs") }

// PrizesMediaDir holds uploaded prize images.
func (p PathsConfig) PrizesMediaDir() string { return filepath.Join(p.MediaRoot, "prizes") }

// MigrationsDir is where generated migration files are written and read from.
func (p PathsConfig) MigrationsDir() string {
	return filepath.Join(p.AppRoot, "prizes", "migrations")
}

// ProjectDir holds the admin project manifest.
func (p PathsConfig) ProjectDir() string { return filepath.Join(p.AppRoot, "prizebot_admin") }

// MinIOConfig holds object storage settings for MinIO.
// Media falls back to the local MEDIA_ROOT when Endpoint is empty.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// LogConfig selects level and format of the process log.
type LogConfig struct {
	Level  string
	Format string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	// Host and Port are the externally visible address of the admin service,
	// used to build media URLs for the bot.
	Host      string
	Port      string
	Database  DatabaseConfig
	Wait      WaitConfig
	Superuser SuperuserConfig
	Server    ServerConfig
	Paths     PathsConfig
	MinIO     MinIOConfig
	Log       LogConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	appRoot := getEnv("APP_ROOT", "/app")
	return &AppConfig{
		Host: getEnv("HOST", "localhost"),
		Port: getEnv("PORT", "8000"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", "db"),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", "postgres"),
			Password:           getEnv("DB_PASSWORD", "postgres"),
			Name:               getEnv("DB_NAME", "prizebot_db"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		Wait: WaitConfig{
			Interval:     getEnvDuration("DB_WAIT_INTERVAL", time.Second),
			ProbeTimeout: getEnvDuration("DB_WAIT_PROBE_TIMEOUT", time.Second),
			MaxAttempts:  getEnvInt("DB_WAIT_MAX_ATTEMPTS", 0),
		},
		Superuser: SuperuserConfig{
			Username: getEnv("DJANGO_SUPERUSER_USERNAME", ""),
			Password: getEnv("DJANGO_SUPERUSER_PASSWORD", ""),
			Email:    getEnv("DJANGO_SUPERUSER_EMAIL", ""),
		},
		Server: ServerConfig{
			Bind:      getEnv("SERVER_BIND", "0.0.0.0:8000"),
			Workers:   getEnvInt("SERVER_WORKERS", 3),
			AccessLog: getEnv("ACCESS_LOG", filepath.Join(appRoot, "logs", "access.log")),
			ErrorLog:  getEnv("ERROR_LOG", filepath.Join(appRoot, "logs", "error.log")),
		},
		Paths: PathsConfig{
			AppRoot:    appRoot,
			MediaRoot:  getEnv("MEDIA_ROOT", filepath.Join(appRoot, "media")),
			StaticRoot: getEnv("STATIC_ROOT", filepath.Join(appRoot, "static")),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

var (
	ErrDatabaseIncomplete = errors.New("invalid database config: host, port, user, and name are required")
	ErrInvalidWorkers     = errors.New("invalid server config: workers must be positive")
	ErrInvalidBind        = errors.New("invalid server config: bind address is required")
	ErrInvalidInterval    = errors.New("invalid wait config: interval must be positive")
)

// Validate rejects configurations the entrypoint can not start with.
func (c *AppConfig) Validate() error {
	d := c.Database
	if d.Host == "" || d.Port == "" || d.User == "" || d.Name == "" {
		return ErrDatabaseIncomplete
	}
	if c.Server.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.Server.Bind == "" {
		return ErrInvalidBind
	}
	if c.Wait.Interval <= 0 {
		return ErrInvalidInterval
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

// getEnvDuration accepts Go durations ("500ms") and bare seconds ("2").
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return def
}

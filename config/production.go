// Package config provides configuration management and environment variable handling for the application
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Security   SecurityConfig   `json:"security"`
	JWT        JWTConfig        `json:"jwt"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Cache      CacheConfig      `json:"cache"`
	Storage    StorageConfig    `json:"storage"`
	Sync       SyncConfig       `json:"sync"`
	Stations   StationsConfig   `json:"stations"`
	Admin      AdminConfig      `json:"admin"`
	Deployment DeploymentConfig `json:"deployment"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryLog    bool          `json:"slow_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
}

type ServerConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	ReadTimeout       time.Duration `json:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout"`
	BodyLimit         int           `json:"body_limit"`
	TrustedProxies    []string      `json:"trusted_proxies"`
	ProxyHeader       string        `json:"proxy_header"`
	EnableCompression bool          `json:"enable_compression"`
}

type SecurityConfig struct {
	// CORS
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	CORSMaxAge       int      `json:"cors_max_age"`

	// Rate Limiting
	AuthRateLimit   int           `json:"auth_rate_limit"`   // requests per minute
	GlobalRateLimit int           `json:"global_rate_limit"` // requests per minute
	RateLimitWindow time.Duration `json:"rate_limit_window"`

	// Content Security
	CSPPolicy      string `json:"csp_policy"`
	XFrameOptions  string `json:"x_frame_options"`
	ReferrerPolicy string `json:"referrer_policy"`

	// Password & Auth
	PasswordMinLength int    `json:"password_min_length"`
	BcryptCost        int    `json:"bcrypt_cost"`
	DefaultPassword   string `json:"-"`
}

type JWTConfig struct {
	SecretKey      string        `json:"secret_key"`
	PrivateKey     string        `json:"private_key"`  // RSA private key in PEM format
	PublicKey      string        `json:"public_key"`   // RSA public key in PEM format
	UseRSAKeys     bool          `json:"use_rsa_keys"` // Whether to use RSA keys instead of secret key
	AccessTokenTTL time.Duration `json:"access_token_ttl"`
	Issuer         string        `json:"issuer"`
	Audience       string        `json:"audience"`
}

type LoggingConfig struct {
	Level            string `json:"level"`  // debug, info, warn, error
	Format           string `json:"format"` // json, text
	Output           string `json:"output"` // stdout, file, both
	FilePath         string `json:"file_path"`
	MaxSize          int    `json:"max_size"` // MB
	MaxBackups       int    `json:"max_backups"`
	MaxAge           int    `json:"max_age"` // days
	Compress         bool   `json:"compress"`
	EnableCaller     bool   `json:"enable_caller"`
	EnableStacktrace bool   `json:"enable_stacktrace"`
	EnableAccessLog  bool   `json:"enable_access_log"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type CacheConfig struct {
	Enabled         bool          `json:"enabled"`
	RedisURL        string        `json:"redis_url"`
	RedisPrefix     string        `json:"redis_prefix"`
	DefaultTTL      time.Duration `json:"default_ttl"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
	HealthInterval  time.Duration `json:"health_interval"`
}

// StorageConfig points at the S3-compatible bucket holding price entry images
type StorageConfig struct {
	Endpoint          string        `json:"endpoint"`
	Region            string        `json:"region"`
	AccessKey         string        `json:"access_key"`
	SecretKey         string        `json:"-"`
	Bucket            string        `json:"bucket"`
	KeyPrefix         string        `json:"key_prefix"`
	PresignTTL        time.Duration `json:"presign_ttl"`
	MaxImageBytes     int64         `json:"max_image_bytes"`
	MaxImageDimension int           `json:"max_image_dimension"`
}

// SyncConfig drives partner delivery and the daily retry pass
type SyncConfig struct {
	DeliveryTimeout  time.Duration `json:"delivery_timeout"`
	RetryEnabled     bool          `json:"retry_enabled"`
	RetryHour        int           `json:"retry_hour"`
	RetryMinute      int           `json:"retry_minute"`
	RetryLocation    string        `json:"retry_location"`
	LockTTL          time.Duration `json:"lock_ttl"`
	QueueConcurrency int           `json:"queue_concurrency"`
	QueueSize        int           `json:"queue_size"`
	QueueMaxRetry    int           `json:"queue_max_retry"`
	QueueName        string        `json:"queue_name"`
	CompanyCacheTTL  time.Duration `json:"company_cache_ttl"`
}

// StationsConfig locates the external station list
type StationsConfig struct {
	SyncURL string        `json:"sync_url"`
	APIKey  string        `json:"-"`
	Timeout time.Duration `json:"timeout"`
}

// AdminConfig holds the system administrator credentials
type AdminConfig struct {
	Username string `json:"username"`
	Password string `json:"-"`
}

type DeploymentConfig struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
	BuildTime   string `json:"build_time"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	if err := loadEnvFile(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "omc_bdc"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryLog:    getEnvBool("DB_SLOW_QUERY_LOG", true),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
		},
		Server: ServerConfig{
			Host:              getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:       getEnvDuration("SERVER_READ_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:       getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:   getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:         getEnvInt("SERVER_BODY_LIMIT", 32*1024*1024), // 32MB, multipart image uploads
			TrustedProxies:    getEnvStringSlice("SERVER_TRUSTED_PROXIES", []string{"127.0.0.1"}),
			ProxyHeader:       getEnvString("SERVER_PROXY_HEADER", "X-Real-IP"),
			EnableCompression: getEnvBool("SERVER_ENABLE_COMPRESSION", true),
		},
		Security: SecurityConfig{
			AllowedOrigins:    getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:    getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders:    getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}),
			AllowCredentials:  getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			CORSMaxAge:        getEnvInt("CORS_MAX_AGE", 86400),
			AuthRateLimit:     getEnvInt("AUTH_RATE_LIMIT", 20),
			GlobalRateLimit:   getEnvInt("GLOBAL_RATE_LIMIT", 1000),
			RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
			CSPPolicy:         getEnvString("CSP_POLICY", "default-src 'self'"),
			XFrameOptions:     getEnvString("X_FRAME_OPTIONS", "DENY"),
			ReferrerPolicy:    getEnvString("REFERRER_POLICY", "strict-origin-when-cross-origin"),
			PasswordMinLength: getEnvInt("PASSWORD_MIN_LENGTH", 8),
			BcryptCost:        getEnvInt("BCRYPT_COST", 12),
			DefaultPassword:   getEnvString("DEFAULT_USER_PASSWORD", ""),
		},
		JWT: JWTConfig{
			SecretKey:      getEnvString("JWT_SECRET_KEY", ""),
			PrivateKey:     getEnvString("JWT_PRIVATE_KEY", ""),
			PublicKey:      getEnvString("JWT_PUBLIC_KEY", ""),
			UseRSAKeys:     getEnvBool("JWT_USE_RSA_KEYS", false),
			AccessTokenTTL: getEnvDuration("JWT_ACCESS_TOKEN_TTL", 24*time.Hour),
			Issuer:         getEnvString("JWT_ISSUER", "omc-bdc-price-service"),
			Audience:       getEnvString("JWT_AUDIENCE", "omc-bdc-price-api"),
		},
		Logging: LoggingConfig{
			Level:            getEnvString("LOG_LEVEL", "info"),
			Format:           getEnvString("LOG_FORMAT", "json"),
			Output:           getEnvString("LOG_OUTPUT", "stdout"),
			FilePath:         getEnvString("LOG_FILE_PATH", "logs/app.log"),
			MaxSize:          getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups:       getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:           getEnvInt("LOG_MAX_AGE", 30),
			Compress:         getEnvBool("LOG_COMPRESS", true),
			EnableCaller:     getEnvBool("LOG_ENABLE_CALLER", true),
			EnableStacktrace: getEnvBool("LOG_ENABLE_STACKTRACE", false),
			EnableAccessLog:  getEnvBool("LOG_ENABLE_ACCESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:         getEnvBool("CACHE_ENABLED", false),
			RedisURL:        getEnvString("CACHE_REDIS_URL", "redis://localhost:6379/0"),
			RedisPrefix:     getEnvString("CACHE_REDIS_PREFIX", "omcbdc:"),
			DefaultTTL:      getEnvDuration("CACHE_DEFAULT_TTL", 5*time.Minute),
			CleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", 10*time.Minute),
			HealthInterval:  getEnvDuration("CACHE_HEALTH_INTERVAL", 30*time.Second),
		},
		Storage: StorageConfig{
			Endpoint:          getEnvString("STORAGE_ENDPOINT", ""),
			Region:            getEnvString("STORAGE_REGION", "us-east-1"),
			AccessKey:         getEnvString("STORAGE_ACCESS_KEY", ""),
			SecretKey:         getEnvString("STORAGE_SECRET_KEY", ""),
			Bucket:            getEnvString("STORAGE_BUCKET", "omc-bdc-price"),
			KeyPrefix:         getEnvString("STORAGE_KEY_PREFIX", "omc-bdc/docs"),
			PresignTTL:        getEnvDuration("STORAGE_PRESIGN_TTL", 3600*time.Second),
			MaxImageBytes:     int64(getEnvInt("STORAGE_MAX_IMAGE_BYTES", 10*1024*1024)),
			MaxImageDimension: getEnvInt("STORAGE_MAX_IMAGE_DIMENSION", 2048),
		},
		Sync: SyncConfig{
			DeliveryTimeout:  getEnvDuration("SYNC_DELIVERY_TIMEOUT", 30*time.Second),
			RetryEnabled:     getEnvBool("SYNC_RETRY_ENABLED", true),
			RetryHour:        getEnvInt("SYNC_RETRY_HOUR", 15),
			RetryMinute:      getEnvInt("SYNC_RETRY_MINUTE", 55),
			RetryLocation:    getEnvString("SYNC_RETRY_LOCATION", "UTC"),
			LockTTL:          getEnvDuration("SYNC_LOCK_TTL", 2*time.Minute),
			QueueConcurrency: getEnvInt("SYNC_QUEUE_CONCURRENCY", 4),
			QueueSize:        getEnvInt("SYNC_QUEUE_SIZE", 1024),
			QueueMaxRetry:    getEnvInt("SYNC_QUEUE_MAX_RETRY", 3),
			QueueName:        getEnvString("SYNC_QUEUE_NAME", "price_sync"),
			CompanyCacheTTL:  getEnvDuration("SYNC_COMPANY_CACHE_TTL", 5*time.Minute),
		},
		Stations: StationsConfig{
			SyncURL: getEnvString("STATIONS_SYNC_URL", ""),
			APIKey:  getEnvString("STATIONS_API_KEY", ""),
			Timeout: getEnvDuration("STATIONS_TIMEOUT", 30*time.Second),
		},
		Admin: AdminConfig{
			Username: getEnvString("ADMIN_USERNAME", ""),
			Password: getEnvString("ADMIN_PASSWORD", ""),
		},
		Deployment: DeploymentConfig{
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
			CommitHash:  getEnvString("COMMIT_HASH", "unknown"),
			BuildTime:   getEnvString("BUILD_TIME", "unknown"),
		},
	}

	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile seeds the environment from a .env file; variables already set win
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") and bare seconds ("3600")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		result := lo.FilterMap(strings.Split(value, ","), func(item string, _ int) (string, bool) {
			trimmed := strings.TrimSpace(item)
			return trimmed, trimmed != ""
		})
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Database
	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}
	if cfg.Database.Password == "" {
		errors = append(errors, "DB_PASSWORD is required")
	}

	// JWT
	if cfg.JWT.UseRSAKeys {
		if cfg.JWT.PrivateKey == "" || cfg.JWT.PublicKey == "" {
			errors = append(errors, "JWT_PRIVATE_KEY and JWT_PUBLIC_KEY are required when JWT_USE_RSA_KEYS is set")
		}
	} else if len(cfg.JWT.SecretKey) < 32 {
		errors = append(errors, "JWT_SECRET_KEY must be at least 32 characters long")
	}
	if cfg.JWT.AccessTokenTTL <= 0 {
		errors = append(errors, "JWT_ACCESS_TOKEN_TTL must be positive")
	}
	if cfg.JWT.Issuer == "" {
		errors = append(errors, "JWT_ISSUER is required")
	}

	// Server
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 || cfg.Server.WriteTimeout <= 0 || cfg.Server.IdleTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT, SERVER_WRITE_TIMEOUT and SERVER_IDLE_TIMEOUT must be positive")
	}

	// Security
	if cfg.Security.PasswordMinLength < 6 {
		errors = append(errors, "PASSWORD_MIN_LENGTH must be at least 6")
	}
	if cfg.Security.BcryptCost < 10 || cfg.Security.BcryptCost > 14 {
		errors = append(errors, "BCRYPT_COST must be between 10 and 14")
	}

	// Logging
	validLevels := []string{"debug", "info", "warn", "error"}
	if cfg.Logging.Level != "" && !lo.Contains(validLevels, cfg.Logging.Level) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
	}
	validOutputs := []string{"stdout", "file", "both"}
	if !lo.Contains(validOutputs, cfg.Logging.Output) {
		errors = append(errors, fmt.Sprintf("LOG_OUTPUT must be one of: %v", validOutputs))
	}
	if cfg.Logging.Output != "stdout" && cfg.Logging.FilePath == "" {
		errors = append(errors, "LOG_FILE_PATH is required when logging to a file")
	}

	// Cache
	if cfg.Cache.Enabled && cfg.Cache.RedisURL == "" {
		errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled")
	}

	// Storage
	if cfg.Storage.Bucket == "" {
		errors = append(errors, "STORAGE_BUCKET is required")
	}
	if cfg.Storage.PresignTTL <= 0 {
		errors = append(errors, "STORAGE_PRESIGN_TTL must be positive")
	}
	if cfg.Storage.MaxImageDimension <= 0 {
		errors = append(errors, "STORAGE_MAX_IMAGE_DIMENSION must be positive")
	}

	// Sync
	if cfg.Sync.DeliveryTimeout <= 0 {
		errors = append(errors, "SYNC_DELIVERY_TIMEOUT must be positive")
	}
	if cfg.Sync.RetryHour < 0 || cfg.Sync.RetryHour > 23 {
		errors = append(errors, "SYNC_RETRY_HOUR must be between 0 and 23")
	}
	if cfg.Sync.RetryMinute < 0 || cfg.Sync.RetryMinute > 59 {
		errors = append(errors, "SYNC_RETRY_MINUTE must be between 0 and 59")
	}
	if _, err := time.LoadLocation(cfg.Sync.RetryLocation); err != nil {
		errors = append(errors, fmt.Sprintf("SYNC_RETRY_LOCATION is invalid: %v", err))
	}
	if cfg.Sync.LockTTL <= 0 {
		errors = append(errors, "SYNC_LOCK_TTL must be positive")
	} else if cfg.Sync.LockTTL <= cfg.Sync.DeliveryTimeout {
		errors = append(errors, "SYNC_LOCK_TTL must be greater than SYNC_DELIVERY_TIMEOUT")
	}
	if cfg.Sync.QueueConcurrency <= 0 || cfg.Sync.QueueSize <= 0 {
		errors = append(errors, "SYNC_QUEUE_CONCURRENCY and SYNC_QUEUE_SIZE must be positive")
	}

	// Admin
	if (cfg.Admin.Username == "") != (cfg.Admin.Password == "") {
		errors = append(errors, "ADMIN_USERNAME and ADMIN_PASSWORD must be set together")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

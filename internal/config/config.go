package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath   = "CONFIG_PATH"
	EnvDBConnection = "DB_CONNECTION"
	EnvMongoURI     = "MONGODB_URI"
	EnvJWTSecret    = "JWT_SECRET"
	EnvJWTExpiry    = "JWT_EXPIRY"
	EnvPort         = "PORT"
	EnvGeminiAPIKey = "GEMINI_API_KEY"
	EnvEmailUser    = "EMAIL_USER"
	EnvEmailPass    = "EMAIL_PASS"
	EnvSMTPHost     = "SMTP_HOST"
	EnvSMTPPort     = "SMTP_PORT"
	EnvAWSRegion    = "AWS_REGION"
)

// DefaultDatabaseDSN is used when neither the config file nor the environment names a database.
const DefaultDatabaseDSN = "file:transparency.db"

// DefaultPort is the listen port used when none is configured.
const DefaultPort = 8000

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables, reading a local .env first.
func LoadFromEnv() (AppConfig, error) {
	if errEnv := godotenv.Load(); errEnv != nil && !errors.Is(errEnv, os.ErrNotExist) {
		return AppConfig{}, fmt.Errorf("load .env: %w", errEnv)
	}
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// fileConfig maps the YAML config file.
type fileConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	DatabaseDSN string `yaml:"database-dsn"`
	Database    struct {
		DSN  string `yaml:"dsn"`
		Name string `yaml:"name"`
	} `yaml:"database"`
	JWT           JWTConfig       `yaml:"jwt"`
	Gemini        GeminiConfig    `yaml:"gemini"`
	Mail          MailConfig      `yaml:"mail"`
	RateLimit     RateLimitConfig `yaml:"rate-limit"`
	ReportArchive ArchiveConfig   `yaml:"report-archive"`
	Auth          AuthConfig      `yaml:"auth"`
	Logging       LoggingConfig   `yaml:"logging"`
}

// readFileConfig parses the config file. A missing file yields an empty config.
func readFileConfig(configPath string) (fileConfig, error) {
	var cfg fileConfig
	data, errRead := os.ReadFile(configPath)
	if errRead != nil {
		if errors.Is(errRead, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file: %w", errRead)
	}
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return cfg, fmt.Errorf("parse config file: %w", errUnmarshal)
	}
	return cfg, nil
}

// ServerConfig holds the listen address.
type ServerConfig struct {
	Host string
	Port int
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadServerConfig loads the listen address, honoring PORT.
func LoadServerConfig(configPath string) (ServerConfig, error) {
	cfg, err := readFileConfig(configPath)
	if err != nil {
		return ServerConfig{}, err
	}
	result := ServerConfig{Host: strings.TrimSpace(cfg.Host), Port: cfg.Port}
	if raw := strings.TrimSpace(os.Getenv(EnvPort)); raw != "" {
		port, errParse := strconv.Atoi(raw)
		if errParse != nil {
			return ServerConfig{}, fmt.Errorf("invalid %s: %w", EnvPort, errParse)
		}
		result.Port = port
	}
	if result.Port <= 0 {
		result.Port = DefaultPort
	}
	if result.Port > 65535 {
		return ServerConfig{}, fmt.Errorf("invalid port: %d", result.Port)
	}
	return result, nil
}

// DatabaseConfig holds the database DSN and, for document stores, the database name.
type DatabaseConfig struct {
	DSN  string
	Name string
}

// LoadDatabaseConfig reads the database settings, preferring the environment.
func LoadDatabaseConfig(configPath string) (DatabaseConfig, error) {
	cfg, err := readFileConfig(configPath)
	if err != nil {
		return DatabaseConfig{}, err
	}
	result := DatabaseConfig{Name: strings.TrimSpace(cfg.Database.Name)}
	switch {
	case strings.TrimSpace(os.Getenv(EnvDBConnection)) != "":
		result.DSN = strings.TrimSpace(os.Getenv(EnvDBConnection))
	case strings.TrimSpace(os.Getenv(EnvMongoURI)) != "":
		result.DSN = strings.TrimSpace(os.Getenv(EnvMongoURI))
	case strings.TrimSpace(cfg.DatabaseDSN) != "":
		result.DSN = strings.TrimSpace(cfg.DatabaseDSN)
	case strings.TrimSpace(cfg.Database.DSN) != "":
		result.DSN = strings.TrimSpace(cfg.Database.DSN)
	default:
		result.DSN = DefaultDatabaseDSN
	}
	return result, nil
}

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// defaultJWTExpiry is used when the config omits or invalidates JWT expiry.
const defaultJWTExpiry = time.Hour

// ErrMissingJWTSecret indicates no signing secret was configured.
var ErrMissingJWTSecret = errors.New("missing jwt secret (set `jwt.secret` in config file or JWT_SECRET)")

// LoadJWTConfig loads JWT settings from the YAML config file.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	cfg, err := readFileConfig(configPath)
	if err != nil {
		return JWTConfig{}, err
	}
	result := cfg.JWT

	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			result.Expiry = expiry
		}
	}

	if result.Expiry <= 0 {
		result.Expiry = defaultJWTExpiry
	}
	if strings.TrimSpace(result.Secret) == "" {
		return result, ErrMissingJWTSecret
	}
	return result, nil
}

// GeminiConfig holds the generative AI endpoint settings.
type GeminiConfig struct {
	APIKey   string        `yaml:"api-key"`
	Model    string        `yaml:"model"`
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

const (
	defaultGeminiModel    = "gemini-2.0-flash-exp"
	defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiTimeout  = 20 * time.Second
)

// LoadGeminiConfig loads AI settings. An empty API key disables the upstream call.
func LoadGeminiConfig(configPath string) (GeminiConfig, error) {
	cfg, err := readFileConfig(configPath)
	if err != nil {
		return GeminiConfig{}, err
	}
	result := cfg.Gemini
	if key := strings.TrimSpace(os.Getenv(EnvGeminiAPIKey)); key != "" {
		result.APIKey = key
	}
	result.APIKey = strings.TrimSpace(result.APIKey)
	if strings.TrimSpace(result.Model) == "" {
		result.Model = defaultGeminiModel
	}
	if strings.TrimSpace(result.Endpoint) == "" {
		result.Endpoint = defaultGeminiEndpoint
	}
	if result.Timeout <= 0 {
		result.Timeout = defaultGeminiTimeout
	}
	return result, nil
}

// Mail providers.
const (
	MailProviderSMTP = "smtp"
	MailProviderSES  = "ses"
	MailProviderLog  = "log"
)

// MailConfig holds outbound email settings.
type MailConfig struct {
	Provider string `yaml:"provider"`
	From     string `yaml:"from"`
	SMTP     struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"smtp"`
	SES struct {
		Region string `yaml:"region"`
	} `yaml:"ses"`
}

// LoadMailConfig loads email transport settings. Without credentials the provider falls back to log.
func LoadMailConfig(configPath string) (MailConfig, error) {
	cfg, err := readFileConfig(configPath)
	if err != nil {
		return MailConfig{}, err
	}
	result := cfg.Mail
	if user := strings.TrimSpace(os.Getenv(EnvEmailUser)); user != "" {
		result.SMTP.Username = user
	}
	if pass := os.Getenv(EnvEmailPass); pass != "" {
		result.SMTP.Password = pass
	}
	if host := strings.TrimSpace(os.Getenv(EnvSMTPHost)); host != "" {
		result.SMTP.Host = host
	}
	if raw := strings.TrimSpace(os.Getenv(EnvSMTPPort)); raw != "" {
		if port, errParse := strconv.Atoi(raw); errParse == nil {
			result.SMTP.Port = port
		}
	}
	if region := strings.TrimSpace(os.Getenv(EnvAWSRegion)); region != "" && result.SES.Region == "" {
		result.SES.Region = region
	}

	result.Provider = strings.ToLower(strings.TrimSpace(result.Provider))
	if result.Provider == "" {
		if result.SMTP.Username != "" && result.SMTP.Password != "" {
			result.Provider = MailProviderSMTP
		} else {
			result.Provider = MailProviderLog
		}
	}
	if result.Provider == MailProviderSMTP {
		if result.SMTP.Host == "" {
			result.SMTP.Host = "smtp.gmail.com"
		}
		if result.SMTP.Port <= 0 {
			result.SMTP.Port = 587
		}
	}
	if strings.TrimSpace(result.From) == "" {
		result.From = result.SMTP.Username
	}
	switch result.Provider {
	case MailProviderSMTP, MailProviderSES, MailProviderLog:
	default:
		return result, fmt.Errorf("unsupported mail provider: %s", result.Provider)
	}
	return result, nil
}

// RateLimitConfig holds limiter settings. A zero limit disables limiting.
type RateLimitConfig struct {
	Limit         int           `yaml:"limit"`
	Window        time.Duration `yaml:"window"`
	RedisEnabled  bool          `yaml:"redis-enabled"`
	RedisAddr     string        `yaml:"redis-addr"`
	RedisPassword string        `yaml:"redis-password"`
	RedisDB       int           `yaml:"redis-db"`
	RedisPrefix   string        `yaml:"redis-prefix"`
}

// DefaultRateLimitRedisPrefix is the fallback Redis key prefix.
const DefaultRateLimitRedisPrefix = "transparency:rl"

// LoadRateLimitConfig loads rate limit settings.
func LoadRateLimitConfig(configPath string) (RateLimitConfig, error) {
	cfg, err := readFileConfig(configPath)
	if err != nil {
		return RateLimitConfig{}, err
	}
	result := cfg.RateLimit
	if result.Limit < 0 {
		result.Limit = 0
	}
	if result.Window <= 0 {
		result.Window = time.Minute
	}
	if result.RedisDB < 0 {
		result.RedisDB = 0
	}
	result.RedisAddr = strings.TrimSpace(result.RedisAddr)
	result.RedisPrefix = strings.TrimSpace(result.RedisPrefix)
	if result.RedisPrefix == "" {
		result.RedisPrefix = DefaultRateLimitRedisPrefix
	}
	return result, nil
}

// ArchiveConfig holds S3 report archive settings. An empty bucket disables archiving.
type ArchiveConfig struct {
	Bucket        string        `yaml:"bucket"`
	Region        string        `yaml:"region"`
	Endpoint      string        `yaml:"endpoint"`
	Prefix        string        `yaml:"prefix"`
	AccessKey     string        `yaml:"access-key"`
	SecretKey     string        `yaml:"secret-key"`
	PresignExpiry time.Duration `yaml:"presign-expiry"`
}

// Enabled reports whether an archive bucket is configured.
func (c ArchiveConfig) Enabled() bool {
	return strings.TrimSpace(c.Bucket) != ""
}

// LoadArchiveConfig loads report archive settings.
func LoadArchiveConfig(configPath string) (ArchiveConfig, error) {
	cfg, err := readFileConfig(configPath)
	if err != nil {
		return ArchiveConfig{}, err
	}
	result := cfg.ReportArchive
	result.Bucket = strings.TrimSpace(result.Bucket)
	if result.Region == "" {
		result.Region = strings.TrimSpace(os.Getenv(EnvAWSRegion))
	}
	if result.Prefix == "" {
		result.Prefix = "reports/"
	}
	if result.PresignExpiry <= 0 {
		result.PresignExpiry = 15 * time.Minute
	}
	return result, nil
}

// AuthConfig controls server-side route protection.
type AuthConfig struct {
	ProtectProducts bool `yaml:"protect-products"`
}

// LoadAuthConfig loads route protection settings.
func LoadAuthConfig(configPath string) (AuthConfig, error) {
	cfg, err := readFileConfig(configPath)
	if err != nil {
		return AuthConfig{}, err
	}
	return cfg.Auth, nil
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
	Debug  bool   `yaml:"debug"`
}

// LoadLoggingConfig loads logging settings.
func LoadLoggingConfig(configPath string) (LoggingConfig, error) {
	cfg, err := readFileConfig(configPath)
	if err != nil {
		return LoggingConfig{}, err
	}
	result := cfg.Logging
	if strings.TrimSpace(result.Level) == "" {
		result.Level = "info"
	}
	if strings.TrimSpace(result.Format) == "" {
		result.Format = "text"
	}
	return result, nil
}

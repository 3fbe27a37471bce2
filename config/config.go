package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Драйверы уведомлений об изменениях
const (
	FeedLocal    = "local"
	FeedPostgres = "postgres"
	FeedRedis    = "redis"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	// Основные настройки приложения
	App AppConfigStruct `json:"app"`

	// База данных
	Database DatabaseConfig `json:"database"`

	// Redis
	Redis RedisConfig `json:"redis"`

	// JWT
	JWT JWTConfig `json:"jwt"`

	// CORS
	CORS CORSConfig `json:"cors"`

	// Безопасность
	Security SecurityConfig `json:"security"`

	// Логирование
	Logging LoggingConfig `json:"logging"`

	// Хранилище фотографий
	Storage StorageConfig `json:"storage"`

	// Уведомления об изменениях коллекций
	Sync SyncConfig `json:"sync"`

	// Telegram
	Telegram TelegramConfig `json:"telegram"`

	// Ежедневная сводка
	Digest DigestConfig `json:"digest"`
}

type AppConfigStruct struct {
	Env      string `json:"env"`
	Port     string `json:"port"`
	Host     string `json:"host"`
	BaseURL  string `json:"base_url"`
	Version  string `json:"version"`
	Timezone string `json:"timezone"`
	Debug    bool   `json:"debug"`
}

type DatabaseConfig struct {
	Type            string        `json:"type"`
	Path            string        `json:"path"`
	Host            string        `json:"host"`
	Port            string        `json:"port"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	Name            string        `json:"name"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
}

type RedisConfig struct {
	Enabled  bool          `json:"enabled"`
	Host     string        `json:"host"`
	Port     string        `json:"port"`
	Password string        `json:"password"`
	DB       int           `json:"db"`
	URL      string        `json:"url"`
	Timeout  time.Duration `json:"timeout"`
	MaxConns int           `json:"max_connections"`
}

type JWTConfig struct {
	Secret    string        `json:"secret"`
	ExpiresIn time.Duration `json:"expires_in"`
	Issuer    string        `json:"issuer"`
}

type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

type SecurityConfig struct {
	RateLimitRequests int           `json:"rate_limit_requests"`
	RateLimitWindow   time.Duration `json:"rate_limit_window"`
	MaxUploadSize     int64         `json:"max_upload_size"`
	RequestTimeout    time.Duration `json:"request_timeout"`
}

type LoggingConfig struct {
	// Level уровень журнала SQL: debug, info, warn, error или silent
	Level string `json:"level"`
}

type StorageConfig struct {
	UploadDir string `json:"upload_dir"`
	PublicURL string `json:"public_url"`
}

type SyncConfig struct {
	Feed          string        `json:"feed"`
	NotifyChannel string        `json:"notify_channel"`
	RedisPrefix   string        `json:"redis_prefix"`
	StatsCacheTTL time.Duration `json:"stats_cache_ttl"`
}

type TelegramConfig struct {
	BotToken    string `json:"bot_token"`
	ChatID      int64  `json:"chat_id"`
	APIEndpoint string `json:"api_endpoint"`
}

type DigestConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule"`
}

var GlobalConfig *Config

// LoadConfig загружает конфигурацию из переменных окружения
func LoadConfig() (*Config, error) {
	// Загружаем .env файл если он существует
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️ Файл .env не найден, используются переменные окружения: %v", err)
	}

	config := &Config{
		App: AppConfigStruct{
			Env:      getEnv("APP_ENV", "development"),
			Port:     getEnv("APP_PORT", "8080"),
			Host:     getEnv("APP_HOST", "0.0.0.0"),
			BaseURL:  getEnv("BACKEND_URL", "http://localhost:8080"),
			Version:  getEnv("API_VERSION", "v1"),
			Timezone: getEnv("APP_TIMEZONE", "UTC"),
			Debug:    getEnvBool("DEBUG_MODE", false),
		},
		Database: DatabaseConfig{
			Type:            getEnv("DB_TYPE", "postgres"),
			Path:            getEnv("DB_PATH", "fieldops.db"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "fieldops_db"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 300*time.Second),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			URL:      getEnv("REDIS_URL", ""),
			Timeout:  getEnvDuration("REDIS_TIMEOUT", 5*time.Second),
			MaxConns: getEnvInt("REDIS_MAX_CONNECTIONS", 10),
		},
		JWT: JWTConfig{
			Secret:    getEnv("JWT_SECRET", ""),
			ExpiresIn: getEnvDuration("JWT_EXPIRES_IN", 24*time.Hour),
			Issuer:    getEnv("JWT_ISSUER", "fieldops"),
		},
		CORS: CORSConfig{
			AllowedOrigins:   getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods:   getEnvSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders:   getEnvSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization", "X-Requested-With", "Accept", "Origin"}),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           getEnvInt("CORS_MAX_AGE", 86400),
		},
		Security: SecurityConfig{
			RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 100),
			RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
			MaxUploadSize:     int64(getEnvInt("MAX_UPLOAD_SIZE", 10<<20)),
			RequestTimeout:    getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			UploadDir: getEnv("UPLOAD_DIR", "uploads"),
			PublicURL: getEnv("UPLOAD_PUBLIC_URL", "http://localhost:8080/uploads"),
		},
		Sync: SyncConfig{
			Feed:          getEnv("SYNC_FEED", FeedLocal),
			NotifyChannel: getEnv("SYNC_NOTIFY_CHANNEL", "fieldops_changes"),
			RedisPrefix:   getEnv("SYNC_REDIS_PREFIX", "fieldops:changes:"),
			StatsCacheTTL: getEnvDuration("STATS_CACHE_TTL", 30*time.Second),
		},
		Telegram: TelegramConfig{
			BotToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:      int64(getEnvInt("TELEGRAM_CHAT_ID", 0)),
			APIEndpoint: getEnv("TELEGRAM_API_ENDPOINT", ""),
		},
		Digest: DigestConfig{
			Enabled:  getEnvBool("DIGEST_ENABLED", false),
			Schedule: getEnv("DIGEST_SCHEDULE", "0 8 * * *"),
		},
	}

	// Валидация критически важных настроек
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	GlobalConfig = config
	return config, nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	// Проверяем обязательные поля для продакшена
	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
		}
		if c.Database.Type == "postgres" && c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required in production")
		}
	}

	// Проверяем в любом окружении
	switch c.Database.Type {
	case "postgres":
		if c.Database.Name == "" {
			return fmt.Errorf("DB_NAME cannot be empty")
		}
		if c.Database.User == "" {
			return fmt.Errorf("DB_USER cannot be empty")
		}
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	default:
		return fmt.Errorf("unknown DB_TYPE %q", c.Database.Type)
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error", "silent":
	default:
		return fmt.Errorf("unknown LOG_LEVEL %q", c.Logging.Level)
	}

	switch c.Sync.Feed {
	case FeedLocal:
	case FeedPostgres:
		if c.Database.Type != "postgres" {
			return fmt.Errorf("SYNC_FEED=postgres requires DB_TYPE=postgres")
		}
	case FeedRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("SYNC_FEED=redis requires REDIS_ENABLED=true")
		}
	default:
		return fmt.Errorf("unknown SYNC_FEED %q", c.Sync.Feed)
	}

	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE %q: %w", c.App.Timezone, err)
	}

	return nil
}

// GetConfig возвращает текущую конфигурацию
func GetConfig() *Config {
	if GlobalConfig == nil {
		log.Fatal("Config not loaded. Call LoadConfig() first.")
	}
	return GlobalConfig
}

// Вспомогательные функции для получения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Printf("Warning: Invalid integer value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
		log.Printf("Warning: Invalid boolean value for %s: %s, using default: %t", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Printf("Warning: Invalid duration value for %s: %s, using default: %v", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

// IsDevelopment проверяет, запущено ли приложение в режиме разработки
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction проверяет, запущено ли приложение в продакшене
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// GetDatabaseDSN возвращает строку подключения к БД
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User,
		c.Database.Password, c.Database.Name, c.Database.SSLMode)
}

// GetRedisAddr возвращает адрес Redis
func (c *Config) GetRedisAddr() string {
	if c.Redis.URL != "" {
		return c.Redis.URL
	}
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// Location возвращает часовой пояс, в котором считаются окна дашборда
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LogConfig выводит конфигурацию в лог (без секретных данных)
func (c *Config) LogConfig() {
	log.Printf("=== Application Configuration ===")
	log.Printf("Environment: %s", c.App.Env)
	log.Printf("Port: %s", c.App.Port)
	log.Printf("Timezone: %s", c.App.Timezone)
	if c.Database.Type == "sqlite" {
		log.Printf("Database: sqlite %s", c.Database.Path)
	} else {
		log.Printf("Database Host: %s:%s", c.Database.Host, c.Database.Port)
		log.Printf("Database Name: %s", c.Database.Name)
	}
	log.Printf("Redis: enabled=%t %s", c.Redis.Enabled, c.GetRedisAddr())
	log.Printf("Change Feed: %s", c.Sync.Feed)
	log.Printf("Upload Dir: %s", c.Storage.UploadDir)
	log.Printf("Telegram: configured=%t", c.Telegram.BotToken != "")
	log.Printf("Digest: enabled=%t schedule=%q", c.Digest.Enabled, c.Digest.Schedule)
	log.Printf("JWT Issuer: %s", c.JWT.Issuer)
	log.Printf("Log Level: %s", c.Logging.Level)
	log.Printf("Debug Mode: %t", c.App.Debug)
	log.Printf("================================")
}

// Пакет config — загрузка и валидация конфигурации Board Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bigkaa/goartstore/board-module/internal/domain/pricing"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Board Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (диапазон 8010-8019)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- JWT ---

	// URL JWKS endpoint Identity Provider
	JWTJWKSURL string
	// Ожидаемый issuer (пустая строка — не проверяется)
	JWTIssuer string
	// Допустимое отклонение времени при проверке exp/nbf
	JWTLeeway time.Duration
	// Интервал обновления JWKS-ключей
	JWKSRefreshInterval time.Duration
	// Группы IdP, дающие роль moderator (через запятую)
	ModeratorGroups []string

	// --- Сервис членства ---

	// Базовый URL сервиса членства
	MembershipURL string
	// Таймаут HTTP-запросов к сервису членства
	MembershipTimeout time.Duration
	// Максимальное количество закэшированных ответов
	MembershipCacheSize int
	// Время жизни закэшированного ответа
	MembershipCacheTTL time.Duration

	// --- Kafka (опционально) ---

	// Брокеры Kafka; пустой список — события не публикуются
	KafkaBrokers []string
	// Топик доменных событий
	KafkaTopic string

	// --- Доменные параметры ---

	// Пауза между попытками выпуска идентификатора
	MintRetryDelay time.Duration
	// Минимальный score, при котором статья попадает в публичный список
	ScoreThreshold int
	// Шкала цен, по которой считается итоговая цена (default, suggested)
	PriceSchedule pricing.Schedule

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// BM_PORT — порт HTTP-сервера (по умолчанию 8010)
	cfg.Port, err = getEnvInt("BM_PORT", 8010)
	if err != nil {
		return nil, fmt.Errorf("BM_PORT: %w", err)
	}
	if cfg.Port < 8010 || cfg.Port > 8019 {
		return nil, fmt.Errorf("BM_PORT: значение %d вне допустимого диапазона 8010-8019", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("BM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("BM_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("BM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("BM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	if cfg.HTTPReadTimeout, err = getEnvDuration("BM_HTTP_READ_TIMEOUT", 30*time.Second); err != nil {
		return nil, fmt.Errorf("BM_HTTP_READ_TIMEOUT: %w", err)
	}
	if cfg.HTTPWriteTimeout, err = getEnvDuration("BM_HTTP_WRITE_TIMEOUT", 60*time.Second); err != nil {
		return nil, fmt.Errorf("BM_HTTP_WRITE_TIMEOUT: %w", err)
	}
	if cfg.HTTPIdleTimeout, err = getEnvDuration("BM_HTTP_IDLE_TIMEOUT", 120*time.Second); err != nil {
		return nil, fmt.Errorf("BM_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	if cfg.DBHost, err = getEnvRequired("BM_DB_HOST"); err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("BM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("BM_DB_PORT: %w", err)
	}
	if cfg.DBName, err = getEnvRequired("BM_DB_NAME"); err != nil {
		return nil, err
	}
	if cfg.DBUser, err = getEnvRequired("BM_DB_USER"); err != nil {
		return nil, err
	}
	if cfg.DBPassword, err = getEnvRequired("BM_DB_PASSWORD"); err != nil {
		return nil, err
	}

	cfg.DBSSLMode = getEnvDefault("BM_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("BM_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- JWT ---

	if cfg.JWTJWKSURL, err = getEnvRequired("BM_JWT_JWKS_URL"); err != nil {
		return nil, err
	}
	cfg.JWTIssuer = getEnvDefault("BM_JWT_ISSUER", "")
	if cfg.JWTLeeway, err = getEnvDuration("BM_JWT_LEEWAY", 30*time.Second); err != nil {
		return nil, fmt.Errorf("BM_JWT_LEEWAY: %w", err)
	}
	if cfg.JWKSRefreshInterval, err = getEnvDuration("BM_JWKS_REFRESH_INTERVAL", 15*time.Minute); err != nil {
		return nil, fmt.Errorf("BM_JWKS_REFRESH_INTERVAL: %w", err)
	}
	cfg.ModeratorGroups = parseCSV(getEnvDefault("BM_MODERATOR_GROUPS", "board-moderators"))

	// --- Сервис членства ---

	if cfg.MembershipURL, err = getEnvRequired("BM_MEMBERSHIP_URL"); err != nil {
		return nil, err
	}
	cfg.MembershipURL = strings.TrimRight(cfg.MembershipURL, "/")
	if _, parseErr := url.ParseRequestURI(cfg.MembershipURL); parseErr != nil {
		return nil, fmt.Errorf("BM_MEMBERSHIP_URL: некорректный URL %q", cfg.MembershipURL)
	}
	if cfg.MembershipTimeout, err = getEnvDuration("BM_MEMBERSHIP_TIMEOUT", 5*time.Second); err != nil {
		return nil, fmt.Errorf("BM_MEMBERSHIP_TIMEOUT: %w", err)
	}
	cfg.MembershipCacheSize, err = getEnvInt("BM_MEMBERSHIP_CACHE_SIZE", 10000)
	if err != nil {
		return nil, fmt.Errorf("BM_MEMBERSHIP_CACHE_SIZE: %w", err)
	}
	if cfg.MembershipCacheSize < 1 {
		return nil, fmt.Errorf("BM_MEMBERSHIP_CACHE_SIZE: значение %d должно быть положительным", cfg.MembershipCacheSize)
	}
	if cfg.MembershipCacheTTL, err = getEnvDuration("BM_MEMBERSHIP_CACHE_TTL", time.Minute); err != nil {
		return nil, fmt.Errorf("BM_MEMBERSHIP_CACHE_TTL: %w", err)
	}

	// --- Kafka ---

	cfg.KafkaBrokers = parseCSV(getEnvDefault("BM_KAFKA_BROKERS", ""))
	cfg.KafkaTopic = getEnvDefault("BM_KAFKA_TOPIC", "board.articles")

	// --- Доменные параметры ---

	if cfg.MintRetryDelay, err = getEnvDuration("BM_MINT_RETRY_DELAY", 50*time.Millisecond); err != nil {
		return nil, fmt.Errorf("BM_MINT_RETRY_DELAY: %w", err)
	}
	cfg.ScoreThreshold, err = getEnvInt("BM_SCORE_THRESHOLD", 1)
	if err != nil {
		return nil, fmt.Errorf("BM_SCORE_THRESHOLD: %w", err)
	}
	if cfg.PriceSchedule, err = pricing.ParseSchedule(getEnvDefault("BM_PRICE_SCHEDULE", "default")); err != nil {
		return nil, fmt.Errorf("BM_PRICE_SCHEDULE: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("BM_DEPHEALTH_GROUP", "board")
	if cfg.DephealthCheckInterval, err = getEnvDuration("BM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second); err != nil {
		return nil, fmt.Errorf("BM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	if cfg.ShutdownTimeout, err = getEnvDuration("BM_SHUTDOWN_TIMEOUT", 5*time.Second); err != nil {
		return nil, fmt.Errorf("BM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL для лейблов topologymetrics (без пароля).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s@%s:%d/%s", c.DBUser, c.DBHost, c.DBPort, c.DBName)
}

// MigrateURL возвращает URL для golang-migrate (драйвер pgx5).
func (c *Config) MigrateURL() string {
	return fmt.Sprintf(
		"pgx5://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.DBUser), url.QueryEscape(c.DBPassword), c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config представляет конфигурацию приложения
type Config struct {
	Server    ServerConfig    `json:"server"`
	Store     StoreConfig     `json:"store"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Kafka     KafkaConfig     `json:"kafka"`
	Logger    LoggerConfig    `json:"logger"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Auth      AuthConfig      `json:"auth"`
	Rewards   RewardsConfig   `json:"rewards"`
	Earnings  EarningsConfig  `json:"earnings"`
	Tracking  TrackingConfig  `json:"tracking"`
	Cache     CacheConfig     `json:"cache"`
}

// ServerConfig представляет конфигурацию HTTP сервера
type ServerConfig struct {
	Port         string `json:"port"`
	Host         string `json:"host"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
}

// StoreConfig выбирает хранилище: postgres | memory
type StoreConfig struct {
	Driver       string `json:"driver"`
	AutoMigrate  bool   `json:"auto_migrate"`
	MaxOpenConns int    `json:"max_open_conns"`
}

// DatabaseConfig представляет конфигурацию базы данных
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig представляет конфигурацию Redis
type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// KafkaConfig представляет конфигурацию Kafka
type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	GroupID string   `json:"group_id"`
	Topics  Topics   `json:"topics"`
}

// Topics представляет список топиков Kafka
type Topics struct {
	Redemptions string `json:"redemptions"`
	Clicks      string `json:"clicks"`
	Earnings    string `json:"earnings"`
	Accounts    string `json:"accounts"`
}

// LoggerConfig представляет конфигурацию логгера
type LoggerConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	File   string `json:"file"`
}

// RateLimitConfig описывает настройки rate limiting
type RateLimitConfig struct {
	Enabled        bool   `json:"enabled"`
	Requests       int    `json:"requests"`
	RedeemRequests int    `json:"redeem_requests"`
	WindowSeconds  int    `json:"window_seconds"`
	KeyPrefix      string `json:"key_prefix"`
}

// AuthConfig описывает выпуск JWT
type AuthConfig struct {
	JWTSecret     string `json:"-"`
	Issuer        string `json:"issuer"`
	TokenTTLHours int    `json:"token_ttl_hours"`
}

// RewardsConfig хранит фиксированные бонусы и параметры погашения
type RewardsConfig struct {
	SignupBonus       int64 `json:"signup_bonus"`
	ReferralBonus     int64 `json:"referral_bonus"`
	RedeemMaxAttempts int   `json:"redeem_max_attempts"`
}

// EarningsConfig описывает перевод комиссий из pending в available
type EarningsConfig struct {
	HoldDays       int     `json:"hold_days"`
	BatchSize      int     `json:"batch_size"`
	MaxPerSecond   float64 `json:"max_per_second"` // 0 = без ограничения
	CronSecret     string  `json:"-"`
	LockTTLSeconds int     `json:"lock_ttl_seconds"`
}

// TrackingConfig описывает очередь кликов и cookie атрибуции
type TrackingConfig struct {
	QueueSize        int    `json:"queue_size"`
	Workers          int    `json:"workers"`
	CookieName       string `json:"cookie_name"`
	CookieMaxAgeDays int    `json:"cookie_max_age_days"`
	CookieSecure     bool   `json:"cookie_secure"`
	AppBaseURL       string `json:"app_base_url"`
}

// CacheConfig хранит TTL кеша купонов
type CacheConfig struct {
	CouponTTLSeconds int `json:"coupon_ttl_seconds"`
}

// Load загружает конфигурацию из .env (если есть) и переменных окружения
func Load() *Config {
	loadDotEnv(getEnv("ENV_FILE", ".env"))

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 10),
		},
		Store: StoreConfig{
			Driver:       getEnv("STORE_DRIVER", "postgres"),
			AutoMigrate:  getEnvAsBool("STORE_AUTO_MIGRATE", true),
			MaxOpenConns: getEnvAsInt("STORE_MAX_OPEN_CONNS", 25),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "kobonz_user"),
			Password: getEnv("DB_PASSWORD", "kobonz_pass"),
			DBName:   getEnv("DB_NAME", "kobonz"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvAsList("KAFKA_BROKERS", "localhost:9092"),
			GroupID: getEnv("KAFKA_GROUP_ID", "kobonz"),
			Topics: Topics{
				Redemptions: getEnv("KAFKA_TOPIC_REDEMPTIONS", "coupon-redemptions"),
				Clicks:      getEnv("KAFKA_TOPIC_CLICKS", "coupon-clicks"),
				Earnings:    getEnv("KAFKA_TOPIC_EARNINGS", "affiliate-earnings"),
				Accounts:    getEnv("KAFKA_TOPIC_ACCOUNTS", "accounts"),
			},
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   getEnv("LOG_FILE", ""),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvAsBool("RATE_LIMIT_ENABLED", false),
			Requests:       getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
			RedeemRequests: getEnvAsInt("RATE_LIMIT_REDEEM_REQUESTS", 10),
			WindowSeconds:  getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
			KeyPrefix:      getEnv("RATE_LIMIT_KEY_PREFIX", "ratelimit"),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("JWT_SECRET", ""),
			Issuer:        getEnv("JWT_ISSUER", "kobonz"),
			TokenTTLHours: getEnvAsInt("JWT_TTL_HOURS", 72),
		},
		Rewards: RewardsConfig{
			SignupBonus:       int64(getEnvAsInt("SIGNUP_BONUS_CREDITS", 20)),
			ReferralBonus:     int64(getEnvAsInt("REFERRAL_BONUS_CREDITS", 50)),
			RedeemMaxAttempts: getEnvAsInt("REDEEM_MAX_ATTEMPTS", 3),
		},
		Earnings: EarningsConfig{
			HoldDays:       getEnvAsInt("EARNINGS_HOLD_DAYS", 30),
			BatchSize:      getEnvAsInt("EARNINGS_BATCH_SIZE", 100),
			MaxPerSecond:   getEnvAsFloat("EARNINGS_MAX_PER_SECOND", 0),
			CronSecret:     getEnv("CRON_SECRET", ""),
			LockTTLSeconds: getEnvAsInt("EARNINGS_LOCK_TTL_SECONDS", 300),
		},
		Tracking: TrackingConfig{
			QueueSize:        getEnvAsInt("TRACKING_QUEUE_SIZE", 1024),
			Workers:          getEnvAsInt("TRACKING_WORKERS", 2),
			CookieName:       getEnv("TRACKING_COOKIE_NAME", "kobonz_aff"),
			CookieMaxAgeDays: getEnvAsInt("TRACKING_COOKIE_MAX_AGE_DAYS", 30),
			CookieSecure:     getEnvAsBool("TRACKING_COOKIE_SECURE", true),
			AppBaseURL:       strings.TrimRight(getEnv("APP_BASE_URL", ""), "/"),
		},
		Cache: CacheConfig{
			CouponTTLSeconds: getEnvAsInt("CACHE_COUPON_TTL_SECONDS", 60),
		},
	}
}

// loadDotEnv подгружает переменные из файла, не перетирая уже заданные.
// Отсутствие файла не ошибка.
func loadDotEnv(path string) bool {
	if path == "" {
		return false
	}
	if _, err := os.Stat(path); err != nil {
		return false
	}
	return godotenv.Load(path) == nil
}

// getEnv получает значение переменной окружения с значением по умолчанию
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt получает значение переменной окружения как int с значением по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsFloat получает значение переменной окружения как float64 с значением по умолчанию
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList разбирает список через запятую. Пустая строка даёт пустой список.
func getEnvAsList(key, defaultValue string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, defaultValue), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getEnvAsBool получает значение переменной окружения как bool с значением по умолчанию
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := strings.ToLower(getEnv(key, ""))
	if valueStr == "true" || valueStr == "1" || valueStr == "yes" {
		return true
	}
	if valueStr == "false" || valueStr == "0" || valueStr == "no" {
		return false
	}
	return defaultValue
}

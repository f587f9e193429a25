package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Telegram TelegramConfig
	Payhero  PayheroConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Observ   ObservabilityConfig
	Business BusinessConfig
}

type ServerConfig struct {
	Port       string
	Env        string
	LogLevel   string
	DebugToken string
}

type TelegramConfig struct {
	Token       string
	AdminID     int64
	Polling     bool
	SendTimeout time.Duration
	PollTimeout time.Duration
}

type PayheroConfig struct {
	APIURL      string
	Username    string
	Password    string
	ChannelID   int
	CallbackURL string
	Timeout     time.Duration

	rawChannelID string
}

type DatabaseConfig struct {
	Driver string
	File   string
	URL    string
}

// DSN returns the data source name for the configured driver
func (d DatabaseConfig) DSN() string {
	if d.Driver == "postgres" {
		return d.URL
	}
	return d.File
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis server is configured
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type KafkaConfig struct {
	Brokers       []string
	TopicPayments string
	ConsumerGroup string
}

// Enabled reports whether Kafka brokers are configured
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type ObservabilityConfig struct {
	JaegerEndpoint string
}

type BusinessConfig struct {
	ConversationTTL time.Duration
	CatalogFile     string
}

// Load reads the configuration and validates everything the server needs
func Load() (*Config, error) {
	cfg := Read()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Printf("Config loaded: env=%s, port=%s, db=%s", cfg.Server.Env, cfg.Server.Port, cfg.Database.Driver)
	return cfg, nil
}

// Read loads .env and the environment without validation. Maintenance
// commands use it when they only need the database settings.
func Read() *Config {
	_ = godotenv.Load()

	adminID, _ := strconv.ParseInt(getEnv("ADMIN_TELEGRAM_ID", "0"), 10, 64)
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	sendTimeout, _ := strconv.Atoi(getEnv("TELEGRAM_SEND_TIMEOUT_SECONDS", "15"))
	pollTimeout, _ := strconv.Atoi(getEnv("TELEGRAM_POLL_TIMEOUT_SECONDS", "30"))
	payheroTimeout, _ := strconv.Atoi(getEnv("PAYHERO_TIMEOUT_SECONDS", "30"))
	conversationTTL, _ := strconv.Atoi(getEnv("CONVERSATION_TTL_SECONDS", "900"))

	cfg := &Config{
		Server: ServerConfig{
			Port:       getEnv("PORT", "5000"),
			Env:        getEnv("ENV", "development"),
			LogLevel:   getEnv("LOG_LEVEL", "info"),
			DebugToken: getEnv("DEBUG_TOKEN", "debug-secret-token"),
		},
		Telegram: TelegramConfig{
			Token:       getEnvAny("", "TELEGRAM_TOKEN", "BOT_TOKEN"),
			AdminID:     adminID,
			Polling:     getEnv("RUN_MODE_POLLING", "1") == "1",
			SendTimeout: time.Duration(sendTimeout) * time.Second,
			PollTimeout: time.Duration(pollTimeout) * time.Second,
		},
		Payhero: PayheroConfig{
			APIURL:       getEnv("PAYHERO_API", "https://backend.payhero.co.ke/api/v2/payments"),
			Username:     getEnvAny("", "PAYHERO_USERNAME", "PAYHERO_USER"),
			Password:     getEnvAny("", "PAYHERO_PASSWORD", "PAYHERO_PASS"),
			CallbackURL:  getEnv("YOUR_PUBLIC_CALLBACK_URL", ""),
			Timeout:      time.Duration(payheroTimeout) * time.Second,
			rawChannelID: getEnvAny("", "PAYHERO_CHANNEL_ID", "PAYHERO_CHANNEL"),
		},
		Database: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", "sqlite3"),
			File:   getEnv("DB_FILE", "bot.db"),
			URL:    getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(getEnv("KAFKA_BROKERS", "")),
			TopicPayments: getEnv("PAYMENT_EVENTS_TOPIC", "payment-events"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "movie-shop-events"),
		},
		Observ: ObservabilityConfig{
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", ""),
		},
		Business: BusinessConfig{
			ConversationTTL: time.Duration(conversationTTL) * time.Second,
			CatalogFile:     getEnv("CATALOG_FILE", ""),
		},
	}

	return cfg
}

// Validate reports every missing or malformed required setting
func (c *Config) Validate() error {
	var missing []string
	if c.Telegram.Token == "" {
		missing = append(missing, "TELEGRAM_TOKEN or BOT_TOKEN")
	}
	if c.Payhero.Username == "" {
		missing = append(missing, "PAYHERO_USERNAME or PAYHERO_USER")
	}
	if c.Payhero.Password == "" {
		missing = append(missing, "PAYHERO_PASSWORD or PAYHERO_PASS")
	}
	if c.Payhero.rawChannelID == "" && c.Payhero.ChannelID == 0 {
		missing = append(missing, "PAYHERO_CHANNEL_ID or PAYHERO_CHANNEL")
	}
	if c.Database.Driver == "postgres" && c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing environment variables: %s", strings.Join(missing, ", "))
	}

	if c.Payhero.rawChannelID != "" {
		id, err := strconv.Atoi(c.Payhero.rawChannelID)
		if err != nil {
			return errors.New("PAYHERO_CHANNEL_ID must be an integer")
		}
		c.Payhero.ChannelID = id
	}

	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvAny returns the first non-empty value among keys
func getEnvAny(defaultVal string, keys ...string) string {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

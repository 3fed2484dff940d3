package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App     AppConfig
	Discord DiscordConfig
	Ticket  TicketConfig
	Payment PaymentConfig
	Redis   RedisConfig
	Logger  LoggerConfig
	Auth    AuthConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// DiscordConfig holds the bot credentials and the guild wiring for ticket
// channels.
type DiscordConfig struct {
	Token            string
	GuildID          string
	TicketCategoryID string
	AdminRoleID      string
}

// TicketConfig controls ticket lifecycle behavior.
type TicketConfig struct {
	TTLMinutes    int
	ChannelPrefix string
	DeleteOnClose bool
}

// PaymentConfig maps service types to payment links and guards the unlock
// webhook.
type PaymentConfig struct {
	Links         map[string]string
	WebhookSecret string
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters for the admin API. When only
// the plaintext AdminPassword is supplied, the hash is derived once at
// startup with BcryptCost.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	AdminPasswordHash     string
	AdminPassword         string
	BcryptCost            int
}

var defaultPaymentLinks = map[string]string{
	"embed": "https://rzp.io/l/embed",
	"logo":  "https://rzp.io/l/logo",
	"setup": "https://rzp.io/l/setup",
	"roles": "https://rzp.io/l/roles",
	"bot":   "https://rzp.io/l/botsetup",
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-bot"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "3000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Discord: DiscordConfig{
			Token:            os.Getenv("DISCORD_TOKEN"),
			GuildID:          os.Getenv("DISCORD_GUILD_ID"),
			TicketCategoryID: os.Getenv("DISCORD_TICKET_CATEGORY_ID"),
			AdminRoleID:      os.Getenv("DISCORD_ADMIN_ROLE_ID"),
		},
		Ticket: TicketConfig{
			TTLMinutes:    getEnvAsInt("TICKET_TTL_MINUTES", 720),
			ChannelPrefix: getEnv("TICKET_CHANNEL_PREFIX", "ticket-"),
			DeleteOnClose: getEnvAsBool("TICKET_DELETE_ON_CLOSE", false),
		},
		Payment: PaymentConfig{
			Links:         parsePaymentLinks(os.Getenv("PAYMENT_LINKS")),
			WebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			AdminPasswordHash:     os.Getenv("AUTH_ADMIN_PASSWORD_HASH"),
			AdminPassword:         os.Getenv("AUTH_ADMIN_PASSWORD"),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// TTL returns the auto-close delay for unresolved tickets.
func (t TicketConfig) TTL() time.Duration {
	if t.TTLMinutes <= 0 {
		return 12 * time.Hour
	}
	return time.Duration(t.TTLMinutes) * time.Minute
}

// parsePaymentLinks reads "service=url,service=url" pairs, falling back to
// the built-in catalog when the variable is unset.
func parsePaymentLinks(raw string) map[string]string {
	if strings.TrimSpace(raw) == "" {
		links := make(map[string]string, len(defaultPaymentLinks))
		for k, v := range defaultPaymentLinks {
			links[k] = v
		}
		return links
	}
	links := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		service := strings.TrimSpace(parts[0])
		link := strings.TrimSpace(parts[1])
		if service == "" || link == "" {
			continue
		}
		links[service] = link
	}
	return links
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

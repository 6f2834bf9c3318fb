package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-token-change-me", "secret", "admin", "password",
}

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	RedisURL    string `env:"REDIS_URL,required,notEmpty"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Timezone    string `env:"TIMEZONE" envDefault:"Asia/Karachi"`

	GoogleCredentialsFile string `env:"GOOGLE_CREDENTIALS_FILE"`
	GoogleCalendarID      string `env:"GOOGLE_CALENDAR_ID" envDefault:"primary"`

	TwilioAccountSID  string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken   string `env:"TWILIO_AUTH_TOKEN"`
	TwilioPhoneNumber string `env:"TWILIO_PHONE_NUMBER"`
	MessagingChannel  string `env:"MESSAGING_CHANNEL" envDefault:"whatsapp"`
	MessagingMock     bool   `env:"MESSAGING_MOCK" envDefault:"false"`
	PublicBaseURL     string `env:"PUBLIC_BASE_URL"`

	AdminAPIToken string `env:"ADMIN_API_TOKEN"`

	ConversationTTLMinutes int `env:"CONVERSATION_TTL_MINUTES" envDefault:"30"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"ride-decisions"`

	RunMigrations bool `env:"RUN_MIGRATIONS" envDefault:"false"`

	WebhookRateLimitPerMin int `env:"WEBHOOK_RATE_LIMIT_PER_MIN" envDefault:"30"`
	BookingRateLimitPerMin int `env:"BOOKING_RATE_LIMIT_PER_MIN" envDefault:"60"`
}

func (c *Config) ConversationTTL() time.Duration {
	return time.Duration(c.ConversationTTLMinutes) * time.Minute
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Location resolves Timezone, falling back to UTC when the zone database
// does not know it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Warn().Err(err).Str("timezone", c.Timezone).Msg("unknown timezone, using UTC")
		return time.UTC
	}
	return loc
}

// CalendarEnabled reports whether Google Calendar credentials are configured.
func (c *Config) CalendarEnabled() bool {
	return c.GoogleCredentialsFile != ""
}

// TwilioEnabled reports whether outbound messages go through Twilio.
func (c *Config) TwilioEnabled() bool {
	return !c.MessagingMock && c.TwilioAccountSID != "" && c.TwilioAuthToken != ""
}

func (c *Config) Validate(isProduction bool) error {
	if c.ConversationTTLMinutes <= 0 {
		return fmt.Errorf("CONVERSATION_TTL_MINUTES must be positive")
	}
	switch c.MessagingChannel {
	case "whatsapp", "sms":
	default:
		return fmt.Errorf("MESSAGING_CHANNEL must be whatsapp or sms, got %q", c.MessagingChannel)
	}
	if !c.MessagingMock && (c.TwilioAccountSID != "") != (c.TwilioAuthToken != "") {
		return fmt.Errorf("TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN must be set together")
	}
	if c.TwilioEnabled() && c.TwilioPhoneNumber == "" {
		return fmt.Errorf("TWILIO_PHONE_NUMBER is required when Twilio is enabled")
	}

	if isProduction {
		if c.AdminAPIToken == "" {
			return fmt.Errorf("ADMIN_API_TOKEN is required in production")
		}
		if err := validateSecret("ADMIN_API_TOKEN", c.AdminAPIToken); err != nil {
			return err
		}

		if c.TwilioAuthToken == "" {
			log.Warn().Msg("TWILIO_AUTH_TOKEN is empty in production: webhook signature verification disabled")
		}
		if c.MessagingMock {
			log.Warn().Msg("MESSAGING_MOCK is set in production: outbound messages are only logged")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

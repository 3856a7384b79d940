package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // LEAGUE_TIMEZONE must resolve in images without a zoneinfo database

	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string
	Database    DatabaseConfig
	Shopify     ShopifyConfig
	Slack       SlackConfig
	Mail        MailConfig
	Links       LinksConfig
	Gateway     GatewayConfig
	// FORM_WEBHOOK_KEY_HASH: bcrypt hash of the bearer key the refund form webhook sends
	FormWebhookKeyHash string
	// SHOPIFY_WEBHOOK_SECRET: verify incoming Shopify webhooks (X-Shopify-Hmac-Sha256)
	ShopifyWebhookSecret string
}

type DatabaseConfig struct {
	Enabled  bool // AUDIT_DB_ENABLED: write workflow_events; the workflow never reads them
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type ShopifyConfig struct {
	ShopDomain  string
	AccessToken string
	APIVersion  string
	LocationID  string // SHOPIFY_LOCATION_ID: location restocks are applied to (GID or numeric)
	AdminURL    string // e.g. https://admin.shopify.com/store/bars; used for hyperlinks in Slack
	Timezone    string // LEAGUE_TIMEZONE: zone season and off dates are calendar days in
}

// Location returns the league time zone, UTC when unset or unknown
func (c ShopifyConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type SlackConfig struct {
	BotToken          string
	SigningSecret     string
	RefundsChannelID  string
	WaitlistChannelID string // empty means waitlist notices go to the refunds channel
}

// MailConfig is used to notify requestors when their request is denied
type MailConfig struct {
	Host         string
	Port         int
	Username     string
	Password     string
	From         string
	ContactEmail string // LEAGUE_CONTACT_EMAIL: reply-to shown in denial emails
}

type LinksConfig struct {
	RefundSheetURL  string
	WaitlistFormURL string
}

type GatewayConfig struct {
	MaxAttempts int // GATEWAY_MAX_ATTEMPTS: attempts per Shopify/Slack call for transient failures
}

func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("SMTP_PORT", "587")
	viper.SetDefault("GATEWAY_MAX_ATTEMPTS", "3")

	viper.AutomaticEnv()

	// .env is optional; env vars win
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Port:        getEnvOrViper("PORT", "8080"),
		Environment: getEnvOrViper("ENVIRONMENT", "development"),
		LogLevel:    getEnvOrViper("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			Enabled:  getBool("AUDIT_DB_ENABLED", false),
			Host:     getEnvOrViper("DB_HOST", "localhost"),
			Port:     getEnvOrViper("DB_PORT", "5432"),
			User:     getEnvOrViper("DB_USER", "postgres"),
			Password: getEnvOrViper("DB_PASSWORD", "postgres"),
			DBName:   getEnvOrViper("DB_NAME", "leagueops"),
			SSLMode:  getEnvOrViper("DB_SSLMODE", "disable"),
		},
		Shopify: ShopifyConfig{
			ShopDomain:  strings.TrimSpace(getEnvOrViper("SHOPIFY_SHOP_DOMAIN", "")),
			AccessToken: strings.TrimSpace(getEnvOrViper("SHOPIFY_ACCESS_TOKEN", "")),
			APIVersion:  getEnvOrViper("SHOPIFY_API_VERSION", "2025-01"),
			LocationID:  strings.TrimSpace(getEnvOrViper("SHOPIFY_LOCATION_ID", "")),
			AdminURL:    strings.TrimSuffix(strings.TrimSpace(getEnvOrViper("SHOPIFY_ADMIN_URL", "")), "/"),
			Timezone:    strings.TrimSpace(getEnvOrViper("LEAGUE_TIMEZONE", "America/New_York")),
		},
		Slack: SlackConfig{
			BotToken:          strings.TrimSpace(getEnvOrViper("SLACK_BOT_TOKEN", "")),
			SigningSecret:     strings.TrimSpace(getEnvOrViper("SLACK_SIGNING_SECRET", "")),
			RefundsChannelID:  strings.TrimSpace(getEnvOrViper("SLACK_REFUNDS_CHANNEL_ID", "")),
			WaitlistChannelID: strings.TrimSpace(getEnvOrViper("SLACK_WAITLIST_CHANNEL_ID", "")),
		},
		Mail: MailConfig{
			Host:         strings.TrimSpace(getEnvOrViper("SMTP_HOST", "")),
			Port:         getInt("SMTP_PORT", 587),
			Username:     strings.TrimSpace(getEnvOrViper("SMTP_USERNAME", "")),
			Password:     getEnvOrViper("SMTP_PASSWORD", ""),
			From:         strings.TrimSpace(getEnvOrViper("MAIL_FROM", "")),
			ContactEmail: strings.TrimSpace(getEnvOrViper("LEAGUE_CONTACT_EMAIL", "")),
		},
		Links: LinksConfig{
			RefundSheetURL:  strings.TrimSpace(getEnvOrViper("REFUND_SHEET_URL", "")),
			WaitlistFormURL: strings.TrimSpace(getEnvOrViper("WAITLIST_FORM_URL", "")),
		},
		Gateway: GatewayConfig{
			MaxAttempts: getInt("GATEWAY_MAX_ATTEMPTS", 3),
		},
		FormWebhookKeyHash:   strings.TrimSpace(getEnvOrViper("FORM_WEBHOOK_KEY_HASH", "")),
		ShopifyWebhookSecret: strings.TrimSpace(getEnvOrViper("SHOPIFY_WEBHOOK_SECRET", "")),
	}

	if cfg.Slack.WaitlistChannelID == "" {
		cfg.Slack.WaitlistChannelID = cfg.Slack.RefundsChannelID
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields the server cannot start without.
func (c *Config) Validate() error {
	if c.Shopify.ShopDomain == "" {
		return fmt.Errorf("SHOPIFY_SHOP_DOMAIN is required")
	}
	if c.Shopify.AccessToken == "" {
		return fmt.Errorf("SHOPIFY_ACCESS_TOKEN is required")
	}
	if c.Slack.BotToken == "" {
		return fmt.Errorf("SLACK_BOT_TOKEN is required")
	}
	if c.Slack.SigningSecret == "" {
		return fmt.Errorf("SLACK_SIGNING_SECRET is required")
	}
	if c.Slack.RefundsChannelID == "" {
		return fmt.Errorf("SLACK_REFUNDS_CHANNEL_ID is required")
	}
	if _, err := time.LoadLocation(c.Shopify.Timezone); err != nil {
		return fmt.Errorf("LEAGUE_TIMEZONE %q is not a known time zone: %w", c.Shopify.Timezone, err)
	}
	if c.Gateway.MaxAttempts < 1 {
		return fmt.Errorf("GATEWAY_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(strings.TrimSpace(getEnvOrViper(key, "")))
	if err != nil {
		return defaultValue
	}
	return n
}

func getBool(key string, defaultValue bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(getEnvOrViper(key, "")))
	if err != nil {
		return defaultValue
	}
	return b
}

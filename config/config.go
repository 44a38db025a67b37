package config

import (
	"fmt"
	"os"
)

// Config holds all configuration for the CashBus services.
type Config struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// SendGrid configuration
	SendGridAPIKey    string
	SendGridFromName  string
	SendGridFromEmail string

	// Stripe configuration
	StripeSecretKey     string
	StripeWebhookSecret string

	// RabbitMQ handoff for assembled lawsuit documents
	AMQPURL           string
	LawsuitExchange   string
	LawsuitRoutingKey string

	// Server
	Port      string
	JWTSecret string

	// Escalation deadlines are computed in this timezone; claims are
	// against Israeli operators so day boundaries follow local time.
	Timezone string

	// Plaintiff support contact shown in demand letters
	ReplyToEmail string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{}

	cfg.DBHost = getEnv("DB_HOST", "localhost")
	cfg.DBPort = getEnv("DB_PORT", "3306")
	cfg.DBUser = getEnv("DB_USER", "server")
	cfg.DBPassword = getEnv("DB_PASSWORD", "secret")
	cfg.DBName = getEnv("DB_NAME", "cashbus")

	cfg.SendGridAPIKey = getEnv("SENDGRID_API_KEY", "")
	cfg.SendGridFromName = getEnv("SENDGRID_FROM_NAME", "CashBus")
	cfg.SendGridFromEmail = getEnv("SENDGRID_FROM_EMAIL", "claims@cashbus.co.il")

	cfg.StripeSecretKey = getEnv("STRIPE_SECRET_KEY", "")
	cfg.StripeWebhookSecret = getEnv("STRIPE_WEBHOOK_SECRET", "")

	cfg.AMQPURL = getEnv("AMQP_URL", "")
	cfg.LawsuitExchange = getEnv("LAWSUIT_EXCHANGE", "cashbus")
	cfg.LawsuitRoutingKey = getEnv("LAWSUIT_ROUTING_KEY", "lawsuit.assembled")

	cfg.Port = getEnv("PORT", "8080")
	cfg.JWTSecret = getEnv("JWT_SECRET", "")

	cfg.Timezone = getEnv("CASHBUS_TIMEZONE", "Asia/Jerusalem")
	cfg.ReplyToEmail = getEnv("REPLY_TO_EMAIL", "support@cashbus.co.il")

	return cfg
}

// DSN builds the MySQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

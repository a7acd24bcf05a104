/**
 * @description
 * This file handles configuration management for the reminder service.
 * It uses the 'viper' library to load configuration from environment variables,
 * providing defaults for the renewal policy knobs and the cron schedule so tests
 * and deployments can exercise alternate reminder schedules without recompiling.
 */
package config

import (
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	ServerPort  string `mapstructure:"SERVER_PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	RedisURL    string `mapstructure:"REDIS_URL"`
	RabbitMQURL string `mapstructure:"RABBITMQ_URL"`

	EventExchange      string `mapstructure:"EVENT_EXCHANGE"`
	RenewalJobSchedule string `mapstructure:"RENEWAL_JOB_SCHEDULE"`

	NoticeDays          int    `mapstructure:"NOTICE_DAYS"`
	ReminderOffsets     string `mapstructure:"REMINDER_OFFSETS"`
	FollowUpDefaultDays int    `mapstructure:"FOLLOW_UP_DEFAULT_DAYS"`
	FollowUpMinDays     int    `mapstructure:"FOLLOW_UP_MIN_DAYS"`
	FollowUpMaxDays     int    `mapstructure:"FOLLOW_UP_MAX_DAYS"`

	AIBaseURL        string `mapstructure:"AI_BASE_URL"`
	AIAPIKey         string `mapstructure:"AI_API_KEY"`
	AIModel          string `mapstructure:"AI_MODEL"`
	AITimeoutSeconds int    `mapstructure:"AI_TIMEOUT_SECONDS"`

	WhatsAppAPIURL        string `mapstructure:"WHATSAPP_API_URL"`
	WhatsAppAccessToken   string `mapstructure:"WHATSAPP_ACCESS_TOKEN"`
	WhatsAppPhoneNumberID string `mapstructure:"WHATSAPP_PHONE_NUMBER_ID"`

	AdminJWKSURL string `mapstructure:"ADMIN_JWKS_URL"`

	WebhookRateLimit         int `mapstructure:"WEBHOOK_RATE_LIMIT"`
	WebhookRateWindowSeconds int `mapstructure:"WEBHOOK_RATE_WINDOW_SECONDS"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("EVENT_EXCHANGE", "reminder.events")
	viper.SetDefault("RENEWAL_JOB_SCHEDULE", "0 9 * * *") // daily at 09:00
	viper.SetDefault("NOTICE_DAYS", 5)
	viper.SetDefault("REMINDER_OFFSETS", "5,3,1")
	viper.SetDefault("FOLLOW_UP_DEFAULT_DAYS", 3)
	viper.SetDefault("FOLLOW_UP_MIN_DAYS", 1)
	viper.SetDefault("FOLLOW_UP_MAX_DAYS", 7)
	viper.SetDefault("AI_BASE_URL", "https://api.openai.com/v1")
	viper.SetDefault("AI_MODEL", "gpt-4o-mini")
	viper.SetDefault("AI_TIMEOUT_SECONDS", 10)
	viper.SetDefault("WHATSAPP_API_URL", "https://graph.facebook.com/v19.0")
	viper.SetDefault("WEBHOOK_RATE_LIMIT", 30)
	viper.SetDefault("WEBHOOK_RATE_WINDOW_SECONDS", 60)
	viper.AutomaticEnv()

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENT_EXCHANGE")
	_ = viper.BindEnv("RENEWAL_JOB_SCHEDULE")
	_ = viper.BindEnv("NOTICE_DAYS")
	_ = viper.BindEnv("REMINDER_OFFSETS")
	_ = viper.BindEnv("FOLLOW_UP_DEFAULT_DAYS")
	_ = viper.BindEnv("FOLLOW_UP_MIN_DAYS")
	_ = viper.BindEnv("FOLLOW_UP_MAX_DAYS")
	_ = viper.BindEnv("AI_BASE_URL")
	_ = viper.BindEnv("AI_API_KEY")
	_ = viper.BindEnv("AI_MODEL")
	_ = viper.BindEnv("AI_TIMEOUT_SECONDS")
	_ = viper.BindEnv("WHATSAPP_API_URL")
	_ = viper.BindEnv("WHATSAPP_ACCESS_TOKEN")
	_ = viper.BindEnv("WHATSAPP_PHONE_NUMBER_ID")
	_ = viper.BindEnv("ADMIN_JWKS_URL")
	_ = viper.BindEnv("WEBHOOK_RATE_LIMIT")
	_ = viper.BindEnv("WEBHOOK_RATE_WINDOW_SECONDS")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port                          string  `mapstructure:"PORT"`
	DatabasePath                  string  `mapstructure:"DATABASE_PATH"`
	JWTSecret                     string  `mapstructure:"JWT_SECRET"`
	TokenTTLHours                 int     `mapstructure:"TOKEN_TTL_HOURS"`
	FrontendURL                   string  `mapstructure:"FRONTEND_URL"`
	EnableCORS                    bool    `mapstructure:"ENABLE_CORS"`
	LogLevel                      string  `mapstructure:"LOG_LEVEL"`
	LogFormat                     string  `mapstructure:"LOG_FORMAT"`
	LogOutput                     string  `mapstructure:"LOG_OUTPUT"`
	DiscordBotToken               string  `mapstructure:"DISCORD_BOT_TOKEN"`
	DiscordNotificationsChannelID string  `mapstructure:"DISCORD_NOTIFICATIONS_CHANNEL_ID"`
	CertificateMinAttendance      float64 `mapstructure:"CERTIFICATE_MIN_ATTENDANCE"`
	AdminEmail                    string  `mapstructure:"ADMIN_EMAIL"`
	AdminPassword                 string  `mapstructure:"ADMIN_PASSWORD"`
}

// LoadConfig reads the environment, after loading an optional .env file.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_PATH", "events.db")
	v.SetDefault("TOKEN_TTL_HOURS", 24)
	v.SetDefault("FRONTEND_URL", "http://127.0.0.1:3000")
	v.SetDefault("ENABLE_CORS", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_OUTPUT", "stdout")
	v.SetDefault("CERTIFICATE_MIN_ATTENDANCE", 0.75)

	for _, key := range []string{
		"JWT_SECRET",
		"DISCORD_BOT_TOKEN",
		"DISCORD_NOTIFICATIONS_CHANNEL_ID",
		"ADMIN_EMAIL",
		"ADMIN_PASSWORD",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.TokenTTLHours <= 0 {
		return fmt.Errorf("TOKEN_TTL_HOURS must be positive, got %d", c.TokenTTLHours)
	}
	if c.CertificateMinAttendance < 0 || c.CertificateMinAttendance > 1 {
		return fmt.Errorf("CERTIFICATE_MIN_ATTENDANCE must be within [0, 1], got %v", c.CertificateMinAttendance)
	}
	return nil
}

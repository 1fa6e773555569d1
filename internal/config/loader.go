package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"bookingsync/internal/constants"
)

func Load(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func bindEnvVariables() {
	viper.BindEnv("mailbox.host", "MAILBOX_HOST")
	viper.BindEnv("mailbox.port", "MAILBOX_PORT")
	viper.BindEnv("mailbox.username", "MAILBOX_USERNAME")
	viper.BindEnv("mailbox.password", "MAILBOX_PASSWORD")

	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	viper.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	viper.BindEnv("server.port", "SERVER_PORT")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")

	viper.BindEnv("events.brokers", "EVENTS_BROKERS")
	viper.BindEnv("events.topic", "EVENTS_TOPIC")
}

func applyDefaults(cfg *Config) {
	if cfg.Pipeline.TickInterval <= 0 {
		cfg.Pipeline.TickInterval = constants.DefaultTickInterval
	}
	if cfg.Pipeline.ProcessedTTL <= 0 {
		cfg.Pipeline.ProcessedTTL = constants.DefaultProcessedTTL
	}
	if cfg.Pipeline.OnCacheError == "" {
		cfg.Pipeline.OnCacheError = constants.FallbackAllow
	}
	if cfg.Mailbox.Folder == "" {
		cfg.Mailbox.Folder = "INBOX"
	}
	if cfg.Sink.Table == "" {
		cfg.Sink.Table = constants.DefaultBookingsTable
	}
	if cfg.Events.Topic == "" {
		cfg.Events.Topic = constants.DefaultOutcomeTopic
	}

	// Comma-separated broker list from the environment.
	if len(cfg.Events.Brokers) == 1 && strings.Contains(cfg.Events.Brokers[0], ",") {
		parts := strings.Split(cfg.Events.Brokers[0], ",")
		brokers := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				brokers = append(brokers, trimmed)
			}
		}
		cfg.Events.Brokers = brokers
	}

	for i := range cfg.Sources {
		src := &cfg.Sources[i]
		if src.MaxResults <= 0 {
			src.MaxResults = constants.DefaultMaxResults
		}
		if src.Platform == "" {
			src.Platform = strings.ToUpper(src.Name)
		}
		if src.Session.ReloginInterval <= 0 {
			src.Session.ReloginInterval = constants.DefaultReloginInterval
		}
		if src.Session.CrawlRPS <= 0 {
			src.Session.CrawlRPS = constants.DefaultCrawlRPS
		}
		if src.Session.OTP.Enabled {
			if src.Session.OTP.PollInterval <= 0 {
				src.Session.OTP.PollInterval = constants.DefaultOTPPollInterval
			}
			if src.Session.OTP.MaxWait <= 0 {
				src.Session.OTP.MaxWait = constants.DefaultOTPMaxWait
			}
		}
	}
}

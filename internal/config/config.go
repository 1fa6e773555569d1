package config

import (
	"time"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Mailbox    MailboxConfig    `mapstructure:"mailbox"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Sources    []SourceConfig   `mapstructure:"sources"`
	Sink       SinkConfig       `mapstructure:"sink"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	Events     EventsConfig     `mapstructure:"events"`
	FlightInfo FlightInfoConfig `mapstructure:"flight_info"`
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MongoDB  MongoDBConfig  `mapstructure:"mongodb"`
}

type PostgresConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	DBName        string `mapstructure:"dbname"`
	SSLMode       string `mapstructure:"sslmode"`
	RunMigrations bool   `mapstructure:"run_migrations"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// MailboxConfig is the shared IMAP account all sources poll. The OTP side
// channel reads the same account unless a source overrides the folder.
type MailboxConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Folder   string `mapstructure:"folder"`
	TLS      bool   `mapstructure:"tls"`
}

type PipelineConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	ProcessedTTL time.Duration `mapstructure:"processed_ttl"`
	// OnCacheError: "allow" lets an item through to the label check when the
	// processed cache is unreachable; "deny" fails the poll. Labels stay
	// authoritative either way.
	OnCacheError string `mapstructure:"on_cache_error"`
}

type SourceConfig struct {
	Name           string        `mapstructure:"name"`
	Platform       string        `mapstructure:"platform"`
	Subject        string        `mapstructure:"subject"`
	OrderIDPattern string        `mapstructure:"order_id_pattern"`
	Filter         string        `mapstructure:"filter"`
	MaxResults     int           `mapstructure:"max_results"`
	Horizon        string        `mapstructure:"horizon"` // "2025-12-23": ignore older mail
	Session        SessionConfig `mapstructure:"session"`
}

type SessionConfig struct {
	LoginURL        string        `mapstructure:"login_url"`
	ProbeURL        string        `mapstructure:"probe_url"`
	DetailURL       string        `mapstructure:"detail_url"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	CookiePath      string        `mapstructure:"cookie_path"`
	ReloginInterval time.Duration `mapstructure:"relogin_interval"`
	CrawlRPS        float64       `mapstructure:"crawl_rps"`
	OTP             OTPConfig     `mapstructure:"otp"`
}

type OTPConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Subject      string        `mapstructure:"subject"`
	Pattern      string        `mapstructure:"pattern"`
	SubmitURL    string        `mapstructure:"submit_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxWait      time.Duration `mapstructure:"max_wait"`
}

type SinkConfig struct {
	Table string `mapstructure:"table"`
}

type ArchiveConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type EventsConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type FlightInfoConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/reembolso/pkg/utils"
)

// Queue drivers
const (
	QueueDriverMemory = "memory"
	QueueDriverAMQP   = "amqp"
)

// SMTP TLS policies
const (
	TLSMandatory     = "mandatory"
	TLSOpportunistic = "opportunistic"
	TLSNone          = "none"
)

// EnvFile is read before the environment is bound, when present
const EnvFile = ".env"

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	SMTP       SMTPConfig       `mapstructure:"smtp"`
	Email      EmailConfig      `mapstructure:"email"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Submission SubmissionConfig `mapstructure:"submission"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// StorageConfig holds attachment storage configuration
type StorageConfig struct {
	Dir string `mapstructure:"dir"`
}

// SMTPConfig holds the outgoing mail server settings
type SMTPConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	FromName string        `mapstructure:"from_name"`
	TLS      string        `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// EmailConfig holds delivery policy
type EmailConfig struct {
	DefaultTo   []string      `mapstructure:"default_to"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
}

// QueueConfig selects and configures the dispatch queue
type QueueConfig struct {
	Driver   string `mapstructure:"driver"`
	AMQPURL  string `mapstructure:"amqp_url"`
	Exchange string `mapstructure:"exchange"`
	Queue    string `mapstructure:"queue"`
	Buffer   int    `mapstructure:"buffer"`
	Workers  int    `mapstructure:"workers"`
}

// SubmissionConfig holds limits applied to incoming submissions
type SubmissionConfig struct {
	MaxAttachmentBytes int64 `mapstructure:"max_attachment_bytes"`
	IncludeReceipt     bool  `mapstructure:"include_receipt"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// ToUtils converts to the logger factory configuration
func (l LoggerConfig) ToUtils() utils.LoggerConfig {
	return utils.LoggerConfig{
		Level:      l.Level,
		OutputPath: l.OutputPath,
		Format:     l.Format,
	}
}

// Load loads configuration from an optional YAML file, the .env file and
// environment variables, in increasing order of precedence.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", EnvFile, err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.path", "data/reembolso.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("storage.dir", "data/attachments")

	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.tls", TLSMandatory)
	v.SetDefault("smtp.timeout", 30*time.Second)
	v.SetDefault("smtp.from_name", "Reembolso")

	v.SetDefault("email.max_attempts", 3)
	v.SetDefault("email.retry_delay", 30*time.Second)

	v.SetDefault("queue.driver", QueueDriverMemory)
	v.SetDefault("queue.exchange", "reembolso")
	v.SetDefault("queue.queue", "reembolso.submissions")
	v.SetDefault("queue.buffer", 100)
	v.SetDefault("queue.workers", 2)

	v.SetDefault("submission.max_attachment_bytes", 20<<20)
	v.SetDefault("submission.include_receipt", true)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

func bindEnvVars(v *viper.Viper) {
	// Credentials are never expected in the YAML file
	_ = v.BindEnv("smtp.username", "SMTP_USERNAME")
	_ = v.BindEnv("smtp.password", "SMTP_PASSWORD")
	_ = v.BindEnv("queue.amqp_url", "AMQP_URL")
	_ = v.BindEnv("email.default_to", "REIMBURSEMENT_EMAIL_TO")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Storage.Dir == "" {
		return fmt.Errorf("storage.dir is required")
	}

	if c.SMTP.Host == "" {
		return fmt.Errorf("smtp.host is required")
	}
	if err := utils.ValidateEmail(c.SMTP.From); err != nil {
		return fmt.Errorf("smtp.from: %w", err)
	}
	switch c.SMTP.TLS {
	case TLSMandatory, TLSOpportunistic, TLSNone:
	default:
		return fmt.Errorf("smtp.tls must be one of %s, %s, %s", TLSMandatory, TLSOpportunistic, TLSNone)
	}

	for _, addr := range c.Email.DefaultTo {
		if err := utils.ValidateEmail(addr); err != nil {
			return fmt.Errorf("email.default_to: %w", err)
		}
	}
	if c.Email.MaxAttempts < 1 {
		return fmt.Errorf("email.max_attempts must be at least 1")
	}

	switch c.Queue.Driver {
	case QueueDriverMemory:
	case QueueDriverAMQP:
		if c.Queue.AMQPURL == "" {
			return fmt.Errorf("queue.amqp_url is required for the amqp driver")
		}
	default:
		return fmt.Errorf("unknown queue.driver %q", c.Queue.Driver)
	}
	if c.Queue.Workers < 1 {
		return fmt.Errorf("queue.workers must be at least 1")
	}

	if c.Submission.MaxAttachmentBytes <= 0 {
		return fmt.Errorf("submission.max_attachment_bytes must be positive")
	}

	return nil
}

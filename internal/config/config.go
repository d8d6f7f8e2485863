// Package config provides configuration management using Viper.
// It loads configuration from environment variables, .env files, and config files.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerPort                = 8080
	defaultServerHost                = "0.0.0.0"
	defaultReadTimeout               = 30 * time.Second
	defaultWriteTimeout              = 30 * time.Second
	defaultDatabasePath              = "./data/branchreel.db"
	defaultDatabaseConnectionTimeout = 5 * time.Second
	defaultMigrationsPath            = "file://./migrations"
	defaultLogLevel                  = "info"
	defaultLogPretty                 = false

	defaultTickInterval        = 100 * time.Millisecond
	defaultTriggerWindow       = 0.5
	defaultQuestionResumeGrace = 300 * time.Millisecond
	defaultBranchResumeGrace   = 300 * time.Millisecond
	defaultSwitchGrace         = 100 * time.Millisecond
	defaultReturnGrace         = 100 * time.Millisecond

	defaultServicesProvider       = ProviderHTTP
	defaultServicesRequestTimeout = 10 * time.Second
	defaultServicesMaxOptions     = 3
	defaultBreakerThreshold       = 3
	defaultBreakerResetTimeout    = 30 * time.Second
	defaultLLMModel               = "llama3.2"
	defaultOllamaHost             = "http://localhost:11434"

	defaultSessionGracePeriod     = 10 * time.Minute
	defaultSessionCleanupInterval = time.Minute

	defaultSchedulePollInterval = 2 * time.Second

	envPrefix = "BRANCHREEL"
)

// Collaborator providers
const (
	ProviderHTTP      = "http"
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Playback PlaybackConfig
	Services ServicesConfig
	Sessions SessionsConfig
	Schedule ScheduleConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds catalog database configuration
type DatabaseConfig struct {
	Path              string
	ConnectionTimeout time.Duration
	MigrationsPath    string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// PlaybackConfig holds clock cadence, trigger tolerance and UI grace delays
type PlaybackConfig struct {
	TickInterval time.Duration
	// TriggerWindow is the tolerance in seconds after a trigger time during
	// which the trigger is still considered due.
	TriggerWindow       float64
	QuestionResumeGrace time.Duration
	BranchResumeGrace   time.Duration
	SwitchGrace         time.Duration
	ReturnGrace         time.Duration
}

// ServicesConfig holds the filtering and summary collaborator settings
type ServicesConfig struct {
	Provider            string
	FilterURL           string
	SummaryURL          string
	RequestTimeout      time.Duration
	MaxOptions          int
	BreakerThreshold    int
	BreakerResetTimeout time.Duration
	LLMModel            string
	OllamaHost          string
	OpenAIAPIKey        string
	AnthropicAPIKey     string
}

// SessionsConfig holds idle session cleanup settings
type SessionsConfig struct {
	GracePeriod     time.Duration
	CleanupInterval time.Duration
}

// ScheduleConfig points at YAML definitions imported at startup. Files in
// WatchDir are also re-imported whenever they change.
type ScheduleConfig struct {
	SeedFile     string
	WatchDir     string
	PollInterval time.Duration
}

// Load reads configuration from .env file, config files, environment variables, and defaults
func Load() (*Config, error) {
	// .env files are optional in production and CI where env vars are set directly
	_ = godotenv.Load() // nolint:errcheck // .env file is optional

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/branchreel")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.readtimeout", defaultReadTimeout)
	v.SetDefault("server.writetimeout", defaultWriteTimeout)

	// Database defaults
	v.SetDefault("database.path", defaultDatabasePath)
	v.SetDefault("database.connectiontimeout", defaultDatabaseConnectionTimeout)
	v.SetDefault("database.migrationspath", defaultMigrationsPath)

	// Logging defaults
	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.pretty", defaultLogPretty)

	// Playback defaults
	v.SetDefault("playback.tickinterval", defaultTickInterval)
	v.SetDefault("playback.triggerwindow", defaultTriggerWindow)
	v.SetDefault("playback.questionresumegrace", defaultQuestionResumeGrace)
	v.SetDefault("playback.branchresumegrace", defaultBranchResumeGrace)
	v.SetDefault("playback.switchgrace", defaultSwitchGrace)
	v.SetDefault("playback.returngrace", defaultReturnGrace)

	// Collaborator defaults
	v.SetDefault("services.provider", defaultServicesProvider)
	v.SetDefault("services.filterurl", "")
	v.SetDefault("services.summaryurl", "")
	v.SetDefault("services.requesttimeout", defaultServicesRequestTimeout)
	v.SetDefault("services.maxoptions", defaultServicesMaxOptions)
	v.SetDefault("services.breakerthreshold", defaultBreakerThreshold)
	v.SetDefault("services.breakerresettimeout", defaultBreakerResetTimeout)
	v.SetDefault("services.llmmodel", defaultLLMModel)
	v.SetDefault("services.ollamahost", defaultOllamaHost)
	v.SetDefault("services.openaiapikey", "")
	v.SetDefault("services.anthropicapikey", "")

	// Session defaults
	v.SetDefault("sessions.graceperiod", defaultSessionGracePeriod)
	v.SetDefault("sessions.cleanupinterval", defaultSessionCleanupInterval)

	// Schedule defaults
	v.SetDefault("schedule.seedfile", "")
	v.SetDefault("schedule.watchdir", "")
	v.SetDefault("schedule.pollinterval", defaultSchedulePollInterval)
}

// Validate checks that configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("invalid read timeout: %v (must be > 0)", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("invalid write timeout: %v (must be > 0)", c.Server.WriteTimeout)
	}
	if c.Database.ConnectionTimeout <= 0 {
		return fmt.Errorf("invalid database connection timeout: %v (must be > 0)", c.Database.ConnectionTimeout)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Logging.Level, strings.Join(validLevels, ", "))
	}

	if err := c.Playback.validate(); err != nil {
		return err
	}
	if err := c.Services.validate(); err != nil {
		return err
	}

	if c.Sessions.GracePeriod <= 0 {
		return fmt.Errorf("invalid session grace period: %v (must be > 0)", c.Sessions.GracePeriod)
	}
	if c.Sessions.CleanupInterval <= 0 {
		return fmt.Errorf("invalid session cleanup interval: %v (must be > 0)", c.Sessions.CleanupInterval)
	}
	if c.Schedule.WatchDir != "" && c.Schedule.PollInterval <= 0 {
		return fmt.Errorf("invalid schedule poll interval: %v (must be > 0)", c.Schedule.PollInterval)
	}

	return nil
}

func (p *PlaybackConfig) validate() error {
	if p.TickInterval <= 0 || p.TickInterval > time.Second {
		return fmt.Errorf("invalid tick interval: %v (must be in (0, 1s])", p.TickInterval)
	}
	// The window must cover at least one tick or triggers can be skipped entirely.
	if p.TriggerWindow < p.TickInterval.Seconds() {
		return fmt.Errorf("invalid trigger window: %v (must be >= tick interval %v)", p.TriggerWindow, p.TickInterval)
	}
	for name, d := range map[string]time.Duration{
		"question resume grace": p.QuestionResumeGrace,
		"branch resume grace":   p.BranchResumeGrace,
		"switch grace":          p.SwitchGrace,
		"return grace":          p.ReturnGrace,
	} {
		if d < 0 {
			return fmt.Errorf("invalid %s: %v (must be >= 0)", name, d)
		}
	}
	return nil
}

func (s *ServicesConfig) validate() error {
	validProviders := []string{ProviderHTTP, ProviderOllama, ProviderOpenAI, ProviderAnthropic}
	if !slices.Contains(validProviders, s.Provider) {
		return fmt.Errorf("invalid services provider: %s (must be one of: %s)", s.Provider, strings.Join(validProviders, ", "))
	}
	if s.RequestTimeout <= 0 {
		return fmt.Errorf("invalid services request timeout: %v (must be > 0)", s.RequestTimeout)
	}
	if s.MaxOptions < 1 {
		return fmt.Errorf("invalid max options: %d (must be >= 1)", s.MaxOptions)
	}
	if s.BreakerThreshold < 1 {
		return fmt.Errorf("invalid breaker threshold: %d (must be >= 1)", s.BreakerThreshold)
	}
	if s.BreakerResetTimeout <= 0 {
		return fmt.Errorf("invalid breaker reset timeout: %v (must be > 0)", s.BreakerResetTimeout)
	}
	return nil
}

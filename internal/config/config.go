package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	App        App        `mapstructure:"app"`
	Logging    Logging    `mapstructure:"logging"`
	Source     Source     `mapstructure:"source"`
	AI         AI         `mapstructure:"ai"`
	Generation Generation `mapstructure:"generation"`
	Email      Email      `mapstructure:"email"`
	Scripture  Scripture  `mapstructure:"scripture"`
	Schedule   Schedule   `mapstructure:"schedule"`
	Server     Server     `mapstructure:"server"`
}

// App holds general application settings
type App struct {
	Debug      bool   `mapstructure:"debug"`
	Timezone   string `mapstructure:"timezone"`
	ConfigFile string `mapstructure:"-"`
}

// Logging holds logging configuration
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Source describes the readings page.
type Source struct {
	URL       string        `mapstructure:"url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// AI holds provider selection and credentials
type AI struct {
	Provider string `mapstructure:"provider"`
	Gemini   Gemini `mapstructure:"gemini"`
	OpenAI   OpenAI `mapstructure:"openai"`
}

// Gemini holds Gemini-specific configuration
type Gemini struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// OpenAI holds OpenAI-specific configuration
type OpenAI struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// Generation tunes the reflection retry loop.
type Generation struct {
	InitialBudget  int           `mapstructure:"initial_budget"`
	MaxRetries     int           `mapstructure:"max_retries"`
	BudgetGrowth   float64       `mapstructure:"budget_growth"`
	MaxBudget      int           `mapstructure:"max_budget"`
	ShrinkChars    int           `mapstructure:"shrink_chars"`
	Temperature    float64       `mapstructure:"temperature"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	TemplatePath   string        `mapstructure:"template_path"`
	DateLayout     string        `mapstructure:"date_layout"`
}

// Email holds delivery configuration
type Email struct {
	Provider string        `mapstructure:"provider"`
	From     string        `mapstructure:"from"`
	FromName string        `mapstructure:"from_name"`
	To       []string      `mapstructure:"to"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout"`
	SMTP     SMTPConfig    `mapstructure:"smtp"`
	SendGrid SendGrid      `mapstructure:"sendgrid"`
}

// SMTPConfig holds SMTP configuration
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
}

// SendGrid holds SendGrid API configuration
type SendGrid struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// Scripture configures the optional Vietnamese verse database.
type Scripture struct {
	DatabasePath string `mapstructure:"database_path"`
}

// Schedule configures the in-process daily trigger.
type Schedule struct {
	Cron     string `mapstructure:"cron"`
	Timezone string `mapstructure:"timezone"`
}

// Server holds HTTP server configuration
type Server struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	APIKey       string        `mapstructure:"api_key"` // Required by POST /run
}

// Load loads the configuration from .env, an optional YAML file and the environment.
func Load(configFile string) (*Config, error) {
	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
		}
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		v.SetConfigName(".gospeldiary")
		v.SetConfigType("yaml")
	}

	setDefaults(v)
	bindEnvironmentVariables(v)

	v.SetEnvPrefix("GOSPELDIARY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.App.ConfigFile = v.ConfigFileUsed()

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.debug", false)
	v.SetDefault("app.timezone", "Asia/Ho_Chi_Minh")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("source.url", "https://bible.usccb.org/bible/readings/{date}.cfm")
	v.SetDefault("source.timeout", "30s")
	v.SetDefault("source.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	v.SetDefault("ai.openai.model", "gpt-4o-mini")

	v.SetDefault("generation.initial_budget", 2048)
	v.SetDefault("generation.max_retries", 2)
	v.SetDefault("generation.budget_growth", 2.0)
	v.SetDefault("generation.max_budget", 16384)
	v.SetDefault("generation.shrink_chars", 2500)
	v.SetDefault("generation.temperature", 0.7)
	v.SetDefault("generation.attempt_timeout", "60s")
	v.SetDefault("generation.template_path", "")
	v.SetDefault("generation.date_layout", "Monday, January 2, 2006")

	v.SetDefault("email.provider", "smtp")
	v.SetDefault("email.from_name", "Daily Bible Diary")
	v.SetDefault("email.timeout", "30s")
	v.SetDefault("email.smtp.host", "smtp.gmail.com")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.sendgrid.base_url", "https://api.sendgrid.com")

	v.SetDefault("scripture.database_path", "")

	v.SetDefault("schedule.cron", "0 6 * * *")
	v.SetDefault("schedule.timezone", "")

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "180s")
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables(v *viper.Viper) {
	bindEnvKeys(v, "ai.provider", []string{"AI_PROVIDER"})

	bindEnvKeys(v, "ai.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_API_KEY",
	})
	bindEnvKeys(v, "ai.gemini.model", []string{"GEMINI_MODEL"})

	bindEnvKeys(v, "ai.openai.api_key", []string{"OPENAI_API_KEY"})
	bindEnvKeys(v, "ai.openai.model", []string{"OPENAI_MODEL"})

	bindEnvKeys(v, "generation.initial_budget", []string{"MAX_OUTPUT_TOKENS", "GEMINI_MAX_TOKENS"})
	bindEnvKeys(v, "generation.max_retries", []string{"MAX_RETRIES"})
	bindEnvKeys(v, "generation.template_path", []string{"PROMPT_TEMPLATE", "TEMPLATE_PROMPT_PATH"})

	bindEnvKeys(v, "email.provider", []string{"EMAIL_PROVIDER"})
	bindEnvKeys(v, "email.from", []string{"EMAIL_FROM"})
	bindEnvKeys(v, "email.to", []string{"EMAIL_TO"})
	bindEnvKeys(v, "email.password", []string{"EMAIL_PASSWORD", "SMTP_PASSWORD"})
	bindEnvKeys(v, "email.smtp.host", []string{"SMTP_HOST", "EMAIL_SMTP_HOST"})
	bindEnvKeys(v, "email.smtp.username", []string{"SMTP_USERNAME", "EMAIL_USERNAME"})
	bindEnvKeys(v, "email.sendgrid.api_key", []string{"SENDGRID_API_KEY"})

	bindEnvKeys(v, "scripture.database_path", []string{"BIBLE_DATABASE_PATH"})

	bindEnvKeys(v, "server.api_key", []string{"ADMIN_API_KEY"})

	bindEnvKeys(v, "app.debug", []string{"DEBUG"})
	bindEnvKeys(v, "app.timezone", []string{"TZ_NAME", "APP_TIMEZONE"})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(v *viper.Viper, key string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			v.Set(key, value)
			return
		}
	}
}

// postProcessConfig applies post-processing to configuration values
func postProcessConfig(config *Config) error {
	config.Generation.TemplatePath = expandPath(config.Generation.TemplatePath)
	config.Scripture.DatabasePath = expandPath(config.Scripture.DatabasePath)

	if config.App.Debug {
		config.Logging.Level = "debug"
	}
	if config.Schedule.Timezone == "" {
		config.Schedule.Timezone = config.App.Timezone
	}
	if config.Email.SMTP.Username == "" {
		config.Email.SMTP.Username = config.Email.From
	}
	if len(config.Email.To) == 0 && config.Email.From != "" {
		config.Email.To = []string{config.Email.From}
	}

	var to []string
	for _, addr := range config.Email.To {
		for _, part := range strings.Split(addr, ",") {
			if part = strings.TrimSpace(part); part != "" {
				to = append(to, part)
			}
		}
	}
	config.Email.To = to

	if _, err := time.LoadLocation(config.App.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", config.App.Timezone, err)
	}

	return nil
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// Location returns the timezone used to decide what "today" is.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ModelName returns the model configured for the selected provider.
func (a AI) ModelName() string {
	if strings.EqualFold(a.Provider, "openai") {
		return a.OpenAI.Model
	}
	return a.Gemini.Model
}

// ValidateAI ensures the selected provider can be constructed.
func (c *Config) ValidateAI() error {
	var errors []string

	switch strings.ToLower(c.AI.Provider) {
	case "gemini", "":
		if c.AI.Gemini.APIKey == "" {
			errors = append(errors, "Gemini API key is required. Set GEMINI_API_KEY environment variable or ai.gemini.api_key in config file.")
		}
		if c.AI.Gemini.Model == "" {
			errors = append(errors, "ai.gemini.model must not be empty")
		}
	case "openai":
		if c.AI.OpenAI.APIKey == "" {
			errors = append(errors, "OpenAI API key is required. Set OPENAI_API_KEY environment variable")
		}
		if c.AI.OpenAI.Model == "" {
			errors = append(errors, "ai.openai.model must not be empty")
		}
	default:
		errors = append(errors, fmt.Sprintf("Unknown AI provider: %s. Supported: gemini, openai", c.AI.Provider))
	}

	g := c.Generation
	if g.InitialBudget <= 0 {
		errors = append(errors, "generation.initial_budget must be positive")
	}
	if g.MaxRetries < 0 {
		errors = append(errors, "generation.max_retries must not be negative")
	}
	if g.BudgetGrowth < 1 {
		errors = append(errors, "generation.budget_growth must be at least 1")
	}
	if g.MaxBudget > 0 && g.MaxBudget < g.InitialBudget {
		errors = append(errors, "generation.max_budget must not be below generation.initial_budget")
	}

	return joinErrors(errors)
}

// ValidateEmail ensures the delivery side is configured.
func (c *Config) ValidateEmail() error {
	var errors []string

	if c.Email.From == "" {
		errors = append(errors, "Sender address is required. Set EMAIL_FROM")
	}
	if len(c.Email.To) == 0 {
		errors = append(errors, "At least one recipient is required. Set EMAIL_TO")
	}

	switch strings.ToLower(c.Email.Provider) {
	case "smtp", "gmail":
		if c.Email.SMTP.Host == "" {
			errors = append(errors, "SMTP host is required when email is configured")
		}
		if c.Email.Password == "" {
			errors = append(errors, "SMTP password is required. Set EMAIL_PASSWORD")
		}
	case "sendgrid":
		if c.Email.SendGrid.APIKey == "" && c.Email.Password == "" {
			errors = append(errors, "SendGrid requires an API key. Set SENDGRID_API_KEY")
		}
	default:
		errors = append(errors, fmt.Sprintf("Unsupported email provider: %s. Supported: smtp, gmail, sendgrid", c.Email.Provider))
	}

	return joinErrors(errors)
}

func joinErrors(errors []string) error {
	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

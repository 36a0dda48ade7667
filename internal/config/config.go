package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/freewebtopdf/uerename/internal/naming"
)

// Config holds all configuration for the rename engine and its adapters
type Config struct {
	Server struct {
		Port         int           `env:"PORT" envDefault:"8080" validate:"min=1,max=65535"`
		ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
		BodyLimit    int           `env:"BODY_LIMIT" envDefault:"1048576" validate:"min=1"` // 1MB
	}

	Cache struct {
		MaxSize int           `env:"CACHE_MAX_SIZE" envDefault:"256" validate:"min=1"`
		TTL     time.Duration `env:"CACHE_TTL" envDefault:"30s"`
	}

	Backup struct {
		Dir           string `env:"BACKUP_DIR"`
		Retain        bool   `env:"BACKUP_RETAIN" envDefault:"false"`
		DirectoryMode string `env:"BACKUP_DIRECTORY_MODE" envDefault:"copy" validate:"oneof=copy rename"`
	}

	History struct {
		Backend string `env:"HISTORY_BACKEND" envDefault:"file" validate:"oneof=memory file sqlite"`
		Path    string `env:"HISTORY_PATH"`
	}

	Naming struct {
		RulesFile            string `env:"NAMING_RULES_FILE"`
		RenameModules        bool   `env:"RENAME_MODULES" envDefault:"true"`
		RenameRoot           bool   `env:"RENAME_ROOT" envDefault:"true"`
		MaxProjectNameLength int    `env:"MAX_PROJECT_NAME_LENGTH" envDefault:"20" validate:"min=1,max=255"`
		MaxIdentifierLength  int    `env:"MAX_IDENTIFIER_LENGTH" envDefault:"30" validate:"min=1,max=255"`
	}

	RateLimit struct {
		RPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"10" validate:"gt=0"`
		Burst int     `env:"RATE_LIMIT_BURST" envDefault:"20" validate:"min=1"`
	}

	Security struct {
		CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," validate:"cors_origins"`
	}

	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
		Format string `env:"LOG_FORMAT" envDefault:"text" validate:"oneof=json text"`
	}
}

// Load loads configuration from environment variables and .env files
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	cfg.applyDefaults()

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills in paths that depend on the host
func (cfg *Config) applyDefaults() {
	if cfg.Backup.Dir == "" {
		cfg.Backup.Dir = filepath.Join(os.TempDir(), "uerename", "backups")
	}
	if cfg.History.Path == "" && cfg.History.Backend != "memory" {
		base, err := os.UserConfigDir()
		if err != nil {
			base = os.TempDir()
		}
		file := "history.yaml"
		if cfg.History.Backend == "sqlite" {
			file = "history.db"
		}
		cfg.History.Path = filepath.Join(base, "uerename", file)
	}
}

// Validate validates the configuration using struct tags
func Validate(cfg *Config) error {
	validator := validator.New()

	if err := validator.RegisterValidation("cors_origins", validateCORSOrigins); err != nil {
		return fmt.Errorf("failed to register cors_origins validation: %w", err)
	}

	if err := validator.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCORSOrigins validates CORS origins format
func validateCORSOrigins(fl validator.FieldLevel) bool {
	origins := fl.Field().Interface().([]string)
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return false
		}
	}
	return true
}

// validateCustomRules performs additional validation beyond struct tags
func validateCustomRules(cfg *Config) error {
	if cfg.Backup.Dir == "" {
		return fmt.Errorf("backup directory cannot be empty")
	}
	if cfg.History.Backend != "memory" && cfg.History.Path == "" {
		return fmt.Errorf("history path cannot be empty for the %s backend", cfg.History.Backend)
	}

	if cfg.Server.ReadTimeout < time.Millisecond {
		return fmt.Errorf("read timeout must be at least 1ms")
	}
	if cfg.Server.WriteTimeout < time.Millisecond {
		return fmt.Errorf("write timeout must be at least 1ms")
	}
	if cfg.Cache.TTL < 0 {
		return fmt.Errorf("cache TTL cannot be negative")
	}

	return nil
}

// NamingRules returns the default naming rules merged with NAMING_RULES_FILE, if set
func (cfg *Config) NamingRules() (naming.Rules, error) {
	if cfg.Naming.RulesFile == "" {
		return naming.DefaultRules(), nil
	}
	return naming.LoadRules(cfg.Naming.RulesFile)
}

// EnsureDirectories creates the backup and history directories
func (cfg *Config) EnsureDirectories() error {
	dirs := []string{cfg.Backup.Dir}
	if cfg.History.Path != "" {
		dirs = append(dirs, filepath.Dir(cfg.History.Path))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("cannot create directory %s: %w", dir, err)
		}
	}
	return nil
}

// formatValidationError formats validation errors into readable messages
func formatValidationError(err error) error {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		var messages []string
		for _, e := range validationErrors {
			switch e.Tag() {
			case "required":
				messages = append(messages, fmt.Sprintf("%s is required", e.Field()))
			case "min":
				messages = append(messages, fmt.Sprintf("%s must be at least %s", e.Field(), e.Param()))
			case "max":
				messages = append(messages, fmt.Sprintf("%s must be at most %s", e.Field(), e.Param()))
			case "gt":
				messages = append(messages, fmt.Sprintf("%s must be greater than %s", e.Field(), e.Param()))
			case "oneof":
				messages = append(messages, fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param()))
			case "cors_origins":
				messages = append(messages, fmt.Sprintf("%s contains invalid origin format", e.Field()))
			default:
				messages = append(messages, fmt.Sprintf("%s failed validation: %s", e.Field(), e.Tag()))
			}
		}
		return fmt.Errorf("validation errors: %s", strings.Join(messages, "; "))
	}
	return err
}

package config

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 1048576, cfg.Server.BodyLimit)

	assert.Equal(t, 256, cfg.Cache.MaxSize)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)

	assert.Equal(t, filepath.Join(os.TempDir(), "uerename", "backups"), cfg.Backup.Dir)
	assert.False(t, cfg.Backup.Retain)
	assert.Equal(t, "copy", cfg.Backup.DirectoryMode)

	assert.Equal(t, "file", cfg.History.Backend)
	assert.Equal(t, "history.yaml", filepath.Base(cfg.History.Path))

	assert.Empty(t, cfg.Naming.RulesFile)
	assert.True(t, cfg.Naming.RenameModules)
	assert.True(t, cfg.Naming.RenameRoot)
	assert.Equal(t, 20, cfg.Naming.MaxProjectNameLength)
	assert.Equal(t, 30, cfg.Naming.MaxIdentifierLength)

	assert.Equal(t, 10.0, cfg.RateLimit.RPS)
	assert.Equal(t, 20, cfg.RateLimit.Burst)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	dir := t.TempDir()
	os.Setenv("PORT", "9090")
	os.Setenv("READ_TIMEOUT", "5s")
	os.Setenv("CACHE_MAX_SIZE", "16")
	os.Setenv("CACHE_TTL", "0s")
	os.Setenv("BACKUP_DIR", filepath.Join(dir, "backups"))
	os.Setenv("BACKUP_RETAIN", "true")
	os.Setenv("BACKUP_DIRECTORY_MODE", "rename")
	os.Setenv("HISTORY_BACKEND", "sqlite")
	os.Setenv("RENAME_MODULES", "false")
	os.Setenv("RENAME_ROOT", "false")
	os.Setenv("MAX_PROJECT_NAME_LENGTH", "12")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 16, cfg.Cache.MaxSize)
	assert.Equal(t, time.Duration(0), cfg.Cache.TTL)
	assert.Equal(t, filepath.Join(dir, "backups"), cfg.Backup.Dir)
	assert.True(t, cfg.Backup.Retain)
	assert.Equal(t, "rename", cfg.Backup.DirectoryMode)
	assert.Equal(t, "sqlite", cfg.History.Backend)
	assert.Equal(t, "history.db", filepath.Base(cfg.History.Path))
	assert.False(t, cfg.Naming.RenameModules)
	assert.False(t, cfg.Naming.RenameRoot)
	assert.Equal(t, 12, cfg.Naming.MaxProjectNameLength)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_MemoryHistoryHasNoPath(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	os.Setenv("HISTORY_BACKEND", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.History.Path)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		contains string
	}{
		{"bad directory mode", "BACKUP_DIRECTORY_MODE", "hardlink", "DirectoryMode must be one of: copy rename"},
		{"bad history backend", "HISTORY_BACKEND", "postgres", "Backend must be one of: memory file sqlite"},
		{"zero cache", "CACHE_MAX_SIZE", "0", "MaxSize must be at least 1"},
		{"zero rps", "RATE_LIMIT_RPS", "0", "RPS must be greater than 0"},
		{"bad duration", "READ_TIMEOUT", "soon", "failed to parse environment variables"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars()
			defer clearEnvVars()

			os.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := createValidConfig(t.TempDir())
	cfg.Server.Port = 0

	err := Validate(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Port must be at least 1")
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := createValidConfig(t.TempDir())
	cfg.Logging.Level = "invalid"

	err := Validate(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Level must be one of: debug info warn error")
}

func TestValidate_InvalidCORSOrigins(t *testing.T) {
	cfg := createValidConfig(t.TempDir())
	cfg.Security.CORSOrigins = []string{"invalid-origin"}

	err := Validate(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "CORSOrigins contains invalid origin format")
}

func TestValidate_ValidCORSOrigins(t *testing.T) {
	cfg := createValidConfig(t.TempDir())
	cfg.Security.CORSOrigins = []string{"*", "https://example.com", "http://localhost:3000"}

	assert.NoError(t, Validate(cfg))
}

func TestValidate_PortRange(t *testing.T) {
	for _, port := range []int{-1, 0, 65536} {
		t.Run("invalid "+strconv.Itoa(port), func(t *testing.T) {
			cfg := createValidConfig(t.TempDir())
			cfg.Server.Port = port
			assert.Error(t, Validate(cfg))
		})
	}
	for _, port := range []int{1, 80, 8080, 65535} {
		t.Run("valid "+strconv.Itoa(port), func(t *testing.T) {
			cfg := createValidConfig(t.TempDir())
			cfg.Server.Port = port
			assert.NoError(t, Validate(cfg))
		})
	}
}

func TestValidate_CustomRules(t *testing.T) {
	t.Run("empty backup dir", func(t *testing.T) {
		cfg := createValidConfig(t.TempDir())
		cfg.Backup.Dir = ""
		err := Validate(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "backup directory")
	})

	t.Run("file history without path", func(t *testing.T) {
		cfg := createValidConfig(t.TempDir())
		cfg.History.Path = ""
		err := Validate(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "history path")
	})

	t.Run("zero timeout", func(t *testing.T) {
		cfg := createValidConfig(t.TempDir())
		cfg.Server.WriteTimeout = 0
		err := Validate(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "write timeout")
	})

	t.Run("negative ttl", func(t *testing.T) {
		cfg := createValidConfig(t.TempDir())
		cfg.Cache.TTL = -time.Second
		err := Validate(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cache TTL")
	})
}

func TestLoad_CORSOriginsParsing(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected []string
	}{
		{"single wildcard", "*", []string{"*"}},
		{"multiple origins", "https://a.com,https://b.com", []string{"https://a.com", "https://b.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars()
			defer clearEnvVars()

			os.Setenv("CORS_ORIGINS", tt.envValue)

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cfg.Security.CORSOrigins)
		})
	}
}

func TestNamingRules(t *testing.T) {
	cfg := createValidConfig(t.TempDir())

	rules, err := cfg.NamingRules()
	require.NoError(t, err)
	assert.Equal(t, []string{"{name}Target"}, rules.TargetTokens)

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target_tokens:\n  - \"{name}GameTarget\"\n"), 0644))
	cfg.Naming.RulesFile = path

	rules, err = cfg.NamingRules()
	require.NoError(t, err)
	assert.Equal(t, []string{"{name}GameTarget"}, rules.TargetTokens)
	assert.NotEmpty(t, rules.ConfigKeys)

	cfg.Naming.RulesFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = cfg.NamingRules()
	assert.Error(t, err)
}

func TestEnsureDirectories(t *testing.T) {
	tempDir := t.TempDir()
	cfg := createValidConfig(tempDir)

	require.NoError(t, cfg.EnsureDirectories())

	for _, dir := range []string{cfg.Backup.Dir, filepath.Dir(cfg.History.Path)} {
		_, err := os.Stat(dir)
		assert.NoError(t, err, "directory should exist: %s", dir)
	}
}

func clearEnvVars() {
	envVars := []string{
		"PORT", "READ_TIMEOUT", "WRITE_TIMEOUT", "BODY_LIMIT",
		"CACHE_MAX_SIZE", "CACHE_TTL",
		"BACKUP_DIR", "BACKUP_RETAIN", "BACKUP_DIRECTORY_MODE",
		"HISTORY_BACKEND", "HISTORY_PATH",
		"NAMING_RULES_FILE", "RENAME_MODULES", "RENAME_ROOT",
		"MAX_PROJECT_NAME_LENGTH", "MAX_IDENTIFIER_LENGTH",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
		"CORS_ORIGINS",
		"LOG_LEVEL", "LOG_FORMAT",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}

func createValidConfig(tempDir string) *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Server.BodyLimit = 1048576
	cfg.Server.ReadTimeout = time.Second
	cfg.Server.WriteTimeout = time.Second
	cfg.Cache.MaxSize = 256
	cfg.Cache.TTL = time.Minute
	cfg.Backup.Dir = filepath.Join(tempDir, "backups")
	cfg.Backup.DirectoryMode = "copy"
	cfg.History.Backend = "file"
	cfg.History.Path = filepath.Join(tempDir, "state", "history.yaml")
	cfg.Naming.RenameModules = true
	cfg.Naming.RenameRoot = true
	cfg.Naming.MaxProjectNameLength = 20
	cfg.Naming.MaxIdentifierLength = 30
	cfg.RateLimit.RPS = 10
	cfg.RateLimit.Burst = 20
	cfg.Security.CORSOrigins = []string{"*"}
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	return cfg
}

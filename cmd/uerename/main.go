package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/freewebtopdf/uerename/internal/config"
)

// @title uerename API
// @version 1.0
// @description Transactional renames of Unreal-style game projects: detect, plan, apply with rollback, and history

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @BasePath /
// @schemes http https

// @tag.name Rename
// @tag.description Project detection, planning and transactional renames

// @tag.name System
// @tag.description System health and metrics operations

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339

	switch cfg.Logging.Level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if cfg.Logging.Format == "text" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func logStartupConfig(cfg *config.Config) {
	log.Debug().
		Int("server_port", cfg.Server.Port).
		Int("cache_max_size", cfg.Cache.MaxSize).
		Dur("cache_ttl", cfg.Cache.TTL).
		Str("backup_dir", cfg.Backup.Dir).
		Bool("backup_retain", cfg.Backup.Retain).
		Str("backup_directory_mode", cfg.Backup.DirectoryMode).
		Str("history_backend", cfg.History.Backend).
		Str("history_path", cfg.History.Path).
		Str("naming_rules_file", cfg.Naming.RulesFile).
		Bool("rename_modules", cfg.Naming.RenameModules).
		Bool("rename_root", cfg.Naming.RenameRoot).
		Str("logging_level", cfg.Logging.Level).
		Str("logging_format", cfg.Logging.Format).
		Msg("Configuration loaded successfully")
}

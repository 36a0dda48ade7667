package main

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/freewebtopdf/uerename/internal/backup"
	"github.com/freewebtopdf/uerename/internal/cache"
	"github.com/freewebtopdf/uerename/internal/config"
	"github.com/freewebtopdf/uerename/internal/detect"
	"github.com/freewebtopdf/uerename/internal/domain"
	"github.com/freewebtopdf/uerename/internal/executor"
	"github.com/freewebtopdf/uerename/internal/health"
	"github.com/freewebtopdf/uerename/internal/history"
	"github.com/freewebtopdf/uerename/internal/plan"
	"github.com/freewebtopdf/uerename/internal/renamer"
)

// components is everything one command invocation runs against
type components struct {
	service *renamer.Service
	backups *backup.FileStore
	history domain.HistoryStore
	cache   *cache.LRUCache
	health  *health.SystemHealthChecker
}

func (c *components) Close() {
	if err := c.history.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close history store")
	}
}

// build wires the rename engine from configuration
func build(cfg *config.Config) (*components, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create required directories: %w", err)
	}

	rules, err := cfg.NamingRules()
	if err != nil {
		return nil, err
	}

	hist, err := history.Open(cfg.History.Backend, cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	backups := backup.NewFileStore(cfg.Backup.Dir, backup.Mode(cfg.Backup.DirectoryMode))
	lru := cache.NewLRUCache(cfg.Cache.MaxSize, cfg.Cache.TTL)

	planner := plan.NewOperationPlanner(plan.Options{
		Rules:                rules,
		RenameModules:        cfg.Naming.RenameModules,
		RenameRoot:           cfg.Naming.RenameRoot,
		MaxProjectNameLength: cfg.Naming.MaxProjectNameLength,
		MaxIdentifierLength:  cfg.Naming.MaxIdentifierLength,
	})

	exec := executor.NewExecutor(backups, hist, executor.Config{RetainBackups: cfg.Backup.Retain})

	service := renamer.NewService(renamer.Dependencies{
		Detector: detect.NewProjectDetector(rules),
		Planner:  planner,
		Executor: exec,
		History:  hist,
		Cache:    lru,
	})

	return &components{
		service: service,
		backups: backups,
		history: hist,
		cache:   lru,
		health:  health.NewSystemHealthChecker(backups, hist, lru),
	}, nil
}

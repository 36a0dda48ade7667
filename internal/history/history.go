// Package history is the append-only log of rename sessions.
package history

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/freewebtopdf/uerename/internal/domain"
)

// Backend names
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open creates the store selected by backend
func Open(backend, path string) (domain.HistoryStore, error) {
	switch backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile, "":
		return NewFileStore(path)
	case BackendSQLite:
		return NewSQLiteStore(path)
	}
	return nil, fmt.Errorf("unknown history backend %q", backend)
}

// nameAfter is the project name a root carries once the session has applied
func nameAfter(s domain.SessionSummary) string {
	if s.Kind == domain.SessionProject {
		return s.NewName
	}
	return s.ProjectName
}

// lastName scans entries newest first for the last applied session that left a project at root
func lastName(entries []domain.SessionSummary, root string) (string, bool) {
	root = filepath.Clean(root)
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Outcome == domain.OutcomeApplied && filepath.Clean(e.FinalRoot) == root {
			return nameAfter(e), true
		}
	}
	return "", false
}

// involves reports whether the session started or ended at root
func involves(s domain.SessionSummary, root string) bool {
	if root == "" {
		return true
	}
	root = filepath.Clean(root)
	return filepath.Clean(s.ProjectRoot) == root || filepath.Clean(s.FinalRoot) == root
}

func filter(entries []domain.SessionSummary, root string) []domain.SessionSummary {
	out := make([]domain.SessionSummary, 0, len(entries))
	for _, e := range entries {
		if involves(e, root) {
			out = append(out, e)
		}
	}
	return out
}

func healthy(message string, details map[string]any) domain.HealthStatus {
	return domain.HealthStatus{
		Status:    domain.HealthStatusHealthy,
		Message:   message,
		Details:   details,
		Timestamp: time.Now(),
	}
}

func unhealthy(message string, err error) domain.HealthStatus {
	return domain.HealthStatus{
		Status:    domain.HealthStatusUnhealthy,
		Message:   message,
		Details:   map[string]any{"error": err.Error()},
		Timestamp: time.Now(),
	}
}

package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/freewebtopdf/uerename/internal/domain"
	"github.com/freewebtopdf/uerename/internal/fsutil"
)

type historyFile struct {
	Sessions []domain.SessionSummary `yaml:"sessions"`
}

// FileStore persists history as a YAML log, rewritten atomically on every record
type FileStore struct {
	mu      sync.RWMutex
	path    string
	entries []domain.SessionSummary
}

// NewFileStore loads the log at path, starting empty if it does not exist
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("history path is required")
	}

	s := &FileStore{path: path}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	var hf historyFile
	if err := yaml.Unmarshal(data, &hf); err != nil {
		return nil, fmt.Errorf("failed to parse history %s: %w", path, err)
	}
	s.entries = hf.Sessions

	log.Debug().Str("path", path).Int("entries", len(s.entries)).Msg("History loaded")
	return s, nil
}

func (s *FileStore) Record(ctx context.Context, summary domain.SessionSummary) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := append(append([]domain.SessionSummary{}, s.entries...), summary)
	data, err := yaml.Marshal(&historyFile{Sessions: entries})
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	if err := fsutil.AtomicWrite(s.path, data, 0644); err != nil {
		return err
	}

	s.entries = entries
	return nil
}

func (s *FileStore) LastName(ctx context.Context, root string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := lastName(s.entries, root)
	return name, ok, nil
}

func (s *FileStore) Entries(ctx context.Context, root string) ([]domain.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filter(s.entries, root), nil
}

func (s *FileStore) HealthCheck(ctx context.Context) domain.HealthStatus {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return unhealthy("History directory cannot be created", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return healthy("History log is operational", map[string]any{
		"backend": BackendFile,
		"path":    s.path,
		"entries": len(s.entries),
	})
}

func (s *FileStore) Close() error { return nil }

// Package backup keeps the pre-mutation state of every path a rename session
// touches, so the executor can put it back.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gosimple/slug"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/freewebtopdf/uerename/internal/domain"
	"github.com/freewebtopdf/uerename/internal/fsutil"
)

// ManifestFile lists a session's records in index order
const ManifestFile = "manifest.yaml"

// Mode selects how directory renames are protected
type Mode string

const (
	// ModeCopy takes a full recursive copy of the directory
	ModeCopy Mode = "copy"
	// ModeRename records the move and reverses it with a rename
	ModeRename Mode = "rename"
)

// Manifest is the on-disk index of a backup session
type Manifest struct {
	SessionID string                `yaml:"session_id"`
	Label     string                `yaml:"label"`
	CreatedAt time.Time             `yaml:"created_at"`
	Records   []domain.BackupRecord `yaml:"records"`
}

type session struct {
	dir      string
	manifest Manifest
}

// FileStore implements domain.BackupStore on the local file system
type FileStore struct {
	mu       sync.Mutex
	baseDir  string
	mode     Mode
	sessions map[string]*session
}

// NewFileStore creates a store rooted at baseDir
func NewFileStore(baseDir string, mode Mode) *FileStore {
	if mode == "" {
		mode = ModeCopy
	}
	return &FileStore{
		baseDir:  baseDir,
		mode:     mode,
		sessions: make(map[string]*session),
	}
}

// BaseDir returns the store root
func (s *FileStore) BaseDir() string {
	return s.baseDir
}

// Begin creates the session directory <slug(label)>-<sessionID>
func (s *FileStore) Begin(ctx context.Context, sessionID, label string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	name := sessionID
	if sl := slug.Make(label); sl != "" {
		name = sl + "-" + sessionID
	}
	dir := filepath.Join(s.baseDir, name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sessionID]; exists {
		return "", domain.NewAppError(domain.ErrBackupIO, "backup session already started", 500,
			map[string]any{"session_id": sessionID})
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", backupError("create backup session directory", dir, err)
	}

	sess := &session{
		dir: dir,
		manifest: Manifest{
			SessionID: sessionID,
			Label:     label,
			CreatedAt: time.Now().UTC(),
			Records:   []domain.BackupRecord{},
		},
	}
	if err := writeManifest(sess); err != nil {
		return "", err
	}
	s.sessions[sessionID] = sess

	log.Debug().Str("session_id", sessionID).Str("dir", dir).Msg("Backup session started")
	return dir, nil
}

// Snapshot copies the operation's target aside before it is mutated
func (s *FileStore) Snapshot(ctx context.Context, sessionID string, index int, op domain.Operation) (*domain.BackupRecord, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, domain.NewAppError(domain.ErrBackupIO, "backup session not started", 500,
			map[string]any{"session_id": sessionID})
	}

	original := op.Target()
	info, err := os.Lstat(original)
	if err != nil {
		return nil, backupError("stat", original, err)
	}

	record := &domain.BackupRecord{
		SessionID:      sessionID,
		OperationIndex: index,
		OriginalPath:   original,
		IsDir:          info.IsDir(),
		CreatedAt:      time.Now().UTC(),
	}
	if result := op.Result(); result != original {
		record.ResultPath = result
		record.ResultExisted = fsutil.Exists(result)
	}

	if op.Kind == domain.OpRenameDirectory && s.mode == ModeRename {
		record.MoveBack = true
	} else {
		snapshot := filepath.Join(sess.dir, strconv.Itoa(index), filepath.Base(original))
		if err := os.RemoveAll(filepath.Dir(snapshot)); err != nil {
			return nil, backupError("clear snapshot slot", snapshot, err)
		}
		if info.IsDir() {
			err = fsutil.CopyTree(ctx, original, snapshot)
		} else {
			err = fsutil.CopyFile(original, snapshot)
		}
		if err != nil {
			return nil, backupError("snapshot", original, err)
		}
		record.SnapshotPath = snapshot
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess.manifest.Records = append(sess.manifest.Records, *record)
	if err := writeManifest(sess); err != nil {
		return nil, err
	}

	log.Debug().
		Str("session_id", sessionID).
		Int("index", index).
		Str("path", original).
		Bool("move_back", record.MoveBack).
		Msg("Snapshot taken")

	return record, nil
}

// Restore puts the original path back the way it was at snapshot time.
// Restoring an already restored record leaves the tree unchanged.
func (s *FileStore) Restore(ctx context.Context, record *domain.BackupRecord) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if record.MoveBack {
		return restoreMove(record)
	}

	if record.ResultPath != "" && !record.ResultExisted {
		if err := os.RemoveAll(record.ResultPath); err != nil {
			return backupError("remove renamed path", record.ResultPath, err)
		}
	}

	if record.IsDir {
		return restoreDir(ctx, record)
	}
	return restoreFile(record)
}

func restoreMove(record *domain.BackupRecord) error {
	originalExists := fsutil.Exists(record.OriginalPath)
	resultExists := fsutil.Exists(record.ResultPath)

	switch {
	case originalExists && (!resultExists || record.ResultExisted):
		return nil
	case !originalExists && resultExists:
		if err := os.Rename(record.ResultPath, record.OriginalPath); err != nil {
			return backupError("move back", record.ResultPath, err)
		}
		return nil
	case originalExists && resultExists:
		return domain.NewAppError(domain.ErrBackupIO, "both original and renamed directory exist", 500,
			map[string]any{"original": record.OriginalPath, "result": record.ResultPath})
	default:
		return domain.NewAppError(domain.ErrBackupIO, "neither original nor renamed directory exists", 500,
			map[string]any{"original": record.OriginalPath, "result": record.ResultPath})
	}
}

func restoreFile(record *domain.BackupRecord) error {
	data, err := os.ReadFile(record.SnapshotPath)
	if err != nil {
		return backupError("read snapshot", record.SnapshotPath, err)
	}
	info, err := os.Stat(record.SnapshotPath)
	if err != nil {
		return backupError("stat snapshot", record.SnapshotPath, err)
	}
	if err := os.MkdirAll(filepath.Dir(record.OriginalPath), 0755); err != nil {
		return backupError("create parent", record.OriginalPath, err)
	}
	if err := fsutil.AtomicWrite(record.OriginalPath, data, info.Mode().Perm()); err != nil {
		return backupError("restore file", record.OriginalPath, err)
	}
	return nil
}

// restoreDir stages the copy next to the original, then swaps it in.
func restoreDir(ctx context.Context, record *domain.BackupRecord) error {
	staging := record.OriginalPath + ".restore"
	if err := os.RemoveAll(staging); err != nil {
		return backupError("clear staging", staging, err)
	}
	if err := fsutil.CopyTree(ctx, record.SnapshotPath, staging); err != nil {
		_ = os.RemoveAll(staging)
		return backupError("stage directory", staging, err)
	}
	if err := os.RemoveAll(record.OriginalPath); err != nil {
		return backupError("remove directory", record.OriginalPath, err)
	}
	if err := os.Rename(staging, record.OriginalPath); err != nil {
		return backupError("restore directory", record.OriginalPath, err)
	}
	return nil
}

// Discard deletes every record of a session
func (s *FileStore) Discard(ctx context.Context, sessionID string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	if err := os.RemoveAll(sess.dir); err != nil {
		return backupError("discard session", sess.dir, err)
	}

	log.Debug().Str("session_id", sessionID).Msg("Backup session discarded")
	return nil
}

// Release forgets a session whose backups must stay on disk, such as one
// kept for manual recovery or by retention. ReadManifest still loads it.
func (s *FileStore) Release(sessionID string) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if ok {
		log.Debug().Str("session_id", sessionID).Str("dir", sess.dir).Msg("Backup session released")
	}
}

// SessionDir returns the directory of a started session, or "" if unknown
func (s *FileStore) SessionDir(sessionID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		return sess.dir
	}
	return ""
}

// Records returns a copy of the records taken so far for a session
func (s *FileStore) Records(sessionID string) []domain.BackupRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]domain.BackupRecord, len(sess.manifest.Records))
	copy(out, sess.manifest.Records)
	return out
}

// HealthCheck verifies the store root is writable
func (s *FileStore) HealthCheck(ctx context.Context) domain.HealthStatus {
	now := time.Now()

	select {
	case <-ctx.Done():
		return domain.HealthStatus{
			Status:    domain.HealthStatusUnhealthy,
			Message:   "Health check cancelled",
			Timestamp: now,
		}
	default:
	}

	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		return domain.HealthStatus{
			Status:    domain.HealthStatusUnhealthy,
			Message:   "Backup directory cannot be created",
			Details:   map[string]any{"dir": s.baseDir, "error": err.Error()},
			Timestamp: now,
		}
	}

	tmp, err := os.CreateTemp(s.baseDir, ".health-*")
	if err != nil {
		return domain.HealthStatus{
			Status:    domain.HealthStatusUnhealthy,
			Message:   "Backup directory is not writable",
			Details:   map[string]any{"dir": s.baseDir, "error": err.Error()},
			Timestamp: now,
		}
	}
	_ = tmp.Close()
	_ = os.Remove(tmp.Name())

	s.mu.Lock()
	active := len(s.sessions)
	s.mu.Unlock()

	return domain.HealthStatus{
		Status:    domain.HealthStatusHealthy,
		Message:   "Backup store is operational",
		Details:   map[string]any{"dir": s.baseDir, "mode": string(s.mode), "active_sessions": active},
		Timestamp: now,
	}
}

// ReadManifest loads the manifest of a backup session directory
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

func writeManifest(sess *session) error {
	data, err := yaml.Marshal(&sess.manifest)
	if err != nil {
		return backupError("encode manifest", sess.dir, err)
	}
	path := filepath.Join(sess.dir, ManifestFile)
	if err := fsutil.AtomicWrite(path, data, 0644); err != nil {
		return backupError("write manifest", path, err)
	}
	return nil
}

func backupError(action, path string, err error) *domain.AppError {
	return domain.NewAppErrorWithCause(
		domain.ErrBackupIO,
		fmt.Sprintf("backup failed to %s", action),
		500,
		err,
		map[string]any{"path": path},
	)
}

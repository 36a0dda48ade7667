// Package executor applies a planned operation list as one all-or-nothing
// session, rolling back through the backup store on any failure.
package executor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/freewebtopdf/uerename/internal/domain"
)

// Config holds executor settings
type Config struct {
	// RetainBackups keeps the backup session after a successful apply
	RetainBackups bool
	// Applier overrides the file system applier
	Applier domain.OperationApplier
}

// Executor runs rename sessions
type Executor struct {
	backups domain.BackupStore
	history domain.HistoryStore
	applier domain.OperationApplier
	retain  bool

	mu     sync.Mutex
	active map[string]string // root -> session id
}

// NewExecutor creates an executor. history may be nil.
func NewExecutor(backups domain.BackupStore, history domain.HistoryStore, cfg Config) *Executor {
	applier := cfg.Applier
	if applier == nil {
		applier = NewFileApplier()
	}
	return &Executor{
		backups: backups,
		history: history,
		applier: applier,
		retain:  cfg.RetainBackups,
		active:  make(map[string]string),
	}
}

// NewSession creates a pending session for a planned operation list
func NewSession(kind domain.SessionKind, meta *domain.ProjectMetadata, oldName, newName string, ops []domain.Operation) *domain.RenameSession {
	return &domain.RenameSession{
		SessionID:   uuid.NewString(),
		Kind:        kind,
		ProjectRoot: meta.RootPath,
		FinalRoot:   meta.RootPath,
		ProjectName: meta.ProjectName,
		StartedAt:   time.Now().UTC(),
		OldName:     oldName,
		NewName:     newName,
		Operations:  ops,
		State:       domain.StatePending,
		Outcome:     domain.OutcomePending,
	}
}

// IsBusy reports whether a session is currently applying against root
func (e *Executor) IsBusy(root string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, busy := e.active[filepath.Clean(root)]
	return busy
}

func (e *Executor) acquire(s *domain.RenameSession) (func(), error) {
	keys := []string{filepath.Clean(s.ProjectRoot)}
	if final := finalRoot(s); final != keys[0] {
		keys = append(keys, final)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, k := range keys {
		if owner, busy := e.active[k]; busy {
			return nil, domain.NewAppError(
				domain.ErrSessionInProgress,
				"Another rename session is applying to this project",
				409,
				map[string]any{"root": k, "session_id": owner},
			)
		}
	}
	for _, k := range keys {
		e.active[k] = s.SessionID
	}

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for _, k := range keys {
			delete(e.active, k)
		}
	}, nil
}

// finalRoot is the root path once every operation has applied
func finalRoot(s *domain.RenameSession) string {
	root := filepath.Clean(s.ProjectRoot)
	for _, op := range s.Operations {
		if op.Kind == domain.OpRenameDirectory && filepath.Clean(op.From) == root {
			return filepath.Clean(op.To)
		}
	}
	return root
}

// Execute applies every operation of the session in order. On any failure,
// including cancellation, the operations applied so far are restored in
// reverse order before returning.
func (e *Executor) Execute(ctx context.Context, s *domain.RenameSession) (*domain.SessionResult, error) {
	if s.State != domain.StatePending {
		return nil, domain.NewAppError(domain.ErrInvalidInput, "session is not pending", 400,
			map[string]any{"session_id": s.SessionID, "state": s.State})
	}
	if err := domain.ValidateOrdering(s.Operations, s.ProjectRoot); err != nil {
		return nil, domain.NewAppErrorWithCause(domain.ErrInvalidInput, "operation list is not applicable", 400, err, nil)
	}
	if err := e.checkBackupLocation(s.ProjectRoot); err != nil {
		return nil, err
	}

	release, err := e.acquire(s)
	if err != nil {
		return nil, err
	}
	defer release()

	s.FinalRoot = finalRoot(s)
	result := &domain.SessionResult{Session: s, Applied: []int{}}

	if err := s.Transition(domain.StateApplying); err != nil {
		return nil, err
	}

	logger := log.With().
		Str("session_id", s.SessionID).
		Str("root", s.ProjectRoot).
		Str("kind", string(s.Kind)).
		Logger()
	logger.Info().
		Str("old_name", s.OldName).
		Str("new_name", s.NewName).
		Int("operations", len(s.Operations)).
		Msg("Applying rename session")

	backupDir, err := e.backups.Begin(ctx, s.SessionID, s.ProjectName)
	if err != nil {
		return result, e.fail(ctx, s, result, nil, -1, err)
	}
	result.BackupDir = backupDir

	records := make([]*domain.BackupRecord, 0, len(s.Operations))
	for i, op := range s.Operations {
		select {
		case <-ctx.Done():
			return result, e.fail(ctx, s, result, records, i, ctx.Err())
		default:
		}

		record, err := e.backups.Snapshot(ctx, s.SessionID, i, op)
		if err != nil {
			return result, e.fail(ctx, s, result, records, i, err)
		}
		records = append(records, record)

		if err := e.applier.Apply(ctx, op); err != nil {
			return result, e.fail(ctx, s, result, records, i, err)
		}
		result.Applied = append(result.Applied, i)

		logger.Debug().Int("index", i).Str("op", op.String()).Msg("Operation applied")
	}

	if err := s.Transition(domain.StateApplied); err != nil {
		return result, err
	}

	summary := s.Summary()
	summary.Outcome = domain.OutcomeApplied
	summary.FinishedAt = time.Now().UTC()

	recorded := true
	if e.history != nil {
		if err := e.history.Record(context.WithoutCancel(ctx), summary); err != nil {
			recorded = false
			logger.Error().Err(err).Str("backup_dir", backupDir).Msg("Failed to record history, keeping backups")
		}
	}

	if recorded && !e.retain {
		if err := e.backups.Discard(context.WithoutCancel(ctx), s.SessionID); err != nil {
			logger.Warn().Err(err).Str("backup_dir", backupDir).Msg("Failed to discard backups")
		} else {
			result.BackupDir = ""
		}
	}
	if result.BackupDir != "" {
		e.backups.Release(s.SessionID)
	}

	if err := s.Transition(domain.StateCompleted); err != nil {
		return result, err
	}

	logger.Info().
		Str("final_root", s.FinalRoot).
		Int("applied", len(result.Applied)).
		Msg("Rename session completed")

	return result, nil
}

// fail rolls back records in reverse order and builds the session error.
// failedIndex is -1 when the session failed before the first operation.
func (e *Executor) fail(ctx context.Context, s *domain.RenameSession, result *domain.SessionResult,
	records []*domain.BackupRecord, failedIndex int, cause error) error {
	_ = s.Transition(domain.StateRollingBack)

	report := &domain.FailureReport{
		SessionID:   s.SessionID,
		FailedIndex: failedIndex,
		Cause:       cause.Error(),
		BackupDir:   e.backups.SessionDir(s.SessionID),
	}
	if failedIndex >= 0 && failedIndex < len(s.Operations) {
		op := s.Operations[failedIndex]
		report.FailedKind = op.Kind
		report.FailedPath = op.Target()
	}

	log.Warn().
		Err(cause).
		Str("session_id", s.SessionID).
		Int("failed_index", failedIndex).
		Int("to_restore", len(records)).
		Msg("Rename session failed, rolling back")

	restoreCtx := context.WithoutCancel(ctx)
	result.RolledBack = []int{}
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		if err := e.backups.Restore(restoreCtx, rec); err != nil {
			report.RollbackFailures = append(report.RollbackFailures, domain.RollbackFailure{
				Index: rec.OperationIndex,
				Path:  rec.OriginalPath,
				Error: err.Error(),
			})
			log.Error().
				Err(err).
				Str("session_id", s.SessionID).
				Int("index", rec.OperationIndex).
				Str("path", rec.OriginalPath).
				Msg("Rollback of operation failed")
			continue
		}
		result.RolledBack = append(result.RolledBack, rec.OperationIndex)
	}
	report.RolledBack = len(report.RollbackFailures) == 0

	_ = s.Transition(domain.StateFailed)
	if !report.RolledBack {
		s.Outcome = domain.OutcomeRollbackFailed
	}
	s.FinalRoot = s.ProjectRoot

	if e.history != nil {
		if err := e.history.Record(restoreCtx, s.Summary()); err != nil {
			log.Warn().Err(err).Str("session_id", s.SessionID).Str("outcome", string(s.Outcome)).Msg("Failed to record failed session")
		}
	}

	// The backups stay on disk for inspection; the store no longer tracks them.
	e.backups.Release(s.SessionID)

	if !report.RolledBack {
		return domain.NewAppErrorWithCause(
			domain.ErrRollbackFailed,
			fmt.Sprintf("Rollback incomplete: %d operation(s) could not be restored, recover from %s",
				len(report.RollbackFailures), report.BackupDir),
			500,
			cause,
			report,
		)
	}

	code, status, message := domain.ErrApplyFailed, 500, fmt.Sprintf("Operation %d failed, all changes rolled back", failedIndex)
	switch {
	case errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded):
		code, status, message = domain.ErrTimeout, 408, "Rename cancelled, all changes rolled back"
	case domain.HasCode(cause, domain.ErrBackupIO):
		code, message = domain.ErrBackupIO, fmt.Sprintf("Backup of operation %d failed, all changes rolled back", failedIndex)
	}
	return domain.NewAppErrorWithCause(code, message, status, cause, report)
}

// checkBackupLocation rejects backup stores rooted inside the project
func (e *Executor) checkBackupLocation(root string) error {
	based, ok := e.backups.(interface{ BaseDir() string })
	if !ok {
		return nil
	}
	base, err := filepath.Abs(based.BaseDir())
	if err != nil {
		return domain.NewAppErrorWithCause(domain.ErrBackupIO, "invalid backup directory", 500, err, nil)
	}
	if domain.IsAncestorOrSelf(root, base) {
		return domain.NewAppError(domain.ErrInvalidInput, "Backup directory must be outside the project root", 400,
			map[string]any{"backup_dir": base, "root": root})
	}
	return nil
}

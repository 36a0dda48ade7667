package domain

import (
	"fmt"
	"time"
)

// SessionKind names what a session renames
type SessionKind string

const (
	SessionProject SessionKind = "project"
	SessionTarget  SessionKind = "target"
	SessionModule  SessionKind = "module"
	SessionPlugin  SessionKind = "plugin"
)

// SessionState is the executor state machine
type SessionState string

const (
	StatePending     SessionState = "pending"
	StateApplying    SessionState = "applying"
	StateApplied     SessionState = "applied"
	StateRollingBack SessionState = "rolling_back"
	StateCompleted   SessionState = "completed"
	StateFailed      SessionState = "failed"
)

var allowedTransitions = map[SessionState][]SessionState{
	StatePending:     {StateApplying},
	StateApplying:    {StateApplied, StateRollingBack},
	StateApplied:     {StateCompleted},
	StateRollingBack: {StateFailed},
}

// CanTransition reports whether the state machine allows from -> to
func CanTransition(from, to SessionState) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// SessionOutcome is the externally visible result of a session
type SessionOutcome string

const (
	OutcomePending    SessionOutcome = "pending"
	OutcomeApplied    SessionOutcome = "applied"
	OutcomeRolledBack SessionOutcome = "rolled_back"

	// OutcomeRollbackFailed marks a failed session whose tree could not be fully restored
	OutcomeRollbackFailed SessionOutcome = "rollback_failed"
)

// RenameSession is one end-to-end rename attempt
type RenameSession struct {
	SessionID   string         `json:"session_id" yaml:"session_id"`
	Kind        SessionKind    `json:"kind" yaml:"kind"`
	ProjectRoot string         `json:"project_root" yaml:"project_root"`
	FinalRoot   string         `json:"final_root" yaml:"final_root"`
	ProjectName string         `json:"project_name" yaml:"project_name"`
	StartedAt   time.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time      `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	OldName     string         `json:"old_name" yaml:"old_name"`
	NewName     string         `json:"new_name" yaml:"new_name"`
	Operations  []Operation    `json:"operations" yaml:"operations"`
	State       SessionState   `json:"state" yaml:"state"`
	Outcome     SessionOutcome `json:"outcome" yaml:"outcome"`
}

// Transition moves the session to next, rejecting moves the state machine forbids
func (s *RenameSession) Transition(next SessionState) error {
	if !CanTransition(s.State, next) {
		return NewAppError(ErrInternal, fmt.Sprintf("illegal session transition %s -> %s", s.State, next), 500,
			map[string]any{"session_id": s.SessionID})
	}
	s.State = next
	switch next {
	case StateCompleted:
		s.Outcome = OutcomeApplied
		s.FinishedAt = time.Now()
	case StateFailed:
		s.Outcome = OutcomeRolledBack
		s.FinishedAt = time.Now()
	}
	return nil
}

// Summary returns the record kept by the history tracker
func (s *RenameSession) Summary() SessionSummary {
	return SessionSummary{
		SessionID:      s.SessionID,
		Kind:           s.Kind,
		ProjectRoot:    s.ProjectRoot,
		FinalRoot:      s.FinalRoot,
		ProjectName:    s.ProjectName,
		OldName:        s.OldName,
		NewName:        s.NewName,
		StartedAt:      s.StartedAt,
		FinishedAt:     s.FinishedAt,
		Outcome:        s.Outcome,
		OperationCount: len(s.Operations),
	}
}

// SessionSummary is one entry of the rename history
type SessionSummary struct {
	SessionID      string         `json:"session_id" yaml:"session_id"`
	Kind           SessionKind    `json:"kind" yaml:"kind"`
	ProjectRoot    string         `json:"project_root" yaml:"project_root"`
	FinalRoot      string         `json:"final_root" yaml:"final_root"`
	ProjectName    string         `json:"project_name" yaml:"project_name"`
	OldName        string         `json:"old_name" yaml:"old_name"`
	NewName        string         `json:"new_name" yaml:"new_name"`
	StartedAt      time.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt     time.Time      `json:"finished_at" yaml:"finished_at"`
	Outcome        SessionOutcome `json:"outcome" yaml:"outcome"`
	OperationCount int            `json:"operation_count" yaml:"operation_count"`
}

// SessionResult is returned by the executor
type SessionResult struct {
	Session    *RenameSession `json:"session"`
	Applied    []int          `json:"applied"`
	RolledBack []int          `json:"rolled_back,omitempty"`
	BackupDir  string         `json:"backup_dir,omitempty"`
}

// BackupRecord is the pre-mutation snapshot of one operation's target path
type BackupRecord struct {
	SessionID      string `json:"session_id" yaml:"session_id"`
	OperationIndex int    `json:"operation_index" yaml:"operation_index"`
	OriginalPath   string `json:"original_path" yaml:"original_path"`
	// ResultPath is removed on restore when it differs from OriginalPath
	ResultPath string `json:"result_path,omitempty" yaml:"result_path,omitempty"`
	// ResultExisted marks a ResultPath that was already on disk at snapshot time; restore leaves it alone
	ResultExisted bool   `json:"result_existed,omitempty" yaml:"result_existed,omitempty"`
	SnapshotPath  string `json:"snapshot_path,omitempty" yaml:"snapshot_path,omitempty"`
	IsDir         bool   `json:"is_dir" yaml:"is_dir"`
	// MoveBack restores a directory rename by renaming it back instead of copying a snapshot
	MoveBack  bool      `json:"move_back,omitempty" yaml:"move_back,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// RollbackFailure is one operation that could not be undone
type RollbackFailure struct {
	Index int    `json:"index"`
	Path  string `json:"path"`
	Error string `json:"error"`
}

// FailureReport is attached to apply and rollback errors
type FailureReport struct {
	SessionID        string            `json:"session_id"`
	FailedIndex      int               `json:"failed_index"`
	FailedKind       OperationKind     `json:"failed_kind,omitempty"`
	FailedPath       string            `json:"failed_path,omitempty"`
	Cause            string            `json:"cause"`
	RolledBack       bool              `json:"rolled_back"`
	RollbackFailures []RollbackFailure `json:"rollback_failures,omitempty"`
	BackupDir        string            `json:"backup_dir,omitempty"`
}

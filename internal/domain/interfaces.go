package domain

import "context"

// Detector inspects a project tree and extracts its metadata
type Detector interface {
	Detect(ctx context.Context, root string, opts DetectOptions) (*ProjectMetadata, error)
}

// DetectOptions tunes a detection run
type DetectOptions struct {
	// PreferredName resolves several descriptors to the one with this base name
	PreferredName string
}

// Planner turns metadata and a requested name into an ordered operation list
type Planner interface {
	Plan(meta *ProjectMetadata, newName string) ([]Operation, error)
	PlanTarget(meta *ProjectMetadata, target, newName string) ([]Operation, error)
	PlanModule(meta *ProjectMetadata, module, newName string) ([]Operation, error)
	PlanPlugin(meta *ProjectMetadata, plugin, newName string) ([]Operation, error)
}

// BackupStore snapshots paths before they are mutated and restores them on rollback
type BackupStore interface {
	Begin(ctx context.Context, sessionID, label string) (string, error)
	Snapshot(ctx context.Context, sessionID string, index int, op Operation) (*BackupRecord, error)
	Restore(ctx context.Context, record *BackupRecord) error
	Discard(ctx context.Context, sessionID string) error
	// Release stops tracking a session and leaves its files on disk
	Release(sessionID string)
	SessionDir(sessionID string) string
	HealthCheck(ctx context.Context) HealthStatus
}

// OperationApplier performs the file system mutation of a single operation
type OperationApplier interface {
	Apply(ctx context.Context, op Operation) error
}

// HistoryStore is the append-only log of completed sessions
type HistoryStore interface {
	Record(ctx context.Context, summary SessionSummary) error
	LastName(ctx context.Context, root string) (string, bool, error)
	Entries(ctx context.Context, root string) ([]SessionSummary, error)
	HealthCheck(ctx context.Context) HealthStatus
	Close() error
}

// MetadataCache caches detected metadata per root
type MetadataCache interface {
	Get(root string) (*ProjectMetadata, bool)
	Set(root string, meta *ProjectMetadata)
	Invalidate(root string)
	Clear()
	Stats() CacheStats
	HealthCheck(ctx context.Context) HealthStatus
}

// HealthChecker defines the interface for system health monitoring
type HealthChecker interface {
	CheckHealth(ctx context.Context) SystemHealth
	CheckComponent(ctx context.Context, component string) HealthStatus
}

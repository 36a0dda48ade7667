// Package renamer wires detection, planning, pre-flight checks, execution
// and history into the operations the CLI and HTTP adapter expose.
package renamer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/freewebtopdf/uerename/internal/conflict"
	"github.com/freewebtopdf/uerename/internal/domain"
	"github.com/freewebtopdf/uerename/internal/executor"
)

// Request names what to rename. Kind defaults to a project rename, in which
// case Subject is ignored.
type Request struct {
	Root    string             `json:"root" example:"/work/Lyra"`
	NewName string             `json:"new_name" example:"Spyro"`
	Kind    domain.SessionKind `json:"kind,omitempty" example:"project"`
	Subject string             `json:"subject,omitempty" example:"LyraEditor"`
}

// Plan is a computed rename that has not been applied
type Plan struct {
	Kind       domain.SessionKind      `json:"kind"`
	Root       string                  `json:"root"`
	OldName    string                  `json:"old_name"`
	NewName    string                  `json:"new_name"`
	Metadata   *domain.ProjectMetadata `json:"metadata"`
	Operations []domain.Operation      `json:"operations"`
	Conflicts  []conflict.ConflictInfo `json:"conflicts,omitempty"`
}

// Dependencies are the components a Service drives. History and Cache may be nil.
type Dependencies struct {
	Detector  domain.Detector
	Planner   domain.Planner
	Conflicts *conflict.Detector
	Executor  *executor.Executor
	History   domain.HistoryStore
	Cache     domain.MetadataCache
}

// Service is the rename facade
type Service struct {
	detector  domain.Detector
	planner   domain.Planner
	conflicts *conflict.Detector
	executor  *executor.Executor
	history   domain.HistoryStore
	cache     domain.MetadataCache
}

// NewService creates a rename facade
func NewService(deps Dependencies) *Service {
	conflicts := deps.Conflicts
	if conflicts == nil {
		conflicts = conflict.NewDetector()
	}
	return &Service{
		detector:  deps.Detector,
		planner:   deps.Planner,
		conflicts: conflicts,
		executor:  deps.Executor,
		history:   deps.History,
		cache:     deps.Cache,
	}
}

func resolveRoot(root string) (string, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return "", domain.NewAppError(domain.ErrValidationFailed, "Project root is required", 422,
			map[string]string{"field": "root", "reason": "required"})
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", domain.NewAppErrorWithCause(domain.ErrInvalidInput, "Invalid project root", 400, err,
			map[string]string{"root": root})
	}
	return abs, nil
}

// Detect returns the metadata of the project at root. The last name the
// history recorded for root breaks ties between several descriptors.
func (s *Service) Detect(ctx context.Context, root string) (*domain.ProjectMetadata, error) {
	root, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if meta, ok := s.cache.Get(root); ok {
			return meta, nil
		}
	}

	opts := domain.DetectOptions{PreferredName: s.lastName(ctx, root)}
	meta, err := s.detector.Detect(ctx, root, opts)
	if err != nil {
		return nil, err
	}

	for _, w := range meta.Warnings {
		log.Warn().Str("root", root).Str("path", w.Path).Msg(w.Message)
	}

	if s.cache != nil {
		s.cache.Set(root, meta)
	}
	return meta, nil
}

func (s *Service) lastName(ctx context.Context, root string) string {
	if s.history == nil {
		return ""
	}
	name, ok, err := s.history.LastName(ctx, root)
	if err != nil {
		log.Warn().Err(err).Str("root", root).Msg("Failed to read rename history")
		return ""
	}
	if !ok {
		return ""
	}
	return name
}

// Plan detects the project and computes the ordered operations for req,
// together with any conflicts against the live tree.
func (s *Service) Plan(ctx context.Context, req Request) (*Plan, error) {
	kind, err := normalizeKind(req)
	if err != nil {
		return nil, err
	}

	meta, err := s.Detect(ctx, req.Root)
	if err != nil {
		return nil, err
	}

	newName := strings.TrimSpace(req.NewName)
	subject := strings.TrimSpace(req.Subject)

	var ops []domain.Operation
	oldName := subject
	switch kind {
	case domain.SessionProject:
		oldName = meta.ProjectName
		ops, err = s.planner.Plan(meta, newName)
	case domain.SessionTarget:
		ops, err = s.planner.PlanTarget(meta, subject, newName)
	case domain.SessionModule:
		ops, err = s.planner.PlanModule(meta, subject, newName)
	case domain.SessionPlugin:
		ops, err = s.planner.PlanPlugin(meta, subject, newName)
	}
	if err != nil {
		return nil, err
	}

	conflicts, err := s.conflicts.DetectConflicts(ctx, ops)
	if err != nil {
		return nil, fmt.Errorf("failed to check plan conflicts: %w", err)
	}
	conflicts = append(conflicts, conflict.FromWarnings(meta.Warnings)...)

	return &Plan{
		Kind:       kind,
		Root:       meta.RootPath,
		OldName:    oldName,
		NewName:    newName,
		Metadata:   meta,
		Operations: ops,
		Conflicts:  conflicts,
	}, nil
}

func normalizeKind(req Request) (domain.SessionKind, error) {
	kind := req.Kind
	if kind == "" {
		kind = domain.SessionProject
	}
	switch kind {
	case domain.SessionProject:
		return kind, nil
	case domain.SessionTarget, domain.SessionModule, domain.SessionPlugin:
		if strings.TrimSpace(req.Subject) == "" {
			return "", domain.NewAppError(domain.ErrValidationFailed,
				fmt.Sprintf("A %s rename needs the current %s name", kind, kind), 422,
				map[string]string{"field": "subject", "reason": "required"})
		}
		return kind, nil
	}
	return "", domain.NewAppError(domain.ErrValidationFailed, fmt.Sprintf("Unknown rename kind %q", kind), 422,
		map[string]string{"field": "kind", "reason": "oneof=project target module plugin"})
}

// Apply plans req against a fresh detection and runs it as one session.
// Blocking conflicts stop the session before anything is touched.
func (s *Service) Apply(ctx context.Context, req Request) (*domain.SessionResult, error) {
	root, err := resolveRoot(req.Root)
	if err != nil {
		return nil, err
	}
	req.Root = root

	if s.executor.IsBusy(root) {
		return nil, domain.NewAppError(domain.ErrSessionInProgress,
			"Another rename session is applying to this project", 409, map[string]string{"root": root})
	}

	if s.cache != nil {
		s.cache.Invalidate(root)
	}

	plan, err := s.Plan(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.ApplyPlan(ctx, plan)
}

// ApplyPlan runs a plan computed earlier by Plan
func (s *Service) ApplyPlan(ctx context.Context, plan *Plan) (*domain.SessionResult, error) {
	if blocking := conflict.Blocking(plan.Conflicts); len(blocking) > 0 {
		for _, c := range blocking {
			log.Warn().Str("root", plan.Root).Int("index", c.Index).Str("path", c.Path).Msg(c.Message)
		}
		return nil, domain.NewAppError(domain.ErrPlanConflict, "Plan conflicts with the project on disk", 409,
			map[string]any{"conflicts": blocking})
	}

	session := executor.NewSession(plan.Kind, plan.Metadata, plan.OldName, plan.NewName, plan.Operations)
	result, err := s.executor.Execute(ctx, session)

	if s.cache != nil {
		s.cache.Invalidate(plan.Root)
		if session.FinalRoot != "" {
			s.cache.Invalidate(session.FinalRoot)
		}
	}
	return result, err
}

// Rename renames the whole project at root to newName
func (s *Service) Rename(ctx context.Context, root, newName string) (*domain.SessionResult, error) {
	return s.Apply(ctx, Request{Root: root, NewName: newName, Kind: domain.SessionProject})
}

// History lists the sessions that started or ended at root, oldest first.
// An empty root lists every session.
func (s *Service) History(ctx context.Context, root string) ([]domain.SessionSummary, error) {
	if s.history == nil {
		return []domain.SessionSummary{}, nil
	}
	if strings.TrimSpace(root) != "" {
		abs, err := resolveRoot(root)
		if err != nil {
			return nil, err
		}
		root = abs
	}
	entries, err := s.history.Entries(ctx, root)
	if err != nil {
		return nil, domain.NewAppErrorWithCause(domain.ErrInternal, "Failed to read rename history", 500, err, nil)
	}
	return entries, nil
}

// IsBusy reports whether a session is applying against root
func (s *Service) IsBusy(root string) bool {
	abs, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	return s.executor.IsBusy(abs)
}

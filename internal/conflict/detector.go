// Package conflict checks a rename plan against the live file system before
// anything is mutated.
package conflict

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/freewebtopdf/uerename/internal/domain"
	"github.com/freewebtopdf/uerename/internal/ini"
	"github.com/freewebtopdf/uerename/internal/naming"
)

// Severity of a conflict
type Severity string

const (
	SeverityBlocking Severity = "blocking"
	SeverityWarning  Severity = "warning"
)

// Conflict kinds
const (
	KindSourceMissing        = "source_missing"
	KindDestinationExists    = "destination_exists"
	KindDuplicateDestination = "duplicate_destination"
	KindConfigDrift          = "config_drift"
	KindTokenPresent         = "token_present"
	KindUnscanned            = "unscanned"
)

// ConflictInfo describes one problem found in a plan
type ConflictInfo struct {
	Index    int      `json:"index"`
	Kind     string   `json:"kind"`
	Path     string   `json:"path"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Detector identifies plan conflicts
type Detector struct{}

// NewDetector creates a new conflict detector
func NewDetector() *Detector {
	return &Detector{}
}

// DetectConflicts checks every operation in order against the current tree
func (d *Detector) DetectConflicts(ctx context.Context, ops []domain.Operation) ([]ConflictInfo, error) {
	var conflicts []ConflictInfo
	destinations := make(map[string]int)

	for i, op := range ops {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		srcInfo, err := os.Lstat(op.Target())
		if err != nil {
			conflicts = append(conflicts, ConflictInfo{
				Index: i, Kind: KindSourceMissing, Path: op.Target(), Severity: SeverityBlocking,
				Message: fmt.Sprintf("%s does not exist", op.Target()),
			})
			continue
		}

		switch op.Kind {
		case domain.OpRenameFile, domain.OpRenameDirectory:
			dest := filepath.Clean(op.To)
			if prev, dup := destinations[dest]; dup {
				conflicts = append(conflicts, ConflictInfo{
					Index: i, Kind: KindDuplicateDestination, Path: op.To, Severity: SeverityBlocking,
					Message: fmt.Sprintf("operations %d and %d both rename to %s", prev, i, op.To),
				})
			}
			destinations[dest] = i

			if dstInfo, err := os.Lstat(op.To); err == nil && !os.SameFile(srcInfo, dstInfo) {
				conflicts = append(conflicts, ConflictInfo{
					Index: i, Kind: KindDestinationExists, Path: op.To, Severity: SeverityBlocking,
					Message: fmt.Sprintf("%s already exists", op.To),
				})
			}

		case domain.OpSetConfigValue:
			data, err := os.ReadFile(op.File)
			if err != nil {
				return nil, err
			}
			if value, ok := ini.Get(data, op.Section, op.Key); !ok || value != op.OldValue {
				conflicts = append(conflicts, ConflictInfo{
					Index: i, Kind: KindConfigDrift, Path: op.File, Severity: SeverityBlocking,
					Message: fmt.Sprintf("[%s] %s no longer holds %q", op.Section, op.Key, op.OldValue),
				})
			}

		case domain.OpRemoveConfigEntry:
			data, err := os.ReadFile(op.File)
			if err != nil {
				return nil, err
			}
			if _, err := ini.Remove(data, op.Section, op.Key, op.OldValue); err != nil {
				conflicts = append(conflicts, ConflictInfo{
					Index: i, Kind: KindConfigDrift, Path: op.File, Severity: SeverityBlocking,
					Message: fmt.Sprintf("[%s] %s no longer holds %q", op.Section, op.Key, op.OldValue),
				})
			}

		case domain.OpReplaceText:
			data, err := os.ReadFile(op.File)
			if err != nil {
				return nil, err
			}
			if n := naming.CountToken(data, op.NewToken); n > 0 {
				conflicts = append(conflicts, ConflictInfo{
					Index: i, Kind: KindTokenPresent, Path: op.File, Severity: SeverityWarning,
					Message: fmt.Sprintf("%s already contains %s %d time(s); renaming back will also rewrite them", op.File, op.NewToken, n),
				})
			}
		}
	}

	return conflicts, nil
}

// FromWarnings turns blocking detection warnings into conflicts. They carry
// index -1 because no single operation is at fault.
func FromWarnings(warnings []domain.Warning) []ConflictInfo {
	var out []ConflictInfo
	for _, w := range warnings {
		if !w.Blocking {
			continue
		}
		out = append(out, ConflictInfo{
			Index: -1, Kind: KindUnscanned, Path: w.Path, Severity: SeverityBlocking,
			Message: fmt.Sprintf("%s: %s", w.Path, w.Message),
		})
	}
	return out
}

// HasBlocking reports whether any conflict prevents applying the plan
func HasBlocking(conflicts []ConflictInfo) bool {
	for _, c := range conflicts {
		if c.Severity == SeverityBlocking {
			return true
		}
	}
	return false
}

// Blocking filters the blocking conflicts
func Blocking(conflicts []ConflictInfo) []ConflictInfo {
	var out []ConflictInfo
	for _, c := range conflicts {
		if c.Severity == SeverityBlocking {
			out = append(out, c)
		}
	}
	return out
}

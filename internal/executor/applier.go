package executor

import (
	"context"
	"fmt"
	"os"

	"github.com/freewebtopdf/uerename/internal/domain"
	"github.com/freewebtopdf/uerename/internal/fsutil"
	"github.com/freewebtopdf/uerename/internal/ini"
	"github.com/freewebtopdf/uerename/internal/naming"
)

// FileApplier performs operations directly on the local file system
type FileApplier struct{}

// NewFileApplier creates the default applier
func NewFileApplier() *FileApplier {
	return &FileApplier{}
}

// Apply performs a single operation
func (a *FileApplier) Apply(ctx context.Context, op domain.Operation) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	switch op.Kind {
	case domain.OpSetConfigValue:
		return fsutil.RewriteFile(op.File, func(content []byte) ([]byte, error) {
			return ini.Set(content, op.Section, op.Key, op.OldValue, op.NewValue)
		})

	case domain.OpAppendConfigEntry:
		return fsutil.RewriteFile(op.File, func(content []byte) ([]byte, error) {
			return ini.Append(content, op.Section, op.Key, op.NewValue), nil
		})

	case domain.OpRemoveConfigEntry:
		return fsutil.RewriteFile(op.File, func(content []byte) ([]byte, error) {
			return ini.Remove(content, op.Section, op.Key, op.OldValue)
		})

	case domain.OpReplaceText:
		return fsutil.RewriteFile(op.File, func(content []byte) ([]byte, error) {
			out, n := naming.ReplaceToken(content, op.OldToken, op.NewToken)
			if n == 0 {
				return nil, &ErrTokenNotFound{File: op.File, Token: op.OldToken}
			}
			return out, nil
		})

	case domain.OpRenameFile, domain.OpRenameDirectory:
		return rename(op)
	}

	return fmt.Errorf("unknown operation kind %q", op.Kind)
}

// ErrTokenNotFound reports a replace_text operation whose file no longer holds the token
type ErrTokenNotFound struct {
	File  string
	Token string
}

func (e *ErrTokenNotFound) Error() string {
	return fmt.Sprintf("%s no longer contains %s", e.File, e.Token)
}

func rename(op domain.Operation) error {
	src, err := os.Lstat(op.From)
	if err != nil {
		return err
	}
	wantDir := op.Kind == domain.OpRenameDirectory
	if src.IsDir() != wantDir {
		return fmt.Errorf("%s: expected directory=%t", op.From, wantDir)
	}

	// A destination that resolves to the source is a case-only rename.
	if dst, err := os.Lstat(op.To); err == nil && !os.SameFile(src, dst) {
		return fmt.Errorf("%s already exists", op.To)
	}

	return os.Rename(op.From, op.To)
}

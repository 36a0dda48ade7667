package detect

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/freewebtopdf/uerename/internal/naming"
)

// ScanConfig holds configuration for tree scanning
type ScanConfig struct {
	SkipDirs       []string // Directory names never descended into
	TextExtensions []string // Files searched for name tokens
	MaxFileSize    int64    // Larger text files are not searched and reported as skipped
}

// DefaultScanConfig skips build output and binary content
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		SkipDirs:       []string{".git", ".vs", ".idea", "Binaries", "Intermediate", "Saved", "DerivedDataCache", "Content"},
		TextExtensions: []string{".uproject", ".uplugin", ".cs", ".h", ".hpp", ".cpp", ".inl", ".ini"},
		MaxFileSize:    8 << 20,
	}
}

// ScanResult lists the slash-separated, root-relative files of interest
type ScanResult struct {
	TargetFiles []string
	BuildFiles  []string
	PluginFiles []string
	TextFiles   []string
	// Skipped are entries the scan could not look inside
	Skipped []SkippedPath
}

// SkippedPath is a file or directory whose name tokens are unknown
type SkippedPath struct {
	Path   string
	Reason string
}

// Scanner walks a project tree classifying declaration files
type Scanner struct {
	config ScanConfig
	skip   map[string]bool
}

// NewScanner creates a new Scanner with the given configuration
func NewScanner(config ScanConfig) *Scanner {
	skip := make(map[string]bool, len(config.SkipDirs))
	for _, d := range config.SkipDirs {
		skip[d] = true
	}
	return &Scanner{config: config, skip: skip}
}

// Scan walks fsys in lexical order so results are deterministic
func (s *Scanner) Scan(ctx context.Context, fsys fs.FS) (*ScanResult, error) {
	result := &ScanResult{}

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			if p == "." {
				return err
			}
			result.Skipped = append(result.Skipped, SkippedPath{Path: p, Reason: err.Error()})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if p != "." && s.skip[d.Name()] {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		base := d.Name()
		topDir := strings.SplitN(p, "/", 2)[0]

		if _, ok := naming.TargetNameFromFile(base); ok && path.Dir(p) == naming.SourceDir {
			result.TargetFiles = append(result.TargetFiles, p)
		}
		if _, ok := naming.ModuleNameFromBuildFile(base); ok && (topDir == naming.SourceDir || topDir == naming.PluginsDir) {
			result.BuildFiles = append(result.BuildFiles, p)
		}
		if _, ok := naming.PluginNameFromDescriptor(base); ok && topDir == naming.PluginsDir {
			result.PluginFiles = append(result.PluginFiles, p)
		}
		if s.isText(base) {
			info, err := d.Info()
			switch {
			case err != nil:
				result.Skipped = append(result.Skipped, SkippedPath{Path: p, Reason: err.Error()})
			case info.Size() > s.config.MaxFileSize:
				result.Skipped = append(result.Skipped, SkippedPath{
					Path:   p,
					Reason: fmt.Sprintf("%d bytes exceeds the %d byte scan limit", info.Size(), s.config.MaxFileSize),
				})
			default:
				result.TextFiles = append(result.TextFiles, p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Scanner) isText(base string) bool {
	lower := strings.ToLower(base)
	for _, ext := range s.config.TextExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

package domain

import (
	"fmt"
	"path/filepath"
)

// OperationKind tags the Operation variant
type OperationKind string

const (
	OpSetConfigValue  OperationKind = "set_config_value"
	OpRenameFile      OperationKind = "rename_file"
	OpRenameDirectory OperationKind = "rename_directory"
	OpReplaceText     OperationKind = "replace_text"

	OpAppendConfigEntry OperationKind = "append_config_entry"
	OpRemoveConfigEntry OperationKind = "remove_config_entry"
)

// Operation is one atomic, reversible step of a rename plan.
// Only the fields belonging to Kind are populated.
type Operation struct {
	Kind OperationKind `json:"kind" yaml:"kind"`

	// set_config_value, append_config_entry, remove_config_entry, replace_text
	File string `json:"file,omitempty" yaml:"file,omitempty"`

	// set_config_value, append_config_entry (NewValue), remove_config_entry (OldValue)
	Section  string `json:"section,omitempty" yaml:"section,omitempty"`
	Key      string `json:"key,omitempty" yaml:"key,omitempty"`
	OldValue string `json:"old_value,omitempty" yaml:"old_value,omitempty"`
	NewValue string `json:"new_value,omitempty" yaml:"new_value,omitempty"`

	// rename_file, rename_directory
	From string `json:"from,omitempty" yaml:"from,omitempty"`
	To   string `json:"to,omitempty" yaml:"to,omitempty"`

	// replace_text
	OldToken string `json:"old_token,omitempty" yaml:"old_token,omitempty"`
	NewToken string `json:"new_token,omitempty" yaml:"new_token,omitempty"`
}

func NewSetConfigValue(file, section, key, oldValue, newValue string) Operation {
	return Operation{Kind: OpSetConfigValue, File: file, Section: section, Key: key, OldValue: oldValue, NewValue: newValue}
}

// NewAppendConfigEntry adds a key = value line to section, creating the section if needed
func NewAppendConfigEntry(file, section, key, value string) Operation {
	return Operation{Kind: OpAppendConfigEntry, File: file, Section: section, Key: key, NewValue: value}
}

// NewRemoveConfigEntry drops the last key = value line of section
func NewRemoveConfigEntry(file, section, key, value string) Operation {
	return Operation{Kind: OpRemoveConfigEntry, File: file, Section: section, Key: key, OldValue: value}
}

func NewRenameFile(from, to string) Operation {
	return Operation{Kind: OpRenameFile, From: from, To: to}
}

func NewRenameDirectory(from, to string) Operation {
	return Operation{Kind: OpRenameDirectory, From: from, To: to}
}

func NewReplaceText(file, oldToken, newToken string) Operation {
	return Operation{Kind: OpReplaceText, File: file, OldToken: oldToken, NewToken: newToken}
}

// IsRename reports whether the operation moves a path
func (o Operation) IsRename() bool {
	return o.Kind == OpRenameFile || o.Kind == OpRenameDirectory
}

// Target returns the path the operation mutates, as it exists before the operation runs
func (o Operation) Target() string {
	if o.IsRename() {
		return o.From
	}
	return o.File
}

// Result returns the path that holds the mutated content after the operation runs
func (o Operation) Result() string {
	if o.IsRename() {
		return o.To
	}
	return o.File
}

// Inverse returns the operation that undoes o
func (o Operation) Inverse() Operation {
	switch o.Kind {
	case OpSetConfigValue:
		return NewSetConfigValue(o.File, o.Section, o.Key, o.NewValue, o.OldValue)
	case OpRenameFile:
		return NewRenameFile(o.To, o.From)
	case OpRenameDirectory:
		return NewRenameDirectory(o.To, o.From)
	case OpReplaceText:
		return NewReplaceText(o.File, o.NewToken, o.OldToken)
	case OpAppendConfigEntry:
		return NewRemoveConfigEntry(o.File, o.Section, o.Key, o.NewValue)
	case OpRemoveConfigEntry:
		return NewAppendConfigEntry(o.File, o.Section, o.Key, o.OldValue)
	}
	return o
}

// Validate checks the structural validity of the operation
func (o Operation) Validate() error {
	switch o.Kind {
	case OpSetConfigValue:
		if !filepath.IsAbs(o.File) {
			return fmt.Errorf("config file path must be absolute: %q", o.File)
		}
		if o.Key == "" {
			return fmt.Errorf("config key is required")
		}
		if o.OldValue == o.NewValue {
			return fmt.Errorf("config value for %s is unchanged", o.Key)
		}
	case OpAppendConfigEntry, OpRemoveConfigEntry:
		if !filepath.IsAbs(o.File) {
			return fmt.Errorf("config file path must be absolute: %q", o.File)
		}
		if o.Section == "" || o.Key == "" {
			return fmt.Errorf("config section and key are required")
		}
		if o.OldValue+o.NewValue == "" {
			return fmt.Errorf("config entry %s has no value", o.Key)
		}
	case OpRenameFile, OpRenameDirectory:
		if !filepath.IsAbs(o.From) || !filepath.IsAbs(o.To) {
			return fmt.Errorf("rename paths must be absolute: %q -> %q", o.From, o.To)
		}
		if filepath.Clean(o.From) == filepath.Clean(o.To) {
			return fmt.Errorf("rename source and destination are identical: %q", o.From)
		}
	case OpReplaceText:
		if !filepath.IsAbs(o.File) {
			return fmt.Errorf("text file path must be absolute: %q", o.File)
		}
		if o.OldToken == "" || o.NewToken == "" {
			return fmt.Errorf("replace tokens must not be empty")
		}
		if o.OldToken == o.NewToken {
			return fmt.Errorf("replace tokens are identical: %q", o.OldToken)
		}
	default:
		return fmt.Errorf("unknown operation kind %q", o.Kind)
	}
	return nil
}

func (o Operation) String() string {
	switch o.Kind {
	case OpSetConfigValue:
		return fmt.Sprintf("set [%s] %s = %s (was %s) in %s", o.Section, o.Key, o.NewValue, o.OldValue, o.File)
	case OpAppendConfigEntry:
		return fmt.Sprintf("append [%s] %s = %s to %s", o.Section, o.Key, o.NewValue, o.File)
	case OpRemoveConfigEntry:
		return fmt.Sprintf("remove [%s] %s = %s from %s", o.Section, o.Key, o.OldValue, o.File)
	case OpRenameFile:
		return fmt.Sprintf("rename file %s -> %s", o.From, filepath.Base(o.To))
	case OpRenameDirectory:
		return fmt.Sprintf("rename directory %s -> %s", o.From, filepath.Base(o.To))
	case OpReplaceText:
		return fmt.Sprintf("replace %s -> %s in %s", o.OldToken, o.NewToken, o.File)
	}
	return string(o.Kind)
}

// IsAncestorOrSelf reports whether ancestor is path itself or one of its parent directories
func IsAncestorOrSelf(ancestor, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(ancestor), filepath.Clean(path))
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !filepath.IsAbs(rel) && !hasDotDotPrefix(rel)
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 3 && rel[:2] == ".." && rel[2] == filepath.Separator
}

// ValidateOrdering checks that no operation addresses a path that an earlier
// rename has already moved away, and that a root rename, if any, comes last.
func ValidateOrdering(ops []Operation, root string) error {
	for i, op := range ops {
		if err := op.Validate(); err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
		if op.Kind == OpRenameDirectory && filepath.Clean(op.From) == filepath.Clean(root) && i != len(ops)-1 {
			return fmt.Errorf("operation %d renames the project root but is not last", i)
		}
		for j := 0; j < i; j++ {
			prev := ops[j]
			if !prev.IsRename() {
				continue
			}
			if IsAncestorOrSelf(prev.From, op.Target()) {
				return fmt.Errorf("operation %d addresses %s after operation %d renamed %s", i, op.Target(), j, prev.From)
			}
		}
	}
	return nil
}

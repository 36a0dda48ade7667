package naming

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// LoadRules reads a rules file and overlays it onto the defaults.
// An empty path returns the defaults. The format follows the extension.
func LoadRules(path string) (Rules, error) {
	defaults := DefaultRules()
	if path == "" {
		return defaults, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("failed to read naming rules %s: %w", path, err)
	}

	rules, err := ParseRules(data, filepath.Ext(path))
	if err != nil {
		return Rules{}, fmt.Errorf("failed to parse naming rules %s: %w", path, err)
	}

	merged := defaults.Merge(rules)
	if err := merged.Validate(); err != nil {
		return Rules{}, fmt.Errorf("invalid naming rules %s: %w", path, err)
	}
	return merged, nil
}

// ParseRules decodes a rules document; ext selects YAML (.yaml/.yml) or TOML (.toml)
func ParseRules(data []byte, ext string) (Rules, error) {
	var rules Rules
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &rules); err != nil {
			return Rules{}, err
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &rules); err != nil {
			return Rules{}, err
		}
	default:
		return Rules{}, fmt.Errorf("unsupported rules file extension: %q", ext)
	}
	return rules, nil
}

// Validate checks that every entry is usable
func (r Rules) Validate() error {
	for i, k := range r.ConfigKeys {
		if k.File == "" || k.Key == "" {
			return fmt.Errorf("config_keys[%d]: file and key are required", i)
		}
		if filepath.IsAbs(k.File) || strings.Contains(k.File, "..") {
			return fmt.Errorf("config_keys[%d]: file must be relative to the project root", i)
		}
	}
	for i, rd := range r.Redirects {
		switch rd.Subject {
		case RedirectProject, RedirectModule, RedirectPlugin:
		default:
			return fmt.Errorf("redirects[%d]: unknown subject %q", i, rd.Subject)
		}
		if rd.File == "" || rd.Section == "" || rd.Key == "" {
			return fmt.Errorf("redirects[%d]: file, section and key are required", i)
		}
		if filepath.IsAbs(rd.File) || strings.Contains(rd.File, "..") {
			return fmt.Errorf("redirects[%d]: file must be relative to the project root", i)
		}
		if !strings.Contains(rd.Value, "{old}") || !strings.Contains(rd.Value, "{new}") {
			return fmt.Errorf("redirects[%d]: value must reference {old} and {new}", i)
		}
	}
	for _, group := range [][]string{r.TargetTokens, r.ModuleTokens, r.PluginTokens} {
		for _, tmpl := range group {
			if !strings.Contains(tmpl, "{name}") && !strings.Contains(tmpl, "{NAME}") {
				return fmt.Errorf("token template %q must reference {name} or {NAME}", tmpl)
			}
			if !IsToken(Expand(tmpl, "X")) {
				return fmt.Errorf("token template %q must expand to a single identifier", tmpl)
			}
		}
	}
	return nil
}

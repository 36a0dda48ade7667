// Package naming holds the file and identifier conventions that tie targets,
// modules and plugins to a project name. Everything here is pure: it maps
// names to expected file names and tokens without touching a file system.
package naming

import (
	"strings"

	"github.com/freewebtopdf/uerename/internal/domain"
)

const (
	DescriptorExt       = ".uproject"
	PluginDescriptorExt = ".uplugin"
	TargetFileSuffix    = ".Target.cs"
	BuildFileSuffix     = ".Build.cs"

	SourceDir  = "Source"
	ConfigDir  = "Config"
	PluginsDir = "Plugins"
)

// ConfigKey locates an ini value that holds the project name
type ConfigKey struct {
	File    string `yaml:"file" toml:"file"` // slash-separated, relative to the project root
	Section string `yaml:"section" toml:"section"`
	Key     string `yaml:"key" toml:"key"`
}

// Redirect subjects
const (
	RedirectProject = "project"
	RedirectModule  = "module"
	RedirectPlugin  = "plugin"
)

// Redirect is an ini entry written on rename so content saved under the old
// name still resolves. Value is a template over {old} and {new}.
type Redirect struct {
	Subject string `yaml:"subject" toml:"subject"`
	File    string `yaml:"file" toml:"file"`
	Section string `yaml:"section" toml:"section"`
	Key     string `yaml:"key" toml:"key"`
	Value   string `yaml:"value" toml:"value"`
}

// Render expands the value template for a rename from oldName to newName
func (r Redirect) Render(oldName, newName string) string {
	return strings.NewReplacer("{old}", oldName, "{new}", newName).Replace(r.Value)
}

// Rules is the declarative naming table
type Rules struct {
	ConfigKeys   []ConfigKey `yaml:"config_keys" toml:"config_keys"`
	TargetTokens []string    `yaml:"target_tokens" toml:"target_tokens"`
	ModuleTokens []string    `yaml:"module_tokens" toml:"module_tokens"`
	PluginTokens []string    `yaml:"plugin_tokens" toml:"plugin_tokens"`
	Redirects    []Redirect  `yaml:"redirects" toml:"redirects"`
}

// RedirectsFor returns the redirect entries written when a subject is renamed
func (r Rules) RedirectsFor(subject string) []Redirect {
	var out []Redirect
	for _, rd := range r.Redirects {
		if rd.Subject == subject {
			out = append(out, rd)
		}
	}
	return out
}

// DefaultRules returns the built-in table
func DefaultRules() Rules {
	return Rules{
		ConfigKeys: []ConfigKey{
			{File: "Config/DefaultEngine.ini", Section: "URL", Key: "GameName"},
			{File: "Config/DefaultGame.ini", Section: "/Script/EngineSettings.GeneralProjectSettings", Key: "ProjectName"},
		},
		TargetTokens: []string{"{name}Target"},
		ModuleTokens: []string{"{name}", "{NAME}_API"},
		PluginTokens: []string{"{name}"},
		Redirects: []Redirect{
			{
				Subject: RedirectProject,
				File:    "Config/DefaultEngine.ini",
				Section: "/Script/Engine.Engine",
				Key:     "+ActiveGameNameRedirects",
				Value:   `(OldGameName="/Script/{old}", NewGameName="/Script/{new}")`,
			},
			{
				Subject: RedirectModule,
				File:    "Config/DefaultEngine.ini",
				Section: "CoreRedirects",
				Key:     "+PackageRedirects",
				Value:   `(OldName="/Script/{old}",NewName="/Script/{new}")`,
			},
			{
				Subject: RedirectPlugin,
				File:    "Config/DefaultEngine.ini",
				Section: "CoreRedirects",
				Key:     "+PackageRedirects",
				Value:   `(OldName="/{old}/",NewName="/{new}/",MatchSubstring=true)`,
			},
		},
	}
}

// Merge overlays non-empty sections of other onto r
func (r Rules) Merge(other Rules) Rules {
	if len(other.ConfigKeys) > 0 {
		r.ConfigKeys = other.ConfigKeys
	}
	if len(other.TargetTokens) > 0 {
		r.TargetTokens = other.TargetTokens
	}
	if len(other.ModuleTokens) > 0 {
		r.ModuleTokens = other.ModuleTokens
	}
	if len(other.PluginTokens) > 0 {
		r.PluginTokens = other.PluginTokens
	}
	if len(other.Redirects) > 0 {
		r.Redirects = other.Redirects
	}
	return r
}

// Expand renders a token template for name
func Expand(template, name string) string {
	return strings.NewReplacer("{name}", name, "{NAME}", strings.ToUpper(name)).Replace(template)
}

// TokensFor renders every template for name, dropping duplicates
func TokensFor(templates []string, name string) []string {
	seen := make(map[string]bool, len(templates))
	tokens := make([]string, 0, len(templates))
	for _, tmpl := range templates {
		tok := Expand(tmpl, name)
		if tok == "" || seen[tok] {
			continue
		}
		seen[tok] = true
		tokens = append(tokens, tok)
	}
	return tokens
}

// TokenPairs renders each template for both names, pairing old and new tokens
func TokenPairs(templates []string, oldName, newName string) [][2]string {
	pairs := make([][2]string, 0, len(templates))
	seen := make(map[string]bool, len(templates))
	for _, tmpl := range templates {
		oldTok, newTok := Expand(tmpl, oldName), Expand(tmpl, newName)
		if oldTok == newTok || seen[oldTok] {
			continue
		}
		seen[oldTok] = true
		pairs = append(pairs, [2]string{oldTok, newTok})
	}
	return pairs
}

func DescriptorFile(name string) string       { return name + DescriptorExt }
func PluginDescriptorFile(name string) string { return name + PluginDescriptorExt }
func TargetFile(name string) string           { return name + TargetFileSuffix }
func TargetClass(name string) string          { return name + "Target" }
func BuildFile(name string) string            { return name + BuildFileSuffix }
func APIMacro(name string) string             { return strings.ToUpper(name) + "_API" }

// TargetNameFromFile extracts Name from "Name.Target.cs"
func TargetNameFromFile(base string) (string, bool) {
	return trimSuffixStrict(base, TargetFileSuffix)
}

// ModuleNameFromBuildFile extracts Name from "Name.Build.cs"
func ModuleNameFromBuildFile(base string) (string, bool) {
	return trimSuffixStrict(base, BuildFileSuffix)
}

// ProjectNameFromDescriptor extracts Name from "Name.uproject"
func ProjectNameFromDescriptor(base string) (string, bool) {
	return trimSuffixStrict(base, DescriptorExt)
}

// PluginNameFromDescriptor extracts Name from "Name.uplugin"
func PluginNameFromDescriptor(base string) (string, bool) {
	return trimSuffixStrict(base, PluginDescriptorExt)
}

func trimSuffixStrict(base, suffix string) (string, bool) {
	if !strings.HasSuffix(base, suffix) {
		return "", false
	}
	name := strings.TrimSuffix(base, suffix)
	return name, name != ""
}

// IsDerived reports whether name follows from project by the prefix convention
func IsDerived(project, name string) bool {
	return project != "" && strings.HasPrefix(name, project)
}

// Derive maps name onto newProject by swapping the oldProject prefix
func Derive(oldProject, newProject, name string) (string, bool) {
	if !IsDerived(oldProject, name) {
		return "", false
	}
	return newProject + strings.TrimPrefix(name, oldProject), true
}

// TargetKind maps a TargetType enum value to a declaration kind
func TargetKind(targetType, name string) domain.DeclarationKind {
	switch strings.ToLower(targetType) {
	case "editor":
		return domain.KindEditor
	case "client":
		return domain.KindClient
	case "server":
		return domain.KindServer
	case "program":
		return domain.KindProgram
	case "game":
		return domain.KindGame
	}
	if strings.HasSuffix(name, "Editor") {
		return domain.KindEditor
	}
	return domain.KindGame
}

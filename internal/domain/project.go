package domain

// DeclarationKind classifies a target or module declaration
type DeclarationKind string

const (
	KindGame    DeclarationKind = "game"
	KindEditor  DeclarationKind = "editor"
	KindClient  DeclarationKind = "client"
	KindServer  DeclarationKind = "server"
	KindProgram DeclarationKind = "program"
	KindModule  DeclarationKind = "module"
)

// TargetInfo describes one Source/<Name>.Target.cs declaration
type TargetInfo struct {
	Name                string          `json:"name" yaml:"name"`
	DeclarationFilePath string          `json:"declaration_file_path" yaml:"declaration_file_path"`
	Kind                DeclarationKind `json:"kind" yaml:"kind"`
	ClassName           string          `json:"class_name,omitempty" yaml:"class_name,omitempty"`
}

// ModuleInfo describes one <Module>/<Module>.Build.cs declaration
type ModuleInfo struct {
	Name                string          `json:"name" yaml:"name"`
	DeclarationFilePath string          `json:"declaration_file_path" yaml:"declaration_file_path"`
	Kind                DeclarationKind `json:"kind" yaml:"kind"`
	// Directory holding the Build.cs file
	Directory string `json:"directory" yaml:"directory"`
	// Plugin is set when the module lives inside a plugin
	Plugin string `json:"plugin,omitempty" yaml:"plugin,omitempty"`
	// SourceFiles are the module's primary <Module>.h and <Module>.cpp files
	SourceFiles []string `json:"source_files,omitempty" yaml:"source_files,omitempty"`
}

// PluginInfo describes one Plugins/**/<Name>.uplugin descriptor
type PluginInfo struct {
	Name           string `json:"name" yaml:"name"`
	DescriptorPath string `json:"descriptor_path" yaml:"descriptor_path"`
	Directory      string `json:"directory" yaml:"directory"`
}

// ConfigValue is a (file, section, key) tuple read from an ini file
type ConfigValue struct {
	File    string `json:"file" yaml:"file"`
	Section string `json:"section" yaml:"section"`
	Key     string `json:"key" yaml:"key"`
	Value   string `json:"value" yaml:"value"`
}

// TokenReference records how often a whole token occurs in a text file
type TokenReference struct {
	File  string `json:"file" yaml:"file"`
	Token string `json:"token" yaml:"token"`
	Count int    `json:"count" yaml:"count"`
}

// Warning is a detection finding. A Blocking warning marks content the
// detector could not read, so no rename may be applied from this metadata.
type Warning struct {
	Path     string `json:"path,omitempty" yaml:"path,omitempty"`
	Message  string `json:"message" yaml:"message"`
	Blocking bool   `json:"blocking,omitempty" yaml:"blocking,omitempty"`
}

// ProjectMetadata is everything the planner needs to know about a project tree.
// It is built once per session and never modified afterwards.
type ProjectMetadata struct {
	RootPath           string           `json:"root_path" yaml:"root_path"`
	ProjectName        string           `json:"project_name" yaml:"project_name"`
	DescriptorFilePath string           `json:"descriptor_file_path" yaml:"descriptor_file_path"`
	Targets            []TargetInfo     `json:"targets" yaml:"targets"`
	Modules            []ModuleInfo     `json:"modules" yaml:"modules"`
	Plugins            []PluginInfo     `json:"plugins,omitempty" yaml:"plugins,omitempty"`
	ConfigValues       []ConfigValue    `json:"config_values,omitempty" yaml:"config_values,omitempty"`
	// ConfigFiles lists the rule-named ini files present in the project
	ConfigFiles        []string         `json:"config_files,omitempty" yaml:"config_files,omitempty"`
	// Redirects are the redirect entries already written to those files
	Redirects          []ConfigValue    `json:"redirects,omitempty" yaml:"redirects,omitempty"`
	References         []TokenReference `json:"references,omitempty" yaml:"references,omitempty"`
	Warnings           []Warning        `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// FindTarget returns the target with the given name
func (m *ProjectMetadata) FindTarget(name string) (TargetInfo, bool) {
	for _, t := range m.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return TargetInfo{}, false
}

// FindModule returns the module with the given name
func (m *ProjectMetadata) FindModule(name string) (ModuleInfo, bool) {
	for _, mod := range m.Modules {
		if mod.Name == name {
			return mod, true
		}
	}
	return ModuleInfo{}, false
}

// FindPlugin returns the plugin with the given name
func (m *ProjectMetadata) FindPlugin(name string) (PluginInfo, bool) {
	for _, p := range m.Plugins {
		if p.Name == name {
			return p, true
		}
	}
	return PluginInfo{}, false
}

// HasConfigFile reports whether the ini file at path exists in the project
func (m *ProjectMetadata) HasConfigFile(path string) bool {
	for _, f := range m.ConfigFiles {
		if f == path {
			return true
		}
	}
	return false
}

// HasRedirect reports whether an identical redirect entry is already present
func (m *ProjectMetadata) HasRedirect(rd ConfigValue) bool {
	for _, existing := range m.Redirects {
		if existing == rd {
			return true
		}
	}
	return false
}

// NameInUse reports whether a target, module or plugin already carries name
func (m *ProjectMetadata) NameInUse(name string) bool {
	if _, ok := m.FindTarget(name); ok {
		return true
	}
	if _, ok := m.FindModule(name); ok {
		return true
	}
	_, ok := m.FindPlugin(name)
	return ok
}

// Clone returns a deep copy of the metadata
func (m *ProjectMetadata) Clone() *ProjectMetadata {
	if m == nil {
		return nil
	}
	c := *m
	c.Targets = cloneSlice(m.Targets)
	c.Modules = cloneSlice(m.Modules)
	for i := range c.Modules {
		c.Modules[i].SourceFiles = cloneSlice(c.Modules[i].SourceFiles)
	}
	c.Plugins = cloneSlice(m.Plugins)
	c.ConfigValues = cloneSlice(m.ConfigValues)
	c.ConfigFiles = cloneSlice(m.ConfigFiles)
	c.Redirects = cloneSlice(m.Redirects)
	c.References = cloneSlice(m.References)
	c.Warnings = cloneSlice(m.Warnings)
	return &c
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}

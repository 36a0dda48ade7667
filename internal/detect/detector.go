// Package detect reads an Unreal-style project tree and extracts the
// metadata the planner works from. Detection never writes to the tree.
package detect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/freewebtopdf/uerename/internal/domain"
	"github.com/freewebtopdf/uerename/internal/ini"
	"github.com/freewebtopdf/uerename/internal/naming"

	"github.com/rs/zerolog/log"
)

var (
	targetClassPattern = regexp.MustCompile(`class\s+([A-Za-z_][A-Za-z0-9_]*)\s*:\s*TargetRules\b`)
	targetTypePattern  = regexp.MustCompile(`Type\s*=\s*TargetType\.([A-Za-z]+)`)
)

// descriptorFile is the subset of a .uproject document the detector reads
type descriptorFile struct {
	FileVersion       int    `json:"FileVersion"`
	EngineAssociation string `json:"EngineAssociation"`
	Name              string `json:"Name"`
	Modules           []struct {
		Name string `json:"Name"`
		Type string `json:"Type"`
	} `json:"Modules"`
}

// ProjectDetector implements domain.Detector
type ProjectDetector struct {
	rules   naming.Rules
	scanner *Scanner
}

// NewProjectDetector creates a detector driven by the given naming rules
func NewProjectDetector(rules naming.Rules) *ProjectDetector {
	return &ProjectDetector{
		rules:   rules,
		scanner: NewScanner(DefaultScanConfig()),
	}
}

// Detect inspects the project rooted at root on the real file system
func (d *ProjectDetector) Detect(ctx context.Context, root string, opts domain.DetectOptions) (*domain.ProjectMetadata, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, domain.NewAppErrorWithCause(domain.ErrInvalidInput, "Invalid project root", 400, err,
			map[string]any{"root": root})
	}

	info, err := os.Stat(absRoot)
	if err != nil || !info.IsDir() {
		return nil, domain.NewAppErrorWithCause(domain.ErrNotFound, "Project root is not a directory", 404, err,
			map[string]any{"root": absRoot})
	}

	return d.DetectFS(ctx, os.DirFS(absRoot), absRoot, opts)
}

// DetectFS inspects fsys, reporting paths as if fsys were mounted at root
func (d *ProjectDetector) DetectFS(ctx context.Context, fsys fs.FS, root string, opts domain.DetectOptions) (*domain.ProjectMetadata, error) {
	descriptor, err := d.findDescriptor(fsys, root, opts.PreferredName)
	if err != nil {
		return nil, err
	}

	projectName, _ := naming.ProjectNameFromDescriptor(descriptor)
	doc, err := d.parseDescriptor(fsys, root, descriptor, projectName)
	if err != nil {
		return nil, err
	}

	meta := &domain.ProjectMetadata{
		RootPath:           root,
		ProjectName:        projectName,
		DescriptorFilePath: abs(root, descriptor),
		Targets:            []domain.TargetInfo{},
		Modules:            []domain.ModuleInfo{},
	}

	scan, err := d.scanner.Scan(ctx, fsys)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.NewAppErrorWithCause(domain.ErrTimeout, "Detection cancelled", 408, err,
				map[string]any{"root": root})
		}
		return nil, domain.NewAppErrorWithCause(domain.ErrMalformedMetadata, "Failed to scan project tree", 422, err,
			map[string]any{"root": root})
	}

	for _, sk := range scan.Skipped {
		meta.Warnings = append(meta.Warnings, domain.Warning{
			Path:     abs(root, sk.Path),
			Message:  "not scanned for name references: " + sk.Reason,
			Blocking: true,
		})
	}

	d.collectTargets(fsys, root, scan.TargetFiles, meta)
	d.collectPlugins(root, scan.PluginFiles, meta)
	d.collectModules(root, scan.BuildFiles, scan.TextFiles, doc, meta)
	d.collectConfigValues(fsys, root, meta)

	if err := d.collectReferences(ctx, fsys, root, scan.TextFiles, meta); err != nil {
		return nil, domain.NewAppErrorWithCause(domain.ErrTimeout, "Detection cancelled", 408, err,
			map[string]any{"root": root})
	}

	d.crossCheck(meta)

	for _, w := range meta.Warnings {
		log.Warn().Str("root", root).Str("path", w.Path).Msg(w.Message)
	}
	log.Debug().
		Str("root", root).
		Str("project", meta.ProjectName).
		Int("targets", len(meta.Targets)).
		Int("modules", len(meta.Modules)).
		Int("plugins", len(meta.Plugins)).
		Int("references", len(meta.References)).
		Msg("Project detected")

	return meta, nil
}

func (d *ProjectDetector) findDescriptor(fsys fs.FS, root, preferred string) (string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return "", domain.NewAppErrorWithCause(domain.ErrNoDescriptor, "Project root cannot be read", 404, err,
			map[string]any{"root": root})
	}

	var descriptors []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := naming.ProjectNameFromDescriptor(e.Name()); ok {
			descriptors = append(descriptors, e.Name())
		}
	}
	sort.Strings(descriptors)

	switch len(descriptors) {
	case 0:
		return "", domain.NewAppError(domain.ErrNoDescriptor, "No project descriptor found", 404,
			map[string]any{"root": root})
	case 1:
		return descriptors[0], nil
	}

	if preferred != "" {
		want := naming.DescriptorFile(preferred)
		for _, name := range descriptors {
			if name == want {
				return name, nil
			}
		}
	}
	return "", domain.NewAppError(domain.ErrAmbiguousDescriptor, "More than one project descriptor found", 409,
		map[string]any{"root": root, "descriptors": descriptors})
}

func (d *ProjectDetector) parseDescriptor(fsys fs.FS, root, descriptor, projectName string) (*descriptorFile, error) {
	data, err := fs.ReadFile(fsys, descriptor)
	if err != nil {
		return nil, domain.NewAppErrorWithCause(domain.ErrMalformedMetadata, "Failed to read project descriptor", 422, err,
			map[string]any{"path": abs(root, descriptor)})
	}

	if !domain.IsIdentifier(projectName) {
		return nil, domain.NewAppError(domain.ErrMalformedMetadata, "Project descriptor name is not a valid identifier", 422,
			map[string]any{"path": abs(root, descriptor), "name": projectName})
	}

	var doc descriptorFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, domain.NewAppErrorWithCause(domain.ErrMalformedMetadata, "Failed to parse project descriptor", 422, err,
			map[string]any{"path": abs(root, descriptor)})
	}

	if doc.Name != "" && doc.Name != projectName {
		return nil, domain.NewAppError(domain.ErrMalformedMetadata, "Descriptor name field does not match its file name", 422,
			map[string]any{"path": abs(root, descriptor), "file_name": projectName, "name_field": doc.Name})
	}
	return &doc, nil
}

func (d *ProjectDetector) collectTargets(fsys fs.FS, root string, files []string, meta *domain.ProjectMetadata) {
	for _, rel := range files {
		name, _ := naming.TargetNameFromFile(path.Base(rel))
		target := domain.TargetInfo{
			Name:                name,
			DeclarationFilePath: abs(root, rel),
		}

		data, err := fs.ReadFile(fsys, rel)
		if err != nil {
			meta.Warnings = append(meta.Warnings, domain.Warning{Path: target.DeclarationFilePath, Message: "target file cannot be read", Blocking: true})
			continue
		}

		targetType := ""
		if m := targetTypePattern.FindSubmatch(data); m != nil {
			targetType = string(m[1])
		}
		target.Kind = naming.TargetKind(targetType, name)

		if m := targetClassPattern.FindSubmatch(data); m != nil {
			target.ClassName = string(m[1])
			if target.ClassName != naming.TargetClass(name) {
				meta.Warnings = append(meta.Warnings, domain.Warning{
					Path:    target.DeclarationFilePath,
					Message: fmt.Sprintf("target class %s does not match file name (expected %s)", target.ClassName, naming.TargetClass(name)),
				})
			}
		} else {
			meta.Warnings = append(meta.Warnings, domain.Warning{Path: target.DeclarationFilePath, Message: "no TargetRules class declaration found"})
		}

		meta.Targets = append(meta.Targets, target)
	}
}

func (d *ProjectDetector) collectPlugins(root string, files []string, meta *domain.ProjectMetadata) {
	for _, rel := range files {
		name, _ := naming.PluginNameFromDescriptor(path.Base(rel))
		meta.Plugins = append(meta.Plugins, domain.PluginInfo{
			Name:           name,
			DescriptorPath: abs(root, rel),
			Directory:      abs(root, path.Dir(rel)),
		})
	}
}

func (d *ProjectDetector) collectModules(root string, files, textFiles []string, doc *descriptorFile, meta *domain.ProjectMetadata) {
	declared := make(map[string]string, len(doc.Modules))
	for _, m := range doc.Modules {
		declared[m.Name] = m.Type
	}

	found := make(map[string]bool)
	for _, rel := range files {
		name, _ := naming.ModuleNameFromBuildFile(path.Base(rel))
		dir := path.Dir(rel)
		if path.Base(dir) != name {
			meta.Warnings = append(meta.Warnings, domain.Warning{
				Path:    abs(root, rel),
				Message: fmt.Sprintf("module rules %s do not sit in a directory named %s", path.Base(rel), name),
			})
			continue
		}

		module := domain.ModuleInfo{
			Name:                name,
			DeclarationFilePath: abs(root, rel),
			Directory:           abs(root, dir),
			Kind:                domain.KindModule,
		}
		switch {
		case strings.HasPrefix(declared[name], "Editor"):
			module.Kind = domain.KindEditor
		case name == meta.ProjectName:
			module.Kind = domain.KindGame
		}
		for _, p := range meta.Plugins {
			if domain.IsAncestorOrSelf(p.Directory, module.Directory) {
				module.Plugin = p.Name
				break
			}
		}
		for _, src := range textFiles {
			if !strings.HasPrefix(src, dir+"/") {
				continue
			}
			ext := path.Ext(src)
			if (ext == ".h" || ext == ".cpp") && strings.TrimSuffix(path.Base(src), ext) == name {
				module.SourceFiles = append(module.SourceFiles, abs(root, src))
			}
		}

		found[name] = true
		meta.Modules = append(meta.Modules, module)
	}

	for _, m := range doc.Modules {
		if !found[m.Name] {
			meta.Warnings = append(meta.Warnings, domain.Warning{
				Path:    meta.DescriptorFilePath,
				Message: fmt.Sprintf("descriptor lists module %s but no %s was found", m.Name, naming.BuildFile(m.Name)),
			})
		}
	}
}

func (d *ProjectDetector) collectConfigValues(fsys fs.FS, root string, meta *domain.ProjectMetadata) {
	type cached struct {
		data []byte
		ok   bool
	}
	files := make(map[string]cached)
	read := func(name string) ([]byte, bool) {
		if c, seen := files[name]; seen {
			return c.data, c.ok
		}
		data, err := fs.ReadFile(fsys, name)
		files[name] = cached{data: data, ok: err == nil}
		if err != nil {
			return nil, false
		}
		meta.ConfigFiles = append(meta.ConfigFiles, abs(root, name))
		return data, true
	}

	for _, key := range d.rules.ConfigKeys {
		data, ok := read(key.File)
		if !ok {
			continue
		}
		value, ok := ini.Get(data, key.Section, key.Key)
		if !ok {
			continue
		}
		meta.ConfigValues = append(meta.ConfigValues, domain.ConfigValue{
			File:    abs(root, key.File),
			Section: key.Section,
			Key:     key.Key,
			Value:   value,
		})
	}

	seen := make(map[naming.Redirect]bool)
	for _, rd := range d.rules.Redirects {
		data, ok := read(rd.File)
		if !ok {
			continue
		}
		rd.Subject, rd.Value = "", ""
		if seen[rd] {
			continue
		}
		seen[rd] = true
		for _, e := range ini.Entries(data) {
			if !strings.EqualFold(e.Section, rd.Section) || !strings.EqualFold(e.Key, rd.Key) {
				continue
			}
			value := e.Value
			if e.Quoted {
				value = `"` + value + `"`
			}
			meta.Redirects = append(meta.Redirects, domain.ConfigValue{
				File:    abs(root, rd.File),
				Section: rd.Section,
				Key:     rd.Key,
				Value:   value,
			})
		}
	}
}

// interestingTokens collects every token a rename of any detected name could rewrite
func (d *ProjectDetector) interestingTokens(meta *domain.ProjectMetadata) map[string]bool {
	tokens := map[string]bool{meta.ProjectName: true}
	add := func(templates []string, name string) {
		for _, tok := range naming.TokensFor(templates, name) {
			tokens[tok] = true
		}
	}
	add(d.rules.TargetTokens, meta.ProjectName)
	add(d.rules.ModuleTokens, meta.ProjectName)
	for _, t := range meta.Targets {
		add(d.rules.TargetTokens, t.Name)
	}
	for _, m := range meta.Modules {
		add(d.rules.ModuleTokens, m.Name)
	}
	for _, p := range meta.Plugins {
		add(d.rules.PluginTokens, p.Name)
	}
	return tokens
}

func (d *ProjectDetector) collectReferences(ctx context.Context, fsys fs.FS, root string, files []string, meta *domain.ProjectMetadata) error {
	tokens := d.interestingTokens(meta)

	for _, rel := range files {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		data, err := fs.ReadFile(fsys, rel)
		if err != nil {
			meta.Warnings = append(meta.Warnings, domain.Warning{Path: abs(root, rel), Message: "file cannot be read", Blocking: true})
			continue
		}

		counts := naming.CountTokens(data, tokens)
		names := make([]string, 0, len(counts))
		for tok := range counts {
			names = append(names, tok)
		}
		sort.Strings(names)
		for _, tok := range names {
			meta.References = append(meta.References, domain.TokenReference{
				File:  abs(root, rel),
				Token: tok,
				Count: counts[tok],
			})
		}
	}
	return nil
}

// crossCheck warns about targets and modules that do not follow the project name
func (d *ProjectDetector) crossCheck(meta *domain.ProjectMetadata) {
	for _, t := range meta.Targets {
		if !naming.IsDerived(meta.ProjectName, t.Name) {
			meta.Warnings = append(meta.Warnings, domain.Warning{
				Path:    t.DeclarationFilePath,
				Message: fmt.Sprintf("target %s is not derived from project name %s", t.Name, meta.ProjectName),
			})
		}
	}
	for _, m := range meta.Modules {
		if m.Plugin == "" && !naming.IsDerived(meta.ProjectName, m.Name) {
			meta.Warnings = append(meta.Warnings, domain.Warning{
				Path:    m.DeclarationFilePath,
				Message: fmt.Sprintf("module %s is not derived from project name %s", m.Name, meta.ProjectName),
			})
		}
	}
}

func abs(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}

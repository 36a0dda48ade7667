// Package plan computes the ordered operation list for a rename. Planning is
// pure: it reads only the detected metadata and never the file system.
package plan

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/freewebtopdf/uerename/internal/domain"
	"github.com/freewebtopdf/uerename/internal/naming"
)

// Options configures the planner
type Options struct {
	Rules                naming.Rules
	RenameModules        bool // project renames also retarget project-derived modules
	RenameRoot           bool // rename the root directory when it carries the project name
	MaxProjectNameLength int
	MaxIdentifierLength  int
}

// DefaultOptions returns the standard planner configuration
func DefaultOptions() Options {
	return Options{
		Rules:                naming.DefaultRules(),
		RenameModules:        true,
		RenameRoot:           true,
		MaxProjectNameLength: domain.DefaultMaxProjectNameLength,
		MaxIdentifierLength:  domain.DefaultMaxIdentifierLength,
	}
}

// OperationPlanner implements domain.Planner
type OperationPlanner struct {
	opts      Options
	validator *domain.NameValidator
}

// NewOperationPlanner creates a planner
func NewOperationPlanner(opts Options) *OperationPlanner {
	return &OperationPlanner{
		opts:      opts,
		validator: domain.NewNameValidator(opts.MaxProjectNameLength, opts.MaxIdentifierLength),
	}
}

// Plan renames the whole project: config keys, project-derived targets and
// modules, the descriptor and finally the root directory.
func (p *OperationPlanner) Plan(meta *domain.ProjectMetadata, newName string) ([]domain.Operation, error) {
	if err := checkMetadata(meta); err != nil {
		return nil, err
	}
	oldName := meta.ProjectName
	if err := p.validator.ValidateNewName(domain.SessionProject, oldName, newName); err != nil {
		return nil, err
	}

	b := newBuilder(meta, p.opts.Rules)
	for _, cv := range meta.ConfigValues {
		if cv.Value == oldName {
			b.setConfig(cv, newName)
		}
	}
	b.redirect(naming.RedirectProject, oldName, newName)

	for _, t := range meta.Targets {
		if renamed, ok := naming.Derive(oldName, newName, t.Name); ok {
			b.renameTarget(t, renamed)
		}
	}
	if p.opts.RenameModules {
		for _, m := range meta.Modules {
			if m.Plugin != "" {
				continue
			}
			if renamed, ok := naming.Derive(oldName, newName, m.Name); ok {
				// The game module is covered by the project redirect.
				b.renameModule(m, renamed, m.Name != oldName)
			}
		}
	}

	descriptor := domain.NewRenameFile(meta.DescriptorFilePath,
		filepath.Join(filepath.Dir(meta.DescriptorFilePath), naming.DescriptorFile(newName)))
	b.descriptor = &descriptor

	if p.opts.RenameRoot && filepath.Base(meta.RootPath) == oldName {
		op := domain.NewRenameDirectory(meta.RootPath, filepath.Join(filepath.Dir(meta.RootPath), newName))
		b.root = &op
	}

	return b.build(oldName, newName)
}

// PlanTarget renames a single target: its class token and its declaration file
func (p *OperationPlanner) PlanTarget(meta *domain.ProjectMetadata, target, newName string) ([]domain.Operation, error) {
	if err := checkMetadata(meta); err != nil {
		return nil, err
	}
	t, ok := meta.FindTarget(target)
	if !ok {
		return nil, notFound("target", target)
	}
	if err := p.validateSubject(meta, domain.SessionTarget, target, newName); err != nil {
		return nil, err
	}

	b := newBuilder(meta, p.opts.Rules)
	b.renameTarget(t, newName)
	return b.build(target, newName)
}

// PlanModule renames a single module: its tokens everywhere, its rules file and its directory
func (p *OperationPlanner) PlanModule(meta *domain.ProjectMetadata, module, newName string) ([]domain.Operation, error) {
	if err := checkMetadata(meta); err != nil {
		return nil, err
	}
	m, ok := meta.FindModule(module)
	if !ok {
		return nil, notFound("module", module)
	}
	if err := p.validateSubject(meta, domain.SessionModule, module, newName); err != nil {
		return nil, err
	}

	b := newBuilder(meta, p.opts.Rules)
	b.renameModule(m, newName, true)
	return b.build(module, newName)
}

// PlanPlugin renames a single plugin: its references, descriptor and directory
func (p *OperationPlanner) PlanPlugin(meta *domain.ProjectMetadata, plugin, newName string) ([]domain.Operation, error) {
	if err := checkMetadata(meta); err != nil {
		return nil, err
	}
	pl, ok := meta.FindPlugin(plugin)
	if !ok {
		return nil, notFound("plugin", plugin)
	}
	if err := p.validateSubject(meta, domain.SessionPlugin, plugin, newName); err != nil {
		return nil, err
	}

	b := newBuilder(meta, p.opts.Rules)
	b.renamePlugin(pl, newName)
	return b.build(plugin, newName)
}

func (p *OperationPlanner) validateSubject(meta *domain.ProjectMetadata, kind domain.SessionKind, current, newName string) error {
	if err := p.validator.ValidateNewName(kind, current, newName); err != nil {
		return err
	}
	if meta.NameInUse(newName) {
		return domain.NewAppError(domain.ErrInvalidName, fmt.Sprintf("name %q is already used in this project", newName), 422,
			map[string]any{"kind": kind, "current": current, "new_name": newName, "reason": "in_use"})
	}
	return nil
}

func checkMetadata(meta *domain.ProjectMetadata) error {
	if meta == nil || meta.ProjectName == "" || meta.RootPath == "" || meta.DescriptorFilePath == "" {
		return domain.NewAppError(domain.ErrInvalidInput, "Project metadata is incomplete", 400, nil)
	}
	return nil
}

func notFound(kind, name string) error {
	return domain.NewAppError(domain.ErrNotFound, fmt.Sprintf("%s %q not found in project", kind, name), 404,
		map[string]any{"kind": kind, "name": name})
}

// builder accumulates operations by class and emits them in dependency order
type builder struct {
	meta  *domain.ProjectMetadata
	rules naming.Rules

	configOps []domain.Operation
	// tokens already rewritten by a config op, per file
	configClaims map[string]map[string]int

	redirectRemovals []domain.Operation
	redirectAppends  []domain.Operation
	// values of redirect lines removed before text replacement, per file
	removedRedirects map[string][]string

	replace map[string]map[string]string // file -> old token -> new token
	renamed map[string]string            // old subject name -> new subject name

	targetRenames []domain.Operation
	moduleRenames []domain.Operation
	pluginRenames []domain.Operation
	descriptor    *domain.Operation
	dirRenames    []domain.Operation
	root          *domain.Operation

	err error
}

func newBuilder(meta *domain.ProjectMetadata, rules naming.Rules) *builder {
	return &builder{
		meta:             meta,
		rules:            rules,
		configClaims:     make(map[string]map[string]int),
		removedRedirects: make(map[string][]string),
		replace:          make(map[string]map[string]string),
		renamed:          make(map[string]string),
	}
}

func (b *builder) setConfig(cv domain.ConfigValue, newValue string) {
	b.configOps = append(b.configOps, domain.NewSetConfigValue(cv.File, cv.Section, cv.Key, cv.Value, newValue))
	if naming.IsToken(cv.Value) {
		if b.configClaims[cv.File] == nil {
			b.configClaims[cv.File] = make(map[string]int)
		}
		b.configClaims[cv.File][cv.Value]++
	}
}

// redirect records the redirect entries for renaming a subject. A rename that
// reverses an earlier one removes that entry instead of stacking another.
// It must run before the subject's tokens are queued for replacement.
func (b *builder) redirect(subject, oldName, newName string) {
	for _, rd := range b.rules.RedirectsFor(subject) {
		file := filepath.Join(b.meta.RootPath, filepath.FromSlash(rd.File))
		if !b.meta.HasConfigFile(file) {
			continue
		}
		forward := domain.ConfigValue{File: file, Section: rd.Section, Key: rd.Key, Value: rd.Render(oldName, newName)}
		reverse := forward
		reverse.Value = rd.Render(newName, oldName)

		switch {
		case b.meta.HasRedirect(reverse):
			b.redirectRemovals = append(b.redirectRemovals,
				domain.NewRemoveConfigEntry(file, rd.Section, rd.Key, reverse.Value))
			b.removedRedirects[file] = append(b.removedRedirects[file], reverse.Value)
		case b.meta.HasRedirect(forward):
		default:
			b.redirectAppends = append(b.redirectAppends,
				domain.NewAppendConfigEntry(file, rd.Section, rd.Key, forward.Value))
		}
	}
}

// claimed counts occurrences of token in file that config and redirect ops already handle
func (b *builder) claimed(file, token string) int {
	n := b.configClaims[file][token]
	for _, value := range b.removedRedirects[file] {
		n += naming.CountToken([]byte(value), token)
	}
	return n
}

// replaceEverywhere rewrites every token pair in every file that holds the old token
func (b *builder) replaceEverywhere(pairs [][2]string) {
	for _, pair := range pairs {
		oldTok, newTok := pair[0], pair[1]
		for _, ref := range b.meta.References {
			if ref.Token != oldTok || ref.Count <= b.claimed(ref.File, oldTok) {
				continue
			}
			tokens := b.replace[ref.File]
			if tokens == nil {
				tokens = make(map[string]string)
				b.replace[ref.File] = tokens
			}
			if prev, ok := tokens[oldTok]; ok && prev != newTok {
				b.fail(domain.NewAppError(domain.ErrUnresolvable,
					fmt.Sprintf("token %s would be renamed to both %s and %s", oldTok, prev, newTok), 422,
					map[string]any{"file": ref.File, "token": oldTok}))
				return
			}
			tokens[oldTok] = newTok
		}
	}
}

func (b *builder) renameTarget(t domain.TargetInfo, newName string) {
	b.renamed[t.Name] = newName
	b.replaceEverywhere(naming.TokenPairs(b.rules.TargetTokens, t.Name, newName))
	b.targetRenames = append(b.targetRenames, domain.NewRenameFile(t.DeclarationFilePath,
		filepath.Join(filepath.Dir(t.DeclarationFilePath), naming.TargetFile(newName))))
}

func (b *builder) renameModule(m domain.ModuleInfo, newName string, withRedirect bool) {
	b.renamed[m.Name] = newName
	if withRedirect {
		b.redirect(naming.RedirectModule, m.Name, newName)
	}
	b.replaceEverywhere(naming.TokenPairs(b.rules.ModuleTokens, m.Name, newName))
	b.moduleRenames = append(b.moduleRenames, domain.NewRenameFile(m.DeclarationFilePath,
		filepath.Join(filepath.Dir(m.DeclarationFilePath), naming.BuildFile(newName))))
	for _, src := range m.SourceFiles {
		b.moduleRenames = append(b.moduleRenames, domain.NewRenameFile(src,
			filepath.Join(filepath.Dir(src), newName+filepath.Ext(src))))
	}
	if filepath.Base(m.Directory) == m.Name {
		b.dirRenames = append(b.dirRenames, domain.NewRenameDirectory(m.Directory,
			filepath.Join(filepath.Dir(m.Directory), newName)))
	}
}

func (b *builder) renamePlugin(p domain.PluginInfo, newName string) {
	b.renamed[p.Name] = newName
	b.redirect(naming.RedirectPlugin, p.Name, newName)
	b.replaceEverywhere(naming.TokenPairs(b.rules.PluginTokens, p.Name, newName))
	b.pluginRenames = append(b.pluginRenames, domain.NewRenameFile(p.DescriptorPath,
		filepath.Join(filepath.Dir(p.DescriptorPath), naming.PluginDescriptorFile(newName))))
	if filepath.Base(p.Directory) == p.Name {
		b.dirRenames = append(b.dirRenames, domain.NewRenameDirectory(p.Directory,
			filepath.Join(filepath.Dir(p.Directory), newName)))
	}
}

func (b *builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// checkCollisions rejects renames onto names that stay in use and token chains
// where one rewrite would feed another
func (b *builder) checkCollisions() error {
	for oldName, newName := range b.renamed {
		if _, alsoRenamed := b.renamed[newName]; alsoRenamed {
			return domain.NewAppError(domain.ErrUnresolvable,
				fmt.Sprintf("renaming %s to %s collides with another renamed name", oldName, newName), 422,
				map[string]any{"old": oldName, "new": newName})
		}
		if b.meta.NameInUse(newName) {
			return domain.NewAppError(domain.ErrInvalidName,
				fmt.Sprintf("name %q is already used in this project", newName), 422,
				map[string]any{"old": oldName, "new": newName, "reason": "in_use"})
		}
	}

	for file, tokens := range b.replace {
		for _, newTok := range tokens {
			if _, chained := tokens[newTok]; chained {
				return domain.NewAppError(domain.ErrUnresolvable,
					fmt.Sprintf("token %s is both renamed and a rename target", newTok), 422,
					map[string]any{"file": file, "token": newTok})
			}
		}
	}
	return nil
}

func (b *builder) build(oldName, newName string) ([]domain.Operation, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := b.checkCollisions(); err != nil {
		return nil, err
	}

	ops := make([]domain.Operation, 0, len(b.configOps)+len(b.replace)+8)
	ops = append(ops, b.configOps...)
	// Removals see the file before replacement, appends see it after.
	ops = append(ops, b.redirectRemovals...)

	files := make([]string, 0, len(b.replace))
	for f := range b.replace {
		files = append(files, f)
	}
	sort.Strings(files)
	for _, f := range files {
		olds := make([]string, 0, len(b.replace[f]))
		for tok := range b.replace[f] {
			olds = append(olds, tok)
		}
		sort.Strings(olds)
		for _, tok := range olds {
			ops = append(ops, domain.NewReplaceText(f, tok, b.replace[f][tok]))
		}
	}
	ops = append(ops, b.redirectAppends...)

	for _, group := range [][]domain.Operation{b.targetRenames, b.moduleRenames, b.pluginRenames} {
		sorted := append([]domain.Operation(nil), group...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].From < sorted[j].From })
		ops = append(ops, sorted...)
	}
	if b.descriptor != nil {
		ops = append(ops, *b.descriptor)
	}

	// Deepest directories first so no rename moves a directory another rename still addresses.
	dirs := append([]domain.Operation(nil), b.dirRenames...)
	sort.Slice(dirs, func(i, j int) bool {
		di, dj := depth(dirs[i].From), depth(dirs[j].From)
		if di != dj {
			return di > dj
		}
		return dirs[i].From < dirs[j].From
	})
	ops = append(ops, dirs...)

	if b.root != nil {
		ops = append(ops, *b.root)
	}

	if err := domain.ValidateOrdering(ops, b.meta.RootPath); err != nil {
		return nil, domain.NewAppErrorWithCause(domain.ErrInternal, "Planned operations are out of order", 500, err,
			map[string]any{"old_name": oldName, "new_name": newName})
	}
	return ops, nil
}

func depth(p string) int {
	n := 0
	for _, c := range filepath.Clean(p) {
		if c == filepath.Separator {
			n++
		}
	}
	return n
}

package renamer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freewebtopdf/uerename/internal/backup"
	"github.com/freewebtopdf/uerename/internal/cache"
	"github.com/freewebtopdf/uerename/internal/conflict"
	"github.com/freewebtopdf/uerename/internal/detect"
	"github.com/freewebtopdf/uerename/internal/domain"
	"github.com/freewebtopdf/uerename/internal/executor"
	"github.com/freewebtopdf/uerename/internal/history"
	"github.com/freewebtopdf/uerename/internal/naming"
	"github.com/freewebtopdf/uerename/internal/plan"
	"github.com/freewebtopdf/uerename/internal/projecttest"
)

type harness struct {
	svc     *Service
	history *history.MemoryStore
	cache   *cache.LRUCache
}

func newHarness(t testing.TB) harness {
	t.Helper()
	hist := history.NewMemoryStore()
	lru := cache.NewLRUCache(16, time.Minute)
	backups := backup.NewFileStore(filepath.Join(t.TempDir(), "backups"), backup.ModeCopy)

	svc := NewService(Dependencies{
		Detector: detect.NewProjectDetector(naming.DefaultRules()),
		Planner:  plan.NewOperationPlanner(plan.DefaultOptions()),
		Executor: executor.NewExecutor(backups, hist, executor.Config{}),
		History:  hist,
		Cache:    lru,
	})
	return harness{svc: svc, history: hist, cache: lru}
}

func writeProject(t testing.TB, tree projecttest.Tree, name string) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), name)
	tree.Write(t, root)
	return root
}

func TestService_DetectUsesCache(t *testing.T) {
	h := newHarness(t)
	root := writeProject(t, projecttest.Full("Lyra"), "Lyra")

	first, err := h.svc.Detect(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, "Lyra", first.ProjectName)

	second, err := h.svc.Detect(context.Background(), root+string(filepath.Separator))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	stats := h.cache.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, 1, stats.Size)
}

func TestService_DetectRequiresRoot(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Detect(context.Background(), "  ")
	assert.True(t, domain.HasCode(err, domain.ErrValidationFailed))

	_, err = h.svc.Detect(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.True(t, domain.IsNotFound(err))
}

func TestService_DetectPrefersLastName(t *testing.T) {
	h := newHarness(t)
	tree := projecttest.Minimal("Lyra")
	tree["Spyro.uproject"] = tree["Lyra.uproject"]
	root := writeProject(t, tree, "Game")

	_, err := h.svc.Detect(context.Background(), root)
	assert.True(t, domain.HasCode(err, domain.ErrAmbiguousDescriptor))

	require.NoError(t, h.history.Record(context.Background(), domain.SessionSummary{
		SessionID:   "earlier",
		Kind:        domain.SessionProject,
		ProjectRoot: root,
		FinalRoot:   root,
		ProjectName: "Lyra",
		OldName:     "Lyra",
		NewName:     "Spyro",
		Outcome:     domain.OutcomeApplied,
	}))

	meta, err := h.svc.Detect(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, "Spyro", meta.ProjectName)
}

func TestService_PlanKinds(t *testing.T) {
	h := newHarness(t)
	root := writeProject(t, projecttest.Full("Lyra"), "Lyra")
	ctx := context.Background()

	project, err := h.svc.Plan(ctx, Request{Root: root, NewName: "Spyro"})
	require.NoError(t, err)
	assert.Equal(t, domain.SessionProject, project.Kind)
	assert.Equal(t, "Lyra", project.OldName)
	assert.NotEmpty(t, project.Operations)
	assert.False(t, conflict.HasBlocking(project.Conflicts))

	target, err := h.svc.Plan(ctx, Request{Root: root, NewName: "LyraTools", Kind: domain.SessionTarget, Subject: "LyraEditor"})
	require.NoError(t, err)
	assert.Equal(t, "LyraEditor", target.OldName)
	assert.NotEmpty(t, target.Operations)

	_, err = h.svc.Plan(ctx, Request{Root: root, NewName: "Other", Kind: domain.SessionModule})
	assert.True(t, domain.HasCode(err, domain.ErrValidationFailed))

	_, err = h.svc.Plan(ctx, Request{Root: root, NewName: "Other", Kind: "game"})
	assert.True(t, domain.HasCode(err, domain.ErrValidationFailed))

	_, err = h.svc.Plan(ctx, Request{Root: root, NewName: "Other", Kind: domain.SessionPlugin, Subject: "Missing"})
	assert.True(t, domain.IsNotFound(err))

	_, err = h.svc.Plan(ctx, Request{Root: root, NewName: "1nvalid"})
	assert.True(t, domain.IsPlanError(err))
}

func TestService_RenameRecordsHistory(t *testing.T) {
	h := newHarness(t)
	root := writeProject(t, projecttest.Full("Lyra"), "Lyra")
	ctx := context.Background()

	_, err := h.svc.Detect(ctx, root)
	require.NoError(t, err)

	result, err := h.svc.Rename(ctx, root, "Spyro")
	require.NoError(t, err)

	newRoot := filepath.Join(filepath.Dir(root), "Spyro")
	assert.Equal(t, newRoot, result.Session.FinalRoot)
	assert.NoDirExists(t, root)
	assert.FileExists(t, filepath.Join(newRoot, "Spyro.uproject"))
	assert.FileExists(t, filepath.Join(newRoot, "Source", "Spyro", "Spyro.Build.cs"))
	assert.Equal(t, 0, h.cache.Stats().Size)

	entries, err := h.svc.History(ctx, newRoot)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Lyra", entries[0].OldName)
	assert.Equal(t, "Spyro", entries[0].NewName)
	assert.Equal(t, domain.OutcomeApplied, entries[0].Outcome)

	all, err := h.svc.History(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	meta, err := h.svc.Detect(ctx, newRoot)
	require.NoError(t, err)
	assert.Equal(t, "Spyro", meta.ProjectName)
	assert.False(t, h.svc.IsBusy(newRoot))
}

func TestService_BlockingConflictLeavesTreeUntouched(t *testing.T) {
	h := newHarness(t)
	root := writeProject(t, projecttest.Minimal("Lyra"), "Lyra")
	// the renamed root directory would land on an existing sibling
	require.NoError(t, os.Mkdir(filepath.Join(filepath.Dir(root), "Spyro"), 0755))
	before := projecttest.Snapshot(t, root)

	planned, err := h.svc.Plan(context.Background(), Request{Root: root, NewName: "Spyro"})
	require.NoError(t, err)
	assert.True(t, conflict.HasBlocking(planned.Conflicts))

	_, err = h.svc.Apply(context.Background(), Request{Root: root, NewName: "Spyro"})
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.ErrPlanConflict))
	assert.Equal(t, before, projecttest.Snapshot(t, root))

	entries, err := h.svc.History(context.Background(), root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestService_UnscannedFileBlocksRename(t *testing.T) {
	h := newHarness(t)
	tree := projecttest.Full("Lyra")
	tree["Source/Lyra/LyraBig.h"] = "class LYRA_API ULyraBig {};\n" + strings.Repeat("// padding\n", (9<<20)/11)
	root := writeProject(t, tree, "Lyra")
	before := projecttest.Snapshot(t, root)

	planned, err := h.svc.Plan(context.Background(), Request{Root: root, NewName: "Spyro"})
	require.NoError(t, err)
	blocking := conflict.Blocking(planned.Conflicts)
	require.Len(t, blocking, 1)
	assert.Equal(t, conflict.KindUnscanned, blocking[0].Kind)
	assert.Equal(t, filepath.Join(root, "Source", "Lyra", "LyraBig.h"), blocking[0].Path)

	_, err = h.svc.Rename(context.Background(), root, "Spyro")
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.ErrPlanConflict))
	assert.Equal(t, before, projecttest.Snapshot(t, root))
}

func TestService_SingleSubjectApply(t *testing.T) {
	h := newHarness(t)
	root := writeProject(t, projecttest.Full("Lyra"), "Lyra")

	result, err := h.svc.Apply(context.Background(), Request{
		Root: root, NewName: "Backpack", Kind: domain.SessionPlugin, Subject: "Inventory",
	})
	require.NoError(t, err)
	assert.Equal(t, root, result.Session.FinalRoot)
	assert.FileExists(t, filepath.Join(root, "Plugins", "Backpack", "Backpack.uplugin"))
	assert.NoDirExists(t, filepath.Join(root, "Plugins", "Inventory"))

	descriptor, err := os.ReadFile(filepath.Join(root, "Lyra.uproject"))
	require.NoError(t, err)
	assert.Contains(t, string(descriptor), `"Name": "Backpack"`)

	engine, err := os.ReadFile(filepath.Join(root, "Config", "DefaultEngine.ini"))
	require.NoError(t, err)
	assert.Contains(t, string(engine), "[CoreRedirects]\n"+`+PackageRedirects=(OldName="/Inventory/",NewName="/Backpack/",MatchSubstring=true)`)

	// the project name is untouched by a plugin rename
	meta, err := h.svc.Detect(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, "Lyra", meta.ProjectName)
}

func TestService_RenameBackDropsRedirect(t *testing.T) {
	h := newHarness(t)
	root := writeProject(t, projecttest.Minimal("Lyra"), "Lyra")
	before := projecttest.Snapshot(t, root)
	ctx := context.Background()

	result, err := h.svc.Rename(ctx, root, "Spyro")
	require.NoError(t, err)
	engine, err := os.ReadFile(filepath.Join(result.Session.FinalRoot, "Config", "DefaultEngine.ini"))
	require.NoError(t, err)
	assert.Equal(t, "[URL]\r\nGameName=Spyro\r\n\r\n[/Script/Engine.Engine]\r\n"+
		`+ActiveGameNameRedirects=(OldGameName="/Script/Lyra", NewGameName="/Script/Spyro")`+"\r\n", string(engine))

	planned, err := h.svc.Plan(ctx, Request{Root: result.Session.FinalRoot, NewName: "Lyra"})
	require.NoError(t, err)
	kinds := make([]domain.OperationKind, 0, len(planned.Operations))
	for _, op := range planned.Operations {
		kinds = append(kinds, op.Kind)
	}
	assert.Contains(t, kinds, domain.OpRemoveConfigEntry)
	assert.NotContains(t, kinds, domain.OpAppendConfigEntry)

	_, err = h.svc.Rename(ctx, result.Session.FinalRoot, "Lyra")
	require.NoError(t, err)
	assert.Equal(t, before, projecttest.Snapshot(t, root))
}

// Property: renaming a project to another name and back restores every byte
func TestProperty_RenameRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 15
	properties := gopter.NewProperties(parameters)

	properties.Property("A -> B -> A is the identity on disk", prop.ForAll(
		func(newName string) bool {
			h := newHarness(t)
			root := writeProject(t, projecttest.Full("Lyra"), "Lyra")
			before := projecttest.Snapshot(t, root)
			ctx := context.Background()

			result, err := h.svc.Rename(ctx, root, newName)
			if err != nil {
				t.Logf("rename to %s: %v", newName, err)
				return false
			}
			if _, err := h.svc.Rename(ctx, result.Session.FinalRoot, "Lyra"); err != nil {
				t.Logf("rename back from %s: %v", newName, err)
				return false
			}

			after := projecttest.Snapshot(t, root)
			if len(before) != len(after) {
				return false
			}
			for path, content := range before {
				if after[path] != content {
					t.Logf("%s differs after round trip through %s", path, newName)
					return false
				}
			}
			return true
		},
		gen.OneConstOf("Spyro", "Crash", "Ratchet", "Jak", "Sly_Cooper", "Banjo2"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

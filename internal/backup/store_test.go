package backup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freewebtopdf/uerename/internal/domain"
	"github.com/freewebtopdf/uerename/internal/projecttest"
)

func newStore(t *testing.T, mode Mode) (*FileStore, string) {
	t.Helper()
	base := t.TempDir()
	root := filepath.Join(t.TempDir(), "Lyra")
	projecttest.Full("Lyra").Write(t, root)
	return NewFileStore(filepath.Join(base, "backups"), mode), root
}

func TestFileStore_BeginCreatesSluggedDirectory(t *testing.T) {
	store, _ := newStore(t, ModeCopy)
	ctx := context.Background()

	dir, err := store.Begin(ctx, "abc123", "Lyra Starter Game")
	require.NoError(t, err)
	assert.Equal(t, "lyra-starter-game-abc123", filepath.Base(dir))
	assert.Equal(t, dir, store.SessionDir("abc123"))

	m, err := ReadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, "abc123", m.SessionID)
	assert.Empty(t, m.Records)

	_, err = store.Begin(ctx, "abc123", "Lyra")
	assert.Equal(t, domain.ErrBackupIO, domain.CodeOf(err))
}

func TestFileStore_SnapshotAndRestoreFile(t *testing.T) {
	store, root := newStore(t, ModeCopy)
	ctx := context.Background()
	_, err := store.Begin(ctx, "s1", "Lyra")
	require.NoError(t, err)

	file := filepath.Join(root, "Source", "Lyra.Target.cs")
	original, err := os.ReadFile(file)
	require.NoError(t, err)

	rec, err := store.Snapshot(ctx, "s1", 0, domain.NewReplaceText(file, "LyraTarget", "SpyroTarget"))
	require.NoError(t, err)
	assert.False(t, rec.IsDir)
	assert.Empty(t, rec.ResultPath)

	require.NoError(t, os.WriteFile(file, []byte("corrupted"), 0644))
	require.NoError(t, store.Restore(ctx, rec))
	restored, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, original, restored)

	// Idempotent
	require.NoError(t, store.Restore(ctx, rec))
	again, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, original, again)
}

func TestFileStore_RestoreFileRename(t *testing.T) {
	store, root := newStore(t, ModeCopy)
	ctx := context.Background()
	_, err := store.Begin(ctx, "s1", "Lyra")
	require.NoError(t, err)

	from := filepath.Join(root, "Lyra.uproject")
	to := filepath.Join(root, "Spyro.uproject")
	before := projecttest.Snapshot(t, root)

	rec, err := store.Snapshot(ctx, "s1", 3, domain.NewRenameFile(from, to))
	require.NoError(t, err)
	assert.Equal(t, to, rec.ResultPath)
	assert.False(t, rec.ResultExisted)

	require.NoError(t, os.Rename(from, to))
	require.NoError(t, store.Restore(ctx, rec))
	assert.Equal(t, before, projecttest.Snapshot(t, root))
}

func TestFileStore_RestoreNeverRemovesPreexistingDestination(t *testing.T) {
	store, root := newStore(t, ModeCopy)
	ctx := context.Background()
	_, err := store.Begin(ctx, "s1", "Lyra")
	require.NoError(t, err)

	to := filepath.Join(root, "Spyro.uproject")
	require.NoError(t, os.WriteFile(to, []byte("keep me"), 0644))

	rec, err := store.Snapshot(ctx, "s1", 0, domain.NewRenameFile(filepath.Join(root, "Lyra.uproject"), to))
	require.NoError(t, err)
	assert.True(t, rec.ResultExisted)

	require.NoError(t, store.Restore(ctx, rec))
	data, err := os.ReadFile(to)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))
}

func TestFileStore_DirectoryModes(t *testing.T) {
	for _, mode := range []Mode{ModeCopy, ModeRename} {
		t.Run(string(mode), func(t *testing.T) {
			store, root := newStore(t, mode)
			ctx := context.Background()
			_, err := store.Begin(ctx, "s1", "Lyra")
			require.NoError(t, err)

			from := filepath.Join(root, "Source", "Lyra")
			to := filepath.Join(root, "Source", "Spyro")
			before := projecttest.Snapshot(t, root)

			rec, err := store.Snapshot(ctx, "s1", 0, domain.NewRenameDirectory(from, to))
			require.NoError(t, err)
			assert.True(t, rec.IsDir)
			assert.Equal(t, mode == ModeRename, rec.MoveBack)
			assert.Equal(t, mode == ModeCopy, rec.SnapshotPath != "")

			require.NoError(t, os.Rename(from, to))
			require.NoError(t, store.Restore(ctx, rec))
			assert.Equal(t, before, projecttest.Snapshot(t, root))

			require.NoError(t, store.Restore(ctx, rec))
			assert.Equal(t, before, projecttest.Snapshot(t, root))
		})
	}
}

func TestFileStore_ManifestTracksRecords(t *testing.T) {
	store, root := newStore(t, ModeCopy)
	ctx := context.Background()
	dir, err := store.Begin(ctx, "s1", "Lyra")
	require.NoError(t, err)

	ini := filepath.Join(root, "Config", "DefaultEngine.ini")
	_, err = store.Snapshot(ctx, "s1", 0, domain.NewSetConfigValue(ini, "URL", "GameName", "Lyra", "Spyro"))
	require.NoError(t, err)
	_, err = store.Snapshot(ctx, "s1", 1, domain.NewRenameFile(filepath.Join(root, "Lyra.uproject"), filepath.Join(root, "Spyro.uproject")))
	require.NoError(t, err)

	m, err := ReadManifest(dir)
	require.NoError(t, err)
	require.Len(t, m.Records, 2)
	assert.Equal(t, 0, m.Records[0].OperationIndex)
	assert.Equal(t, ini, m.Records[0].OriginalPath)
	assert.Equal(t, 1, m.Records[1].OperationIndex)
	assert.Len(t, store.Records("s1"), 2)
}

func TestFileStore_SnapshotFailures(t *testing.T) {
	store, root := newStore(t, ModeCopy)
	ctx := context.Background()

	op := domain.NewReplaceText(filepath.Join(root, "Lyra.uproject"), "Lyra", "Spyro")
	_, err := store.Snapshot(ctx, "unknown", 0, op)
	assert.Equal(t, domain.ErrBackupIO, domain.CodeOf(err))

	_, err = store.Begin(ctx, "s1", "Lyra")
	require.NoError(t, err)
	_, err = store.Snapshot(ctx, "s1", 0, domain.NewReplaceText(filepath.Join(root, "missing.ini"), "Lyra", "Spyro"))
	assert.Equal(t, domain.ErrBackupIO, domain.CodeOf(err))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = store.Snapshot(cancelled, "s1", 0, op)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileStore_Discard(t *testing.T) {
	store, root := newStore(t, ModeCopy)
	ctx := context.Background()
	dir, err := store.Begin(ctx, "s1", "Lyra")
	require.NoError(t, err)
	_, err = store.Snapshot(ctx, "s1", 0, domain.NewReplaceText(filepath.Join(root, "Lyra.uproject"), "Lyra", "Spyro"))
	require.NoError(t, err)

	require.NoError(t, store.Discard(ctx, "s1"))
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, store.SessionDir("s1"))

	// Unknown sessions are a no-op
	assert.NoError(t, store.Discard(ctx, "s1"))
}

func TestFileStore_Release(t *testing.T) {
	store, root := newStore(t, ModeCopy)
	ctx := context.Background()
	dir, err := store.Begin(ctx, "s1", "Lyra")
	require.NoError(t, err)
	rec, err := store.Snapshot(ctx, "s1", 0, domain.NewReplaceText(filepath.Join(root, "Lyra.uproject"), "Lyra", "Spyro"))
	require.NoError(t, err)
	assert.Equal(t, 1, store.HealthCheck(ctx).Details["active_sessions"])

	store.Release("s1")
	assert.Equal(t, 0, store.HealthCheck(ctx).Details["active_sessions"])
	assert.Empty(t, store.SessionDir("s1"))

	// The files outlive the session
	m, err := ReadManifest(dir)
	require.NoError(t, err)
	require.Len(t, m.Records, 1)
	require.NoError(t, os.WriteFile(filepath.Join(root, "Lyra.uproject"), []byte("changed"), 0644))
	require.NoError(t, store.Restore(ctx, rec))
	restored, err := os.ReadFile(filepath.Join(root, "Lyra.uproject"))
	require.NoError(t, err)
	assert.Contains(t, string(restored), `"FileVersion": 3`)

	// Discard no longer knows the session
	require.NoError(t, store.Discard(ctx, "s1"))
	assert.DirExists(t, dir)
	store.Release("missing")
}

func TestFileStore_HealthCheck(t *testing.T) {
	store, _ := newStore(t, ModeCopy)
	status := store.HealthCheck(context.Background())
	assert.Equal(t, domain.HealthStatusHealthy, status.Status)

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	broken := NewFileStore(filepath.Join(blocker, "backups"), ModeCopy)
	assert.Equal(t, domain.HealthStatusUnhealthy, broken.HealthCheck(context.Background()).Status)
}

// Property: restoring a file snapshot is idempotent for arbitrary content
func TestProperty_RestoreIsIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("restore twice equals restore once", prop.ForAll(
		func(original, mutated string) bool {
			dir := t.TempDir()
			file := filepath.Join(dir, "project", "Config.ini")
			if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
				return false
			}
			if err := os.WriteFile(file, []byte(original), 0644); err != nil {
				return false
			}

			store := NewFileStore(filepath.Join(dir, "backups"), ModeCopy)
			ctx := context.Background()
			if _, err := store.Begin(ctx, "s", "p"); err != nil {
				return false
			}
			rec, err := store.Snapshot(ctx, "s", 0, domain.NewReplaceText(file, "A", "B"))
			if err != nil {
				return false
			}
			if err := os.WriteFile(file, []byte(mutated), 0644); err != nil {
				return false
			}
			for i := 0; i < 2; i++ {
				if err := store.Restore(ctx, rec); err != nil {
					return false
				}
				got, err := os.ReadFile(file)
				if err != nil || string(got) != original {
					return false
				}
			}
			return !strings.Contains(rec.SnapshotPath, filepath.Join(dir, "project"))
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

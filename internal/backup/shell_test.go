package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/shelfpos/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalShellListsOnlyJSONNewestFirst(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	shell, err := NewLocalShell(dir, nil)
	require.NoError(t, err)

	write := func(name string, age time.Duration) {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
		at := time.Now().Add(-age)
		require.NoError(t, os.Chtimes(path, at, at))
	}
	write("old.json", 2*time.Hour)
	write("new.json", time.Minute)
	write("notes.txt", 0)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.json"), 0o755))

	files, err := shell.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "new.json", files[0].Name)
	assert.Equal(t, "old.json", files[1].Name)
	assert.Equal(t, int64(2), files[0].Size)

	open, err := shell.ChooseOpenPath(ctx, JSONFilters)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "new.json"), open)

	data, err := shell.ReadFile(ctx, "old.json")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	_, err = shell.ReadFile(ctx, "missing.json")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestLocalShellMissingDirectoryListsNothing(t *testing.T) {
	shell, err := NewLocalShell(filepath.Join(t.TempDir(), "not-yet"), nil)
	require.NoError(t, err)
	files, err := shell.ListFiles(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = NewLocalShell("  ", nil)
	assert.Error(t, err)
}

func TestLocalShellReadStaysInsideDirectory(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	dir := filepath.Join(root, "backups")
	shell, err := NewLocalShell(dir, nil)
	require.NoError(t, err)

	outside := filepath.Join(root, "secret.json")
	require.NoError(t, os.WriteFile(outside, []byte(`{"token":"x"}`), 0o644))
	for _, path := range []string{outside, "../secret.json", filepath.Join(dir, "..", "secret.json")} {
		_, err := shell.ReadFile(ctx, path)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "path %s: %v", path, err)
	}

	require.NoError(t, os.MkdirAll(dir, 0o755))
	inside := filepath.Join(dir, "kept.json")
	require.NoError(t, os.WriteFile(inside, []byte("{}"), 0o644))
	data, err := shell.ReadFile(ctx, inside)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestLocalShellDeleteStaysInsideDirectory(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	dir := filepath.Join(root, "backups")
	shell, err := NewLocalShell(dir, nil)
	require.NoError(t, err)

	outside := filepath.Join(root, "precious.json")
	require.NoError(t, os.WriteFile(outside, []byte("{}"), 0o644))

	for _, path := range []string{outside, "../precious.json", dir, filepath.Join(dir, "..", "precious.json")} {
		err := shell.DeleteFile(ctx, path)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "path %s: %v", path, err)
	}
	_, err = os.Stat(outside)
	require.NoError(t, err)

	require.True(t, pkgerrors.IsCode(shell.DeleteFile(ctx, "absent.json"), pkgerrors.CodeNotFound))

	path, err := shell.DirectBackup(ctx, []byte("{}"), "")
	require.NoError(t, err)
	require.NoError(t, shell.DeleteFile(ctx, path))
}

func TestLocalShellDirectBackupNaming(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, 12, 31, 23, 59, 58, 0, time.UTC)
	shell, err := NewLocalShell(t.TempDir(), func() time.Time { return at })
	require.NoError(t, err)

	path, err := shell.DirectBackup(ctx, []byte(`{"a":1}`), "")
	require.NoError(t, err)
	assert.Equal(t, "shelfpos_backup_20241231_235958.json", filepath.Base(path))

	named, err := shell.DirectBackup(ctx, []byte(`{}`), "../escape.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(shell.Dir(), "escape.json"), named)

	save, err := shell.ChooseSavePath(ctx, "manual.json", JSONFilters)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(shell.Dir(), "manual.json"), save)
}

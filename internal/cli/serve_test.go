package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lacquerai/dashwire/internal/store"
)

func TestWatchDashboardReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, store.DefaultFileName)

	p, err := store.NewFilePersister(path)
	require.NoError(t, err)
	st := store.New(p)
	require.NoError(t, st.Load(context.Background()))

	reloads := make(chan store.Op, 4)
	st.Subscribe(func(c store.Change) {
		reloads <- c.Op
	})

	stop, err := watchDashboard(context.Background(), path, st)
	require.NoError(t, err)
	defer stop()

	require.NoError(t, os.WriteFile(path, []byte(exportedConfig), 0600))

	select {
	case op := <-reloads:
		assert.Equal(t, store.OpReplaced, op)
	case <-time.After(5 * time.Second):
		t.Fatal("dashboard was not reloaded")
	}
	assert.Equal(t, 1, st.Len())

	// unrelated files in the directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0600))
	select {
	case <-reloads:
		t.Fatal("unexpected reload")
	case <-time.After(2 * reloadDebounce):
	}
}

func TestWatchDashboardKeepsStateOnBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), store.DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(exportedConfig), 0600))

	p, err := store.NewFilePersister(path)
	require.NoError(t, err)
	st := store.New(p)
	require.NoError(t, st.Load(context.Background()))

	stop, err := watchDashboard(context.Background(), path, st)
	require.NoError(t, err)
	defer stop()

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))
	time.Sleep(4 * reloadDebounce)

	assert.Equal(t, 1, st.Len())
}

func TestServeWatchRequiresFileStore(t *testing.T) {
	setupCLI(t)

	_, err := executeCommand(rootCmd, "serve", "--watch", "--store", "memory", "--port", "0")
	assert.ErrorContains(t, err, "--watch requires the file store")
}

func TestServeRejectsArguments(t *testing.T) {
	setupCLI(t)

	_, err := executeCommand(rootCmd, "serve", "dashboard.json")
	assert.Error(t, err)
}

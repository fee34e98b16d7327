package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lacquerai/dashwire/internal/widget"
)

func sampleConfig() *widget.Config {
	table := widget.Widget{
		ID:    "t1",
		Title: "Gainers",
		Type:  widget.TypeTable,
		FieldMapping: widget.TableMapping(widget.TableFieldMapping{
			ArrayPath: "top_gainers",
			Columns:   []widget.ColumnConfig{{SourcePath: "ticker", Label: "Ticker"}},
		}),
		APIConfig: widget.APIConfig{URL: "https://example.com/q", Headers: map[string]string{"X-Key": "k"}},
	}
	card := cardWidget("rates")
	card.ID = "c1"
	card.Position = widget.Position{X: 2, Y: 1, Width: 4, Height: 3}
	return widget.NewConfig([]widget.Widget{table, card})
}

func testPersisterRoundTrip(t *testing.T, p Persister) {
	t.Helper()
	ctx := context.Background()

	empty, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty.Widgets)

	cfg := sampleConfig()
	require.NoError(t, p.Save(ctx, cfg))

	loaded, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg.Widgets, loaded.Widgets)
	assert.Equal(t, 2, loaded.TotalWidgets)

	cfg.Widgets = cfg.Widgets[1:]
	cfg.TotalWidgets = 1
	require.NoError(t, p.Save(ctx, cfg))

	loaded, err = p.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Widgets, 1)
	assert.Equal(t, "c1", loaded.Widgets[0].ID)
}

func TestMemoryPersister(t *testing.T) {
	testPersisterRoundTrip(t, NewMemoryPersister())
}

func TestFilePersister(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dashboard.json")

	p, err := NewFilePersister(path)
	require.NoError(t, err)
	assert.Equal(t, path, p.Path())

	testPersisterRoundTrip(t, p)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFilePersisterRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"widgets": 3}`), 0600))

	p, err := NewFilePersister(path)
	require.NoError(t, err)

	_, err = p.Load(context.Background())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSQLitePersister(t *testing.T) {
	p, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer p.Close()

	testPersisterRoundTrip(t, p)
}

func TestSQLitePersisterOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.db")
	ctx := context.Background()

	p, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, p.Save(ctx, sampleConfig()))
	require.NoError(t, p.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	cfg, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "c1"}, ids(cfg.Widgets))
	assert.Equal(t, widget.ConfigVersion, cfg.Version)
}

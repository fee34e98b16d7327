package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/lacquerai/dashwire/internal/testhelper"
	"github.com/lacquerai/dashwire/internal/widget"
)

func cardWidget(title string) widget.Widget {
	return widget.Widget{
		Title:        title,
		Type:         widget.TypeCard,
		FieldMapping: widget.CardMapping(widget.FieldMapping{SourcePath: "rate", DisplayLabel: "Rate"}),
		APIConfig:    widget.APIConfig{URL: "https://api.example.com/" + title},
	}
}

type failingPersister struct {
	MemoryPersister
	fail bool
}

func (p *failingPersister) Save(ctx context.Context, cfg *widget.Config) error {
	if p.fail {
		return errors.New("disk full")
	}
	return p.MemoryPersister.Save(ctx, cfg)
}

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	persister := NewMemoryPersister()
	s := New(persister)

	var changes []Op
	s.Subscribe(func(c Change) { changes = append(changes, c.Op) })

	a, err := s.Add(ctx, cardWidget("a"))
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)

	b, err := s.Add(ctx, cardWidget("b"))
	require.NoError(t, err)

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{a.ID, b.ID}, ids(s.List()))

	got, err := s.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Title)

	a.Title = "renamed"
	_, err = s.Update(ctx, a)
	require.NoError(t, err)

	patched, err := s.Patch(ctx, b.ID, []byte(`{"position": {"x": 6, "y": 0, "width": 6, "height": 4}}`))
	require.NoError(t, err)
	assert.Equal(t, 6, patched.Position.X)

	require.NoError(t, s.Remove(ctx, a.ID))
	_, err = s.Get(a.ID)
	assert.ErrorIs(t, err, ErrWidgetNotFound)

	assert.Equal(t, []Op{OpAdded, OpAdded, OpUpdated, OpUpdated, OpRemoved}, changes)
	assert.Equal(t, 5, persister.Saves(), "each mutation is persisted once")

	reloaded := New(persister)
	require.NoError(t, reloaded.Load(ctx))
	require.Equal(t, 1, reloaded.Len())
	assert.Equal(t, patched, reloaded.List()[0])
}

func TestStoreErrors(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	_, err := s.Add(ctx, widget.Widget{Type: widget.TypeCard})
	assert.ErrorContains(t, err, "validation failed")

	w, err := s.Add(ctx, cardWidget("x"))
	require.NoError(t, err)

	_, err = s.Add(ctx, w)
	assert.ErrorIs(t, err, ErrDuplicateWidget)

	missing := cardWidget("y")
	missing.ID = "nope"
	_, err = s.Update(ctx, missing)
	assert.ErrorIs(t, err, ErrWidgetNotFound)

	assert.ErrorIs(t, s.Remove(ctx, "nope"), ErrWidgetNotFound)

	_, err = s.Patch(ctx, "nope", []byte(`{}`))
	assert.ErrorIs(t, err, ErrWidgetNotFound)
}

func TestStoreRollsBackOnSaveFailure(t *testing.T) {
	ctx := context.Background()
	p := &failingPersister{}
	s := New(p)

	w, err := s.Add(ctx, cardWidget("kept"))
	require.NoError(t, err)

	p.fail = true
	_, err = s.Add(ctx, cardWidget("lost"))
	assert.ErrorContains(t, err, "disk full")
	assert.ErrorContains(t, s.Remove(ctx, w.ID), "disk full")

	assert.Equal(t, []string{w.ID}, ids(s.List()))
}

func TestStoreImportExport(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	cfg, err := s.Import(ctx, []byte(`{
		"widgets": [
			{"id": "dup", "title": "One", "type": "card", "fieldMapping": []},
			{"id": "dup", "title": "Two", "type": "card", "fieldMapping": []},
			{"title": "Three", "type": "card", "fieldMapping": []}
		]
	}`))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.TotalWidgets)

	list := s.List()
	require.Len(t, list, 3)
	assert.Equal(t, "dup", list[0].ID)
	assert.NotEqual(t, "dup", list[1].ID)
	assert.NotEmpty(t, list[2].ID)

	_, err = s.Import(ctx, []byte(`{"totalWidgets": 2}`))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, 3, s.Len(), "failed import leaves the dashboard untouched")

	exported := s.Export()
	assert.Equal(t, widget.ConfigVersion, exported.Version)
	assert.Equal(t, list, exported.Widgets)
}

func TestExportFilename(t *testing.T) {
	day := time.Date(2024, time.March, 5, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "dashboard-config-2024-03-05.json", ExportFilename(day))
}

func ids(widgets []widget.Widget) []string {
	out := make([]string, 0, len(widgets))
	for _, w := range widgets {
		out = append(out, w.ID)
	}
	return out
}

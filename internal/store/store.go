// Package store keeps the dashboard: the ordered list of widgets and its
// persistence. The store owns all mutations and saves the whole dashboard
// through an injected Persister after each one.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/lacquerai/dashwire/internal/widget"
)

var (
	// ErrWidgetNotFound is returned when no widget has the requested id.
	ErrWidgetNotFound = errors.New("widget not found")

	// ErrDuplicateWidget is returned when adding a widget whose id is taken.
	ErrDuplicateWidget = errors.New("widget already exists")

	// ErrInvalidConfig is returned when an imported dashboard has no
	// widgets array.
	ErrInvalidConfig = widget.ErrInvalidConfig
)

// Persister loads and saves a whole dashboard.
type Persister interface {
	Load(ctx context.Context) (*widget.Config, error)
	Save(ctx context.Context, cfg *widget.Config) error
}

// Op identifies a store mutation.
type Op string

const (
	OpAdded    Op = "added"
	OpUpdated  Op = "updated"
	OpRemoved  Op = "removed"
	OpReplaced Op = "replaced"
)

// Change describes a mutation. Widget is the affected widget; it is empty
// for OpReplaced.
type Change struct {
	Op     Op
	Widget widget.Widget
}

// Store is the dashboard state. It is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	widgets   []widget.Widget
	persister Persister

	subMu       sync.RWMutex
	subscribers []func(Change)
}

// New creates an empty store backed by p.
func New(p Persister) *Store {
	if p == nil {
		p = NewMemoryPersister()
	}
	return &Store{persister: p}
}

// Subscribe registers fn to be called after every successful mutation.
// Callbacks run synchronously outside the store lock.
func (s *Store) Subscribe(fn func(Change)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Store) notify(c Change) {
	s.subMu.RLock()
	subs := make([]func(Change), len(s.subscribers))
	copy(subs, s.subscribers)
	s.subMu.RUnlock()

	for _, fn := range subs {
		fn(c)
	}
}

// Load replaces the in-memory dashboard with the persisted one.
func (s *Store) Load(ctx context.Context) error {
	cfg, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load dashboard: %w", err)
	}

	s.mu.Lock()
	s.widgets = withIDs(cfg.Widgets)
	count := len(s.widgets)
	s.mu.Unlock()

	log.Debug().Int("widgets", count).Msg("Dashboard loaded")
	s.notify(Change{Op: OpReplaced})
	return nil
}

// List returns a copy of all widgets in dashboard order.
func (s *Store) List() []widget.Widget {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]widget.Widget, len(s.widgets))
	copy(out, s.widgets)
	return out
}

// Len returns the number of widgets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.widgets)
}

// Get returns the widget with the given id.
func (s *Store) Get(id string) (widget.Widget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return widget.Widget{}, fmt.Errorf("%w: %s", ErrWidgetNotFound, id)
	}
	return s.widgets[i], nil
}

// Add validates w, assigns an id when it has none and appends it.
func (s *Store) Add(ctx context.Context, w widget.Widget) (widget.Widget, error) {
	if result := widget.Validate(&w); result.HasErrors() {
		return widget.Widget{}, result.ToError()
	}
	if w.ID == "" {
		w.ID = NewID()
	}

	s.mu.Lock()
	if s.indexOf(w.ID) >= 0 {
		s.mu.Unlock()
		return widget.Widget{}, fmt.Errorf("%w: %s", ErrDuplicateWidget, w.ID)
	}

	next := append(s.snapshot(), w)
	if err := s.commit(ctx, next); err != nil {
		s.mu.Unlock()
		return widget.Widget{}, err
	}
	s.mu.Unlock()

	log.Info().Str("widget_id", w.ID).Str("type", string(w.Type)).Msg("Widget added")
	s.notify(Change{Op: OpAdded, Widget: w})
	return w, nil
}

// Update replaces the widget with w.ID by w after validating it.
func (s *Store) Update(ctx context.Context, w widget.Widget) (widget.Widget, error) {
	if result := widget.Validate(&w); result.HasErrors() {
		return widget.Widget{}, result.ToError()
	}

	s.mu.Lock()
	i := s.indexOf(w.ID)
	if i < 0 {
		s.mu.Unlock()
		return widget.Widget{}, fmt.Errorf("%w: %s", ErrWidgetNotFound, w.ID)
	}

	next := s.snapshot()
	next[i] = w
	if err := s.commit(ctx, next); err != nil {
		s.mu.Unlock()
		return widget.Widget{}, err
	}
	s.mu.Unlock()

	log.Info().Str("widget_id", w.ID).Msg("Widget updated")
	s.notify(Change{Op: OpUpdated, Widget: w})
	return w, nil
}

// Patch merges a partial widget document into the widget with id.
func (s *Store) Patch(ctx context.Context, id string, patch []byte) (widget.Widget, error) {
	current, err := s.Get(id)
	if err != nil {
		return widget.Widget{}, err
	}

	merged, err := widget.Merge(current, patch)
	if err != nil {
		return widget.Widget{}, err
	}
	return s.Update(ctx, merged)
}

// Remove deletes the widget with id.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrWidgetNotFound, id)
	}

	removed := s.widgets[i]
	next := s.snapshot()
	next = append(next[:i], next[i+1:]...)
	if err := s.commit(ctx, next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	log.Info().Str("widget_id", id).Msg("Widget removed")
	s.notify(Change{Op: OpRemoved, Widget: removed})
	return nil
}

// Replace swaps the whole dashboard for cfg. Widgets are taken verbatim
// except for missing or repeated ids, which are regenerated.
func (s *Store) Replace(ctx context.Context, cfg *widget.Config) error {
	next := withIDs(cfg.Widgets)

	s.mu.Lock()
	if err := s.commit(ctx, next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	log.Info().Int("widgets", len(next)).Msg("Dashboard replaced")
	s.notify(Change{Op: OpReplaced})
	return nil
}

// Import parses an exported dashboard and replaces the current one.
func (s *Store) Import(ctx context.Context, data []byte) (*widget.Config, error) {
	cfg, err := widget.ParseConfig(data)
	if err != nil {
		return nil, err
	}
	if err := s.Replace(ctx, cfg); err != nil {
		return nil, err
	}
	return s.Export(), nil
}

// Export returns a snapshot of the dashboard.
func (s *Store) Export() *widget.Config {
	return widget.NewConfig(s.List())
}

// ExportFilename names an export written on day t.
func ExportFilename(t time.Time) string {
	return fmt.Sprintf("dashboard-config-%s.json", t.Format("2006-01-02"))
}

// NewID returns a fresh widget id.
func NewID() string {
	return uuid.NewString()
}

// commit persists next and makes it current. Callers hold s.mu.
func (s *Store) commit(ctx context.Context, next []widget.Widget) error {
	if err := s.persister.Save(ctx, widget.NewConfig(next)); err != nil {
		return fmt.Errorf("failed to save dashboard: %w", err)
	}
	s.widgets = next
	return nil
}

func (s *Store) snapshot() []widget.Widget {
	out := make([]widget.Widget, len(s.widgets), len(s.widgets)+1)
	copy(out, s.widgets)
	return out
}

func (s *Store) indexOf(id string) int {
	for i := range s.widgets {
		if s.widgets[i].ID == id {
			return i
		}
	}
	return -1
}

// withIDs copies widgets, giving a fresh id to every widget whose id is
// empty or already used by an earlier widget.
func withIDs(widgets []widget.Widget) []widget.Widget {
	out := make([]widget.Widget, len(widgets))
	copy(out, widgets)

	seen := make(map[string]bool, len(out))
	for i := range out {
		if out[i].ID == "" || seen[out[i].ID] {
			out[i].ID = NewID()
		}
		seen[out[i].ID] = true
	}
	return out
}

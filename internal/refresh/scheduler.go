// Package refresh keeps every widget's mapped data current. The Scheduler
// runs one goroutine per widget that fetches the widget's endpoint, maps
// the response and records the latest state, then repeats on the widget's
// refresh interval.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/lacquerai/dashwire/internal/fetch"
	"github.com/lacquerai/dashwire/internal/mapping"
	"github.com/lacquerai/dashwire/internal/store"
	"github.com/lacquerai/dashwire/internal/widget"
	"github.com/lacquerai/dashwire/pkg/events"
)

var (
	// ErrNotScheduled is returned for widgets the scheduler does not know.
	ErrNotScheduled = errors.New("widget is not scheduled")

	// ErrStale is returned when a fetch finished after its widget was
	// changed or removed. The result is discarded.
	ErrStale = errors.New("stale refresh result discarded")
)

// Status is the lifecycle state of a widget's data.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// State is the latest known data of a widget. After a failed refresh Data
// still holds the last successful result.
type State struct {
	WidgetID  string          `json:"widgetId"`
	Status    Status          `json:"status"`
	Data      *mapping.Result `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Duration  time.Duration   `json:"duration"`
}

type entry struct {
	widget     widget.Widget
	generation uint64
	cancel     context.CancelFunc
	state      State
}

// Scheduler refreshes widgets independently of each other.
type Scheduler struct {
	fetcher     fetch.Fetcher
	engine      *mapping.Engine
	events      *events.Broadcaster
	metrics     *Metrics
	minInterval time.Duration
	parallelism int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.RWMutex
	entries    map[string]*entry
	generation uint64
	stopped    bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithEvents publishes widget events to b.
func WithEvents(b *events.Broadcaster) Option {
	return func(s *Scheduler) {
		s.events = b
	}
}

// WithMetrics records fetch metrics in m.
func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithMinInterval clamps refresh intervals shorter than d.
func WithMinInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		s.minInterval = d
	}
}

// WithParallelism bounds the number of concurrent fetches in RefreshAll.
func WithParallelism(n int) Option {
	return func(s *Scheduler) {
		s.parallelism = n
	}
}

// New creates a Scheduler. Nothing is fetched until widgets are watched.
func New(fetcher fetch.Fetcher, engine *mapping.Engine, opts ...Option) *Scheduler {
	if engine == nil {
		engine = mapping.NewEngine()
	}

	s := &Scheduler{
		fetcher:     fetcher,
		engine:      engine,
		metrics:     NewMetrics(nil),
		parallelism: 8,
		entries:     make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Watch starts refreshing w. A widget that is already watched is
// restarted when its configuration changed; pending results of the old
// configuration are discarded.
func (s *Scheduler) Watch(w widget.Widget) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if old, ok := s.entries[w.ID]; ok {
		if reflect.DeepEqual(old.widget, w) {
			s.mu.Unlock()
			return
		}
		old.cancel()
	}

	s.generation++
	ctx, cancel := context.WithCancel(s.ctx)
	e := &entry{
		widget:     w,
		generation: s.generation,
		cancel:     cancel,
		state:      State{WidgetID: w.ID, Status: StatusIdle},
	}
	s.entries[w.ID] = e
	s.metrics.widgets.Set(float64(len(s.entries)))
	s.wg.Add(1)
	s.mu.Unlock()

	log.Debug().
		Str("widget_id", w.ID).
		Int("refresh_interval_ms", w.RefreshInterval()).
		Msg("Widget scheduled")

	go s.run(ctx, w, e.generation)
}

// Unwatch stops refreshing the widget with the given id.
func (s *Scheduler) Unwatch(id string) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	e.cancel()
	delete(s.entries, id)
	s.metrics.widgets.Set(float64(len(s.entries)))
	s.mu.Unlock()

	log.Debug().Str("widget_id", id).Msg("Widget unscheduled")
	s.publish(events.WidgetEvent{
		Type:       events.EventWidgetRemoved,
		WidgetID:   id,
		WidgetType: string(e.widget.Type),
	})
}

// Sync makes the watched set equal to widgets.
func (s *Scheduler) Sync(widgets []widget.Widget) {
	keep := make(map[string]bool, len(widgets))
	for _, w := range widgets {
		keep[w.ID] = true
	}

	s.mu.RLock()
	var gone []string
	for id := range s.entries {
		if !keep[id] {
			gone = append(gone, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range gone {
		s.Unwatch(id)
	}
	for _, w := range widgets {
		s.Watch(w)
	}
}

// Follow keeps the scheduler in step with st: widgets are watched as they
// are added or updated and unwatched when removed.
func (s *Scheduler) Follow(st *store.Store) {
	st.Subscribe(func(c store.Change) {
		s.publish(events.WidgetEvent{
			Type:     events.EventDashboardChanged,
			WidgetID: c.Widget.ID,
			Metadata: map[string]interface{}{
				"op":      string(c.Op),
				"widgets": st.Len(),
			},
		})

		switch c.Op {
		case store.OpAdded, store.OpUpdated:
			s.Watch(c.Widget)
		case store.OpRemoved:
			s.Unwatch(c.Widget.ID)
		case store.OpReplaced:
			s.Sync(st.List())
		}
	})
	s.Sync(st.List())
}

// Refresh fetches and maps the widget now and returns its new state. It
// shares the code path of timer refreshes.
func (s *Scheduler) Refresh(ctx context.Context, id string) (State, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	var (
		w   widget.Widget
		gen uint64
	)
	if ok {
		w, gen = e.widget, e.generation
	}
	s.mu.RUnlock()

	if !ok {
		return State{}, fmt.Errorf("%w: %s", ErrNotScheduled, id)
	}
	return s.refresh(ctx, w, gen)
}

// RefreshAll refreshes every watched widget concurrently and returns the
// first error encountered. Every widget is refreshed regardless.
func (s *Scheduler) RefreshAll(ctx context.Context) error {
	s.mu.RLock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	var g errgroup.Group
	if s.parallelism > 0 {
		g.SetLimit(s.parallelism)
	}
	for _, id := range ids {
		g.Go(func() error {
			_, err := s.Refresh(ctx, id)
			if errors.Is(err, ErrStale) || errors.Is(err, ErrNotScheduled) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("widget %s: %w", id, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// State returns the latest state of a widget.
func (s *Scheduler) State(id string) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return State{}, false
	}
	return e.state, true
}

// States returns the state of every watched widget ordered by widget id.
func (s *Scheduler) States() []State {
	s.mu.RLock()
	out := make([]State, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.state)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].WidgetID < out[j].WidgetID
	})
	return out
}

// Stop cancels every refresh loop and waits for them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.cancel()
	s.entries = make(map[string]*entry)
	s.metrics.widgets.Set(0)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, w widget.Widget, gen uint64) {
	defer s.wg.Done()

	if _, err := s.refresh(ctx, w, gen); err != nil && !errors.Is(err, ErrStale) {
		log.Warn().Err(err).Str("widget_id", w.ID).Msg("Widget refresh failed")
	}

	interval := time.Duration(w.RefreshInterval()) * time.Millisecond
	if interval <= 0 {
		return
	}
	if interval < s.minInterval {
		interval = s.minInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.refresh(ctx, w, gen); err != nil && !errors.Is(err, ErrStale) {
				log.Warn().Err(err).Str("widget_id", w.ID).Msg("Widget refresh failed")
			}
		}
	}
}

// refresh is the single fetch-then-map path. Results are recorded only
// while gen is still the widget's current generation.
func (s *Scheduler) refresh(ctx context.Context, w widget.Widget, gen uint64) (State, error) {
	if !s.update(w.ID, gen, func(st *State) { st.Status = StatusLoading }) {
		return State{}, ErrStale
	}
	s.publish(events.WidgetEvent{
		Type:       events.EventWidgetLoading,
		WidgetID:   w.ID,
		WidgetType: string(w.Type),
	})

	s.metrics.activeFetches.Inc()
	start := time.Now()
	doc, err := s.fetcher.Fetch(ctx, w.APIConfig)
	duration := time.Since(start)
	s.metrics.activeFetches.Dec()

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.metrics.fetchesTotal.WithLabelValues(string(w.Type), outcome).Inc()
	s.metrics.fetchDuration.WithLabelValues(string(w.Type), outcome).Observe(duration.Seconds())

	var result *mapping.Result
	if err == nil {
		mapped := s.engine.Map(doc, w.FieldMapping)
		result = &mapped
	}

	var state State
	current := s.update(w.ID, gen, func(st *State) {
		st.UpdatedAt = time.Now()
		st.Duration = duration
		if err != nil {
			st.Status = StatusError
			st.Error = err.Error()
		} else {
			st.Status = StatusReady
			st.Error = ""
			st.Data = result
		}
		state = *st
	})
	if !current {
		s.metrics.staleResults.Inc()
		log.Debug().Str("widget_id", w.ID).Msg("Discarding stale refresh result")
		return State{}, ErrStale
	}

	if err != nil {
		s.publish(events.WidgetEvent{
			Type:       events.EventWidgetFailed,
			WidgetID:   w.ID,
			WidgetType: string(w.Type),
			Duration:   duration,
			Error:      err.Error(),
		})
		return state, fmt.Errorf("failed to refresh widget: %w", err)
	}

	log.Debug().
		Str("widget_id", w.ID).
		Dur("duration", duration).
		Msg("Widget refreshed")
	s.publish(events.WidgetEvent{
		Type:       events.EventWidgetUpdated,
		WidgetID:   w.ID,
		WidgetType: string(w.Type),
		Duration:   duration,
		Data:       result,
	})
	return state, nil
}

// update applies fn to the widget's state if gen is still current.
func (s *Scheduler) update(id string, gen uint64, fn func(*State)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.generation != gen {
		return false
	}
	fn(&e.state)
	return true
}

func (s *Scheduler) publish(ev events.WidgetEvent) {
	if s.events == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	s.events.Publish(ev)
}

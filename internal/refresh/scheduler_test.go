package refresh

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lacquerai/dashwire/internal/fetch"
	"github.com/lacquerai/dashwire/internal/mapping"
	"github.com/lacquerai/dashwire/internal/store"
	"github.com/lacquerai/dashwire/internal/testhelper"
	"github.com/lacquerai/dashwire/internal/widget"
	"github.com/lacquerai/dashwire/pkg/events"
)

const waitFor = 2 * time.Second

func cardWidget(id, url string, interval int) widget.Widget {
	return widget.Widget{
		ID:    id,
		Title: "Price",
		Type:  widget.TypeCard,
		FieldMapping: widget.CardMapping(
			widget.FieldMapping{SourcePath: "price", DisplayLabel: "Price", Format: widget.FormatNumber},
		),
		APIConfig: widget.APIConfig{URL: url, RefreshInterval: interval},
	}
}

func newScheduler(t *testing.T, opts ...Option) *Scheduler {
	t.Helper()
	client := fetch.NewClient(fetch.WithRetry(fetch.NoRetry()))
	s := New(client, mapping.NewEngine(), opts...)
	t.Cleanup(s.Stop)
	return s
}

func waitStatus(t *testing.T, s *Scheduler, id string, want Status) State {
	t.Helper()
	var state State
	require.Eventually(t, func() bool {
		var ok bool
		state, ok = s.State(id)
		return ok && state.Status == want
	}, waitFor, 5*time.Millisecond)
	return state
}

func TestSchedulerFetchOnce(t *testing.T) {
	api := testhelper.NewAPIServer(t, `{"price": 1234.5}`)
	s := newScheduler(t)

	s.Watch(cardWidget("w1", api.URL, 0))

	state := waitStatus(t, s, "w1", StatusReady)
	require.NotNil(t, state.Data)
	assert.Equal(t, widget.TypeCard, state.Data.Kind)
	assert.Equal(t, "1,234.5", state.Data.Card[0].FormattedValue)
	assert.False(t, state.UpdatedAt.IsZero())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, api.Hits(), "zero interval fetches once")
}

func TestSchedulerPolls(t *testing.T) {
	api := testhelper.NewAPIServer(t, `{"price": 1}`)
	s := newScheduler(t)

	s.Watch(cardWidget("w1", api.URL, 10))

	assert.Eventually(t, func() bool {
		return api.Hits() >= 3
	}, waitFor, 5*time.Millisecond)

	api.Respond(http.StatusOK, `{"price": 2}`)
	assert.Eventually(t, func() bool {
		state, _ := s.State("w1")
		return state.Data != nil && state.Data.Card[0].FormattedValue == "2"
	}, waitFor, 5*time.Millisecond)
}

func TestSchedulerMinInterval(t *testing.T) {
	api := testhelper.NewAPIServer(t, `{"price": 1}`)
	s := newScheduler(t, WithMinInterval(time.Hour))

	s.Watch(cardWidget("w1", api.URL, 1))
	waitStatus(t, s, "w1", StatusReady)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, api.Hits())
}

func TestSchedulerErrorKeepsData(t *testing.T) {
	api := testhelper.NewAPIServer(t, `{"price": 7}`)
	s := newScheduler(t)

	s.Watch(cardWidget("w1", api.URL, 0))
	waitStatus(t, s, "w1", StatusReady)

	api.Respond(http.StatusInternalServerError, `{"error": "down"}`)
	state, err := s.Refresh(context.Background(), "w1")
	require.Error(t, err)

	var statusErr *fetch.StatusError
	assert.True(t, errors.As(err, &statusErr))
	assert.Equal(t, StatusError, state.Status)
	assert.NotEmpty(t, state.Error)
	require.NotNil(t, state.Data, "previous data survives a failed refresh")
	assert.Equal(t, "7", state.Data.Card[0].FormattedValue)

	api.Respond(http.StatusOK, `{"price": 8}`)
	state, err = s.Refresh(context.Background(), "w1")
	require.NoError(t, err)
	assert.Equal(t, StatusReady, state.Status)
	assert.Empty(t, state.Error)
	assert.Equal(t, "8", state.Data.Card[0].FormattedValue)
}

func TestSchedulerRefreshUnknown(t *testing.T) {
	s := newScheduler(t)

	_, err := s.Refresh(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotScheduled)

	_, ok := s.State("missing")
	assert.False(t, ok)
}

// gateFetcher answers with the requested URL once the gate opens.
type gateFetcher struct {
	mu    sync.Mutex
	calls int
	gate  chan struct{}
}

func (f *gateFetcher) Fetch(ctx context.Context, cfg widget.APIConfig) (any, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	<-f.gate
	return map[string]any{"price": cfg.URL}, nil
}

func (f *gateFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestSchedulerDiscardsStaleResults(t *testing.T) {
	f := &gateFetcher{gate: make(chan struct{})}
	s := New(f, nil)
	t.Cleanup(s.Stop)

	old := cardWidget("w1", "http://old.example", 0)
	old.FieldMapping.Card[0].Format = widget.FormatText
	s.Watch(old)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Refresh(context.Background(), "w1")
		errCh <- err
	}()
	require.Eventually(t, func() bool { return f.Calls() == 2 }, waitFor, time.Millisecond)

	updated := old
	updated.APIConfig.URL = "http://new.example"
	s.Watch(updated)
	require.Eventually(t, func() bool { return f.Calls() == 3 }, waitFor, time.Millisecond)

	close(f.gate)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrStale)
	case <-time.After(waitFor):
		t.Fatal("refresh did not return")
	}

	state := waitStatus(t, s, "w1", StatusReady)
	assert.Equal(t, "http://new.example", state.Data.Card[0].FormattedValue)
}

func TestSchedulerWatchUnchangedIsNoop(t *testing.T) {
	api := testhelper.NewAPIServer(t, `{"price": 1}`)
	s := newScheduler(t)

	w := cardWidget("w1", api.URL, 0)
	s.Watch(w)
	waitStatus(t, s, "w1", StatusReady)

	s.Watch(w)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, api.Hits())
}

func TestSchedulerSync(t *testing.T) {
	api := testhelper.NewAPIServer(t, `{"price": 1}`)
	s := newScheduler(t)

	s.Sync([]widget.Widget{cardWidget("a", api.URL, 0), cardWidget("b", api.URL, 0)})
	waitStatus(t, s, "a", StatusReady)
	waitStatus(t, s, "b", StatusReady)

	s.Sync([]widget.Widget{cardWidget("b", api.URL, 0), cardWidget("c", api.URL, 0)})
	waitStatus(t, s, "c", StatusReady)

	var ids []string
	for _, st := range s.States() {
		ids = append(ids, st.WidgetID)
	}
	assert.Equal(t, []string{"b", "c"}, ids)
}

func TestSchedulerRefreshAll(t *testing.T) {
	good := testhelper.NewAPIServer(t, `{"price": 1}`)
	bad := testhelper.NewAPIServer(t, "")
	bad.Respond(http.StatusNotFound, "{}")

	s := newScheduler(t, WithParallelism(1))
	s.Watch(cardWidget("good", good.URL, 0))
	s.Watch(cardWidget("bad", bad.URL, 0))
	waitStatus(t, s, "good", StatusReady)
	waitStatus(t, s, "bad", StatusError)

	err := s.RefreshAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "widget bad")
	assert.Equal(t, 2, good.Hits())
	assert.Equal(t, 2, bad.Hits())
}

func TestSchedulerEvents(t *testing.T) {
	api := testhelper.NewAPIServer(t, `{"price": 3}`)
	b := events.NewBroadcaster()
	ch, cancel := b.Subscribe(16)
	defer cancel()

	s := newScheduler(t, WithEvents(b))
	s.Watch(cardWidget("w1", api.URL, 0))

	next := func() events.WidgetEvent {
		select {
		case ev := <-ch:
			return ev
		case <-time.After(waitFor):
			t.Fatal("no event")
			return events.WidgetEvent{}
		}
	}

	loading := next()
	assert.Equal(t, events.EventWidgetLoading, loading.Type)
	assert.Equal(t, "w1", loading.WidgetID)
	assert.Equal(t, "card", loading.WidgetType)

	updated := next()
	assert.Equal(t, events.EventWidgetUpdated, updated.Type)
	result, ok := updated.Data.(*mapping.Result)
	require.True(t, ok)
	assert.Equal(t, "3", result.Card[0].FormattedValue)

	s.Unwatch("w1")
	removed := next()
	assert.Equal(t, events.EventWidgetRemoved, removed.Type)
}

func TestSchedulerFollowStore(t *testing.T) {
	api := testhelper.NewAPIServer(t, `{"price": 5}`)
	ctx := context.Background()

	st := store.New(nil)
	existing, err := st.Add(ctx, cardWidget("", api.URL, 0))
	require.NoError(t, err)

	s := newScheduler(t)
	s.Follow(st)
	waitStatus(t, s, existing.ID, StatusReady)

	added, err := st.Add(ctx, cardWidget("", api.URL, 0))
	require.NoError(t, err)
	waitStatus(t, s, added.ID, StatusReady)

	require.NoError(t, st.Remove(ctx, existing.ID))
	_, ok := s.State(existing.ID)
	assert.False(t, ok)

	require.NoError(t, st.Replace(ctx, widget.NewConfig(nil)))
	assert.Empty(t, s.States())
}

func TestSchedulerMetrics(t *testing.T) {
	api := testhelper.NewAPIServer(t, `{"price": 5}`)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	s := newScheduler(t, WithMetrics(m))
	s.Watch(cardWidget("w1", api.URL, 0))
	waitStatus(t, s, "w1", StatusReady)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.fetchesTotal.WithLabelValues("card", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.widgets))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.activeFetches))

	count, err := testutil.GatherAndCount(reg, "dashwire_fetch_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSchedulerStop(t *testing.T) {
	api := testhelper.NewAPIServer(t, `{"price": 5}`)
	s := newScheduler(t)

	s.Watch(cardWidget("w1", api.URL, 5))
	waitStatus(t, s, "w1", StatusReady)

	s.Stop()
	hits := api.Hits()
	s.Watch(cardWidget("w2", api.URL, 5))

	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, s.States())
	assert.Equal(t, hits, api.Hits())
}

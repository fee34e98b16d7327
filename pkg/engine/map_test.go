package engine

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lacquerai/dashwire/internal/testhelper"
	"github.com/lacquerai/dashwire/internal/widget"
	"github.com/lacquerai/dashwire/pkg/events"
)

const quote = `{"Global Quote": {"01. symbol": "IBM", "05. price": "1234567.5"}}`

func cardDefinition(url string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "ibm",
		"title": "IBM",
		"type": "card",
		"fieldMapping": [
			{"sourcePath": "Global Quote.01. symbol", "displayLabel": "Symbol", "format": "text"},
			{"sourcePath": "Global Quote.05. price", "displayLabel": "Price", "format": "currency"}
		],
		"apiConfig": {"url": %q, "refreshInterval": 0}
	}`, url))
}

type collectingListener struct {
	mu     sync.Mutex
	events []events.WidgetEvent
	done   chan struct{}
}

func newCollectingListener() *collectingListener {
	return &collectingListener{done: make(chan struct{})}
}

func (l *collectingListener) StartListening(ch <-chan events.WidgetEvent) {
	go func() {
		defer close(l.done)
		for ev := range ch {
			l.mu.Lock()
			l.events = append(l.events, ev)
			l.mu.Unlock()
		}
	}()
}

func (l *collectingListener) StopListening() {}

func (l *collectingListener) types(t *testing.T) []events.WidgetEventType {
	t.Helper()
	select {
	case <-l.done:
	case <-time.After(5 * time.Second):
		t.Fatal("listener was not stopped")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	var types []events.WidgetEventType
	for _, ev := range l.events {
		types = append(types, ev.Type)
	}
	return types
}

func TestMapDocument(t *testing.T) {
	result, err := MapDocument(cardDefinition("https://example.com"), []byte(quote))
	require.NoError(t, err)

	assert.Equal(t, widget.TypeCard, result.Kind)
	require.Len(t, result.Card, 2)
	assert.Equal(t, "IBM", result.Card[0].FormattedValue)
	assert.Equal(t, "1,234,567.5", result.Card[1].FormattedValue)
}

func TestMapDocumentFormatting(t *testing.T) {
	result, err := MapDocument(cardDefinition("https://example.com"), []byte(quote),
		WithLocale("de-DE"), WithCurrencySymbol("€"))
	require.NoError(t, err)
	assert.Equal(t, "€1.234.567,5", result.Card[1].FormattedValue)

	_, err = MapDocument(cardDefinition("https://example.com"), []byte(quote), WithLocale("not a locale!"))
	assert.ErrorContains(t, err, "invalid locale")
}

func TestMapDocumentErrors(t *testing.T) {
	_, err := MapDocument([]byte(`{"type": `), []byte(quote))
	assert.ErrorIs(t, err, widget.ErrInvalidWidget)

	_, err = MapDocument(cardDefinition("https://example.com"), []byte(`{"a": `))
	assert.ErrorContains(t, err, "failed to decode document")
}

func TestParseWidget(t *testing.T) {
	w, err := ParseWidget(cardDefinition("https://example.com/quote"))
	require.NoError(t, err)
	assert.Equal(t, "ibm", w.ID)

	_, err = ParseWidget(cardDefinition("ftp://example.com/quote"))
	assert.ErrorIs(t, err, widget.ErrInvalidWidget)
}

func TestRefreshWidget(t *testing.T) {
	api := testhelper.NewAPIServer(t, quote)
	listener := newCollectingListener()

	result, err := RefreshWidget(context.Background(), cardDefinition(api.URL), WithProgressListener(listener))
	require.NoError(t, err)
	assert.Equal(t, "IBM", result.Card[0].FormattedValue)
	assert.Equal(t, 1, api.Hits())

	assert.Equal(t, []events.WidgetEventType{
		events.EventWidgetLoading,
		events.EventWidgetUpdated,
	}, listener.types(t))
	assert.Equal(t, "ibm", listener.events[1].WidgetID)
	assert.Equal(t, "card", listener.events[1].WidgetType)
}

func TestRefreshWidgetFailure(t *testing.T) {
	api := testhelper.NewAPIServer(t, quote)
	api.Respond(http.StatusNotFound, `{}`)
	listener := newCollectingListener()

	_, err := RefreshWidget(context.Background(), cardDefinition(api.URL), WithProgressListener(listener))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404 Not Found")

	assert.Equal(t, []events.WidgetEventType{
		events.EventWidgetLoading,
		events.EventWidgetFailed,
	}, listener.types(t))
	assert.Contains(t, listener.events[1].Error, "404")
}

func TestRefreshWidgetInvalid(t *testing.T) {
	_, err := RefreshWidget(context.Background(), []byte(`{"title": "x", "type": "gauge"}`))
	assert.ErrorIs(t, err, widget.ErrInvalidWidget)
}

type forwardingListener chan events.WidgetEvent

func (l forwardingListener) StartListening(ch <-chan events.WidgetEvent) {
	go func() {
		for ev := range ch {
			l <- ev
		}
	}()
}

func (l forwardingListener) StopListening() {}

func TestWatchDashboard(t *testing.T) {
	api := testhelper.NewAPIServer(t, quote)
	path := filepath.Join(t.TempDir(), "dashboard.json")
	config := fmt.Sprintf(`{"widgets": [%s]}`, cardDefinition(api.URL))
	require.NoError(t, os.WriteFile(path, []byte(config), 0600))

	ctx, cancel := context.WithCancel(context.Background())
	listener := make(forwardingListener, 16)
	done := make(chan error, 1)
	go func() {
		done <- WatchDashboard(ctx, path, WithProgressListener(listener))
	}()

	deadline := time.After(5 * time.Second)
	for updated := false; !updated; {
		select {
		case ev := <-listener:
			if ev.Type == events.EventWidgetUpdated {
				assert.Equal(t, "ibm", ev.WidgetID)
				updated = true
			}
		case <-deadline:
			t.Fatal("widget was not refreshed")
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("WatchDashboard did not return")
	}
}

func TestWatchDashboardInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"totalWidgets": 3}`), 0600))

	err := WatchDashboard(context.Background(), path)
	assert.ErrorIs(t, err, widget.ErrInvalidConfig)
}

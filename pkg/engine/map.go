// Package engine provides a public API for refreshing dashwire widgets
// programmatically. This package allows third-party applications to fetch
// and map widget data directly in their codebase without running the
// dashwire server.
//
// The main functionality includes:
//   - Mapping an already fetched JSON document with a widget definition
//   - Fetching and mapping a single widget on demand
//   - Keeping every widget of a dashboard file refreshed on its interval
//   - Monitoring refreshes through event listeners
//
// Example usage:
//
//	definition, _ := os.ReadFile("btc-card.json")
//
//	// Fetch the widget's API and map the response
//	result, err := RefreshWidget(ctx, definition)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Follow a whole dashboard with progress monitoring
//	listener := &MyListener{}
//	err = WatchDashboard(ctx, "dashboard.json", WithProgressListener(listener))
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/text/language"

	"github.com/lacquerai/dashwire/internal/fetch"
	"github.com/lacquerai/dashwire/internal/jsonvalue"
	"github.com/lacquerai/dashwire/internal/mapping"
	"github.com/lacquerai/dashwire/internal/refresh"
	"github.com/lacquerai/dashwire/internal/store"
	"github.com/lacquerai/dashwire/internal/widget"
	"github.com/lacquerai/dashwire/pkg/events"
)

// listenerBuffer is the number of events a slow listener may lag behind
// before events are dropped for it.
const listenerBuffer = 128

type settings struct {
	locale         string
	currencySymbol string
	httpClient     *http.Client
	listener       events.Listener
	minInterval    time.Duration
}

// Option represents a functional option for configuring widget refreshes.
// Options allow customization of formatting, transport and progress
// reporting.
type Option func(*settings)

// WithLocale creates an Option that sets the BCP 47 locale used to group
// digits of formatted values, for example "en-US" or "de-DE".
//
// The locale is parsed when the option is used; an invalid tag makes the
// call fail before anything is fetched.
func WithLocale(tag string) Option {
	return func(s *settings) {
		s.locale = tag
	}
}

// WithCurrencySymbol creates an Option that prefixes values formatted as
// currency with symbol.
func WithCurrencySymbol(symbol string) Option {
	return func(s *settings) {
		s.currencySymbol = symbol
	}
}

// WithHTTPClient creates an Option that fetches widget APIs with hc
// instead of a client with the default 30 second timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *settings) {
		s.httpClient = hc
	}
}

// WithMinRefreshInterval creates an Option that clamps widget refresh
// intervals to at least d in WatchDashboard.
func WithMinRefreshInterval(d time.Duration) Option {
	return func(s *settings) {
		s.minInterval = d
	}
}

// WithProgressListener creates an Option that configures a progress
// listener for monitoring widget refreshes in real-time.
//
// The provided listener receives a loading event when a fetch begins,
// followed by an updated event carrying the mapped data or a failed event
// carrying the error. WatchDashboard additionally reports dashboard
// changes and widget removals.
//
// Parameters:
//   - listener: An implementation of events.Listener that will receive widget events
//
// Returns:
//   - Option: A functional option that can be passed to RefreshWidget or WatchDashboard
//
// Example:
//
//	type MyListener struct{}
//
//	func (l *MyListener) StartListening(eventChan <-chan events.WidgetEvent) {
//		go func() {
//			for event := range eventChan {
//				fmt.Printf("%s %s at %s\n", event.WidgetID, event.Type, event.Timestamp)
//			}
//		}()
//	}
//
//	func (l *MyListener) StopListening() {}
func WithProgressListener(listener events.Listener) Option {
	return func(s *settings) {
		s.listener = listener
	}
}

func newSettings(opts []Option) *settings {
	s := &settings{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *settings) engine() (*mapping.Engine, error) {
	var formatOpts []mapping.FormatterOption
	if s.locale != "" {
		tag, err := language.Parse(s.locale)
		if err != nil {
			return nil, fmt.Errorf("invalid locale %q: %w", s.locale, err)
		}
		formatOpts = append(formatOpts, mapping.WithLocale(tag))
	}
	if s.currencySymbol != "" {
		formatOpts = append(formatOpts, mapping.WithCurrencySymbol(s.currencySymbol))
	}
	return mapping.NewEngine(mapping.WithFormatter(mapping.NewFormatter(formatOpts...))), nil
}

func (s *settings) fetcher() *fetch.Client {
	hc := s.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: fetch.DefaultTimeout}
	}
	return fetch.NewClient(fetch.WithHTTPClient(hc))
}

// attach starts the configured listener on a new broadcaster. The returned
// function detaches the listener and closes the broadcaster.
func (s *settings) attach() (*events.Broadcaster, func()) {
	if s.listener == nil {
		return nil, func() {}
	}
	b := events.NewBroadcaster()
	detach := b.Attach(s.listener, listenerBuffer)
	return b, func() {
		detach()
		b.Close()
	}
}

// ParseWidget decodes a JSON widget definition and validates it. Legacy
// field names such as xFieldPath are accepted.
func ParseWidget(definition []byte) (*widget.Widget, error) {
	var w widget.Widget
	if err := json.Unmarshal(definition, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", widget.ErrInvalidWidget, err)
	}
	if err := widget.Validate(&w).ToError(); err != nil {
		return nil, err
	}
	return &w, nil
}

// MapDocument maps a JSON document with the field mapping of a widget
// definition. Nothing is fetched; the widget's API configuration is
// ignored, so it need not be valid.
//
// Parameters:
//   - definition: The widget definition as JSON
//   - document: The JSON document to map
//   - opts: Optional configuration such as WithLocale
//
// Returns:
//   - *mapping.Result: The card fields, table rows or chart series of the widget
//   - error: Any error decoding the inputs
func MapDocument(definition, document []byte, opts ...Option) (*mapping.Result, error) {
	var w widget.Widget
	if err := json.Unmarshal(definition, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", widget.ErrInvalidWidget, err)
	}

	doc, err := jsonvalue.DecodeBytes(document)
	if err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}

	e, err := newSettings(opts).engine()
	if err != nil {
		return nil, err
	}
	result := e.Map(doc, w.FieldMapping)
	return &result, nil
}

// RefreshWidget fetches the API of a widget definition once and maps the
// response. It uses the same fetch-then-map path as the dashwire server,
// including retries of transient failures.
//
// Parameters:
//   - ctx: Bounds the fetch, including retries
//   - definition: The widget definition as JSON
//   - opts: Optional configuration such as WithProgressListener
//
// Returns:
//   - *mapping.Result: The mapped data of the widget
//   - error: Any validation, fetch or decode error
func RefreshWidget(ctx context.Context, definition []byte, opts ...Option) (*mapping.Result, error) {
	w, err := ParseWidget(definition)
	if err != nil {
		return nil, err
	}

	s := newSettings(opts)
	e, err := s.engine()
	if err != nil {
		return nil, err
	}

	b, stop := s.attach()
	defer stop()

	publish := func(ev events.WidgetEvent) {
		if b == nil {
			return
		}
		ev.Timestamp = time.Now()
		ev.WidgetID = w.ID
		ev.WidgetType = string(w.Type)
		b.Publish(ev)
	}

	publish(events.WidgetEvent{Type: events.EventWidgetLoading})
	start := time.Now()
	doc, err := s.fetcher().Fetch(ctx, w.APIConfig)
	duration := time.Since(start)
	if err != nil {
		publish(events.WidgetEvent{
			Type:     events.EventWidgetFailed,
			Duration: duration,
			Error:    err.Error(),
		})
		return nil, fmt.Errorf("failed to refresh widget %s: %w", w.ID, err)
	}

	result := e.Map(doc, w.FieldMapping)
	publish(events.WidgetEvent{
		Type:     events.EventWidgetUpdated,
		Duration: duration,
		Data:     &result,
	})
	return &result, nil
}

// WatchDashboard loads a dashboard file and keeps every widget in it
// refreshed on its own interval until ctx is cancelled. Widget data is
// only delivered through the progress listener, so callers normally pass
// WithProgressListener.
//
// Parameters:
//   - ctx: Stops all refreshes when cancelled
//   - path: The dashboard file, as written by "dashwire export"
//   - opts: Optional configuration
//
// Returns:
//   - error: Any error loading the dashboard; nil once ctx is cancelled
func WatchDashboard(ctx context.Context, path string, opts ...Option) error {
	s := newSettings(opts)
	e, err := s.engine()
	if err != nil {
		return err
	}

	p, err := store.NewFilePersister(path)
	if err != nil {
		return err
	}
	st := store.New(p)
	if err := st.Load(ctx); err != nil {
		return fmt.Errorf("failed to load dashboard: %w", err)
	}

	b, stop := s.attach()
	defer stop()

	schedOpts := []refresh.Option{refresh.WithMinInterval(s.minInterval)}
	if b != nil {
		schedOpts = append(schedOpts, refresh.WithEvents(b))
	}
	sched := refresh.New(s.fetcher(), e, schedOpts...)
	defer sched.Stop()

	sched.Follow(st)
	<-ctx.Done()
	return nil
}

// Package events provides the types and interfaces for following widget
// data as it is refreshed. A dashwire server publishes one event each time
// a widget starts loading, receives new mapped data or fails, and when the
// dashboard itself changes.
//
// The types are stable so external consumers of the /api/v1/stream
// WebSocket can decode them directly.
package events

import (
	"time"
)

// WidgetEventType represents the kind of widget event that occurred.
type WidgetEventType string

const (
	// EventWidgetLoading is emitted when a fetch for a widget begins.
	EventWidgetLoading WidgetEventType = "widget_loading"

	// EventWidgetUpdated is emitted when a widget has freshly mapped data.
	EventWidgetUpdated WidgetEventType = "widget_updated"

	// EventWidgetFailed is emitted when fetching a widget's data fails.
	EventWidgetFailed WidgetEventType = "widget_failed"

	// EventWidgetRemoved is emitted when a widget stops being refreshed.
	EventWidgetRemoved WidgetEventType = "widget_removed"

	// EventDashboardChanged is emitted when widgets are added, updated,
	// removed or imported.
	EventDashboardChanged WidgetEventType = "dashboard_changed"
)

// WidgetEvent represents a single event in the life of a widget.
type WidgetEvent struct {
	// Type specifies the kind of event.
	Type WidgetEventType `json:"type"`
	// Timestamp indicates when the event occurred.
	Timestamp time.Time `json:"timestamp"`
	// WidgetID identifies the widget. Empty for dashboard events.
	WidgetID string `json:"widget_id,omitempty"`
	// WidgetType is the widget kind: card, table or chart.
	WidgetType string `json:"widget_type,omitempty"`
	// Duration is how long the fetch took (for updated and failed events).
	Duration time.Duration `json:"duration,omitempty"`
	// Error contains the error message for failed events.
	Error string `json:"error,omitempty"`
	// Data carries the mapped widget data for updated events.
	Data any `json:"data,omitempty"`
	// Metadata contains additional structured data specific to the event type.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Listener defines the interface for following widget events.
type Listener interface {
	// StartListening begins consuming events from eventChan. It must not
	// block; implementations consume the channel in their own goroutine.
	StartListening(eventChan <-chan WidgetEvent)

	// StopListening signals that listening should end.
	StopListening()
}

// NoopListener is a Listener implementation that performs no operations.
type NoopListener struct{}

// StartListening implements the Listener interface but performs no operation.
func (n *NoopListener) StartListening(eventChan <-chan WidgetEvent) {}

// StopListening implements the Listener interface but performs no operation.
func (n *NoopListener) StopListening() {}

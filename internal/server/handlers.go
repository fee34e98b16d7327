package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/lacquerai/dashwire/internal/fetch"
	"github.com/lacquerai/dashwire/internal/jsonvalue"
	"github.com/lacquerai/dashwire/internal/mapping"
	"github.com/lacquerai/dashwire/internal/refresh"
	"github.com/lacquerai/dashwire/internal/store"
	"github.com/lacquerai/dashwire/internal/widget"
	"github.com/lacquerai/dashwire/pkg/events"
)

// maxRequestBytes bounds request bodies, posted documents included.
const maxRequestBytes = 8 << 20

// HTTP Handlers

// listWidgets returns every widget in dashboard order
func (s *Server) listWidgets(w http.ResponseWriter, r *http.Request) {
	widgets := s.store.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"widgets": widgets,
		"total":   len(widgets),
	})
}

// createWidget adds a widget; an id is generated when the body has none
func (s *Server) createWidget(w http.ResponseWriter, r *http.Request) {
	var wd widget.Widget
	if err := decodeBody(r, &wd); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid widget: %v", err))
		return
	}

	created, err := s.store.Add(r.Context(), wd)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/widgets/"+created.ID)
	writeJSON(w, http.StatusCreated, created)
}

// getWidget returns one widget
func (s *Server) getWidget(w http.ResponseWriter, r *http.Request) {
	wd, err := s.store.Get(mux.Vars(r)["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wd)
}

// updateWidget merges the posted fields into a widget
func (s *Server) updateWidget(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.store.Patch(r.Context(), mux.Vars(r)["id"], body)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// deleteWidget removes a widget
func (s *Server) deleteWidget(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Remove(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// widgetData returns the latest mapped state of a widget
func (s *Server) widgetData(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.store.Get(id); err != nil {
		writeStoreError(w, err)
		return
	}

	state, ok := s.scheduler.State(id)
	if !ok {
		state = refresh.State{WidgetID: id, Status: refresh.StatusIdle}
	}
	writeJSON(w, http.StatusOK, state)
}

// refreshWidget fetches and maps a widget now and returns its new state
func (s *Server) refreshWidget(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.store.Get(id); err != nil {
		writeStoreError(w, err)
		return
	}

	state, err := s.scheduler.Refresh(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, state)
	case errors.Is(err, refresh.ErrNotScheduled), errors.Is(err, refresh.ErrStale):
		writeError(w, http.StatusConflict, fmt.Sprintf("Widget '%s' is being reconfigured, try again", id))
	default:
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error": err.Error(),
			"state": state,
		})
	}
}

// documentSource is a JSON document posted inline or fetched from a URL.
type documentSource struct {
	Document json.RawMessage   `json:"document,omitempty"`
	URL      string            `json:"url,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
}

func (s *Server) loadDocument(r *http.Request, src documentSource, api widget.APIConfig) (any, int, error) {
	if len(src.Document) > 0 {
		doc, err := jsonvalue.DecodeBytes(src.Document)
		if err != nil {
			return nil, http.StatusBadRequest, fmt.Errorf("invalid document: %w", err)
		}
		return doc, http.StatusOK, nil
	}

	if src.URL != "" {
		api = widget.APIConfig{URL: src.URL, Headers: src.Headers}
	}
	if api.URL == "" {
		return nil, http.StatusBadRequest, fmt.Errorf("a document or url is required")
	}

	doc, err := s.fetcher.Fetch(r.Context(), api)
	if err != nil {
		return nil, http.StatusBadGateway, fmt.Errorf("failed to fetch %s: %w", api.URL, err)
	}
	return doc, http.StatusOK, nil
}

// discover lists the fields of a document a mapping can bind to
func (s *Server) discover(w http.ResponseWriter, r *http.Request) {
	var req struct {
		documentSource
		Kind       widget.Type `json:"kind"`
		ArrayPath  string      `json:"arrayPath,omitempty"`
		ObjectPath string      `json:"objectPath,omitempty"`
		Query      string      `json:"query,omitempty"`
		WidgetID   string      `json:"widgetId,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err))
		return
	}
	if !req.Kind.IsValid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown widget kind %q", req.Kind))
		return
	}

	doc, status, err := s.loadDocument(r, req.documentSource, widget.APIConfig{})
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	fields := mapping.Discover(doc, mapping.Selection{
		Kind:       req.Kind,
		ArrayPath:  req.ArrayPath,
		ObjectPath: req.ObjectPath,
	})
	fields = mapping.FilterFields(fields, req.Query)

	selected := []string{}
	if req.WidgetID != "" {
		wd, err := s.store.Get(req.WidgetID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		for _, f := range fields {
			if mapping.SelectedPaths(wd.FieldMapping)[f.Path] {
				selected = append(selected, f.Path)
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"fields":   fields,
		"total":    len(fields),
		"selected": selected,
	})
}

// preview maps a document through a widget that need not be stored
func (s *Server) preview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		documentSource
		Widget widget.Widget `json:"widget"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err))
		return
	}
	if !req.Widget.Type.IsValid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown widget type %q", req.Widget.Type))
		return
	}

	doc, status, err := s.loadDocument(r, req.documentSource, req.Widget.APIConfig)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.engine.Map(doc, req.Widget.FieldMapping))
}

// exportConfig downloads the dashboard config
func (s *Server) exportConfig(w http.ResponseWriter, r *http.Request) {
	data, err := widget.EncodeConfig(s.store.Export())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", store.ExportFilename(time.Now())))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// importConfig replaces the dashboard with the posted config
func (s *Server) importConfig(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg, err := s.store.Import(r.Context(), body)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	log.Info().Int("widgets", len(cfg.Widgets)).Msg("Dashboard imported")
	writeJSON(w, http.StatusOK, cfg)
}

// stream provides a WebSocket stream of widget events. The optional
// widget query parameter limits it to one widget.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	widgetID := r.URL.Query().Get("widget")
	if widgetID != "" {
		if _, err := s.store.Get(widgetID); err != nil {
			writeStoreError(w, err)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := s.hub.register(conn, widgetID, s.config.StreamBuffer)
	defer s.hub.unregister(c)

	// Replay the current data so clients do not wait for the next refresh.
	for _, state := range s.scheduler.States() {
		if state.Data == nil || (widgetID != "" && state.WidgetID != widgetID) {
			continue
		}
		s.hub.send(c, events.WidgetEvent{
			Type:      events.EventWidgetUpdated,
			Timestamp: state.UpdatedAt,
			WidgetID:  state.WidgetID,
			Duration:  state.Duration,
			Data:      state.Data,
		})
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// healthCheck returns server health status
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"widgets":        s.store.Len(),
		"stream_clients": s.hub.Count(),
		"timestamp":      time.Now(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

// writeStoreError maps store, validation and fetch errors to status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	var statusErr *fetch.StatusError

	switch {
	case errors.Is(err, store.ErrWidgetNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrDuplicateWidget):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, widget.ErrInvalidWidget),
		errors.Is(err, widget.ErrInvalidConfig),
		errors.Is(err, widget.ErrUnsupportedVersion):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &statusErr):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		log.Error().Err(err).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, fmt.Errorf("request body required")
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	return data, nil
}

func decodeBody(r *http.Request, v any) error {
	data, err := readBody(r)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/lacquerai/dashwire/pkg/events"
)

const writeWait = 10 * time.Second

// Hub fans widget events out to WebSocket clients. It implements
// events.Listener.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	wg      sync.WaitGroup

	connected prometheus.Gauge
	dropped   prometheus.Counter
}

type client struct {
	conn     *websocket.Conn
	widgetID string
	send     chan []byte
}

// NewHub creates a Hub and registers its metrics with registerer when it
// is not nil.
func NewHub(registerer prometheus.Registerer) *Hub {
	h := &Hub{
		clients: make(map[*client]struct{}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dashwire_stream_clients",
			Help: "Number of connected WebSocket clients",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dashwire_stream_dropped_total",
			Help: "Events dropped because a client was too slow",
		}),
	}

	if registerer != nil {
		registerer.MustRegister(h.connected)
		registerer.MustRegister(h.dropped)
	}

	return h
}

// StartListening forwards events from eventChan until it is closed.
func (h *Hub) StartListening(eventChan <-chan events.WidgetEvent) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for ev := range eventChan {
			h.Broadcast(ev)
		}
	}()
}

// StopListening disconnects every client.
func (h *Hub) StopListening() {
	h.wg.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.remove(c)
	}
}

// Broadcast queues ev for every client interested in it.
func (h *Hub) Broadcast(ev events.WidgetEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("event", string(ev.Type)).Msg("Failed to encode event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if c.widgetID != "" && ev.WidgetID != "" && c.widgetID != ev.WidgetID {
			continue
		}
		h.enqueue(c, data)
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// register adds conn and starts its writer. Events for other widgets are
// filtered out when widgetID is set.
func (h *Hub) register(conn *websocket.Conn, widgetID string, buffer int) *client {
	if buffer <= 0 {
		buffer = 1
	}
	c := &client{conn: conn, widgetID: widgetID, send: make(chan []byte, buffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.connected.Inc()
	h.mu.Unlock()

	go c.writePump()
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(c)
}

// send queues ev for a single client.
func (h *Hub) send(c *client, ev events.WidgetEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; ok {
		h.enqueue(c, data)
	}
}

// enqueue never blocks. Callers hold h.mu.
func (h *Hub) enqueue(c *client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.dropped.Inc()
	}
}

// remove closes the client's queue. Callers hold h.mu for writing.
func (h *Hub) remove(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.connected.Dec()
}

// writePump is the only writer of the connection. Closing the connection
// ends the reader in the stream handler, which unregisters the client.
func (c *client) writePump() {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug().Err(err).Msg("WebSocket write failed")
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.conn.Close()
}

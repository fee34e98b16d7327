package events

import (
	"sync"
)

// Broadcaster fans events out to any number of subscribers. Publishing
// never blocks: a subscriber whose buffer is full misses the event.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[chan WidgetEvent]struct{}
	closed bool
}

// NewBroadcaster creates a Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan WidgetEvent]struct{})}
}

// Subscribe returns a channel receiving every published event and a
// function that unsubscribes and closes it.
func (b *Broadcaster) Subscribe(buffer int) (<-chan WidgetEvent, func()) {
	ch := make(chan WidgetEvent, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
		})
	}
}

// Attach subscribes l and starts it.
func (b *Broadcaster) Attach(l Listener, buffer int) func() {
	ch, cancel := b.Subscribe(buffer)
	l.StartListening(ch)
	return func() {
		cancel()
		l.StopListening()
	}
}

// Publish delivers ev to every subscriber with room in its buffer.
func (b *Broadcaster) Publish(ev WidgetEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close closes every subscriber channel. Later subscriptions receive a
// closed channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
		delete(b.subs, ch)
	}
}

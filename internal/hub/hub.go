package hub

import (
	"context"
	"sync"

	"github.com/atikulmunna/logbook/internal/logging"
	"github.com/atikulmunna/logbook/internal/model"
	"github.com/atikulmunna/logbook/internal/parser"
)

const subscriberBuffer = 1024

// Hub fans recorded entries out to subscribers. Entries arrive either as raw
// lines on the input channel, which are parsed first, or through Publish.
type Hub struct {
	parser      parser.Parser
	input       <-chan model.RawLine
	logger      *logging.Logger
	mu          sync.RWMutex
	subscribers map[chan model.Log]struct{}
	dropped     int64
	closed      bool
}

// New creates a Hub. input may be nil when entries only come through Publish.
func New(input <-chan model.RawLine, p parser.Parser, logger *logging.Logger) *Hub {
	return &Hub{
		parser:      p,
		input:       input,
		logger:      logger,
		subscribers: make(map[chan model.Log]struct{}),
	}
}

// Subscribe returns a buffered channel that receives every entry published
// after the call. The channel is closed by Unsubscribe or when the hub stops.
func (h *Hub) Subscribe() <-chan model.Log {
	ch := make(chan model.Log, subscriberBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (h *Hub) Unsubscribe(sub <-chan model.Log) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		if ch == sub {
			delete(h.subscribers, ch)
			close(ch)
			return
		}
	}
}

// Dropped returns the total number of entries dropped due to slow consumers.
func (h *Hub) Dropped() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Start reads raw lines from the input channel, parses and broadcasts them.
// Blocks until the context is cancelled or the input channel is closed, then
// closes every subscriber.
func (h *Hub) Start(ctx context.Context) {
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-h.input:
			if !ok {
				return
			}
			h.Publish(h.parser.Parse(raw.Text, raw.Source))
		}
	}
}

// Publish sends entry to all subscribers without blocking.
// A subscriber whose buffer is full misses the entry.
func (h *Hub) Publish(entry model.Log) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subscribers {
		select {
		case ch <- entry:
		default:
			h.dropped++
			h.logger.Warn("hub: dropped entry for slow consumer", "dropped_total", h.dropped)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		close(ch)
	}
	h.subscribers = make(map[chan model.Log]struct{})
	h.closed = true
}

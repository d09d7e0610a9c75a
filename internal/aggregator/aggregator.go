package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/atikulmunna/logbook/internal/model"
	"github.com/samber/lo"
)

const window = 5 * time.Second

// Stats holds a point-in-time snapshot of recording activity.
type Stats struct {
	Uptime      string           `json:"uptime"`
	TotalEvents int64            `json:"total_events"`
	EPS         float64          `json:"eps"`
	LevelCounts map[string]int64 `json:"level_counts"`
	SourceCount map[string]int64 `json:"source_counts"`
	DroppedLogs int64            `json:"dropped_logs"`
	Sinks       int              `json:"sinks"`
}

// Aggregator consumes a hub subscription and keeps per-level and per-source
// counts plus a sliding window for events per second.
type Aggregator struct {
	mu           sync.RWMutex
	startTime    time.Time
	totalEvents  int64
	levelCounts  map[string]int64
	sourceCounts map[string]int64
	window       []time.Time
	dropped      func() int64
	sinks        func() int
	entries      <-chan model.Log
}

// New creates an Aggregator reading entries from a hub subscription.
// droppedFn and sinksFn provide live values from the hub and storage.
func New(entries <-chan model.Log, droppedFn func() int64, sinksFn func() int) *Aggregator {
	return &Aggregator{
		startTime:    time.Now(),
		levelCounts:  make(map[string]int64),
		sourceCounts: make(map[string]int64),
		dropped:      droppedFn,
		sinks:        sinksFn,
		entries:      entries,
	}
}

// Snapshot returns the current metrics.
func (a *Aggregator) Snapshot() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	cutoff := time.Now().Add(-window)
	recent := lo.CountBy(a.window, func(t time.Time) bool { return t.After(cutoff) })

	return Stats{
		Uptime:      time.Since(a.startTime).Truncate(time.Second).String(),
		TotalEvents: a.totalEvents,
		EPS:         float64(recent) / window.Seconds(),
		LevelCounts: lo.Assign(a.levelCounts),
		SourceCount: lo.Assign(a.sourceCounts),
		DroppedLogs: a.dropped(),
		Sinks:       a.sinks(),
	}
}

// Start consumes entries until the context is cancelled or the subscription closes.
func (a *Aggregator) Start(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-a.entries:
			if !ok {
				return
			}
			a.record(entry)
		case <-ticker.C:
			a.prune()
		}
	}
}

func (a *Aggregator) record(entry model.Log) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalEvents++
	a.levelCounts[entry.Level()]++
	a.sourceCounts[entry.Source()]++
	a.window = append(a.window, time.Now())
}

// prune drops window timestamps older than the EPS window.
func (a *Aggregator) prune() {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := time.Now().Add(-window)
	a.window = lo.Filter(a.window, func(t time.Time, _ int) bool { return t.After(cutoff) })
}

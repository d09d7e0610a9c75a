package hub

import (
	"context"
	"testing"
	"time"

	"github.com/atikulmunna/logbook/internal/logging"
	"github.com/atikulmunna/logbook/internal/model"
	"github.com/atikulmunna/logbook/internal/parser"
)

func TestHubBroadcast(t *testing.T) {
	input := make(chan model.RawLine, 10)
	h := New(input, parser.NewLineParser(), logging.Discard())

	sub1 := h.Subscribe()
	sub2 := h.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Start(ctx)

	// Send a recorded line.
	input <- model.RawLine{Text: "error - disk full - 2026-02-17T12:00:00Z", Source: "err.log"}

	// Both subscribers should receive it.
	for i, sub := range []<-chan model.Log{sub1, sub2} {
		select {
		case e := <-sub:
			if e.Level() != "error" {
				t.Errorf("sub%d: expected error, got %s", i+1, e.Level())
			}
			if e.Source() != "err.log" {
				t.Errorf("sub%d: expected source err.log, got %s", i+1, e.Source())
			}
		case <-time.After(1 * time.Second):
			t.Fatalf("sub%d: timed out", i+1)
		}
	}
}

func TestHubPublish(t *testing.T) {
	h := New(nil, parser.NewLineParser(), logging.Discard())
	sub := h.Subscribe()

	h.Publish(model.NewLog("info", "direct", "default.log"))

	select {
	case e := <-sub:
		if e.Message() != "direct" {
			t.Errorf("expected 'direct', got %q", e.Message())
		}
	default:
		t.Fatal("expected published entry to be buffered")
	}
}

func TestHubUnsubscribe(t *testing.T) {
	h := New(nil, parser.NewLineParser(), logging.Discard())
	sub := h.Subscribe()

	h.Unsubscribe(sub)
	h.Publish(model.NewLog("info", "after", "default.log"))

	if _, ok := <-sub; ok {
		t.Error("expected closed channel after unsubscribe")
	}
	if h.Dropped() != 0 {
		t.Errorf("expected no drops, got %d", h.Dropped())
	}
}

func TestHubSlowConsumer(t *testing.T) {
	h := New(nil, parser.NewLineParser(), logging.Discard())

	// Subscribe but never read: a slow consumer.
	_ = h.Subscribe()

	// Fill beyond the subscriber buffer.
	for i := 0; i < subscriberBuffer+100; i++ {
		h.Publish(model.NewLog("info", "line", "test.log"))
	}

	if h.Dropped() != 100 {
		t.Errorf("expected 100 dropped entries, got %d", h.Dropped())
	}
}

func TestHubStopClosesSubscribers(t *testing.T) {
	input := make(chan model.RawLine)
	h := New(input, parser.NewLineParser(), logging.Discard())
	sub := h.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Start(ctx)
		close(done)
	}()
	cancel()
	<-done

	if _, ok := <-sub; ok {
		t.Error("expected subscriber closed after stop")
	}
	if _, ok := <-h.Subscribe(); ok {
		t.Error("expected subscribe after stop to return a closed channel")
	}
}

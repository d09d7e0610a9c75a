package tailer

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/atikulmunna/logbook/internal/logging"
	"github.com/atikulmunna/logbook/internal/model"
	"github.com/atikulmunna/logbook/internal/watcher"
	"github.com/fsnotify/fsnotify"
)

const reconnectAttempts = 5

// Tailer reads lines appended to followed recorder files and emits RawLine values.
type Tailer struct {
	mu     sync.Mutex
	files  map[string]*trackedFile
	out    chan model.RawLine
	ckpt   *Checkpoint
	logger *logging.Logger
	events <-chan watcher.Event
	watch  *watcher.Watcher

	// reopened carries paths that reappeared after removal back to Start,
	// which owns every trackedFile's reader.
	reopened chan string
}

type trackedFile struct {
	path    string
	file    *os.File
	reader  *bufio.Reader
	offset  int64  // end of the last complete line emitted
	partial string // bytes after offset without a trailing newline yet
}

// New creates a Tailer that reads events from the given Watcher.
func New(w *watcher.Watcher, ckpt *Checkpoint, logger *logging.Logger) *Tailer {
	return &Tailer{
		files:  make(map[string]*trackedFile),
		out:    make(chan model.RawLine, 512),
		ckpt:   ckpt,
		logger: logger,
		events:   w.Events,
		watch:    w,
		reopened: make(chan string, 16),
	}
}

// Lines returns the channel where raw lines are sent. It is closed when Start returns.
func (t *Tailer) Lines() <-chan model.RawLine {
	return t.out
}

// Start processes watcher events until the context is cancelled.
func (t *Tailer) Start(ctx context.Context) {
	defer close(t.out)

	for _, p := range t.watch.Paths() {
		t.openFile(p)
	}

	saveTicker := time.NewTicker(5 * time.Second)
	defer saveTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.saveCheckpoint()
			t.closeAll()
			return

		case ev, ok := <-t.events:
			if !ok {
				t.saveCheckpoint()
				t.closeAll()
				return
			}
			t.handleEvent(ctx, ev)

		case path := <-t.reopened:
			// The recreated file already holds the entry that created it.
			t.openFile(path)
			t.readNewLines(ctx, path)

		case <-saveTicker.C:
			t.saveCheckpoint()
		}
	}
}

func (t *Tailer) handleEvent(ctx context.Context, ev watcher.Event) {
	switch {
	case ev.Op&fsnotify.Write != 0:
		t.readNewLines(ctx, ev.Path)

	case ev.Op&fsnotify.Create != 0:
		t.openFile(ev.Path)
		t.readNewLines(ctx, ev.Path)

	case ev.Op&fsnotify.Remove != 0, ev.Op&fsnotify.Rename != 0:
		// The recorder recreates a file on the next append after it is removed;
		// read the new file from its start.
		t.closeFile(ev.Path)
		t.ckpt.Set(ev.Path, 0)
		go t.reconnect(ctx, ev.Path)
	}
}

// openFile opens path, resuming from the checkpointed offset or the end of file.
func (t *Tailer) openFile(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.files[path]; exists {
		return
	}

	f, err := os.Open(path)
	if err != nil {
		t.logger.Warn("cannot open file", "path", path, "error", err)
		return
	}

	var offset int64
	if saved, ok := t.ckpt.Get(path); ok {
		offset = saved
	} else {
		offset, _ = f.Seek(0, io.SeekEnd)
	}
	if info, err := f.Stat(); err == nil && offset > info.Size() {
		// Truncated since the checkpoint was written.
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		t.logger.Warn("cannot seek file", "path", path, "error", err)
		f.Close()
		return
	}

	t.logger.Debug("following file", "path", path, "offset", offset)
	t.files[path] = &trackedFile{
		path:   path,
		file:   f,
		reader: bufio.NewReader(f),
		offset: offset,
	}
}

// readNewLines emits every complete line between the last offset and EOF.
// A trailing fragment is held until its newline arrives.
func (t *Tailer) readNewLines(ctx context.Context, path string) {
	t.mu.Lock()
	tf, ok := t.files[path]
	t.mu.Unlock()
	if !ok {
		return
	}

	for {
		chunk, err := tf.reader.ReadString('\n')
		if err != nil {
			tf.partial += chunk
			if !errors.Is(err, io.EOF) {
				t.logger.Error("read error", "path", path, "error", err)
			}
			break
		}

		line := tf.partial + chunk
		tf.partial = ""
		tf.offset += int64(len(line))

		select {
		case t.out <- model.RawLine{Text: strings.TrimRight(line, "\r\n"), Source: path}:
		case <-ctx.Done():
			return
		}
	}

	t.ckpt.Set(path, tf.offset)
}

func (t *Tailer) closeFile(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if tf, ok := t.files[path]; ok {
		tf.file.Close()
		delete(t.files, path)
	}
}

// reconnect polls for a removed file to reappear.
func (t *Tailer) reconnect(ctx context.Context, path string) {
	for i := 0; i < reconnectAttempts; i++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(1 * time.Second):
		}
		if _, err := os.Stat(path); err == nil {
			t.logger.Info("reconnected to recreated file", "path", path)
			if err := t.watch.ReWatch(path); err != nil {
				t.logger.Warn("cannot rewatch file", "path", path, "error", err)
			}
			select {
			case t.reopened <- path:
			case <-ctx.Done():
			}
			return
		}
	}
	t.logger.Warn("gave up reconnecting", "path", path, "attempts", reconnectAttempts)
}

func (t *Tailer) saveCheckpoint() {
	if err := t.ckpt.Save(); err != nil {
		t.logger.Error("checkpoint save failed", "error", err)
	}
}

func (t *Tailer) closeAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for path, tf := range t.files {
		tf.file.Close()
		delete(t.files, path)
	}
}

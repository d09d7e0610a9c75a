package storage

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/atikulmunna/logbook/internal/config"
	"github.com/atikulmunna/logbook/internal/logging"
	"github.com/atikulmunna/logbook/internal/metrics"
	"github.com/atikulmunna/logbook/internal/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`)

func fixedClock() time.Time {
	return time.Date(2026, 2, 17, 12, 0, 0, 0, time.Local)
}

func TestLogDefaultsForUnconfiguredAPI(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := New(config.Empty(), WithFs(fs))

	entry := s.Log("apiX", "hello")

	assert.Equal(t, "info", entry.Level())
	assert.Equal(t, "default.log", entry.Source())
	assert.Equal(t, "hello", entry.Message())
	assert.Regexp(t, timestampPattern, entry.Timestamp())

	logs := s.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, entry, logs[0])
}

func TestLogConfiguredAPIWritesFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "log.properties",
		[]byte("api1.level=error\napi1.filepath=err.log\n"), 0o644))

	s := Open("log.properties", WithFs(fs), WithClock(fixedClock))
	s.Log("api1", "boom")

	logs := s.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, "error", logs[0].Level())
	assert.Equal(t, "err.log", logs[0].Source())

	data, err := afero.ReadFile(fs, "err.log")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "error - boom - 2026-02-17T12:00:00Z\n"),
		"unexpected file content %q", data)
}

func TestLogAppendsToExistingFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "default.log", []byte("earlier line\n"), 0o644))
	s := New(config.Empty(), WithFs(fs), WithClock(fixedClock))

	s.Log("a", "one")
	s.Log("b", "two")

	data, err := afero.ReadFile(fs, "default.log")
	require.NoError(t, err)
	assert.Equal(t,
		"earlier line\n"+
			"info - one - 2026-02-17T12:00:00Z\n"+
			"info - two - 2026-02-17T12:00:00Z\n",
		string(data))
}

func TestMissingConfigWarnsOnce(t *testing.T) {
	var buf bytes.Buffer
	fs := afero.NewMemMapFs()

	s := Open("log.properties", WithFs(fs), WithLogger(logging.New(&buf, logging.LevelDebug, logging.FormatText)))
	entry := s.Log("apiY", "x")
	s.Log("apiY", "y")
	s.Log("apiZ", "z")

	assert.Equal(t, "info", entry.Level())
	assert.Equal(t, "default.log", entry.Source())
	assert.Equal(t, 1, strings.Count(buf.String(), "failed to load log configuration file"))
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Equal(t, 0, s.Config().Len())
}

func TestUnreadableConfigReportsError(t *testing.T) {
	var buf bytes.Buffer
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "log.properties", []byte("api1.level=\\uZZZZ\n"), 0o644))

	s := Open("log.properties", WithFs(fs), WithLogger(logging.New(&buf, logging.LevelDebug, logging.FormatText)))
	entry := s.Log("api1", "still works")

	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Equal(t, "info", entry.Level())
	assert.Equal(t, 1, s.Len())
}

func TestWriteFailureKeepsMemoryRecord(t *testing.T) {
	var buf bytes.Buffer
	m := metrics.New()
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	s := New(config.Empty(),
		WithFs(fs),
		WithMetrics(m),
		WithLogger(logging.New(&buf, logging.LevelDebug, logging.FormatText)))

	for i := 0; i < 5; i++ {
		s.Log("api", fmt.Sprintf("msg %d", i))
	}

	assert.Equal(t, 5, s.Len())
	assert.Equal(t, 5, strings.Count(buf.String(), "failed to write log to file"))
	exists, err := afero.Exists(fs, "default.log")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWriteToMissingDirectoryFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.log")
	s := New(config.New(map[string]string{"api1.filepath": path}), WithFs(afero.NewOsFs()))

	err := s.writeToFile(path, model.NewLog("info", "x", path))

	var writeErr *WriteError
	require.True(t, errors.As(err, &writeErr))
	assert.Equal(t, path, writeErr.Path)

	// The entry is still recorded by Log.
	s.Log("api1", "x")
	assert.Equal(t, 1, s.Len())
}

func TestLogsReturnsSnapshot(t *testing.T) {
	s := New(config.Empty(), WithFs(afero.NewMemMapFs()))
	s.Log("a", "first")

	snapshot := s.Logs()
	s.Log("a", "second")

	assert.Len(t, snapshot, 1)
	assert.Equal(t, 2, s.Len())
}

func TestObserverSeesEveryEntry(t *testing.T) {
	var seen []model.Log
	s := New(config.Empty(),
		WithFs(afero.NewMemMapFs()),
		WithObserver(func(l model.Log) { seen = append(seen, l) }))

	s.Log("a", "one")
	s.Log("b", "two")

	require.Len(t, seen, 2)
	assert.Equal(t, "one", seen[0].Message())
	assert.Equal(t, "two", seen[1].Message())
}

func TestMetricsCountByLevel(t *testing.T) {
	m := metrics.New()
	s := New(config.New(map[string]string{"api1.level": "error"}),
		WithFs(afero.NewMemMapFs()), WithMetrics(m))

	s.Log("api1", "x")
	s.Log("api2", "y")
	s.Log("api2", "z")

	out, err := testutil.GatherAndCount(m.Registry(), "logbook_logs_recorded_total")
	require.NoError(t, err)
	assert.Equal(t, 2, out) // one series per level
}

func TestSinks(t *testing.T) {
	s := New(config.New(map[string]string{"api1.filepath": "err.log"}), WithFs(afero.NewMemMapFs()))

	s.Log("api2", "a")
	s.Log("api1", "b")
	s.Log("api3", "c")

	assert.Equal(t, []string{"default.log", "err.log"}, s.Sinks())
	assert.Equal(t, 2, s.SinkCount())

	sinks := s.Sinks()
	sinks[0] = "changed"
	assert.Equal(t, "default.log", s.Sinks()[0])
}

func TestConcurrentLog(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := New(config.Empty(), WithFs(fs))

	const writers, perWriter = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				s.Log("api", fmt.Sprintf("w%d-%d", w, i))
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, writers*perWriter, s.Len())
	data, err := afero.ReadFile(fs, "default.log")
	require.NoError(t, err)
	assert.Equal(t, writers*perWriter, strings.Count(string(data), "\n"))
}

func TestConcurrentLogKeepsFileOrderEqualToMemoryOrder(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := New(config.Empty(), WithFs(fs), WithClock(fixedClock))

	const writers, perWriter = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				s.Log("api", fmt.Sprintf("w%d-%d", w, i))
			}
		}(w)
	}
	wg.Wait()

	var want strings.Builder
	for _, l := range s.Logs() {
		want.WriteString(l.Line())
	}
	data, err := afero.ReadFile(fs, "default.log")
	require.NoError(t, err)
	assert.Equal(t, want.String(), string(data))
}

func TestLogReportsRecordedEntryAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, logging.LevelDebug, logging.FormatText).With("component", "storage")
	s := New(config.Empty(), WithFs(afero.NewMemMapFs()), WithLogger(logger))

	s.Log("api1", "x")

	assert.Contains(t, buf.String(), "recorded entry")
	assert.Contains(t, buf.String(), "component=storage")
	assert.Contains(t, buf.String(), "path=default.log")
}

package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimestampLayout is the fixed timestamp format stamped on every Log.
// The trailing Z is a literal letter: timestamps are local wall-clock time.
const TimestampLayout = "2006-01-02T15:04:05Z"

// LineSeparator joins the fields of a recorded line.
const LineSeparator = " - "

// Log is a single recorded entry. It is immutable once constructed.
//
// Source holds the resolved output file path the entry was written to,
// not the API identifier that produced it.
type Log struct {
	level     string
	message   string
	timestamp string
	source    string
}

// NewLog builds a Log stamped with the current local time.
func NewLog(level, message, source string) Log {
	return NewLogAt(level, message, source, time.Now())
}

// NewLogAt builds a Log stamped with t.
func NewLogAt(level, message, source string, t time.Time) Log {
	return NewLogWithTimestamp(level, message, t.Format(TimestampLayout), source)
}

// NewLogWithTimestamp builds a Log from an already formatted timestamp,
// e.g. one read back from a recorded file.
func NewLogWithTimestamp(level, message, timestamp, source string) Log {
	return Log{
		level:     level,
		message:   message,
		timestamp: timestamp,
		source:    source,
	}
}

func (l Log) Level() string     { return l.level }
func (l Log) Message() string   { return l.message }
func (l Log) Timestamp() string { return l.timestamp }
func (l Log) Source() string    { return l.source }

// Line renders the entry the way it is appended to its file, newline included.
func (l Log) Line() string {
	return l.level + LineSeparator + l.message + LineSeparator + l.timestamp + "\n"
}

func (l Log) String() string {
	return fmt.Sprintf("Log{level='%s', logString='%s', timestamp='%s', source='%s'}",
		l.level, l.message, l.timestamp, l.source)
}

// MarshalJSON encodes the entry for the JSON renderer and the HTTP API.
func (l Log) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Level     string `json:"level"`
		Message   string `json:"message"`
		Timestamp string `json:"timestamp"`
		Source    string `json:"source"`
	}{l.level, l.message, l.timestamp, l.source})
}

// RawLine is an unparsed line read from a followed file.
type RawLine struct {
	Text   string
	Source string // originating file path
}

package parser

import (
	"strings"
	"time"

	"github.com/atikulmunna/logbook/internal/config"
	"github.com/atikulmunna/logbook/internal/model"
)

// Parser converts a raw line read from a recorded file back into a Log.
type Parser interface {
	Parse(raw string, source string) model.Log
}

// LineParser reads the "<level> - <message> - <timestamp>" lines storage writes.
// The level ends at the first separator and the timestamp starts after the
// last one, so messages may themselves contain " - ".
type LineParser struct {
	now func() time.Time
}

func NewLineParser() *LineParser {
	return &LineParser{now: time.Now}
}

func (p *LineParser) Parse(raw string, source string) model.Log {
	line := strings.TrimRight(raw, "\r\n")

	first := strings.Index(line, model.LineSeparator)
	last := strings.LastIndex(line, model.LineSeparator)
	if first < 0 || last <= first {
		return p.fallback(line, source)
	}

	level := line[:first]
	message := line[first+len(model.LineSeparator) : last]
	ts := line[last+len(model.LineSeparator):]

	if !validTimestamp(ts) {
		return p.fallback(line, source)
	}
	return model.NewLogWithTimestamp(level, message, ts, source)
}

// fallback keeps a line written by something other than storage, stamped now.
func (p *LineParser) fallback(line, source string) model.Log {
	return model.NewLogAt(config.DefaultLevel, line, source, p.now())
}

func validTimestamp(ts string) bool {
	_, err := time.ParseInLocation(model.TimestampLayout, ts, time.Local)
	return err == nil
}

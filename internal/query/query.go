// Package query is the caller-facing facade over storage: it records entries
// and answers linear filter queries over everything recorded so far.
package query

import (
	"strings"

	"github.com/atikulmunna/logbook/internal/model"
	"github.com/samber/lo"
)

// Store is the storage the facade delegates to.
type Store interface {
	Log(api, message string) model.Log
	Logs() []model.Log
}

// Filter holds the optional query constraints. A nil field does not
// constrain; a non-nil field, even an empty string, must match.
type Filter struct {
	Level     *string `json:"level,omitempty"`
	LogString *string `json:"log_string,omitempty"` // substring of the message
	Timestamp *string `json:"timestamp,omitempty"`
	Source    *string `json:"source,omitempty"`
}

// Match reports whether l satisfies every set constraint. Comparisons are
// case-sensitive: exact for level, timestamp and source, substring for the message.
func (f Filter) Match(l model.Log) bool {
	return (f.Level == nil || l.Level() == *f.Level) &&
		(f.LogString == nil || strings.Contains(l.Message(), *f.LogString)) &&
		(f.Timestamp == nil || l.Timestamp() == *f.Timestamp) &&
		(f.Source == nil || l.Source() == *f.Source)
}

// Ptr returns a pointer to s, for building a Filter inline.
func Ptr(s string) *string {
	return lo.ToPtr(s)
}

// Interface records and queries log entries.
type Interface struct {
	store Store
}

// New returns an Interface over store.
func New(store Store) *Interface {
	return &Interface{store: store}
}

// Log records message for api.
func (q *Interface) Log(api, message string) model.Log {
	return q.store.Log(api, message)
}

// QueryLogs returns the recorded entries matching every non-nil argument,
// in recording order.
func (q *Interface) QueryLogs(level, logString, timestamp, source *string) []model.Log {
	return q.Query(Filter{
		Level:     level,
		LogString: logString,
		Timestamp: timestamp,
		Source:    source,
	})
}

// Query is QueryLogs taking a Filter. The result is a new slice and is never nil.
func (q *Interface) Query(f Filter) []model.Log {
	return lo.Filter(q.store.Logs(), func(l model.Log, _ int) bool {
		return f.Match(l)
	})
}

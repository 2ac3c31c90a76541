package app

import (
	"time"
)

// Operation is one CLI invocation. Its ID tags every log line it writes and
// Actor names the user its audit entries are attributed to.
type Operation struct {
	ID      string
	Name    string
	Actor   string // username; empty records anonymous audit entries
	Started time.Time
	Err     error
}

// NewOperation creates an operation started at now.
func NewOperation(name, actor string, now time.Time) *Operation {
	return &Operation{
		ID:      now.UTC().Format("20060102T150405.000Z"),
		Name:    name,
		Actor:   actor,
		Started: now,
	}
}

// Fail records err as the outcome unless one is already recorded.
func (op *Operation) Fail(err error) {
	if op.Err == nil {
		op.Err = err
	}
}

// Status returns "success" or "error".
func (op *Operation) Status() string {
	if op.Err != nil {
		return "error"
	}
	return "success"
}

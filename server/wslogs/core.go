// Package wslogs captures the log lines of individual runs so they can be
// shipped to the WebSocket client that started the run.
package wslogs

import (
	"go.uber.org/zap/zapcore"

	"github.com/teranos/threatbrief/logger"
)

const runIDKey = logger.FieldRunID

// RunCore is a zap core that routes entries carrying a run_id field to the
// hub's batcher for that run. Add it with zapcore.NewTee next to the
// regular output core.
type RunCore struct {
	zapcore.LevelEnabler
	hub    *Hub
	fields []zapcore.Field
	runID  string
}

// NewRunCore creates a core feeding hub. level determines which entries are captured.
func NewRunCore(level zapcore.LevelEnabler, hub *Hub) *RunCore {
	return &RunCore{
		LevelEnabler: level,
		hub:          hub,
	}
}

// With keeps the accumulated fields so entries logged through a child
// logger still resolve their run
func (c *RunCore) With(fields []zapcore.Field) zapcore.Core {
	clone := &RunCore{
		LevelEnabler: c.LevelEnabler,
		hub:          c.hub,
		fields:       make([]zapcore.Field, 0, len(c.fields)+len(fields)),
		runID:        c.runID,
	}
	clone.fields = append(clone.fields, c.fields...)
	clone.fields = append(clone.fields, fields...)
	if id := findRunID(fields); id != "" {
		clone.runID = id
	}
	return clone
}

// Check determines if the logger should log at this level (zap interface)
func (c *RunCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

// Write appends the entry to its run's batch (zap interface).
// Entries without a run, or for runs nobody watches, are dropped.
func (c *RunCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	if !c.Enabled(entry.Level) {
		return nil
	}

	runID := c.runID
	if id := findRunID(fields); id != "" {
		runID = id
	}
	if runID == "" {
		return nil
	}
	batcher := c.hub.batcher(runID)
	if batcher == nil {
		return nil
	}

	all := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	all = append(all, c.fields...)
	all = append(all, fields...)
	batcher.Append(FromZapEntry(entry, all))
	return nil
}

// Sync is a no-op; batches are flushed explicitly
func (c *RunCore) Sync() error {
	return nil
}

func findRunID(fields []zapcore.Field) string {
	for i := len(fields) - 1; i >= 0; i-- {
		if fields[i].Key == runIDKey && fields[i].Type == zapcore.StringType {
			return fields[i].String
		}
	}
	return ""
}

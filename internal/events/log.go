package events

import (
	"github.com/Ning0612/NuUpdater/internal/logger"
)

// LogReporter mirrors events into a structured logger
type LogReporter struct {
	log logger.Logger
}

// NewLogReporter creates a reporter writing to log
func NewLogReporter(log logger.Logger) *LogReporter {
	return &LogReporter{log: log}
}

// Emit implements Reporter
func (r *LogReporter) Emit(e Event) {
	args := []any{"event", string(e.Kind)}
	if e.CycleID != "" {
		args = append(args, "cycle_id", e.CycleID)
	}
	if e.Trigger != "" {
		args = append(args, "trigger", string(e.Trigger))
	}
	if e.Satellite != "" {
		args = append(args, "satellite", e.Satellite)
	}
	if e.Path != "" {
		args = append(args, "path", e.Path)
	}
	if e.Err != nil {
		args = append(args, "error", e.Err)
	}

	msg := e.Message()
	switch {
	case e.Kind == Countdown:
		r.log.Debug(msg, args...)
	case e.Kind == WriteFailed:
		r.log.Error(msg, args...)
	case e.IsFailure() || e.Kind == CooldownActivated:
		r.log.Warn(msg, args...)
	default:
		r.log.Info(msg, args...)
	}
}

package output

import (
	"github.com/Ning0612/NuUpdater/internal/events"
)

// EventPrinter renders the event stream on the terminal
type EventPrinter struct {
	p *Printer

	// ShowCountdown prints a countdown line at every whole minute
	ShowCountdown bool
}

// NewEventPrinter creates an events.Reporter printing through p
func NewEventPrinter(p *Printer) *EventPrinter {
	return &EventPrinter{p: p}
}

// Emit implements events.Reporter
func (ep *EventPrinter) Emit(e events.Event) {
	msg := e.Message()
	switch {
	case e.Kind == events.Countdown:
		if ep.ShowCountdown && e.Countdown > 0 && e.Countdown%60 == 0 {
			ep.p.Print("%s", ep.p.Dim(msg))
		}
	case e.Kind == events.WriteFailed:
		ep.p.Error("%s", msg)
	case e.IsFailure(), e.Kind == events.CooldownActivated:
		ep.p.Warning("%s", msg)
	case e.Kind == events.OutputWritten:
		ep.p.Success("%s", msg)
	case e.Kind == events.CycleStarted, e.Kind == events.SchedulerStarted:
		ep.p.Info("%s", msg)
	default:
		ep.p.Print("%s", msg)
	}
}

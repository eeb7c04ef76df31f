package metrics

import "time"

// Event names.
const (
	EventExchange = "exchange"
)

// Tag keys shared by exchange events.
const (
	TagRequestID = "request_id"
	TagTransport = "transport"
	TagOutcome   = "outcome"
	TagFraming   = "framing"
)

// Event is one observation about an exchange. Value carries the primary
// measurement, in milliseconds for timing events.
type Event struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

type Observer interface {
	RecordEvent(ev Event)
}

type Flusher interface {
	Flush() error
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(Event) {}

// Millis converts a duration into the float milliseconds stored in Event.Value.
func Millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

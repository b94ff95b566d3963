package dispatch

import "github.com/efreitasn/matchcore/internal/engine"

// Handler receives every log the core emits, in sequence order, on the
// dispatcher goroutine. Implementations must not block for long; slow sinks
// belong behind a worker.
type Handler interface {
	Handle(l engine.Log)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(engine.Log)

// Handle calls f(l).
func (f HandlerFunc) Handle(l engine.Log) { f(l) }

// Fanout delivers each log to every handler in order.
type Fanout []Handler

// Handle implements Handler.
func (f Fanout) Handle(l engine.Log) {
	for _, h := range f {
		h.Handle(l)
	}
}

package events

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, the state
// journal, log sinks).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// NewMulti fans every emitted event out to each of the supplied emitters in
// order. Nil emitters are skipped.
func NewMulti(emitters ...Emitter) Emitter {
	filtered := make([]Emitter, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			filtered = append(filtered, e)
		}
	}
	return multiEmitter{emitters: filtered}
}

type multiEmitter struct {
	emitters []Emitter
}

func (m multiEmitter) Emit(evt Event) {
	for _, e := range m.emitters {
		e.Emit(evt)
	}
}

package progress

import (
	"sync"
	"time"

	"github.com/rkuchma96/rcoffee/internal/domain"
)

// Reporter receives phase transitions of the sync coordinator
type Reporter interface {
	// Phase reports entry into a coordinator phase
	Phase(event Event)
}

// EventType identifies a coordinator phase transition
type EventType int

const (
	EventCrossCopyStart EventType = iota
	EventCrossCopyEnd
	EventDedupeStart
	EventDedupeEnd
	EventBatchingStart
	EventBatchingEnd
	EventSyncStart
	EventSyncEnd
	EventCycleComplete
	EventCycleFailed
)

// String returns the event type name
func (t EventType) String() string {
	switch t {
	case EventCrossCopyStart:
		return "cross-copy-start"
	case EventCrossCopyEnd:
		return "cross-copy-end"
	case EventDedupeStart:
		return "dedupe-start"
	case EventDedupeEnd:
		return "dedupe-end"
	case EventBatchingStart:
		return "batching-start"
	case EventBatchingEnd:
		return "batching-end"
	case EventSyncStart:
		return "sync-start"
	case EventSyncEnd:
		return "sync-end"
	case EventCycleComplete:
		return "cycle-complete"
	case EventCycleFailed:
		return "cycle-failed"
	default:
		return "unknown"
	}
}

// Event is a single phase transition
type Event struct {
	Type      EventType
	Direction domain.Direction // set for sync and cycle events
	Time      time.Time
	Err       error // set for EventCycleFailed
}

// Callback is a function that receives phase events
type Callback func(event Event)

// CallbackReporter implements Reporter with a callback function
type CallbackReporter struct {
	mu       sync.Mutex
	callback Callback
}

// NewCallbackReporter creates a new CallbackReporter
func NewCallbackReporter(callback Callback) *CallbackReporter {
	return &CallbackReporter{callback: callback}
}

// Phase forwards the event to the callback
func (r *CallbackReporter) Phase(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	if r.callback != nil {
		r.callback(event)
	}
}

// NullReporter discards all events
type NullReporter struct{}

// Phase implements Reporter
func (NullReporter) Phase(event Event) {}

package guard

import (
	"sync"
	"time"
)

// alertWindowSpan is how long a policy denial counts toward the
// security-alert tripwire.
const alertWindowSpan = 15 * time.Minute

// alertWindow is a rolling count of recent policy denials for one
// agent. The count feeds the validator's alert-threshold hard limit.
type alertWindow struct {
	mu     sync.Mutex
	events []time.Time
}

// record notes one denial at t.
func (w *alertWindow) record(t time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(t)
	w.events = append(w.events, t)
}

// count returns how many denials fall inside the window ending at t.
func (w *alertWindow) count(t time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(t)
	return len(w.events)
}

// reset clears the window. Called when an operator stands the agent
// back up after investigating.
func (w *alertWindow) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = nil
}

func (w *alertWindow) prune(t time.Time) {
	cutoff := t.Add(-alertWindowSpan)
	keep := w.events[:0]
	for _, e := range w.events {
		if e.After(cutoff) {
			keep = append(keep, e)
		}
	}
	w.events = keep
}

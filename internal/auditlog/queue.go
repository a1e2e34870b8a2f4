package auditlog

import (
	"encoding/json"
	"time"
)

// event is a pending audit event owned by the queue until the writer
// consumes it.
type event struct {
	level  Level
	msg    string
	fields json.RawMessage
	ts     time.Time
}

// enqueuer applies the backpressure policy to a bounded queue.
type enqueuer struct {
	queue        chan<- event
	mode         BackpressureMode
	preferUrgent bool
	timeout      time.Duration
}

func newEnqueuer(queue chan<- event, cfg *Config) *enqueuer {
	return &enqueuer{
		queue:        queue,
		mode:         cfg.Backpressure,
		preferUrgent: cfg.PreferReliabilityForWarnError,
		timeout:      cfg.OfferTimeout,
	}
}

// offer reports whether ev was queued. It never waits longer than the
// configured timeout.
func (q *enqueuer) offer(ev event) bool {
	select {
	case q.queue <- ev:
		return true
	default:
	}

	if !q.mayWait(ev.level) || q.timeout <= 0 {
		return false
	}

	timer := time.NewTimer(q.timeout)
	defer timer.Stop()
	select {
	case q.queue <- ev:
		return true
	case <-timer.C:
		return false
	}
}

func (q *enqueuer) mayWait(level Level) bool {
	if q.mode == BackpressureBlock {
		return true
	}
	return q.preferUrgent && level >= LevelWarn
}

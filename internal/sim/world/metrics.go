package world

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Players   int `json:"players"`
	Boxes     int `json:"boxes"`
	Magnets   int `json:"magnets"`
	Observers int `json:"observers"`

	QueueDepths QueueDepths `json:"queue_depths"`

	ContactsDropped uint64  `json:"contacts_dropped"`
	StepMS          float64 `json:"step_ms"`
}

type QueueDepths struct {
	Inbox    int `json:"inbox"`
	Join     int `json:"join"`
	Leave    int `json:"leave"`
	Contacts int `json:"contacts"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

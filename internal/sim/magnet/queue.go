package magnet

import "emotionbank.games/internal/sim/physics"

// Queue buffers contact events between physics steps. It is bounded: events
// arriving while full are dropped and counted.
type Queue struct {
	buf     []physics.Collision
	max     int
	dropped uint64
}

func NewQueue(max int) *Queue {
	if max <= 0 {
		max = 1
	}
	return &Queue{buf: make([]physics.Collision, 0, max), max: max}
}

func (q *Queue) Push(c physics.Collision) bool {
	if len(q.buf) >= q.max {
		q.dropped++
		return false
	}
	q.buf = append(q.buf, c)
	return true
}

// Drain returns the queued events in arrival order and empties the queue.
func (q *Queue) Drain() []physics.Collision {
	if len(q.buf) == 0 {
		return nil
	}
	out := q.buf
	q.buf = make([]physics.Collision, 0, q.max)
	return out
}

func (q *Queue) Len() int        { return len(q.buf) }
func (q *Queue) Dropped() uint64 { return q.dropped }

func (q *Queue) Pending() []physics.Collision {
	return append([]physics.Collision(nil), q.buf...)
}

func (q *Queue) Restore(cs []physics.Collision) {
	q.buf = q.buf[:0]
	for _, c := range cs {
		q.Push(c)
	}
}

package server

import "sync/atomic"

// TaskLimiter enforces max_concurrent_tasks across every connection on the
// agent: the in-flight task counter is process-wide, not per-connection,
// and mutated under atomic increment/decrement rather than a mutex since
// the only operation is a compare-and-increment followed by a decrement.
type TaskLimiter struct {
	max     int64
	inFlight int64
}

// NewTaskLimiter builds a limiter for the given cap. max<=0 means
// unlimited — Acquire always succeeds.
func NewTaskLimiter(max int) *TaskLimiter {
	return &TaskLimiter{max: int64(max)}
}

// Acquire reserves one in-flight slot. Reports false (reservation refused)
// when the cap is already reached; the caller must reply with a Busy
// task_result rather than dispatching to the executor.
func (l *TaskLimiter) Acquire() bool {
	if l.max <= 0 {
		atomic.AddInt64(&l.inFlight, 1)
		return true
	}
	for {
		cur := atomic.LoadInt64(&l.inFlight)
		if cur >= l.max {
			return false
		}
		if atomic.CompareAndSwapInt64(&l.inFlight, cur, cur+1) {
			return true
		}
	}
}

// Release frees one in-flight slot. Must be called exactly once per
// successful Acquire, typically via defer around the dispatch.
func (l *TaskLimiter) Release() {
	atomic.AddInt64(&l.inFlight, -1)
}

// InFlight reports the current number of in-flight tasks, for the
// /healthz probe.
func (l *TaskLimiter) InFlight() int {
	return int(atomic.LoadInt64(&l.inFlight))
}

// Max reports the configured cap (0 means unlimited).
func (l *TaskLimiter) Max() int {
	return int(l.max)
}

package session

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
)

// #region memory-log
// MemoryLog is an in-process Recorder used by replays and tests.
type MemoryLog struct {
	mu     sync.Mutex
	trials []Trial
}

// Record appends t to the log.
func (m *MemoryLog) Record(_ context.Context, t Trial) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trials = append(m.trials, t)
	return nil
}

// Trials returns a copy of the recorded trials in order.
func (m *MemoryLog) Trials() []Trial {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.trials)
}

// #endregion memory-log

// #region abort-flag
// AbortFlag is a concurrency-safe AbortSignal that collaborators can raise.
type AbortFlag struct {
	set atomic.Bool
}

// Raise requests an abort.
func (f *AbortFlag) Raise() { f.set.Store(true) }

// Aborted reports whether Raise was called.
func (f *AbortFlag) Aborted() bool { return f.set.Load() }

// AnyAbort is raised when any of its signals is.
type AnyAbort []AbortSignal

// Aborted reports whether any member signal is raised.
func (a AnyAbort) Aborted() bool {
	for _, s := range a {
		if s != nil && s.Aborted() {
			return true
		}
	}
	return false
}

// #endregion abort-flag

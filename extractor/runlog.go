package extractor

import (
	"sync"
	"time"

	"guild-contributions/internal/types"
)

// RunLog is the append-only progress feed of a run
type RunLog struct {
	mu      sync.RWMutex
	entries []types.LogEntry
	onEntry func(types.LogEntry)
	now     func() time.Time
}

// NewRunLog creates an empty log. onEntry, if not nil, receives every entry as
// it is recorded.
func NewRunLog(onEntry func(types.LogEntry)) *RunLog {
	return &RunLog{onEntry: onEntry, now: time.Now}
}

// Success records a member that was scraped
func (l *RunLog) Success(entity string) types.LogEntry {
	return l.add(types.LogEntry{Status: types.StatusSuccess, Entity: entity})
}

// Failure records a member that could not be scraped
func (l *RunLog) Failure(entity, reason string) types.LogEntry {
	return l.add(types.LogEntry{Status: types.StatusFailure, Entity: entity, Reason: reason})
}

func (l *RunLog) add(entry types.LogEntry) types.LogEntry {
	entry.Time = l.now()

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	if l.onEntry != nil {
		l.onEntry(entry)
	}
	return entry
}

// Entries returns a copy of the entries in the order they were recorded
func (l *RunLog) Entries() []types.LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]types.LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Counts returns the number of successes and failures recorded
func (l *RunLog) Counts() (succeeded, failed int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.entries {
		if e.Status == types.StatusSuccess {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

// Reset drops every entry
func (l *RunLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

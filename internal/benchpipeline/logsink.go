package benchpipeline

import (
	"sync"

	"github.com/aochagavia/ci-bench-runner/internal/interfaces"
)

// memLogSink is an in-memory interfaces.LogSink collecting one run's command
// captures in invocation order.
type memLogSink struct {
	mu      sync.Mutex
	entries []interfaces.LogEntry
}

func newMemLogSink() *memLogSink {
	return &memLogSink{}
}

func (s *memLogSink) Record(entry interfaces.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

func (s *memLogSink) Entries() []interfaces.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]interfaces.LogEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

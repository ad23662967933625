package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	interfaces "github.com/sheikh-saqib/token-ledger/internal/interfaces"
	"github.com/sheikh-saqib/token-ledger/internal/models"
)

// Log is an append-only, in-memory event log. Writers stamp events through
// Append; readers page through Since and wait on Notify.
type Log struct {
	mu      sync.Mutex
	events  []models.Event
	changed chan struct{} // closed and replaced on every append
	now     func() time.Time
}

// NewLog creates an empty Log.
func NewLog() *Log {
	return &Log{
		changed: make(chan struct{}),
		now:     time.Now,
	}
}

// Append stamps the event with an ID, the next sequence number and the
// current time, stores it and wakes any waiting readers.
func (l *Log) Append(event models.Event) models.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	event.ID = uuid.New().String()
	event.Sequence = uint64(len(l.events)) + 1
	event.OccurredAt = l.now().UTC()
	l.events = append(l.events, event)

	close(l.changed)
	l.changed = make(chan struct{})
	return event
}

// Since returns a copy of every event with a sequence number greater than seq.
func (l *Log) Since(seq uint64) []models.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	if seq >= uint64(len(l.events)) {
		return nil
	}
	copied := make([]models.Event, len(l.events)-int(seq))
	copy(copied, l.events[seq:])
	return copied
}

// Len returns the number of events appended so far.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Notify returns a channel that is closed on the next Append.
func (l *Log) Notify() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.changed
}

// Compile-time check: ensure Log implements EventLog
var _ interfaces.EventLog = (*Log)(nil)

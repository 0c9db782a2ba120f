package jobs

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Store is the job registry. Reads are lock-free; each transition is a single
// compare-and-swap of an immutable *Record, so a terminal record can never be
// overwritten.
//
// Entries are never removed. The registry grows for the lifetime of the
// process; see StartMonitor for the size reporting that tracks it.
type Store struct {
	records sync.Map // uuid.UUID -> *Record
	size    atomic.Int64
	newID   func() uuid.UUID
}

// NewStore creates an empty job registry.
func NewStore() *Store {
	return &Store{newID: uuid.New}
}

// Create allocates a fresh id and records it as IN_PROGRESS.
func (s *Store) Create() uuid.UUID {
	for {
		id := s.newID()
		if _, loaded := s.records.LoadOrStore(id, &Record{ID: id, Status: StatusInProgress}); !loaded {
			s.size.Add(1)
			return id
		}
	}
}

// Complete moves an IN_PROGRESS job to COMPLETED with the artifact path.
// Returns false if the id is unknown or the job is already terminal.
func (s *Store) Complete(id uuid.UUID, artifactPath string) bool {
	return s.transition(id, &Record{ID: id, Status: StatusCompleted, ArtifactPath: artifactPath})
}

// Fail moves an IN_PROGRESS job to FAILED with a message.
// Returns false if the id is unknown or the job is already terminal.
func (s *Store) Fail(id uuid.UUID, message string) bool {
	return s.transition(id, &Record{ID: id, Status: StatusFailed, Error: message})
}

func (s *Store) transition(id uuid.UUID, next *Record) bool {
	for {
		v, ok := s.records.Load(id)
		if !ok {
			return false
		}
		cur := v.(*Record)
		if cur.Status.Terminal() {
			return false
		}
		if s.records.CompareAndSwap(id, cur, next) {
			return true
		}
	}
}

// discard forgets an IN_PROGRESS id that was never handed to a caller.
func (s *Store) discard(id uuid.UUID) {
	v, ok := s.records.Load(id)
	if !ok || v.(*Record).Status.Terminal() {
		return
	}
	if s.records.CompareAndDelete(id, v) {
		s.size.Add(-1)
	}
}

// Get returns a copy of the record for id, or a NOT_FOUND record.
func (s *Store) Get(id uuid.UUID) Record {
	v, ok := s.records.Load(id)
	if !ok {
		return Record{ID: id, Status: StatusNotFound}
	}
	return *v.(*Record)
}

// Len returns the number of jobs ever created.
func (s *Store) Len() int {
	return int(s.size.Load())
}

// Counts returns the number of jobs in each stored state.
func (s *Store) Counts() map[Status]int {
	counts := map[Status]int{
		StatusInProgress: 0,
		StatusCompleted:  0,
		StatusFailed:     0,
	}
	s.records.Range(func(_, v any) bool {
		counts[v.(*Record).Status]++
		return true
	})
	return counts
}

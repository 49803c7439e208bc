package state

import (
	"context"
	"sync"

	"github.com/trezcool/masomo-admin/core/student"
)

// StudentList is a snapshot of the students slice.
type StudentList struct {
	Items        []student.Student
	ChangeSignal bool
}

// Ticket identifies one fetch. Results are applied only if no later fetch was applied before them.
type Ticket struct {
	seq    uint64
	signal bool
}

// Students is the students slice. Its actions are Changed (flip the change signal),
// BeginFetch and Apply.
type Students struct {
	mu           sync.RWMutex
	items        []student.Student
	changeSignal bool

	issued        uint64 // last ticket handed out
	applied       uint64 // ticket of the items currently held; 0: never fetched
	appliedSignal bool   // change signal observed by the applied fetch
}

func NewStudents() *Students {
	return &Students{}
}

// Changed flips the change signal so that dependents re-fetch.
func (s *Students) Changed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changeSignal = !s.changeSignal
}

// BeginFetch hands out a ticket with a monotonically increasing sequence number.
func (s *Students) BeginFetch() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return Ticket{seq: s.issued, signal: s.changeSignal}
}

// Apply replaces the items wholesale with the result of the fetch identified by t.
// It returns false, and changes nothing, when a later fetch has already been applied.
func (s *Students) Apply(t Ticket, items []student.Student) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.seq <= s.applied {
		return false
	}
	s.items = append(make([]student.Student, 0, len(items)), items...)
	s.applied = t.seq
	s.appliedSignal = t.signal
	return true
}

// Stale reports whether the slice was never fetched or the change signal flipped since the
// currently held items were fetched.
func (s *Students) Stale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.applied == 0 || s.appliedSignal != s.changeSignal
}

// Snapshot returns a copy of the slice.
func (s *Students) Snapshot() StudentList {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StudentList{
		Items:        append([]student.Student(nil), s.items...),
		ChangeSignal: s.changeSignal,
	}
}

// Refresh runs one fetch through the slice. On failure the previous items are kept and returned
// along with the error.
func (s *Students) Refresh(ctx context.Context, fetch func(context.Context) ([]student.Student, error)) (StudentList, error) {
	ticket := s.BeginFetch()
	items, err := fetch(ctx)
	if err != nil {
		return s.Snapshot(), err
	}
	s.Apply(ticket, items)
	return s.Snapshot(), nil
}

// Load returns the held items, fetching first if the slice is stale.
func (s *Students) Load(ctx context.Context, fetch func(context.Context) ([]student.Student, error)) (StudentList, error) {
	if !s.Stale() {
		return s.Snapshot(), nil
	}
	return s.Refresh(ctx, fetch)
}

package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pillbox/pillbox-backend/pkg/errors"
)

// MemoryStore keeps medications in process memory. It backs local runs
// without PostgreSQL and the service tests; data is lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	byBox map[int]Medication
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byBox: make(map[int]Medication)}
}

// Insert stores a medication in an empty box
func (s *MemoryStore) Insert(ctx context.Context, m *Medication) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byBox[m.BoxID]; exists {
		return errors.Conflict("box is already occupied")
	}

	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now
	s.byBox[m.BoxID] = clone(m)
	return nil
}

// Update overwrites the editable fields of an occupied box
func (s *MemoryStore) Update(ctx context.Context, m *Medication) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byBox[m.BoxID]
	if !ok {
		return errors.NotFound("medication")
	}

	cur.Name = m.Name
	cur.TotalPills = m.TotalPills
	cur.PillsPerIntake = m.PillsPerIntake
	cur.DosesPerDay = m.DosesPerDay
	cur.ScheduleTime1 = m.ScheduleTime1
	cur.ScheduleTime2 = copyString(m.ScheduleTime2)
	cur.UpdatedAt = time.Now().UTC()
	s.byBox[m.BoxID] = cur
	return nil
}

// Decrement subtracts amount from the box stock, clamping at zero
func (s *MemoryStore) Decrement(ctx context.Context, boxID, amount int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byBox[boxID]
	if !ok {
		return 0, errors.NotFound("medication")
	}

	cur.TotalPills -= amount
	if cur.TotalPills < 0 {
		cur.TotalPills = 0
	}
	cur.UpdatedAt = time.Now().UTC()
	s.byBox[boxID] = cur
	return cur.TotalPills, nil
}

// Delete empties a box and reports whether it held anything
func (s *MemoryStore) Delete(ctx context.Context, boxID int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.byBox[boxID]
	delete(s.byBox, boxID)
	return ok, nil
}

// ListAll returns every occupied box in ascending box order
func (s *MemoryStore) ListAll(ctx context.Context) ([]*Medication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Medication, 0, len(s.byBox))
	for _, m := range s.byBox {
		c := clone(&m)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BoxID < out[j].BoxID })
	return out, nil
}

// GetByBox returns the medication loaded in a box
func (s *MemoryStore) GetByBox(ctx context.Context, boxID int) (*Medication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.byBox[boxID]
	if !ok {
		return nil, errors.NotFound("medication")
	}
	c := clone(&m)
	return &c, nil
}

func clone(m *Medication) Medication {
	c := *m
	c.ScheduleTime2 = copyString(m.ScheduleTime2)
	return c
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

package ledger

import (
	"context"
	"sync"

	"github.com/klokku/appointments/pkg/appointment"
)

type StubStore struct {
	mu      sync.RWMutex
	records []appointment.Record
	// FailWith makes every mutation return the given error.
	FailWith error
}

func NewStubStore(records ...appointment.Record) *StubStore {
	return &StubStore{records: append([]appointment.Record{}, records...)}
}

func (s *StubStore) Insert(ctx context.Context, record appointment.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	if s.indexOf(record.Email) >= 0 {
		return &appointment.DuplicateIdentityError{Email: record.Email}
	}
	s.records = append(s.records, record)
	return nil
}

func (s *StubStore) FindByEmail(ctx context.Context, email string) (appointment.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(email)
	if i < 0 {
		return appointment.Record{}, &appointment.NotFoundError{Email: email}
	}
	return s.records[i], nil
}

func (s *StubStore) Update(ctx context.Context, email, date, time string) (appointment.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return appointment.Record{}, s.FailWith
	}
	i := s.indexOf(email)
	if i < 0 {
		return appointment.Record{}, &appointment.NotFoundError{Email: email}
	}
	s.records[i].Date = date
	s.records[i].Time = time
	return s.records[i], nil
}

func (s *StubStore) Delete(ctx context.Context, email string) (appointment.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return appointment.Record{}, s.FailWith
	}
	i := s.indexOf(email)
	if i < 0 {
		return appointment.Record{}, &appointment.NotFoundError{Email: email}
	}
	removed := s.records[i]
	s.records = append(s.records[:i], s.records[i+1:]...)
	return removed, nil
}

func (s *StubStore) ListAll(ctx context.Context) ([]appointment.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]appointment.Record{}, s.records...), nil
}

func (s *StubStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.FailWith = nil
}

func (s *StubStore) indexOf(email string) int {
	for i, r := range s.records {
		if appointment.SameIdentity(r.Email, email) {
			return i
		}
	}
	return -1
}

// Package mock provides an in-memory implementation of database.EmployeeStore for testing.
package mock

import (
	"context"
	"sync"

	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/facerec"
)

// EmployeeStore is a thread-safe in-memory database.EmployeeStore
type EmployeeStore struct {
	mu        sync.RWMutex
	employees map[string]*database.EmployeeRecord

	// Error injection
	GetError    error
	AppendError error
	PingError   error

	// Call tracking
	AppendCalls int
}

// NewEmployeeStore creates a new empty mock store
func NewEmployeeStore() *EmployeeStore {
	return &EmployeeStore{
		employees: make(map[string]*database.EmployeeRecord),
	}
}

// AddEmployee seeds the store with a record
func (m *EmployeeStore) AddEmployee(rec database.EmployeeRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[rec.ID] = cloneRecord(&rec)
}

// GetEmployee retrieves a record by id
func (m *EmployeeStore) GetEmployee(ctx context.Context, employeeID string) (*database.EmployeeRecord, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.employees[employeeID]
	if !ok {
		return nil, nil
	}
	return cloneRecord(rec), nil
}

// AppendEncoding appends enc, creating the record on first use
func (m *EmployeeStore) AppendEncoding(ctx context.Context, employeeID string, enc facerec.Encoding) (*database.UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendCalls++
	if m.AppendError != nil {
		return nil, m.AppendError
	}
	if employeeID == "" {
		return nil, database.ErrEmptyEmployeeID
	}

	stored := make(facerec.Encoding, len(enc))
	copy(stored, enc)

	rec, ok := m.employees[employeeID]
	if !ok {
		m.employees[employeeID] = &database.EmployeeRecord{
			ID:            employeeID,
			EmployeeIDRef: employeeID,
			Encodings:     []facerec.Encoding{stored},
		}
		id := employeeID
		return &database.UpsertResult{UpsertedID: &id, EncodingCount: 1}, nil
	}

	rec.Encodings = append(rec.Encodings, stored)
	return &database.UpsertResult{Matched: 1, Modified: 1, EncodingCount: len(rec.Encodings)}, nil
}

// EncodingCount returns the number of encodings stored for an employee
func (m *EmployeeStore) EncodingCount(employeeID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rec, ok := m.employees[employeeID]; ok {
		return len(rec.Encodings)
	}
	return 0
}

func (m *EmployeeStore) Ping(ctx context.Context) error {
	return m.PingError
}

func (m *EmployeeStore) Close(ctx context.Context) error {
	return nil
}

func cloneRecord(rec *database.EmployeeRecord) *database.EmployeeRecord {
	out := &database.EmployeeRecord{
		ID:            rec.ID,
		EmployeeIDRef: rec.EmployeeIDRef,
		Encodings:     make([]facerec.Encoding, len(rec.Encodings)),
	}
	for i, enc := range rec.Encodings {
		out.Encodings[i] = append(facerec.Encoding(nil), enc...)
	}
	return out
}

package database

import (
	"context"
	"errors"

	"github.com/kozaktomas/facegate/internal/facerec"
)

// ErrEmptyEmployeeID is returned by stores when asked to write an empty identifier.
var ErrEmptyEmployeeID = errors.New("employee id is required")

// EmployeeReader provides read-only access to enrolled faces
type EmployeeReader interface {
	// GetEmployee retrieves a record by employee id, returns nil if not found
	GetEmployee(ctx context.Context, employeeID string) (*EmployeeRecord, error)
}

// EmployeeStore persists face encodings per employee
type EmployeeStore interface {
	EmployeeReader

	// AppendEncoding atomically appends enc to the employee's encodings,
	// creating the record if it does not exist. Duplicates are kept.
	AppendEncoding(ctx context.Context, employeeID string, enc facerec.Encoding) (*UpsertResult, error)

	// Ping verifies the store is reachable
	Ping(ctx context.Context) error

	// Close releases the underlying connections
	Close(ctx context.Context) error
}

package database

import (
	"github.com/kozaktomas/facegate/internal/facerec"
)

// EmployeeRecord holds every face encoding enrolled for one employee.
type EmployeeRecord struct {
	ID            string // opaque employee identifier
	EmployeeIDRef string // set once, when the record is created
	Encodings     []facerec.Encoding
}

// UpsertResult describes the outcome of appending an encoding.
type UpsertResult struct {
	Matched       int64
	Modified      int64
	UpsertedID    *string // employee id when the record was created by this call
	EncodingCount int     // encodings stored for the employee after the append
}

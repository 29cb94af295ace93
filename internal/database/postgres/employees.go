package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/facerec"
)

// EmployeeRepository stores employees and their face encodings in PostgreSQL.
type EmployeeRepository struct {
	pool *Pool
}

// NewEmployeeRepository creates a new PostgreSQL employee repository.
func NewEmployeeRepository(pool *Pool) *EmployeeRepository {
	return &EmployeeRepository{pool: pool}
}

// AppendEncoding inserts the employee row if missing and appends enc.
// The ON CONFLICT update takes a row lock on the employee, so concurrent
// appends for the same employee are serialized until commit.
func (r *EmployeeRepository) AppendEncoding(ctx context.Context, employeeID string, enc facerec.Encoding) (*database.UpsertResult, error) {
	if employeeID == "" {
		return nil, database.ErrEmptyEmployeeID
	}
	if len(enc) == 0 {
		return nil, errors.New("encoding is empty")
	}

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var inserted bool
	err = tx.QueryRowContext(ctx, `
		INSERT INTO employees (id, employee_id_ref)
		VALUES ($1, $1)
		ON CONFLICT (id) DO UPDATE SET updated_at = NOW()
		RETURNING (xmax = 0)
	`, employeeID).Scan(&inserted)
	if err != nil {
		return nil, fmt.Errorf("upsert employee %s: %w", employeeID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO face_encodings (employee_id, encoding, dim)
		VALUES ($1, $2::vector, $3)
	`, employeeID, pgvector.NewVector(enc), len(enc)); err != nil {
		return nil, fmt.Errorf("insert encoding for %s: %w", employeeID, err)
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM face_encodings WHERE employee_id = $1", employeeID,
	).Scan(&count); err != nil {
		return nil, fmt.Errorf("count encodings for %s: %w", employeeID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	result := &database.UpsertResult{EncodingCount: count}
	if inserted {
		id := employeeID
		result.UpsertedID = &id
	} else {
		result.Matched = 1
		result.Modified = 1
	}
	return result, nil
}

// GetEmployee retrieves an employee and its encodings in insertion order.
func (r *EmployeeRepository) GetEmployee(ctx context.Context, employeeID string) (*database.EmployeeRecord, error) {
	rec := &database.EmployeeRecord{ID: employeeID}
	err := r.pool.QueryRow(ctx,
		"SELECT employee_id_ref FROM employees WHERE id = $1", employeeID,
	).Scan(&rec.EmployeeIDRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get employee %s: %w", employeeID, err)
	}

	rows, err := r.pool.Query(ctx,
		"SELECT encoding FROM face_encodings WHERE employee_id = $1 ORDER BY id", employeeID)
	if err != nil {
		return nil, fmt.Errorf("query encodings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var vec pgvector.Vector
		if err := rows.Scan(&vec); err != nil {
			return nil, fmt.Errorf("scan encoding: %w", err)
		}
		rec.Encodings = append(rec.Encodings, facerec.Encoding(vec.Slice()))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate encodings: %w", err)
	}
	return rec, nil
}

func (r *EmployeeRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *EmployeeRepository) Close(_ context.Context) error {
	return r.pool.Close()
}

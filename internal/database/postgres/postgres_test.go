//go:build integration

package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/kozaktomas/facegate/internal/config"
	"github.com/kozaktomas/facegate/internal/facerec"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := config.PostgresConfig{
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 10,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(ctx, cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	if err := pool.Migrate(ctx, zap.NewNop()); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func testEncoding(dim int, seed float32) facerec.Encoding {
	enc := make(facerec.Encoding, dim)
	for i := range enc {
		enc[i] = seed + float32(i)/float32(dim)
	}
	return enc
}

func TestEmployeeRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewEmployeeRepository(pool)

	t.Run("AppendCreatesRecord", func(t *testing.T) {
		id := uuid.NewString()
		res, err := repo.AppendEncoding(ctx, id, testEncoding(128, 0.1))
		if err != nil {
			t.Fatalf("AppendEncoding() error = %v", err)
		}
		if res.UpsertedID == nil || *res.UpsertedID != id {
			t.Errorf("expected upserted id %s, got %v", id, res.UpsertedID)
		}
		if res.Matched != 0 || res.EncodingCount != 1 {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("DuplicatesAreKept", func(t *testing.T) {
		id := uuid.NewString()
		enc := testEncoding(128, 0.2)
		for i := 0; i < 2; i++ {
			if _, err := repo.AppendEncoding(ctx, id, enc); err != nil {
				t.Fatalf("AppendEncoding() error = %v", err)
			}
		}
		res, err := repo.AppendEncoding(ctx, id, enc)
		if err != nil {
			t.Fatalf("AppendEncoding() error = %v", err)
		}
		if res.UpsertedID != nil || res.Matched != 1 || res.Modified != 1 || res.EncodingCount != 3 {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("GetPreservesOrderAndValues", func(t *testing.T) {
		id := uuid.NewString()
		first := testEncoding(128, 0.3)
		second := testEncoding(128, 0.4)
		if _, err := repo.AppendEncoding(ctx, id, first); err != nil {
			t.Fatalf("AppendEncoding() error = %v", err)
		}
		if _, err := repo.AppendEncoding(ctx, id, second); err != nil {
			t.Fatalf("AppendEncoding() error = %v", err)
		}

		rec, err := repo.GetEmployee(ctx, id)
		if err != nil {
			t.Fatalf("GetEmployee() error = %v", err)
		}
		if rec == nil {
			t.Fatal("expected record, got nil")
		}
		if rec.EmployeeIDRef != id {
			t.Errorf("expected employee_id_ref %s, got %s", id, rec.EmployeeIDRef)
		}
		if len(rec.Encodings) != 2 {
			t.Fatalf("expected 2 encodings, got %d", len(rec.Encodings))
		}
		if facerec.EuclideanDistance(rec.Encodings[0], first) != 0 {
			t.Error("first encoding not stored losslessly")
		}
		if facerec.EuclideanDistance(rec.Encodings[1], second) != 0 {
			t.Error("second encoding not stored losslessly")
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		rec, err := repo.GetEmployee(ctx, "does-not-exist")
		if err != nil {
			t.Fatalf("GetEmployee() error = %v", err)
		}
		if rec != nil {
			t.Errorf("expected nil, got %+v", rec)
		}
	})

	t.Run("ConcurrentAppends", func(t *testing.T) {
		id := uuid.NewString()
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := repo.AppendEncoding(ctx, id, testEncoding(128, float32(i))); err != nil {
					t.Errorf("AppendEncoding() error = %v", err)
				}
			}()
		}
		wg.Wait()

		rec, err := repo.GetEmployee(ctx, id)
		if err != nil {
			t.Fatalf("GetEmployee() error = %v", err)
		}
		if len(rec.Encodings) != 20 {
			t.Errorf("expected 20 encodings, got %d", len(rec.Encodings))
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping() error = %v", err)
		}
	})
}

func TestMigrate_Idempotent(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	if err := pool.Migrate(ctx, zap.NewNop()); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	versions, err := pool.MigrationsApplied(ctx)
	if err != nil {
		t.Fatalf("MigrationsApplied() error = %v", err)
	}
	if len(versions) != 1 || versions[0] != "001_init.sql" {
		t.Errorf("unexpected migrations %v", versions)
	}
}

//go:build integration

package mongo

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/kozaktomas/facegate/internal/config"
	"github.com/kozaktomas/facegate/internal/facerec"
)

func setupTestContainer(t *testing.T) (*EmployeeRepository, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor: wait.ForLog("Waiting for connections").
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
	port, err := container.MappedPort(ctx, "27017")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := config.Default().Mongo
	cfg.URI = fmt.Sprintf("mongodb://%s:%s", host, port.Port())
	cfg.Database = "test_" + uuid.NewString()[:8]

	repo, err := Connect(ctx, cfg, zap.NewNop())
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to connect: %v", err)
	}

	cleanup := func() {
		repo.Close(ctx)
		container.Terminate(ctx)
	}
	return repo, cleanup
}

func TestEmployeeRepository(t *testing.T) {
	repo, cleanup := setupTestContainer(t)
	if repo == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	enc := facerec.Encoding{0.1, 0.2, 0.3}

	t.Run("FirstEnrollmentUpserts", func(t *testing.T) {
		res, err := repo.AppendEncoding(ctx, "E100", enc)
		if err != nil {
			t.Fatalf("AppendEncoding() error = %v", err)
		}
		if res.Matched != 0 || res.Modified != 0 {
			t.Errorf("expected 0/0, got %d/%d", res.Matched, res.Modified)
		}
		if res.UpsertedID == nil || *res.UpsertedID != "E100" {
			t.Errorf("expected upserted id E100, got %v", res.UpsertedID)
		}
		if res.EncodingCount != 1 {
			t.Errorf("expected count 1, got %d", res.EncodingCount)
		}
	})

	t.Run("SecondEnrollmentAppends", func(t *testing.T) {
		res, err := repo.AppendEncoding(ctx, "E100", enc)
		if err != nil {
			t.Fatalf("AppendEncoding() error = %v", err)
		}
		if res.Matched != 1 || res.Modified != 1 || res.UpsertedID != nil {
			t.Errorf("unexpected result %+v", res)
		}
		if res.EncodingCount != 2 {
			t.Errorf("expected count 2, got %d", res.EncodingCount)
		}
	})

	t.Run("GetEmployee", func(t *testing.T) {
		rec, err := repo.GetEmployee(ctx, "E100")
		if err != nil {
			t.Fatalf("GetEmployee() error = %v", err)
		}
		if rec == nil || rec.EmployeeIDRef != "E100" || len(rec.Encodings) != 2 {
			t.Fatalf("unexpected record %+v", rec)
		}
		if facerec.EuclideanDistance(rec.Encodings[0], enc) != 0 {
			t.Error("encoding not stored losslessly")
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		rec, err := repo.GetEmployee(ctx, "missing")
		if err != nil {
			t.Fatalf("GetEmployee() error = %v", err)
		}
		if rec != nil {
			t.Errorf("expected nil, got %+v", rec)
		}
	})

	t.Run("ReadsFullPrecisionDocuments", func(t *testing.T) {
		_, err := repo.coll.InsertOne(ctx, bson.D{
			{Key: "_id", Value: "legacy"},
			{Key: "faceEncodings", Value: bson.A{bson.A{0.123456789012345, -0.5}}},
		})
		if err != nil {
			t.Fatalf("InsertOne() error = %v", err)
		}
		rec, err := repo.GetEmployee(ctx, "legacy")
		if err != nil {
			t.Fatalf("GetEmployee() error = %v", err)
		}
		if len(rec.Encodings) != 1 || len(rec.Encodings[0]) != 2 {
			t.Errorf("unexpected record %+v", rec)
		}
	})

	t.Run("ConcurrentAppends", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := repo.AppendEncoding(ctx, "E200", enc); err != nil {
					t.Errorf("AppendEncoding() error = %v", err)
				}
			}()
		}
		wg.Wait()

		rec, err := repo.GetEmployee(ctx, "E200")
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

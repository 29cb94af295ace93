// Package mongo stores one document per employee in a MongoDB collection:
//
//	{ "_id": "<employee id>", "employee_id_ref": "<employee id>", "faceEncodings": [[...], ...] }
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/kozaktomas/facegate/internal/config"
)

const defaultConnectTimeout = 15 * time.Second

// Connect opens a client against cfg.URI, verifies it with a ping and returns
// a repository bound to cfg.Database/cfg.Collection.
func Connect(ctx context.Context, cfg config.MongoConfig, log *zap.Logger) (*EmployeeRepository, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo uri is required")
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	clientOpts := options.Client().ApplyURI(cfg.URI)
	clientOpts.SetMinPoolSize(cfg.MinPoolSize)
	clientOpts.SetMaxPoolSize(cfg.MaxPoolSize)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	log.Info("connected to mongodb",
		zap.String("database", cfg.Database),
		zap.String("collection", cfg.Collection))

	return NewEmployeeRepository(client, client.Database(cfg.Database).Collection(cfg.Collection)), nil
}

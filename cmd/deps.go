package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kozaktomas/facegate/internal/config"
	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/database/mongo"
	"github.com/kozaktomas/facegate/internal/database/postgres"
	"github.com/kozaktomas/facegate/internal/faceauth"
	"github.com/kozaktomas/facegate/internal/facerec"
	"github.com/kozaktomas/facegate/internal/facerec/dlib"
	"github.com/kozaktomas/facegate/internal/logger"
)

// loadConfig reads configuration and builds the logger it describes.
func loadConfig(ctx context.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	return cfg, log, nil
}

// serviceOptions maps the face settings onto faceauth options. rec may be nil.
func serviceOptions(cfg *config.Config, rec faceauth.Recorder) faceauth.Options {
	opts := faceauth.Options{
		Tolerance:    cfg.Face.EngineTolerance(),
		MaxImageSize: cfg.Face.MaxImageSize,
		MaxPixels:    cfg.Face.MaxPixels,
	}
	if rec != nil {
		opts.Recorder = rec
	}
	return opts
}

// openStore connects to the configured employee store backend.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (database.EmployeeStore, error) {
	switch cfg.Store.Backend {
	case config.StoreMongo:
		log.Info("connecting to MongoDB", zap.String("database", cfg.Mongo.Database))
		repo, err := mongo.Connect(ctx, cfg.Mongo, log.Named("mongo"))
		if err != nil {
			return nil, fmt.Errorf("connecting to MongoDB: %w", err)
		}
		return repo, nil

	case config.StorePostgres:
		log.Info("connecting to PostgreSQL")
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
		}
		if err := pool.Migrate(ctx, log.Named("migrate")); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		return postgres.NewEmployeeRepository(pool), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// openEngine builds the configured face engine.
func openEngine(cfg *config.Config, log *zap.Logger) (facerec.Engine, error) {
	switch cfg.Face.Engine {
	case config.EngineDlib:
		log.Info("loading dlib models",
			zap.String("dir", cfg.Face.ModelsDir),
			zap.String("detector", cfg.Face.Detector))
		engine, err := dlib.NewEngine(cfg.Face.ModelsDir, cfg.Face.Detector)
		if err != nil {
			return nil, fmt.Errorf("loading face models: %w", err)
		}
		return engine, nil

	case config.EngineRemote:
		log.Info("using remote embedding server", zap.String("url", cfg.Face.RemoteURL))
		return facerec.NewRemoteEngine(cfg.Face.RemoteURL), nil

	default:
		return nil, fmt.Errorf("unknown face engine %q", cfg.Face.Engine)
	}
}

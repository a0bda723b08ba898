package main

import (
	"context"
	"fmt"
	"redemption-gate/internal/repository"
	"redemption-gate/pkg/config"
	"redemption-gate/pkg/database"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// stores holds the selected ledger and tracker plus whatever connections
// back them.
type stores struct {
	ledger  repository.LedgerRepository
	tracker repository.AbuseTracker
	pool    *pgxpool.Pool
	closers []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// postgresPool opens the shared pgx pool once, migrating first if enabled.
func (s *stores) postgresPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if s.pool != nil {
		return s.pool, nil
	}
	if cfg.RunMigrations {
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return nil, err
		}
	}
	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	s.pool = pool
	s.closers = append(s.closers, pool.Close)
	log.Info("Connected to PostgreSQL")
	return pool, nil
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	s := &stores{}
	if err := s.openLedger(ctx, cfg); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.openTracker(ctx, cfg); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *stores) openLedger(ctx context.Context, cfg *config.Config) error {
	switch cfg.LedgerBackend {
	case config.BackendMemory:
		log.Warn("Using in-memory ledger; redemptions are lost on restart")
		s.ledger = repository.NewMemoryLedger(cfg.LockTimeout)

	case config.BackendSQL:
		db, err := database.OpenSQL(cfg.SQLDSN)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			s.closers = append(s.closers, func() { _ = sqlDB.Close() })
		}
		if err := repository.MigrateSQL(db); err != nil {
			return fmt.Errorf("migrate sql ledger: %w", err)
		}
		log.WithField("dialect", database.DialectName(db)).Info("Connected to SQL database")
		s.ledger = repository.NewSQLLedger(db, cfg.LockTimeout)

	case config.BackendPostgres:
		pool, err := s.postgresPool(ctx, cfg)
		if err != nil {
			return err
		}
		s.ledger = repository.NewPostgresLedger(pool, cfg.LockTimeout)

	case config.BackendMongo:
		mongoDB, err := database.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mongoDB.Disconnect(ctx); err != nil {
				log.WithError(err).Warn("Error disconnecting from MongoDB")
			}
		})
		log.Info("Connected to MongoDB")
		s.ledger = repository.NewMongoLedger(mongoDB.Database, database.NewUnitOfWork(mongoDB.Client), cfg.LockTimeout)

	default:
		return fmt.Errorf("unsupported ledger backend %q", cfg.LedgerBackend)
	}
	return nil
}

func (s *stores) openTracker(ctx context.Context, cfg *config.Config) error {
	switch cfg.TrackerBackend {
	case config.BackendMemory:
		s.tracker = repository.NewMemoryTracker()

	case config.BackendRedis:
		client, err := database.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, func() { _ = client.Close() })
		log.Info("Connected to Redis")
		s.tracker = repository.NewRedisTracker(client, "redemption:")

	case config.BackendPostgres:
		pool, err := s.postgresPool(ctx, cfg)
		if err != nil {
			return err
		}
		s.tracker = repository.NewPostgresTracker(pool, cfg.LockTimeout)

	default:
		return fmt.Errorf("unsupported tracker backend %q", cfg.TrackerBackend)
	}
	return nil
}

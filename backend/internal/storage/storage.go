// Package storage opens the durable backend selected in configuration.
package storage

import (
	"context"

	"brainvibe/backend/internal/graph"
	"brainvibe/backend/internal/storage/badgerstore"
	"brainvibe/backend/internal/store"
	"brainvibe/backend/pkg/config"
	apperrors "brainvibe/backend/pkg/errors"
)

// Open returns the persister for cfg.StoreBackend, or nil for the memory backend
func Open(ctx context.Context, cfg *config.Config) (store.Persister, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		return nil, nil
	case config.StoreBadger:
		db, err := badgerstore.Open(badgerstore.DefaultConfig(cfg.BadgerPath))
		if err != nil {
			return nil, err
		}
		return db, nil
	case config.StoreNeo4j:
		driver, err := graph.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
		if err != nil {
			return nil, err
		}
		repo := graph.NewRepository(driver, cfg.Neo4jDatabase)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = repo.Close(ctx)
			return nil, err
		}
		return repo, nil
	}
	return nil, apperrors.NewConfigValidationFailed("STORE_BACKEND", "unknown backend "+cfg.StoreBackend)
}

// OpenStore opens the persister and loads its records into a new store
func OpenStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	persister, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	var opts []store.Option
	if persister != nil {
		opts = append(opts, store.WithPersister(persister))
	}
	s := store.New(opts...)
	if err := s.Load(ctx); err != nil {
		_ = s.Close(ctx)
		return nil, err
	}
	return s, nil
}

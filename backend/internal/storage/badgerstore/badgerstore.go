// Package badgerstore persists topics and projects in an embedded BadgerDB.
//
// Each record is stored as a JSON value under "topic/<id>" or "project/<id>".
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"brainvibe/backend/internal/store"
	"brainvibe/backend/internal/topic"
	apperrors "brainvibe/backend/pkg/errors"
	"brainvibe/backend/pkg/logger"
)

const (
	backendName   = "badger"
	topicPrefix   = "topic/"
	projectPrefix = "project/"
)

// Config holds configuration for the badger persister
type Config struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string
	// InMemory keeps everything in RAM; used by tests
	InMemory bool
	// SyncWrites fsyncs every commit
	SyncWrites bool
	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval     time.Duration
	GCDiscardRatio float64
}

// DefaultConfig returns the production configuration for path
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration that never touches disk
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// Store is a store.Persister backed by BadgerDB
type Store struct {
	db     *badger.DB
	logger *zap.Logger

	stopGC    chan struct{}
	gcDone    chan struct{}
	closeOnce sync.Once
}

var _ store.Persister = (*Store)(nil)

// Open opens (creating if needed) the database described by cfg
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, apperrors.NewConfigMissingRequired("BADGER_PATH")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, apperrors.NewPersistFailed(backendName, "open", fmt.Errorf("create directory %s: %w", cfg.Path, err))
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	log := logger.Named("badger")
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{sugar: log.Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, apperrors.NewPersistFailed(backendName, "open", err)
	}

	s := &Store{
		db:     db,
		logger: log,
		stopGC: make(chan struct{}),
		gcDone: make(chan struct{}),
	}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	} else {
		close(s.gcDone)
	}

	log.Info("Badger store opened",
		zap.String("path", cfg.Path),
		zap.Bool("in_memory", cfg.InMemory),
	)
	return s, nil
}

// Name implements store.Persister
func (s *Store) Name() string {
	return backendName
}

// Load reads every topic and project
func (s *Store) Load(ctx context.Context) ([]*topic.Topic, []*topic.Project, error) {
	var topics []*topic.Topic
	var projects []*topic.Project

	err := s.db.View(func(txn *badger.Txn) error {
		if err := scan(ctx, txn, topicPrefix, func(val []byte) error {
			var t topic.Topic
			if err := json.Unmarshal(val, &t); err != nil {
				return err
			}
			topics = append(topics, &t)
			return nil
		}); err != nil {
			return err
		}
		return scan(ctx, txn, projectPrefix, func(val []byte) error {
			var p topic.Project
			if err := json.Unmarshal(val, &p); err != nil {
				return err
			}
			projects = append(projects, &p)
			return nil
		})
	})
	if err != nil {
		return nil, nil, apperrors.NewPersistFailed(backendName, "load", err)
	}
	return topics, projects, nil
}

func scan(ctx context.Context, txn *badger.Txn, prefix string, decode func(val []byte) error) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	p := []byte(prefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		item := it.Item()
		if err := item.Value(decode); err != nil {
			return fmt.Errorf("decode %s: %w", item.Key(), err)
		}
	}
	return nil
}

// Save writes the changed records in one transaction
func (s *Store) Save(ctx context.Context, changes store.Changes) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewContextCancelled("badger save", err)
	}

	entries := make(map[string][]byte, len(changes.Topics)+len(changes.Projects))
	for _, t := range changes.Topics {
		val, err := json.Marshal(t)
		if err != nil {
			return apperrors.NewPersistFailed(backendName, "save", fmt.Errorf("encode topic %s: %w", t.ID, err))
		}
		entries[topicPrefix+t.ID] = val
	}
	for _, p := range changes.Projects {
		val, err := json.Marshal(p)
		if err != nil {
			return apperrors.NewPersistFailed(backendName, "save", fmt.Errorf("encode project %s: %w", p.ID, err))
		}
		entries[projectPrefix+p.ID] = val
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for key, val := range entries {
			if err := txn.Set([]byte(key), val); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, badger.ErrTxnTooBig) {
		err = s.saveBatch(entries)
	}
	if err != nil {
		return apperrors.NewPersistFailed(backendName, "save", err)
	}
	return nil
}

// saveBatch writes entries that do not fit one transaction
func (s *Store) saveBatch(entries map[string][]byte) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for key, val := range entries {
		if err := wb.Set([]byte(key), val); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// Close stops GC and closes the database
func (s *Store) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopGC)
		<-s.gcDone
		err = s.db.Close()
	})
	if err != nil {
		return apperrors.NewPersistFailed(backendName, "close", err)
	}
	return nil
}

func (s *Store) runGC(interval time.Duration, ratio float64) {
	defer close(s.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			// ErrNoRewrite only means there was nothing to collect
			if err := s.db.RunValueLogGC(ratio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn("Badger value log GC failed", zap.Error(err))
			}
		}
	}
}

// badgerLogger routes badger's own logging into zap
type badgerLogger struct {
	sugar *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"brainvibe/backend/internal/store"
	"brainvibe/backend/internal/topic"
	apperrors "brainvibe/backend/pkg/errors"
	"brainvibe/backend/pkg/logger"
)

const backendName = "neo4j"

// Repository persists topics and projects in Neo4j:
//
//	(:Topic {id})-[:REQUIRES {position}]->(:Topic)
//	(:Project {id})-[:CONTAINS {status}]->(:Topic)
//
// Ordered id lists are also kept as node properties so a load restores the
// exact attachment and prerequisite order.
type Repository struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

var _ store.Persister = (*Repository)(nil)

// Connect opens a driver and verifies the server is reachable
func Connect(ctx context.Context, uri, user, password string) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, apperrors.NewPersistFailed(backendName, "connect", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, apperrors.NewPersistFailed(backendName, "connect", err)
	}
	return driver, nil
}

// NewRepository creates a repository on driver. An empty database selects the server default.
func NewRepository(driver neo4j.DriverWithContext, database string) *Repository {
	return &Repository{
		driver:   driver,
		database: database,
		logger:   logger.Named("neo4j"),
	}
}

// Name implements store.Persister
func (r *Repository) Name() string {
	return backendName
}

// Close closes the Neo4j driver connection
func (r *Repository) Close(ctx context.Context) error {
	if err := r.driver.Close(ctx); err != nil {
		return apperrors.NewPersistFailed(backendName, "close", err)
	}
	return nil
}

func (r *Repository) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return r.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: r.database,
	})
}

// EnsureSchema creates the uniqueness constraints the MERGE statements rely on
func (r *Repository) EnsureSchema(ctx context.Context) error {
	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	constraints := []string{
		"CREATE CONSTRAINT topic_id IF NOT EXISTS FOR (t:Topic) REQUIRE t.id IS UNIQUE",
		"CREATE CONSTRAINT project_id IF NOT EXISTS FOR (p:Project) REQUIRE p.id IS UNIQUE",
	}
	for _, query := range constraints {
		if _, err := session.Run(ctx, query, nil); err != nil {
			return apperrors.NewPersistFailed(backendName, "schema", err)
		}
	}
	r.logger.Info("Schema constraints ensured")
	return nil
}

// Load reads every topic and project
func (r *Repository) Load(ctx context.Context) ([]*topic.Topic, []*topic.Project, error) {
	session := r.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	type loaded struct {
		topics   []*topic.Topic
		projects []*topic.Project
	}
	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		topics, err := loadTopics(ctx, tx)
		if err != nil {
			return nil, err
		}
		projects, err := loadProjects(ctx, tx)
		if err != nil {
			return nil, err
		}
		return loaded{topics: topics, projects: projects}, nil
	})
	if err != nil {
		return nil, nil, apperrors.NewPersistFailed(backendName, "load", err)
	}
	l := out.(loaded)
	return l.topics, l.projects, nil
}

// Save writes the changed records and their relationships in one write transaction
func (r *Repository) Save(ctx context.Context, changes store.Changes) error {
	if changes.Empty() {
		return nil
	}
	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	start := time.Now()
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := saveTopics(ctx, tx, changes.Topics); err != nil {
			return nil, err
		}
		if err := saveProjects(ctx, tx, changes.Projects); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return apperrors.NewPersistFailed(backendName, "save", err)
	}

	r.logger.Debug("Changes saved",
		zap.Int("topics", len(changes.Topics)),
		zap.Int("projects", len(changes.Projects)),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

// run executes query inside tx and drains the result
func run(ctx context.Context, tx neo4j.ManagedTransaction, query string, params map[string]any) error {
	result, err := tx.Run(ctx, query, params)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}
	if _, err := result.Consume(ctx); err != nil {
		return fmt.Errorf("failed to consume result: %w", err)
	}
	return nil
}

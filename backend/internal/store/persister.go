package store

import (
	"context"

	"brainvibe/backend/internal/topic"
)

// Persister mirrors committed store records to durable storage.
// The store stays authoritative; a persister only loads state at start-up and
// receives the records each commit touched.
type Persister interface {
	// Name identifies the backend in logs and metrics
	Name() string
	// Load returns every stored topic and project
	Load(ctx context.Context) ([]*topic.Topic, []*topic.Project, error)
	// Save writes the given records, replacing earlier versions
	Save(ctx context.Context, changes Changes) error
	// Close releases backend resources
	Close(ctx context.Context) error
}

// Changes are the records written by one or more commits
type Changes struct {
	Topics   []*topic.Topic
	Projects []*topic.Project
}

// Empty reports whether there is nothing to write
func (c Changes) Empty() bool {
	return len(c.Topics) == 0 && len(c.Projects) == 0
}

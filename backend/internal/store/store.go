package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"brainvibe/backend/internal/metrics"
	"brainvibe/backend/internal/topic"
	apperrors "brainvibe/backend/pkg/errors"
	"brainvibe/backend/pkg/logger"
)

// Store owns every topic and project. All writes go through Update, which
// runs one transaction at a time under a single lock; reads see only
// committed state.
//
// Committed records are never modified in place: a transaction clones a
// record before changing it and swaps the clone in on commit. Pointers handed
// out by Snapshot can therefore be read without holding the lock.
type Store struct {
	mu       sync.RWMutex
	topics   map[string]*topic.Topic
	projects map[string]*topic.Project
	ids      []string // sorted topic ids

	persister Persister
	persistMu sync.Mutex // one Save at a time; never acquired while holding mu
	queueMu   sync.Mutex // guards pending; held only for map updates
	pending   pendingSet // filled in commit order under mu

	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Store
type Option func(*Store)

// WithPersister mirrors commits to p
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store
func New(opts ...Option) *Store {
	s := &Store{
		topics:   make(map[string]*topic.Topic),
		projects: make(map[string]*topic.Project),
		pending:  newPendingSet(),
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.Named("store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the store contents with whatever the persister holds
func (s *Store) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	topics, projects, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load store: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.topics = make(map[string]*topic.Topic, len(topics))
	s.ids = make([]string, 0, len(topics))
	for _, t := range topics {
		if t == nil || t.ID == "" {
			continue
		}
		s.topics[t.ID] = t
		s.ids = append(s.ids, t.ID)
	}
	sort.Strings(s.ids)

	s.projects = make(map[string]*topic.Project, len(projects))
	for _, p := range projects {
		if p == nil || p.ID == "" {
			continue
		}
		s.projects[p.ID] = p
	}
	s.updateGauges()

	s.logger.Info("Store loaded",
		zap.String("backend", s.persister.Name()),
		zap.Int("topics", len(s.topics)),
		zap.Int("projects", len(s.projects)),
	)
	return nil
}

// Close flushes pending records and closes the persister
func (s *Store) Close(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	err := s.flush(ctx)
	if closeErr := s.persister.Close(ctx); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// Update runs fn as one transaction. If fn returns an error or panics nothing
// it did is kept. Records changed by a successful transaction are queued in
// commit order and handed to the persister after the lock is released.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	changes, err := s.commit(fn)
	if err != nil {
		return err
	}
	if s.persister != nil && !changes.Empty() {
		// A cancelled request must not drop the write of an already committed batch
		_ = s.flush(context.WithoutCancel(ctx))
	}
	return nil
}

// commit runs fn under the write lock and queues what it changed
func (s *Store) commit(fn func(tx *Tx) error) (Changes, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := newTx(s, s.now())
	if err := fn(tx); err != nil {
		return Changes{}, err
	}
	changes := tx.commit()
	if s.persister != nil && !changes.Empty() {
		s.queueMu.Lock()
		s.pending.add(changes)
		s.queueMu.Unlock()
	}
	return changes, nil
}

// flush saves every queued record. A batch always holds the newest committed
// version of each record, so a later save never writes older data than an
// earlier one. Failures are logged and the records stay queued for the next
// attempt.
func (s *Store) flush(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.queueMu.Lock()
	batch := s.pending.changes()
	s.queueMu.Unlock()
	if batch.Empty() {
		return nil
	}

	start := time.Now()
	err := s.persister.Save(ctx, batch)
	metrics.PersistDuration.WithLabelValues(s.persister.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PersistFailures.WithLabelValues(s.persister.Name()).Inc()
		s.logger.Error("Failed to persist store changes",
			zap.String("backend", s.persister.Name()),
			zap.Int("topics", len(batch.Topics)),
			zap.Int("projects", len(batch.Projects)),
			zap.Error(err),
		)
		return err
	}

	s.queueMu.Lock()
	s.pending.remove(batch)
	s.queueMu.Unlock()
	return nil
}

// CreateProject registers a new project
func (s *Store) CreateProject(ctx context.Context, id, name, description string) (*topic.Project, error) {
	var created *topic.Project
	err := s.Update(ctx, func(tx *Tx) error {
		p, err := tx.CreateProject(id, name, description)
		created = p
		return err
	})
	if err != nil {
		return nil, err
	}
	return created.Clone(), nil
}

// UpsertTopic creates or merges a topic in its own transaction
func (s *Store) UpsertTopic(ctx context.Context, id string, fields TopicFields) (*topic.Topic, error) {
	var result *topic.Topic
	err := s.Update(ctx, func(tx *Tx) error {
		t, err := tx.UpsertTopic(id, fields)
		result = t
		return err
	})
	if err != nil {
		return nil, err
	}
	return result.Clone(), nil
}

// AttachToProject links a topic and a project. Returns false when either is unknown.
func (s *Store) AttachToProject(ctx context.Context, projectID, topicID string) bool {
	attached := false
	_ = s.Update(ctx, func(tx *Tx) error {
		attached = tx.AttachToProject(projectID, topicID)
		return nil
	})
	return attached
}

// SetStatus overwrites a topic's status
func (s *Store) SetStatus(ctx context.Context, topicID string, status topic.Status) (*topic.Topic, error) {
	var result *topic.Topic
	err := s.Update(ctx, func(tx *Tx) error {
		t, err := tx.SetStatus(topicID, status)
		result = t
		return err
	})
	if err != nil {
		return nil, err
	}
	return result.Clone(), nil
}

// SetProjectStatus records a project-scoped status for one of the project's topics
func (s *Store) SetProjectStatus(ctx context.Context, projectID, topicID string, status topic.Status) (*topic.Project, error) {
	var result *topic.Project
	err := s.Update(ctx, func(tx *Tx) error {
		p, err := tx.SetProjectStatus(projectID, topicID, status)
		result = p
		return err
	})
	if err != nil {
		return nil, err
	}
	return result.Clone(), nil
}

// Topic returns a copy of a topic
func (s *Store) Topic(id string) (*topic.Topic, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.topics[id]
	return t.Clone(), ok
}

// Topics returns copies of every topic ordered by id
func (s *Store) Topics() []*topic.Topic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*topic.Topic, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.topics[id].Clone())
	}
	return out
}

// Project returns a copy of a project
func (s *Store) Project(id string) (*topic.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	return p.Clone(), ok
}

// Projects returns copies of every project ordered by id
func (s *Store) Projects() []*topic.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*topic.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ProjectTopics returns the project's topics in attachment order
func (s *Store) ProjectTopics(projectID string) ([]*topic.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[projectID]
	if !ok {
		return nil, apperrors.NewProjectNotFound(projectID)
	}
	out := make([]*topic.Topic, 0, len(p.TopicIDs))
	for _, id := range p.TopicIDs {
		if t, ok := s.topics[id]; ok {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

// TopicProjects returns the projects a topic appears in
func (s *Store) TopicProjects(topicID string) ([]*topic.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.topics[topicID]
	if !ok {
		return nil, apperrors.NewTopicNotFound(topicID)
	}
	out := make([]*topic.Project, 0, len(t.Projects))
	for _, id := range t.Projects {
		if p, ok := s.projects[id]; ok {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

// Snapshot captures the committed state for lock-free reading
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := &Snapshot{
		topics:   make(map[string]*topic.Topic, len(s.topics)),
		projects: make(map[string]*topic.Project, len(s.projects)),
		ids:      s.ids,
	}
	for id, t := range s.topics {
		snap.topics[id] = t
	}
	for id, p := range s.projects {
		snap.projects[id] = p
	}
	return snap
}

func (s *Store) updateGauges() {
	metrics.StoreTopics.Set(float64(len(s.topics)))
	metrics.StoreProjects.Set(float64(len(s.projects)))
}

// pendingSet keeps the latest unsaved version of each record
type pendingSet struct {
	topics   map[string]*topic.Topic
	projects map[string]*topic.Project
}

func newPendingSet() pendingSet {
	return pendingSet{
		topics:   make(map[string]*topic.Topic),
		projects: make(map[string]*topic.Project),
	}
}

func (p *pendingSet) add(c Changes) {
	for _, t := range c.Topics {
		p.topics[t.ID] = t
	}
	for _, pr := range c.Projects {
		p.projects[pr.ID] = pr
	}
}

// remove drops saved records unless a newer version was queued meanwhile
func (p *pendingSet) remove(saved Changes) {
	for _, t := range saved.Topics {
		if p.topics[t.ID] == t {
			delete(p.topics, t.ID)
		}
	}
	for _, pr := range saved.Projects {
		if p.projects[pr.ID] == pr {
			delete(p.projects, pr.ID)
		}
	}
}

// changes lists pending records ordered by id
func (p *pendingSet) changes() Changes {
	c := Changes{
		Topics:   make([]*topic.Topic, 0, len(p.topics)),
		Projects: make([]*topic.Project, 0, len(p.projects)),
	}
	for _, t := range p.topics {
		c.Topics = append(c.Topics, t)
	}
	for _, pr := range p.projects {
		c.Projects = append(c.Projects, pr)
	}
	sort.Slice(c.Topics, func(i, j int) bool { return c.Topics[i].ID < c.Topics[j].ID })
	sort.Slice(c.Projects, func(i, j int) bool { return c.Projects[i].ID < c.Projects[j].ID })
	return c
}

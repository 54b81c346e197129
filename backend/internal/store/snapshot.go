package store

import (
	"sort"

	"brainvibe/backend/internal/topic"
)

// Snapshot is an immutable view of committed state. Its records are shared
// with the store and must be treated as read-only.
type Snapshot struct {
	topics   map[string]*topic.Topic
	projects map[string]*topic.Project
	ids      []string
}

// Lookup returns a topic by id
func (s *Snapshot) Lookup(id string) (*topic.Topic, bool) {
	t, ok := s.topics[id]
	return t, ok
}

// IDs returns every topic id in ascending order
func (s *Snapshot) IDs() []string {
	return s.ids
}

// Project returns a project by id
func (s *Snapshot) Project(id string) (*topic.Project, bool) {
	p, ok := s.projects[id]
	return p, ok
}

// ProjectIDs returns every project id in ascending order
func (s *Snapshot) ProjectIDs() []string {
	ids := make([]string, 0, len(s.projects))
	for id := range s.projects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of topics
func (s *Snapshot) Len() int {
	return len(s.topics)
}

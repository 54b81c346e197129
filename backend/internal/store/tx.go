package store

import (
	"sort"
	"strings"
	"time"

	"brainvibe/backend/internal/topic"
	apperrors "brainvibe/backend/pkg/errors"
)

// TopicFields are the values offered to UpsertTopic. Zero values mean "not supplied".
type TopicFields struct {
	Title         string
	Description   string
	Status        topic.Status
	Prerequisites []string
	Projects      []string
}

// Tx is a write transaction. Reads see the committed state plus the
// transaction's own writes. A Tx is only valid inside the Update callback.
type Tx struct {
	store    *Store
	now      time.Time
	topics   map[string]*topic.Topic   // records written by this transaction
	projects map[string]*topic.Project // records written by this transaction
	added    []string                  // topic ids created by this transaction
	ids      []string                  // cached merged id list, nil when stale
}

func newTx(s *Store, now time.Time) *Tx {
	return &Tx{
		store:    s,
		now:      now,
		topics:   make(map[string]*topic.Topic),
		projects: make(map[string]*topic.Project),
	}
}

// Lookup returns the current version of a topic. The record must not be modified.
func (tx *Tx) Lookup(id string) (*topic.Topic, bool) {
	if t, ok := tx.topics[id]; ok {
		return t, true
	}
	t, ok := tx.store.topics[id]
	return t, ok
}

// IDs returns every topic id visible to the transaction in ascending order
func (tx *Tx) IDs() []string {
	if len(tx.added) == 0 {
		return tx.store.ids
	}
	if tx.ids == nil {
		tx.ids = mergeSorted(tx.store.ids, tx.added)
	}
	return tx.ids
}

// Project returns the current version of a project. The record must not be modified.
func (tx *Tx) Project(id string) (*topic.Project, bool) {
	if p, ok := tx.projects[id]; ok {
		return p, true
	}
	p, ok := tx.store.projects[id]
	return p, ok
}

func (tx *Tx) mutableTopic(id string) (*topic.Topic, bool) {
	if t, ok := tx.topics[id]; ok {
		return t, true
	}
	t, ok := tx.store.topics[id]
	if !ok {
		return nil, false
	}
	c := t.Clone()
	tx.topics[id] = c
	return c, true
}

func (tx *Tx) mutableProject(id string) (*topic.Project, bool) {
	if p, ok := tx.projects[id]; ok {
		return p, true
	}
	p, ok := tx.store.projects[id]
	if !ok {
		return nil, false
	}
	c := p.Clone()
	tx.projects[id] = c
	return c, true
}

// CreateProject registers a project; the id must be unused
func (tx *Tx) CreateProject(id, name, description string) (*topic.Project, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.NewInvalidIdentifier(id)
	}
	if _, exists := tx.Project(id); exists {
		return nil, apperrors.NewProjectExists(id)
	}
	if strings.TrimSpace(name) == "" {
		name = id
	}
	p := &topic.Project{
		ID:          id,
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		TopicIDs:    []string{},
		CreatedAt:   tx.now,
	}
	tx.projects[id] = p
	return p, nil
}

// UpsertTopic creates the topic when absent (status NOT_LEARNED unless given),
// otherwise merges: title and description are only filled when empty, projects
// and prerequisites are unioned, and the more advanced status is kept.
// Repeating the same call changes nothing.
func (tx *Tx) UpsertTopic(id string, f TopicFields) (*topic.Topic, error) {
	if id == "" {
		return nil, apperrors.NewInvalidIdentifier(id)
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperrors.NewInvalidStatus(string(f.Status))
	}

	existing, ok := tx.Lookup(id)
	if !ok {
		t := &topic.Topic{
			ID:            id,
			Title:         strings.TrimSpace(f.Title),
			Description:   strings.TrimSpace(f.Description),
			Status:        topic.NotLearned,
			Prerequisites: []string{},
			Projects:      []string{},
			CreatedAt:     tx.now,
			UpdatedAt:     tx.now,
		}
		if t.Title == "" {
			t.Title = topic.Humanize(id)
		}
		if f.Status != "" {
			t.Status = f.Status
		}
		for _, prereq := range f.Prerequisites {
			t.AddPrerequisite(prereq)
		}
		for _, projectID := range f.Projects {
			t.AddProject(projectID)
		}
		tx.topics[id] = t
		tx.added = append(tx.added, id)
		tx.ids = nil
		return t, nil
	}

	merged := existing.Clone()
	changed := false
	if merged.Title == "" && strings.TrimSpace(f.Title) != "" {
		merged.Title = strings.TrimSpace(f.Title)
		changed = true
	}
	if merged.Description == "" && strings.TrimSpace(f.Description) != "" {
		merged.Description = strings.TrimSpace(f.Description)
		changed = true
	}
	if f.Status.MoreAdvanced(merged.Status) {
		merged.Status = f.Status
		changed = true
	}
	for _, prereq := range f.Prerequisites {
		changed = merged.AddPrerequisite(prereq) || changed
	}
	for _, projectID := range f.Projects {
		changed = merged.AddProject(projectID) || changed
	}
	if !changed {
		return existing, nil
	}
	merged.UpdatedAt = tx.now
	tx.topics[id] = merged
	return merged, nil
}

// AttachToProject adds the topic to the project and the project to the topic.
// Returns false, without error, when the project or topic does not exist.
func (tx *Tx) AttachToProject(projectID, topicID string) bool {
	p, ok := tx.Project(projectID)
	if !ok {
		return false
	}
	t, ok := tx.Lookup(topicID)
	if !ok {
		return false
	}
	if !p.HasTopic(topicID) {
		mp, _ := tx.mutableProject(projectID)
		mp.AddTopic(topicID)
	}
	if !t.InProject(projectID) {
		mt, _ := tx.mutableTopic(topicID)
		mt.AddProject(projectID)
		mt.UpdatedAt = tx.now
	}
	return true
}

// AddPrerequisite records prereqID as a prerequisite of topicID. Both topics
// must exist. Returns false when the edge was already present or would be a
// self-loop. Cycle policy belongs to the caller, see WouldCycle.
func (tx *Tx) AddPrerequisite(topicID, prereqID string) (bool, error) {
	t, ok := tx.Lookup(topicID)
	if !ok {
		return false, apperrors.NewTopicNotFound(topicID)
	}
	if _, ok := tx.Lookup(prereqID); !ok {
		return false, apperrors.NewTopicNotFound(prereqID)
	}
	if topicID == prereqID || t.HasPrerequisite(prereqID) {
		return false, nil
	}
	mt, _ := tx.mutableTopic(topicID)
	mt.AddPrerequisite(prereqID)
	mt.UpdatedAt = tx.now
	return true, nil
}

// WouldCycle reports whether making prereqID a prerequisite of topicID would
// close a cycle, i.e. prereqID already depends on topicID directly or transitively.
func (tx *Tx) WouldCycle(topicID, prereqID string) bool {
	if topicID == prereqID {
		return true
	}
	seen := map[string]bool{prereqID: true}
	stack := []string{prereqID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		t, ok := tx.Lookup(id)
		if !ok {
			continue
		}
		for _, next := range t.Prerequisites {
			if next == topicID {
				return true
			}
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

// SetStatus overwrites the topic's status, backward moves included
func (tx *Tx) SetStatus(topicID string, status topic.Status) (*topic.Topic, error) {
	if !status.Valid() {
		return nil, apperrors.NewInvalidStatus(string(status))
	}
	t, ok := tx.Lookup(topicID)
	if !ok {
		return nil, apperrors.NewTopicNotFound(topicID)
	}
	if t.Status == status {
		return t, nil
	}
	mt, _ := tx.mutableTopic(topicID)
	mt.Status = status
	mt.UpdatedAt = tx.now
	return mt, nil
}

// SetProjectStatus records status for a topic within one project
func (tx *Tx) SetProjectStatus(projectID, topicID string, status topic.Status) (*topic.Project, error) {
	if !status.Valid() {
		return nil, apperrors.NewInvalidStatus(string(status))
	}
	p, ok := tx.Project(projectID)
	if !ok {
		return nil, apperrors.NewProjectNotFound(projectID)
	}
	if !p.HasTopic(topicID) {
		return nil, apperrors.NewTopicNotFound(topicID)
	}
	if current, ok := p.Progress[topicID]; ok && current == status {
		return p, nil
	}
	mp, _ := tx.mutableProject(projectID)
	if mp.Progress == nil {
		mp.Progress = make(map[string]topic.Status)
	}
	mp.Progress[topicID] = status
	return mp, nil
}

// commit swaps the transaction's records into the store. Caller holds store.mu.
func (tx *Tx) commit() Changes {
	s := tx.store
	changes := Changes{
		Topics:   make([]*topic.Topic, 0, len(tx.topics)),
		Projects: make([]*topic.Project, 0, len(tx.projects)),
	}
	for id, t := range tx.topics {
		s.topics[id] = t
		changes.Topics = append(changes.Topics, t)
	}
	for id, p := range tx.projects {
		s.projects[id] = p
		changes.Projects = append(changes.Projects, p)
	}
	if len(tx.added) > 0 {
		// always a fresh slice: snapshots keep the old one
		s.ids = mergeSorted(s.ids, tx.added)
	}
	sort.Slice(changes.Topics, func(i, j int) bool { return changes.Topics[i].ID < changes.Topics[j].ID })
	sort.Slice(changes.Projects, func(i, j int) bool { return changes.Projects[i].ID < changes.Projects[j].ID })
	s.updateGauges()
	return changes
}

// mergeSorted returns a new sorted slice holding base (already sorted) and extra
func mergeSorted(base, extra []string) []string {
	add := append([]string{}, extra...)
	sort.Strings(add)
	out := make([]string, 0, len(base)+len(add))
	i, j := 0, 0
	for i < len(base) && j < len(add) {
		if base[i] <= add[j] {
			out = append(out, base[i])
			i++
		} else {
			out = append(out, add[j])
			j++
		}
	}
	out = append(out, base[i:]...)
	return append(out, add[j:]...)
}

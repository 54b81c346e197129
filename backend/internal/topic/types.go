package topic

import (
	"strings"
	"time"
)

// Topic is a learning concept shared by every project it appears in
type Topic struct {
	ID            string    `json:"topic_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Status        Status    `json:"status"`
	Prerequisites []string  `json:"prerequisites"`
	Projects      []string  `json:"projects"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the topic
func (t *Topic) Clone() *Topic {
	if t == nil {
		return nil
	}
	c := *t
	c.Prerequisites = append([]string{}, t.Prerequisites...)
	c.Projects = append([]string{}, t.Projects...)
	return &c
}

// HasPrerequisite reports whether id is a direct prerequisite
func (t *Topic) HasPrerequisite(id string) bool {
	return contains(t.Prerequisites, id)
}

// InProject reports whether the topic has appeared in projectID
func (t *Topic) InProject(projectID string) bool {
	return contains(t.Projects, projectID)
}

// AddPrerequisite appends id unless present or equal to the topic itself.
// Returns true when the set changed.
func (t *Topic) AddPrerequisite(id string) bool {
	if id == "" || id == t.ID || t.HasPrerequisite(id) {
		return false
	}
	t.Prerequisites = append(t.Prerequisites, id)
	return true
}

// AddProject appends projectID unless present. Returns true when the set changed.
func (t *Topic) AddProject(projectID string) bool {
	if projectID == "" || t.InProject(projectID) {
		return false
	}
	t.Projects = append(t.Projects, projectID)
	return true
}

// Project is a tracked codebase
type Project struct {
	ID          string            `json:"project_id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	TopicIDs    []string          `json:"topic_ids"`
	Progress    map[string]Status `json:"progress,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Clone returns a deep copy of the project
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	c := *p
	c.TopicIDs = append([]string{}, p.TopicIDs...)
	if p.Progress != nil {
		c.Progress = make(map[string]Status, len(p.Progress))
		for k, v := range p.Progress {
			c.Progress[k] = v
		}
	}
	return &c
}

// HasTopic reports whether topicID is attached to the project
func (p *Project) HasTopic(topicID string) bool {
	return contains(p.TopicIDs, topicID)
}

// AddTopic appends topicID unless present. Returns true when the set changed.
func (p *Project) AddTopic(topicID string) bool {
	if topicID == "" || p.HasTopic(topicID) {
		return false
	}
	p.TopicIDs = append(p.TopicIDs, topicID)
	return true
}

// ProposedTopic is an unvalidated topic candidate emitted by the extraction model.
// Different prompt generations name the same fields differently, so synonyms are
// accepted for the label and the description.
type ProposedTopic struct {
	Title            string   `json:"title,omitempty"`
	TopicID          string   `json:"topic_id,omitempty"`
	DisplayName      string   `json:"display_name,omitempty"`
	Description      string   `json:"description,omitempty"`
	ShortDescription string   `json:"short_description,omitempty"`
	Prerequisites    []string `json:"prerequisites,omitempty"`
}

// Label returns the text the identifier is derived from
func (p ProposedTopic) Label() string {
	return firstNonEmpty(p.Title, p.TopicID, p.DisplayName)
}

// DisplayTitle returns the human-readable name for a topic created from this proposal
func (p ProposedTopic) DisplayTitle(id string) string {
	if name := firstNonEmpty(p.DisplayName, p.Title); name != "" {
		return name
	}
	return Humanize(id)
}

// Summary returns the proposal's description under either field name
func (p ProposedTopic) Summary() string {
	return firstNonEmpty(p.Description, p.ShortDescription)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

package brain

import (
	"sort"

	"brainvibe/backend/internal/topic"
	apperrors "brainvibe/backend/pkg/errors"
)

// View is the read-only state a graph is built from. *store.Snapshot implements it.
type View interface {
	topic.Catalog
	Project(id string) (*topic.Project, bool)
}

// Node is a topic record as it appears in a graph. Status holds the
// consolidated status for the graph's scope rather than the stored one.
type Node struct {
	topic.Topic
}

// Edge points from a prerequisite to the topic that requires it
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph is a derived prerequisite graph. Nodes are ordered by id and edges by
// (source, target); every edge endpoint is a node.
type Graph struct {
	ProjectID string `json:"project_id,omitempty"`
	Nodes     []Node `json:"nodes"`
	Edges     []Edge `json:"edges"`
}

// BuildProjectGraph builds the graph of one project's topics. A node's status
// is the most advanced of the topic's own status and its progress in the project.
func BuildProjectGraph(view View, projectID string) (*Graph, error) {
	p, ok := view.Project(projectID)
	if !ok {
		return nil, apperrors.NewProjectNotFound(projectID)
	}

	members := make(map[string]*topic.Topic, len(p.TopicIDs))
	for _, id := range p.TopicIDs {
		if t, ok := view.Lookup(id); ok {
			members[id] = t
		}
	}

	return build(projectID, members, func(t *topic.Topic) topic.Status {
		return topic.MaxStatus(t.Status, p.Progress[t.ID])
	}), nil
}

// BuildGlobalGraph builds the master graph over every topic. A node's status is
// the most advanced of the topic's own status and its progress in any project.
func BuildGlobalGraph(view View) *Graph {
	ids := view.IDs()
	members := make(map[string]*topic.Topic, len(ids))
	for _, id := range ids {
		if t, ok := view.Lookup(id); ok {
			members[id] = t
		}
	}

	return build("", members, func(t *topic.Topic) topic.Status {
		status := t.Status
		for _, projectID := range t.Projects {
			if p, ok := view.Project(projectID); ok {
				status = topic.MaxStatus(status, p.Progress[t.ID])
			}
		}
		return status
	})
}

func build(projectID string, members map[string]*topic.Topic, statusOf func(*topic.Topic) topic.Status) *Graph {
	g := &Graph{
		ProjectID: projectID,
		Nodes:     make([]Node, 0, len(members)),
		Edges:     []Edge{},
	}

	for _, t := range members {
		n := Node{Topic: *t.Clone()}
		n.Status = statusOf(t)
		g.Nodes = append(g.Nodes, n)

		for _, prereq := range t.Prerequisites {
			// prerequisites outside the node set are left out
			if _, ok := members[prereq]; ok && prereq != t.ID {
				g.Edges = append(g.Edges, Edge{Source: prereq, Target: t.ID})
			}
		}
	}

	sort.Slice(g.Nodes, func(i, j int) bool { return g.Nodes[i].ID < g.Nodes[j].ID })
	sort.Slice(g.Edges, func(i, j int) bool {
		if g.Edges[i].Source != g.Edges[j].Source {
			return g.Edges[i].Source < g.Edges[j].Source
		}
		return g.Edges[i].Target < g.Edges[j].Target
	})
	return g
}

// Node returns the node for id
func (g *Graph) Node(id string) (Node, bool) {
	i := sort.Search(len(g.Nodes), func(i int) bool { return g.Nodes[i].ID >= id })
	if i < len(g.Nodes) && g.Nodes[i].ID == id {
		return g.Nodes[i], true
	}
	return Node{}, false
}

// HasEdge reports whether source is drawn as a prerequisite of target
func (g *Graph) HasEdge(source, target string) bool {
	for _, e := range g.Edges {
		if e.Source == source && e.Target == target {
			return true
		}
	}
	return false
}

// LearningOrder returns the topic ids so that every prerequisite comes before
// the topics requiring it, ties broken by id. ok is false when the graph has a
// cycle; the order then holds only the topics outside it.
func (g *Graph) LearningOrder() (order []string, ok bool) {
	inDegree := make(map[string]int, len(g.Nodes))
	dependents := make(map[string][]string, len(g.Nodes))
	for _, n := range g.Nodes {
		inDegree[n.ID] = 0
	}
	for _, e := range g.Edges {
		inDegree[e.Target]++
		dependents[e.Source] = append(dependents[e.Source], e.Target)
	}

	var ready []string
	for _, n := range g.Nodes {
		if inDegree[n.ID] == 0 {
			ready = append(ready, n.ID)
		}
	}

	order = make([]string, 0, len(g.Nodes))
	for len(ready) > 0 {
		sort.Strings(ready)
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for _, next := range dependents[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}
	return order, len(order) == len(g.Nodes)
}

// HasCycle reports whether the prerequisite edges form a cycle
func (g *Graph) HasCycle() bool {
	_, ok := g.LearningOrder()
	return !ok
}

package brain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brainvibe/backend/internal/store"
	"brainvibe/backend/internal/topic"
	apperrors "brainvibe/backend/pkg/errors"
)

func newTestPipeline(t *testing.T, projects ...string) *Pipeline {
	t.Helper()
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := store.New(store.WithClock(func() time.Time { return clock }))
	for _, id := range projects {
		_, err := s.CreateProject(context.Background(), id, id, "")
		require.NoError(t, err)
	}
	return NewPipeline(s)
}

func ingest(t *testing.T, p *Pipeline, projectID string, proposals ...topic.ProposedTopic) *Result {
	t.Helper()
	result, err := p.Ingest(context.Background(), projectID, proposals)
	require.NoError(t, err)
	return result
}

func topicIDs(topics []*topic.Topic) []string {
	ids := make([]string, 0, len(topics))
	for _, t := range topics {
		ids = append(ids, t.ID)
	}
	return ids
}

func nodeIDs(g *Graph) []string {
	ids := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

func assertNoDanglingEdges(t *testing.T, g *Graph) {
	t.Helper()
	for _, e := range g.Edges {
		_, ok := g.Node(e.Source)
		assert.True(t, ok, "edge source %s is not a node", e.Source)
		_, ok = g.Node(e.Target)
		assert.True(t, ok, "edge target %s is not a node", e.Target)
	}
}

var reactHooks = topic.ProposedTopic{
	Title:         "React Hooks",
	Description:   "useState, useEffect and friends",
	Prerequisites: []string{"React Basics"},
}

func TestIngest_NewTopicWithPlaceholderPrerequisite(t *testing.T) {
	p := newTestPipeline(t, "p1")

	result := ingest(t, p, "p1", reactHooks)

	assert.Equal(t, []string{"react_hooks"}, topicIDs(result.Topics))
	assert.Equal(t, []string{"react_hooks"}, result.Created)
	assert.Equal(t, []string{"react_basics"}, result.Placeholders)
	assert.Equal(t, []string{"react_basics", "react_hooks"}, p.Store().Snapshot().IDs())

	basics, ok := p.Store().Topic("react_basics")
	require.True(t, ok)
	assert.Equal(t, "React Basics", basics.Title)
	assert.Empty(t, basics.Description)
	assert.Equal(t, topic.NotLearned, basics.Status)
	assert.Equal(t, []string{"p1"}, basics.Projects)

	hooks, _ := p.Store().Topic("react_hooks")
	assert.Equal(t, "React Hooks", hooks.Title)
	assert.Equal(t, "useState, useEffect and friends", hooks.Description)
	assert.Equal(t, []string{"react_basics"}, hooks.Prerequisites)

	want := []Edge{{Source: "react_basics", Target: "react_hooks"}}
	assert.Equal(t, want, result.ProjectGraph.Edges)
	assert.Equal(t, want, result.GlobalGraph.Edges)
	assert.Equal(t, []string{"react_basics", "react_hooks"}, nodeIDs(result.ProjectGraph))
	assert.Equal(t, "p1", result.ProjectGraph.ProjectID)
}

func TestIngest_ResolvesRewordedTitle(t *testing.T) {
	p := newTestPipeline(t, "p1", "p2")
	ingest(t, p, "p1", reactHooks)

	result := ingest(t, p, "p2", topic.ProposedTopic{Title: "Using React Hooks"})

	assert.Equal(t, []string{"react_hooks"}, topicIDs(result.Topics))
	assert.Empty(t, result.Created)
	assert.Equal(t, []string{"react_hooks"}, result.Merged)
	assert.Len(t, p.Store().Topics(), 2, "no new topic")

	hooks, _ := p.Store().Topic("react_hooks")
	assert.Equal(t, []string{"p1", "p2"}, hooks.Projects)
	assert.Equal(t, "React Hooks", hooks.Title)

	p2, _ := p.Store().Project("p2")
	assert.Equal(t, []string{"react_hooks"}, p2.TopicIDs)
	assert.Equal(t, []string{"react_hooks"}, nodeIDs(result.ProjectGraph))
	assert.Empty(t, result.ProjectGraph.Edges, "react_basics is not part of p2")
}

func TestMarkLearned_ShowsInGlobalGraph(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, "p1")
	ingest(t, p, "p1", reactHooks)

	updated, err := p.MarkLearned(ctx, "react_hooks", topic.Learned)
	require.NoError(t, err)
	assert.Equal(t, topic.Learned, updated.Status)

	node, ok := p.GlobalGraph().Node("react_hooks")
	require.True(t, ok)
	assert.Equal(t, topic.Learned, node.Status)

	updated, err = p.MarkLearned(ctx, "react_basics", "")
	require.NoError(t, err)
	assert.Equal(t, topic.Learned, updated.Status, "empty status defaults to LEARNED")

	_, err = p.MarkLearned(ctx, "ghost", topic.Learned)
	var notFound *apperrors.ErrTopicNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestIngest_SkipsProposalWithoutLabel(t *testing.T) {
	p := newTestPipeline(t, "p1")

	result := ingest(t, p, "p1",
		topic.ProposedTopic{Title: "", Description: "nameless"},
		topic.ProposedTopic{Title: "Docker"},
		topic.ProposedTopic{Title: "!!!"},
	)

	assert.Equal(t, []string{"docker"}, topicIDs(result.Topics))
	assert.Equal(t, 2, result.Skipped)
	require.Len(t, result.Skips, 2)
	assert.Equal(t, 0, result.Skips[0].Index)
	assert.Equal(t, 2, result.Skips[1].Index)
	assert.Equal(t, "!!!", result.Skips[1].Label)
	assert.Len(t, p.Store().Topics(), 1)
}

func TestIngest_UnknownProjectWritesNothing(t *testing.T) {
	p := newTestPipeline(t, "p1")
	ingest(t, p, "p1", reactHooks)
	topicsBefore := p.Store().Topics()
	projectsBefore := p.Store().Projects()

	result, err := p.Ingest(context.Background(), "nonexistent_project", []topic.ProposedTopic{
		{Title: "Kubernetes", Prerequisites: []string{"Docker"}},
		{Title: "React Hooks", Description: "would fill nothing"},
	})

	var notFound *apperrors.ErrProjectNotFound
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "nonexistent_project", notFound.ProjectID)
	assert.Nil(t, result)
	assert.Equal(t, topicsBefore, p.Store().Topics())
	assert.Equal(t, projectsBefore, p.Store().Projects())
}

func TestIngest_Idempotent(t *testing.T) {
	p := newTestPipeline(t, "p1")
	batch := []topic.ProposedTopic{
		reactHooks,
		{TopicID: "state-management", Description: "stores", Prerequisites: []string{"React Hooks", "JavaScript"}},
	}

	first, err := p.Ingest(context.Background(), "p1", batch)
	require.NoError(t, err)
	topicsOnce := p.Store().Topics()
	projectsOnce := p.Store().Projects()

	second, err := p.Ingest(context.Background(), "p1", batch)
	require.NoError(t, err)

	assert.Equal(t, topicsOnce, p.Store().Topics())
	assert.Equal(t, projectsOnce, p.Store().Projects())
	assert.Equal(t, first.GlobalGraph, second.GlobalGraph)
	assert.Empty(t, second.Created)
	assert.Empty(t, second.Placeholders)

	sm, _ := p.Store().Topic("state_management")
	assert.Equal(t, []string{"react_hooks", "javascript"}, sm.Prerequisites)
	assert.Equal(t, []string{"p1"}, sm.Projects)
}

func TestIngest_Deterministic(t *testing.T) {
	batch := []topic.ProposedTopic{
		{Title: "React Hooks Effects"},
		{Title: "React Hooks State"},
		{Title: "Hooks", Prerequisites: []string{"React"}},
		{Title: "Python Pandas", Prerequisites: []string{"Python NumPy", "Python"}},
	}

	run := func() *Result {
		p := newTestPipeline(t, "p1")
		return ingest(t, p, "p1", batch...)
	}
	a, b := run(), run()

	assert.Equal(t, a.ProjectGraph, b.ProjectGraph)
	assert.Equal(t, a.GlobalGraph, b.GlobalGraph)
	assert.Equal(t, topicIDs(a.Topics), topicIDs(b.Topics))
}

func TestIngest_MergeUnionAcrossProjects(t *testing.T) {
	p := newTestPipeline(t, "a", "b")
	ingest(t, p, "a", topic.ProposedTopic{Title: "Authentication JWT"})
	ingest(t, p, "b", topic.ProposedTopic{TopicID: "authentication_jwt", Description: "tokens"})

	got, _ := p.Store().Topic("authentication_jwt")
	assert.Equal(t, []string{"a", "b"}, got.Projects)
	assert.Equal(t, "tokens", got.Description, "empty description is filled by a later match")
}

func TestIngest_LaterProposalReusesEarlierTopic(t *testing.T) {
	p := newTestPipeline(t, "p1")

	result := ingest(t, p, "p1",
		topic.ProposedTopic{Title: "Python NumPy"},
		topic.ProposedTopic{Title: "Python Pandas", Prerequisites: []string{"python numpy"}},
	)

	assert.Empty(t, result.Placeholders)
	assert.True(t, result.ProjectGraph.HasEdge("python_numpy", "python_pandas"))
}

func TestIngest_PrerequisiteResolvesToExistingTopic(t *testing.T) {
	p := newTestPipeline(t, "web", "mobile")
	ingest(t, p, "web", topic.ProposedTopic{Title: "React Native Basics"})

	result := ingest(t, p, "mobile", topic.ProposedTopic{
		Title:         "Mobile Navigation",
		Prerequisites: []string{"Native Basics"},
	})

	assert.Empty(t, result.Placeholders)
	assert.True(t, result.ProjectGraph.HasEdge("react_native_basics", "mobile_navigation"))
	basics, _ := p.Store().Topic("react_native_basics")
	assert.Equal(t, []string{"web", "mobile"}, basics.Projects, "prerequisite joins the project")
}

func TestIngest_RejectsSelfLoop(t *testing.T) {
	p := newTestPipeline(t, "p1")

	result := ingest(t, p, "p1", topic.ProposedTopic{
		Title:         "React Hooks",
		Prerequisites: []string{"react-hooks", "React Hooks"},
	})

	require.Len(t, result.RejectedEdges, 2)
	for _, e := range result.RejectedEdges {
		assert.Equal(t, RejectedEdge{TopicID: "react_hooks", PrerequisiteID: "react_hooks", Reason: RejectSelfLoop}, e)
	}
	hooks, _ := p.Store().Topic("react_hooks")
	assert.Empty(t, hooks.Prerequisites)
	assert.Empty(t, result.GlobalGraph.Edges)
}

func TestIngest_BroaderPrerequisiteIsNotTheTopicItself(t *testing.T) {
	p := newTestPipeline(t, "p1")

	result := ingest(t, p, "p1", topic.ProposedTopic{
		Title:         "React Hooks",
		Prerequisites: []string{"React"},
	})

	assert.Empty(t, result.RejectedEdges)
	assert.Equal(t, []string{"react"}, result.Placeholders)
	react, ok := p.Store().Topic("react")
	require.True(t, ok)
	assert.Equal(t, "React", react.Title)
	hooks, _ := p.Store().Topic("react_hooks")
	assert.Equal(t, []string{"react"}, hooks.Prerequisites)
	assert.Contains(t, result.GlobalGraph.Edges, Edge{Source: "react", Target: "react_hooks"})
}

func TestIngest_RejectsCycle(t *testing.T) {
	p := newTestPipeline(t, "p1")

	result := ingest(t, p, "p1",
		topic.ProposedTopic{Title: "Closures", Prerequisites: []string{"Scope"}},
		topic.ProposedTopic{Title: "Scope", Prerequisites: []string{"Closures"}},
	)

	assert.Equal(t, []RejectedEdge{{TopicID: "scope", PrerequisiteID: "closures", Reason: RejectCycle}}, result.RejectedEdges)
	assert.Equal(t, []Edge{{Source: "scope", Target: "closures"}}, result.GlobalGraph.Edges)
	assert.False(t, result.GlobalGraph.HasCycle())
	assertNoDanglingEdges(t, result.GlobalGraph)
}

func TestIngest_OverMergeIsDocumented(t *testing.T) {
	p := newTestPipeline(t, "p1")
	ingest(t, p, "p1", topic.ProposedTopic{Title: "React"})

	result := ingest(t, p, "p1", topic.ProposedTopic{Title: "React Router"})

	// lexical overlap folds a distinct concept into the broader topic
	assert.Equal(t, []string{"react"}, topicIDs(result.Topics))
	_, ok := p.Store().Topic("react_router")
	assert.False(t, ok)
}

func TestIngest_UnderMergeIsDocumented(t *testing.T) {
	p := newTestPipeline(t, "p1")
	ingest(t, p, "p1", topic.ProposedTopic{Title: "Promises"})

	result := ingest(t, p, "p1", topic.ProposedTopic{Title: "async/await"})

	// synonyms without shared words stay apart
	assert.Equal(t, []string{"asyncawait"}, result.Created)
	assert.Len(t, p.Store().Topics(), 2)
}

func TestIngest_CancelledContextStillCommits(t *testing.T) {
	p := newTestPipeline(t, "p1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Ingest(ctx, "p1", []topic.ProposedTopic{{Title: "Go"}})
	require.NoError(t, err)
	_, ok := p.Store().Topic("go")
	assert.True(t, ok)
}

func TestIngest_ConcurrentBatchesDoNotDuplicate(t *testing.T) {
	p := newTestPipeline(t, "a", "b")
	done := make(chan error, 2)
	for _, projectID := range []string{"a", "b"} {
		go func(projectID string) {
			_, err := p.Ingest(context.Background(), projectID, []topic.ProposedTopic{reactHooks})
			done <- err
		}(projectID)
	}
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	assert.Equal(t, []string{"react_basics", "react_hooks"}, p.Store().Snapshot().IDs())
	hooks, _ := p.Store().Topic("react_hooks")
	assert.ElementsMatch(t, []string{"a", "b"}, hooks.Projects)
}

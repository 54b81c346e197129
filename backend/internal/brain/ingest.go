// Package brain turns proposed topics into the consolidated topic store and
// derives the per-project and master prerequisite graphs from it.
package brain

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"brainvibe/backend/internal/metrics"
	"brainvibe/backend/internal/store"
	"brainvibe/backend/internal/topic"
	apperrors "brainvibe/backend/pkg/errors"
	"brainvibe/backend/pkg/logger"
)

// Reasons a prerequisite edge is not written
const (
	RejectSelfLoop = "self_loop"
	RejectCycle    = "cycle"
)

// RejectedEdge is a prerequisite relation that was proposed but not written
type RejectedEdge struct {
	TopicID        string `json:"topic_id"`
	PrerequisiteID string `json:"prerequisite_id"`
	Reason         string `json:"reason"`
}

// Result describes what one ingestion batch did
type Result struct {
	ProjectID string `json:"project_id"`
	// Topics holds the record each usable proposal resolved to, in input order
	Topics        []*topic.Topic                    `json:"topics"`
	Created       []string                          `json:"created"`
	Merged        []string                          `json:"merged"`
	Placeholders  []string                          `json:"placeholders"`
	Skipped       int                               `json:"skipped"`
	Skips         []*apperrors.ErrMalformedProposal `json:"-"`
	RejectedEdges []RejectedEdge                    `json:"rejected_edges"`
	ProjectGraph  *Graph                            `json:"project_graph"`
	GlobalGraph   *Graph                            `json:"global_graph"`
}

// Pipeline ingests proposed topics into a store
type Pipeline struct {
	store  *store.Store
	logger *zap.Logger
}

// NewPipeline creates a pipeline writing to s
func NewPipeline(s *store.Store) *Pipeline {
	return &Pipeline{
		store:  s,
		logger: logger.Named("ingest"),
	}
}

// Store returns the store the pipeline writes to
func (p *Pipeline) Store() *store.Store {
	return p.store
}

// Ingest merges a batch of proposals into projectID as a single transaction
// and returns the resulting records together with freshly built graphs.
// An unknown project fails the whole batch without writing anything;
// proposals without a usable label are skipped.
func (p *Pipeline) Ingest(ctx context.Context, projectID string, proposals []topic.ProposedTopic) (*Result, error) {
	result := &Result{
		ProjectID:     projectID,
		Topics:        []*topic.Topic{},
		Created:       []string{},
		Merged:        []string{},
		Placeholders:  []string{},
		RejectedEdges: []RejectedEdge{},
	}
	var resolved []string

	start := time.Now()
	err := p.store.Update(ctx, func(tx *store.Tx) error {
		if _, ok := tx.Project(projectID); !ok {
			return apperrors.NewProjectNotFound(projectID)
		}
		for i, proposal := range proposals {
			id, err := p.ingestOne(tx, projectID, i, proposal, result)
			if err != nil {
				return fmt.Errorf("proposal %d: %w", i, err)
			}
			if id != "" {
				resolved = append(resolved, id)
			}
		}
		return nil
	})
	metrics.IngestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		outcome := "error"
		if apperrors.IsNotFound(err) {
			outcome = "project_not_found"
		}
		metrics.IngestBatches.WithLabelValues(outcome).Inc()
		p.logger.Warn("Ingestion rejected",
			zap.String("project_id", projectID),
			zap.Int("proposals", len(proposals)),
			zap.Error(err),
		)
		return nil, err
	}

	snap := p.store.Snapshot()
	for _, id := range resolved {
		if t, ok := snap.Lookup(id); ok {
			result.Topics = append(result.Topics, t.Clone())
		}
	}

	var g errgroup.Group
	g.Go(func() error {
		graph, err := BuildProjectGraph(snap, projectID)
		result.ProjectGraph = graph
		return err
	})
	g.Go(func() error {
		result.GlobalGraph = BuildGlobalGraph(snap)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to build graphs: %w", err)
	}

	p.record(result)
	return result, nil
}

// ingestOne applies a single proposal and returns the topic it resolved to,
// or "" when it was skipped
func (p *Pipeline) ingestOne(tx *store.Tx, projectID string, index int, proposal topic.ProposedTopic, result *Result) (string, error) {
	label := proposal.Label()
	candidate := topic.Normalize(label)
	if candidate == "" {
		result.Skipped++
		result.Skips = append(result.Skips, apperrors.NewMalformedProposal(index, label))
		return "", nil
	}

	title := proposal.DisplayTitle(candidate)
	id, matched := topic.Resolve(candidate, title, tx)
	if !matched {
		id = candidate
	}
	if _, err := tx.UpsertTopic(id, store.TopicFields{
		Title:       title,
		Description: proposal.Summary(),
		Projects:    []string{projectID},
	}); err != nil {
		return "", err
	}
	if matched {
		result.Merged = append(result.Merged, id)
	} else {
		result.Created = append(result.Created, id)
	}
	tx.AttachToProject(projectID, id)

	for _, raw := range proposal.Prerequisites {
		if err := p.linkPrerequisite(tx, projectID, id, raw, result); err != nil {
			return "", err
		}
	}
	return id, nil
}

func (p *Pipeline) linkPrerequisite(tx *store.Tx, projectID, topicID, raw string, result *Result) error {
	candidate := topic.Normalize(raw)
	if candidate == "" {
		return nil
	}

	if candidate == topicID {
		result.RejectedEdges = append(result.RejectedEdges, RejectedEdge{
			TopicID:        topicID,
			PrerequisiteID: topicID,
			Reason:         RejectSelfLoop,
		})
		return nil
	}

	// a broader prerequisite ("React" for "React Hooks") must not resolve to the topic itself
	prereqID, matched := topic.Resolve(candidate, raw, topic.Excluding(tx, topicID))
	if matched {
		if reason := edgeRejection(tx, topicID, prereqID); reason != "" {
			result.RejectedEdges = append(result.RejectedEdges, RejectedEdge{
				TopicID:        topicID,
				PrerequisiteID: prereqID,
				Reason:         reason,
			})
			return nil
		}
	} else {
		prereqID = candidate
		if _, err := tx.UpsertTopic(prereqID, store.TopicFields{Title: topic.Humanize(prereqID)}); err != nil {
			return err
		}
		result.Placeholders = append(result.Placeholders, prereqID)
	}

	tx.AttachToProject(projectID, prereqID)
	_, err := tx.AddPrerequisite(topicID, prereqID)
	return err
}

// edgeRejection returns why prereqID must not become a prerequisite of topicID, or ""
func edgeRejection(tx *store.Tx, topicID, prereqID string) string {
	if topicID == prereqID {
		return RejectSelfLoop
	}
	if t, ok := tx.Lookup(topicID); ok && t.HasPrerequisite(prereqID) {
		return ""
	}
	if tx.WouldCycle(topicID, prereqID) {
		return RejectCycle
	}
	return ""
}

func (p *Pipeline) record(result *Result) {
	metrics.IngestBatches.WithLabelValues("ok").Inc()
	metrics.IngestProposals.WithLabelValues("created").Add(float64(len(result.Created)))
	metrics.IngestProposals.WithLabelValues("merged").Add(float64(len(result.Merged)))
	metrics.IngestProposals.WithLabelValues("skipped").Add(float64(result.Skipped))
	metrics.IngestPlaceholders.Add(float64(len(result.Placeholders)))
	for _, e := range result.RejectedEdges {
		metrics.RejectedEdges.WithLabelValues(e.Reason).Inc()
	}

	for _, skip := range result.Skips {
		p.logger.Warn("Skipped proposal without a usable label",
			zap.String("project_id", result.ProjectID),
			zap.Int("index", skip.Index),
			zap.String("label", skip.Label),
		)
	}
	for _, e := range result.RejectedEdges {
		p.logger.Warn("Rejected prerequisite edge",
			zap.String("project_id", result.ProjectID),
			zap.String("topic_id", e.TopicID),
			zap.String("prerequisite_id", e.PrerequisiteID),
			zap.String("reason", e.Reason),
		)
	}
	p.logger.Info("Ingested topics",
		zap.String("project_id", result.ProjectID),
		zap.Int("created", len(result.Created)),
		zap.Int("merged", len(result.Merged)),
		zap.Int("placeholders", len(result.Placeholders)),
		zap.Int("skipped", result.Skipped),
		zap.Int("nodes", len(result.ProjectGraph.Nodes)),
		zap.Int("edges", len(result.ProjectGraph.Edges)),
	)
}

// MarkLearned sets a topic's status, LEARNED when status is empty
func (p *Pipeline) MarkLearned(ctx context.Context, topicID string, status topic.Status) (*topic.Topic, error) {
	if status == "" {
		status = topic.Learned
	}
	t, err := p.store.SetStatus(ctx, topicID, status)
	if err != nil {
		return nil, err
	}
	p.logger.Info("Topic status updated",
		zap.String("topic_id", topicID),
		zap.String("status", string(status)),
	)
	return t, nil
}

// ProjectGraph builds the current graph of one project
func (p *Pipeline) ProjectGraph(projectID string) (*Graph, error) {
	return BuildProjectGraph(p.store.Snapshot(), projectID)
}

// GlobalGraph builds the current master graph
func (p *Pipeline) GlobalGraph() *Graph {
	return BuildGlobalGraph(p.store.Snapshot())
}

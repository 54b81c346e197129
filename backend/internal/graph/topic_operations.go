package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"brainvibe/backend/internal/topic"
)

// ============================================================================
// Topic Operations
// ============================================================================

func loadTopics(ctx context.Context, tx neo4j.ManagedTransaction) ([]*topic.Topic, error) {
	query := `
		MATCH (t:Topic)
		RETURN t.id as id,
		       t.title as title,
		       t.description as description,
		       t.status as status,
		       t.prerequisites as prerequisites,
		       t.projects as projects,
		       t.created_at as created_at,
		       t.updated_at as updated_at
		ORDER BY t.id
	`
	result, err := tx.Run(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query topics: %w", err)
	}

	var topics []*topic.Topic
	for result.Next(ctx) {
		record := result.Record()
		status := topic.Status(getStringFromRecord(record, "status"))
		if !status.Valid() {
			status = topic.NotLearned
		}
		topics = append(topics, &topic.Topic{
			ID:            getStringFromRecord(record, "id"),
			Title:         getStringFromRecord(record, "title"),
			Description:   getStringFromRecord(record, "description"),
			Status:        status,
			Prerequisites: getStringSliceFromRecord(record, "prerequisites"),
			Projects:      getStringSliceFromRecord(record, "projects"),
			CreatedAt:     getTimeFromRecord(record, "created_at"),
			UpdatedAt:     getTimeFromRecord(record, "updated_at"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read topics: %w", err)
	}
	return topics, nil
}

// saveTopics upserts the nodes first so REQUIRES edges between topics of the
// same batch can be matched
func saveTopics(ctx context.Context, tx neo4j.ManagedTransaction, topics []*topic.Topic) error {
	if len(topics) == 0 {
		return nil
	}
	rows := make([]any, 0, len(topics))
	for _, t := range topics {
		rows = append(rows, map[string]any{
			"id":            t.ID,
			"title":         t.Title,
			"description":   t.Description,
			"status":        string(t.Status),
			"prerequisites": t.Prerequisites,
			"projects":      t.Projects,
			"created_at":    t.CreatedAt.UTC(),
			"updated_at":    t.UpdatedAt.UTC(),
		})
	}
	params := map[string]any{"topics": rows}

	nodes := `
		UNWIND $topics AS row
		MERGE (t:Topic {id: row.id})
		SET t.title = row.title,
		    t.description = row.description,
		    t.status = row.status,
		    t.prerequisites = row.prerequisites,
		    t.projects = row.projects,
		    t.created_at = row.created_at,
		    t.updated_at = row.updated_at
	`
	if err := run(ctx, tx, nodes, params); err != nil {
		return fmt.Errorf("failed to save topics: %w", err)
	}

	// prerequisites that are not stored topics get no edge; the property keeps them
	edges := `
		UNWIND $topics AS row
		MATCH (t:Topic {id: row.id})
		OPTIONAL MATCH (t)-[old:REQUIRES]->(:Topic)
		DELETE old
		WITH DISTINCT t, row
		UNWIND range(0, size(row.prerequisites) - 1) AS position
		MATCH (p:Topic {id: row.prerequisites[position]})
		MERGE (t)-[r:REQUIRES]->(p)
		SET r.position = position
	`
	if err := run(ctx, tx, edges, params); err != nil {
		return fmt.Errorf("failed to save prerequisite edges: %w", err)
	}
	return nil
}

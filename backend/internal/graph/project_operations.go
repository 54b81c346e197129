package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"brainvibe/backend/internal/topic"
)

// ============================================================================
// Project Operations
// ============================================================================

func loadProjects(ctx context.Context, tx neo4j.ManagedTransaction) ([]*topic.Project, error) {
	query := `
		MATCH (p:Project)
		OPTIONAL MATCH (p)-[c:CONTAINS]->(t:Topic)
		WHERE c.status IS NOT NULL
		RETURN p.id as id,
		       p.name as name,
		       p.description as description,
		       p.topic_ids as topic_ids,
		       p.created_at as created_at,
		       collect({topic_id: t.id, status: c.status}) as progress
		ORDER BY p.id
	`
	result, err := tx.Run(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}

	var projects []*topic.Project
	for result.Next(ctx) {
		record := result.Record()
		p := &topic.Project{
			ID:          getStringFromRecord(record, "id"),
			Name:        getStringFromRecord(record, "name"),
			Description: getStringFromRecord(record, "description"),
			TopicIDs:    getStringSliceFromRecord(record, "topic_ids"),
			CreatedAt:   getTimeFromRecord(record, "created_at"),
		}

		progress, _ := record.Get("progress")
		if entries, ok := progress.([]any); ok {
			for _, entry := range entries {
				m, ok := entry.(map[string]any)
				if !ok {
					continue
				}
				topicID := getStringFromMap(m, "topic_id", "")
				status := topic.Status(getStringFromMap(m, "status", ""))
				if topicID == "" || !status.Valid() {
					continue
				}
				if p.Progress == nil {
					p.Progress = make(map[string]topic.Status)
				}
				p.Progress[topicID] = status
			}
		}
		projects = append(projects, p)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read projects: %w", err)
	}
	return projects, nil
}

func saveProjects(ctx context.Context, tx neo4j.ManagedTransaction, projects []*topic.Project) error {
	if len(projects) == 0 {
		return nil
	}
	rows := make([]any, 0, len(projects))
	for _, p := range projects {
		progress := make(map[string]any, len(p.Progress))
		for topicID, status := range p.Progress {
			progress[topicID] = string(status)
		}
		rows = append(rows, map[string]any{
			"id":          p.ID,
			"name":        p.Name,
			"description": p.Description,
			"topic_ids":   p.TopicIDs,
			"progress":    progress,
			"created_at":  p.CreatedAt.UTC(),
		})
	}

	query := `
		UNWIND $projects AS row
		MERGE (p:Project {id: row.id})
		SET p.name = row.name,
		    p.description = row.description,
		    p.topic_ids = row.topic_ids,
		    p.created_at = row.created_at
		WITH p, row
		OPTIONAL MATCH (p)-[old:CONTAINS]->(:Topic)
		DELETE old
		WITH DISTINCT p, row
		UNWIND row.topic_ids AS topicID
		MATCH (t:Topic {id: topicID})
		MERGE (p)-[c:CONTAINS]->(t)
		SET c.status = row.progress[topicID]
	`
	if err := run(ctx, tx, query, map[string]any{"projects": rows}); err != nil {
		return fmt.Errorf("failed to save projects: %w", err)
	}
	return nil
}

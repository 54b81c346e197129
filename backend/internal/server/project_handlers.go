package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"brainvibe/backend/internal/adapter"
	"brainvibe/backend/internal/brain"
	"brainvibe/backend/internal/topic"
	apperrors "brainvibe/backend/pkg/errors"
)

type createProjectRequest struct {
	ProjectID   string `json:"project_id" binding:"required"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type analyzeDiffRequest struct {
	GitDiff  string `json:"git_diff" binding:"required"`
	Prompt   string `json:"prompt"`
	AIOutput string `json:"ai_output"`
}

type ingestRequest struct {
	Topics    []topic.ProposedTopic `json:"topics"`
	NewTopics []topic.ProposedTopic `json:"new_topics"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required,topicstatus"`
}

type ingestResponse struct {
	*brain.Result
	NewTopics []*topic.Topic     `json:"new_topics"`
	Diff      *adapter.DiffStats `json:"diff,omitempty"`
}

func (s *Server) createProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := s.store.CreateProject(c.Request.Context(), req.ProjectID, req.Name, req.Description)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.logger.Info("Project created", zap.String("project_id", p.ID))
	c.JSON(http.StatusCreated, p)
}

func (s *Server) listProjects(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"projects": s.store.Projects()})
}

func (s *Server) getProject(c *gin.Context) {
	id := c.Param("id")
	p, ok := s.store.Project(id)
	if !ok {
		s.respondError(c, apperrors.NewProjectNotFound(id))
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) getProjectTopics(c *gin.Context) {
	id := c.Param("id")
	topics, err := s.store.ProjectTopics(id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project_id": id, "topics": topics})
}

func (s *Server) getProjectGraph(c *gin.Context) {
	g, err := s.pipeline.ProjectGraph(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// analyzeDiff asks the model for topics in a diff and ingests them into the project
func (s *Server) analyzeDiff(c *gin.Context) {
	if s.extractor == nil {
		s.respondError(c, apperrors.ErrLLMUnavailable)
		return
	}
	var req analyzeDiffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	projectID := c.Param("id")
	known, err := s.store.ProjectTopics(projectID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	extraction, err := s.extractor.ExtractTopics(ctx, adapter.DiffRequest{
		Diff:        req.GitDiff,
		Prompt:      req.Prompt,
		AIOutput:    req.AIOutput,
		KnownTopics: known,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	result, err := s.pipeline.Ingest(ctx, projectID, extraction.Topics)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ingestResponse{
		Result:    result,
		NewTopics: result.Topics,
		Diff:      &extraction.Stats,
	})
}

// ingest accepts proposals that were extracted elsewhere
func (s *Server) ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	proposals := append(req.Topics, req.NewTopics...)

	result, err := s.pipeline.Ingest(c.Request.Context(), c.Param("id"), proposals)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ingestResponse{Result: result, NewTopics: result.Topics})
}

func (s *Server) setProjectTopicStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	status, err := topic.ParseStatus(req.Status)
	if err != nil {
		s.respondError(c, err)
		return
	}
	p, err := s.store.SetProjectStatus(c.Request.Context(), c.Param("id"), c.Param("topic_id"), status)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"project_id": p.ID,
		"topic_id":   c.Param("topic_id"),
		"status":     status,
	})
}

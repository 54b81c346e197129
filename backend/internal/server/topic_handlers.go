package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"brainvibe/backend/internal/topic"
	apperrors "brainvibe/backend/pkg/errors"
)

type completeRequest struct {
	Status string `json:"status" binding:"omitempty,topicstatus"`
}

func (s *Server) listTopics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"topics": s.store.Topics()})
}

func (s *Server) getTopic(c *gin.Context) {
	id := c.Param("id")
	t, ok := s.store.Topic(id)
	if !ok {
		s.respondError(c, apperrors.NewTopicNotFound(id))
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) getTopicProjects(c *gin.Context) {
	id := c.Param("id")
	projects, err := s.store.TopicProjects(id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"topic_id": id, "projects": projects})
}

// completeTopic marks a topic LEARNED, or sets the status given in the optional body
func (s *Server) completeTopic(c *gin.Context) {
	var req completeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	var status topic.Status
	if req.Status != "" {
		parsed, err := topic.ParseStatus(req.Status)
		if err != nil {
			s.respondError(c, err)
			return
		}
		status = parsed
	}

	t, err := s.pipeline.MarkLearned(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) getMasterGraph(c *gin.Context) {
	c.JSON(http.StatusOK, s.pipeline.GlobalGraph())
}

// Package server exposes the topic graph over HTTP.
package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"brainvibe/backend/internal/adapter"
	"brainvibe/backend/internal/brain"
	"brainvibe/backend/internal/store"
	"brainvibe/backend/internal/topic"
	"brainvibe/backend/pkg/logger"
)

// Extractor turns a diff into proposed topics
type Extractor interface {
	ExtractTopics(ctx context.Context, req adapter.DiffRequest) (*adapter.Extraction, error)
}

// Options configures the HTTP layer
type Options struct {
	CORSAllowOrigin string
	Production      bool
}

// Server holds the router and its dependencies
type Server struct {
	router    *gin.Engine
	pipeline  *brain.Pipeline
	store     *store.Store
	extractor Extractor
	logger    *zap.Logger
}

// New builds the router. extractor may be nil, which disables analyze-diff.
func New(pipeline *brain.Pipeline, extractor Extractor, opts Options) *Server {
	if opts.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	registerValidators()

	s := &Server{
		router:    gin.New(),
		pipeline:  pipeline,
		store:     pipeline.Store(),
		extractor: extractor,
		logger:    logger.Named("http"),
	}
	if opts.CORSAllowOrigin == "" {
		opts.CORSAllowOrigin = "*"
	}

	s.router.Use(requestID())
	s.router.Use(ginLogger(s.logger))
	s.router.Use(gin.Recovery())
	s.router.Use(corsMiddleware(opts.CORSAllowOrigin))
	s.routes()
	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"llm_configured": s.extractor != nil,
		})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// "/api" keeps the unversioned paths earlier clients call
	for _, prefix := range []string{"/api/v1", "/api"} {
		s.mountAPI(s.router.Group(prefix))
	}
}

func (s *Server) mountAPI(api *gin.RouterGroup) {
	projects := api.Group("/projects")
	projects.POST("", s.createProject)
	projects.GET("", s.listProjects)
	projects.GET("/:id", s.getProject)
	projects.GET("/:id/topics", s.getProjectTopics)
	projects.GET("/:id/graph", s.getProjectGraph)
	projects.POST("/:id/analyze-diff", s.analyzeDiff)
	projects.POST("/:id/ingest", s.ingest)
	projects.POST("/:id/topics/:topic_id/status", s.setProjectTopicStatus)

	topics := api.Group("/topics")
	topics.GET("", s.listTopics)
	topics.GET("/:id", s.getTopic)
	topics.GET("/:id/projects", s.getTopicProjects)
	topics.POST("/:id/complete", s.completeTopic)

	api.GET("/master-graph", s.getMasterGraph)
}

var validatorsOnce sync.Once

// registerValidators adds the "topicstatus" tag to gin's validator
func registerValidators() {
	validatorsOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("topicstatus", validateTopicStatus)
		}
	})
}

// validateTopicStatus accepts any spelling topic.ParseStatus understands
func validateTopicStatus(fl validator.FieldLevel) bool {
	_, err := topic.ParseStatus(fl.Field().String())
	return err == nil
}

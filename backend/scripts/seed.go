package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"brainvibe/backend/internal/brain"
	"brainvibe/backend/internal/storage"
	"brainvibe/backend/internal/topic"
	"brainvibe/backend/pkg/config"
	apperrors "brainvibe/backend/pkg/errors"
	"brainvibe/backend/pkg/logger"
)

type seedProject struct {
	id, name, description string
	topics                []topic.ProposedTopic
}

var demoProjects = []seedProject{
	{
		id:          "web-app-1",
		name:        "Web Application",
		description: "A full-stack web application built with React and Django",
		topics: []topic.ProposedTopic{
			{TopicID: "react-basics", DisplayName: "React Basics", Description: "Fundamentals of React including components, props, and state"},
			{TopicID: "react-hooks", DisplayName: "React Hooks", Description: "Using hooks in functional components", Prerequisites: []string{"react-basics"}},
			{TopicID: "django-rest-framework", DisplayName: "Django REST Framework", Description: "Building APIs with Django REST Framework"},
			{TopicID: "authentication-jwt", DisplayName: "JWT Authentication", Description: "Implementing JWT authentication", Prerequisites: []string{"django-rest-framework"}},
		},
	},
	{
		id:          "mobile-app-1",
		name:        "Mobile Application",
		description: "A mobile app built with React Native",
		topics: []topic.ProposedTopic{
			{TopicID: "react-native-basics", DisplayName: "React Native Basics", Description: "Fundamentals of React Native"},
			{TopicID: "mobile-navigation", DisplayName: "Mobile Navigation", Description: "Navigation in mobile apps", Prerequisites: []string{"react-native-basics"}},
			{TopicID: "mobile-styling", DisplayName: "Mobile Styling", Description: "Styling in React Native", Prerequisites: []string{"react-native-basics"}},
		},
	},
	{
		id:          "ml-project-1",
		name:        "Machine Learning Project",
		description: "A machine learning project for image classification",
		topics: []topic.ProposedTopic{
			{TopicID: "python-numpy", DisplayName: "NumPy", Description: "Numerical computing with NumPy"},
			{TopicID: "python-pandas", DisplayName: "Pandas", Description: "Data manipulation with Pandas"},
			{TopicID: "tensorflow-basics", DisplayName: "TensorFlow Basics", Description: "Basics of TensorFlow", Prerequisites: []string{"python-numpy"}},
			{TopicID: "cnn", DisplayName: "Convolutional Neural Networks", Description: "Convolutional Neural Networks for image processing", Prerequisites: []string{"tensorflow-basics"}},
		},
	},
}

var demoStatuses = map[string]topic.Status{
	"django_rest_framework": topic.InProgress,
	"python_numpy":          topic.Learned,
	"python_pandas":         topic.InProgress,
}

func main() {
	backend := flag.String("backend", "", "store backend to seed (default STORE_BACKEND)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *backend != "" {
		cfg.StoreBackend = *backend
	}

	// Initialize logger
	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting seeding...", zap.String("backend", cfg.StoreBackend))

	ctx := context.Background()
	s, err := storage.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to open store", zap.Error(err))
	}
	defer func() {
		if err := s.Close(ctx); err != nil {
			log.Error("Failed to close store", zap.Error(err))
		}
	}()

	pipeline := brain.NewPipeline(s)
	for _, p := range demoProjects {
		if _, err := s.CreateProject(ctx, p.id, p.name, p.description); err != nil {
			var exists *apperrors.ErrProjectExists
			if !errors.As(err, &exists) {
				log.Fatal("Failed to create project", zap.String("project_id", p.id), zap.Error(err))
			}
			log.Info("Project already exists, merging topics", zap.String("project_id", p.id))
		}

		result, err := pipeline.Ingest(ctx, p.id, p.topics)
		if err != nil {
			log.Fatal("Failed to ingest topics", zap.String("project_id", p.id), zap.Error(err))
		}
		log.Info("Seeded project",
			zap.String("project_id", p.id),
			zap.Int("created", len(result.Created)),
			zap.Int("merged", len(result.Merged)),
		)
	}

	for id, status := range demoStatuses {
		if _, err := s.SetStatus(ctx, id, status); err != nil {
			log.Fatal("Failed to set status", zap.String("topic_id", id), zap.Error(err))
		}
	}

	g := pipeline.GlobalGraph()
	log.Info("Seeding completed successfully!",
		zap.Int("topics", len(g.Nodes)),
		zap.Int("edges", len(g.Edges)),
	)
}

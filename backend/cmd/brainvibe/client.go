package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"brainvibe/backend/internal/adapter"
	"brainvibe/backend/internal/brain"
	"brainvibe/backend/internal/topic"
)

// Client talks to the Brain Vibe HTTP API
type Client struct {
	baseURL string
	http    *http.Client
}

// APIError is a non-2xx response from the server
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// AnalyzeResult is the server's answer to a diff analysis
type AnalyzeResult struct {
	ProjectID     string               `json:"project_id"`
	NewTopics     []*topic.Topic       `json:"new_topics"`
	Created       []string             `json:"created"`
	Merged        []string             `json:"merged"`
	Placeholders  []string             `json:"placeholders"`
	Skipped       int                  `json:"skipped"`
	RejectedEdges []brain.RejectedEdge `json:"rejected_edges"`
	Diff          *adapter.DiffStats   `json:"diff,omitempty"`
}

// NewClient creates a client for baseURL
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Extraction retries on the server side can take a while
		http: &http.Client{Timeout: 3 * time.Minute},
	}
}

// CreateProject registers a project
func (c *Client) CreateProject(ctx context.Context, id, name string) (*topic.Project, error) {
	var p topic.Project
	body := map[string]string{"project_id": id, "name": name}
	if err := c.do(ctx, http.MethodPost, "/api/v1/projects", body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// AnalyzeDiff sends a diff for topic extraction
func (c *Client) AnalyzeDiff(ctx context.Context, projectID, diff, prompt, aiOutput string) (*AnalyzeResult, error) {
	var result AnalyzeResult
	body := map[string]string{"git_diff": diff, "prompt": prompt, "ai_output": aiOutput}
	if err := c.do(ctx, http.MethodPost, "/api/v1/projects/"+url.PathEscape(projectID)+"/analyze-diff", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ProjectGraph fetches one project's graph
func (c *Client) ProjectGraph(ctx context.Context, projectID string) (*brain.Graph, error) {
	var g brain.Graph
	if err := c.do(ctx, http.MethodGet, "/api/v1/projects/"+url.PathEscape(projectID)+"/graph", nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// MasterGraph fetches the graph across all projects
func (c *Client) MasterGraph(ctx context.Context) (*brain.Graph, error) {
	var g brain.Graph
	if err := c.do(ctx, http.MethodGet, "/api/v1/master-graph", nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// CompleteTopic sets a topic's global status
func (c *Client) CompleteTopic(ctx context.Context, topicID string, status topic.Status) (*topic.Topic, error) {
	var t topic.Topic
	var body any
	if status != "" {
		body = map[string]string{"status": string(status)}
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/topics/"+url.PathEscape(topicID)+"/complete", body, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// SetProjectStatus sets a topic's status within one project
func (c *Client) SetProjectStatus(ctx context.Context, projectID, topicID string, status topic.Status) error {
	path := "/api/v1/projects/" + url.PathEscape(projectID) + "/topics/" + url.PathEscape(topicID) + "/status"
	return c.do(ctx, http.MethodPost, path, map[string]string{"status": string(status)}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

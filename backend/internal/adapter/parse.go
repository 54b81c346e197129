package adapter

import (
	"encoding/json"
	"errors"
	"strings"

	"brainvibe/backend/internal/topic"
	apperrors "brainvibe/backend/pkg/errors"
)

// topicEnvelope accepts both top-level keys the prompts have used
type topicEnvelope struct {
	NewTopics []topic.ProposedTopic `json:"new_topics"`
	Topics    []topic.ProposedTopic `json:"topics"`
}

// ParseTopics extracts proposed topics from raw model output. The JSON may be
// wrapped in a ```json fence, a bare ``` fence, surrounding prose, or be a
// bare array.
func ParseTopics(output string) ([]topic.ProposedTopic, error) {
	payload := extractJSON(output)
	if payload == "" {
		return nil, apperrors.NewLLMParseFailed(output, errors.New("no JSON found"))
	}

	if strings.HasPrefix(payload, "[") {
		var list []topic.ProposedTopic
		if err := json.Unmarshal([]byte(payload), &list); err != nil {
			return nil, apperrors.NewLLMParseFailed(output, err)
		}
		return list, nil
	}

	var env topicEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return nil, apperrors.NewLLMParseFailed(output, err)
	}
	if env.NewTopics != nil {
		return env.NewTopics, nil
	}
	if env.Topics != nil {
		return env.Topics, nil
	}
	return []topic.ProposedTopic{}, nil
}

func extractJSON(output string) string {
	text := strings.TrimSpace(output)

	if start := strings.Index(text, "```"); start >= 0 {
		body := text[start+3:]
		// drop the language tag on the opening fence
		if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], "{[") {
			body = body[nl+1:]
		}
		if end := strings.Index(body, "```"); end >= 0 {
			body = body[:end]
		}
		text = strings.TrimSpace(body)
	}

	open := strings.IndexAny(text, "{[")
	if open < 0 {
		return ""
	}
	closer := byte('}')
	if text[open] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(text, closer)
	if end < open {
		return ""
	}
	return text[open : end+1]
}

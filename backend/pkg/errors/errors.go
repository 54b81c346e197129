package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeStore represents topic/project store errors
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeIngest represents ingestion pipeline errors
	ErrorTypeIngest ErrorType = "ingest"
	// ErrorTypeLLM represents errors from the topic extraction model
	ErrorTypeLLM ErrorType = "llm"
	// ErrorTypePersistence represents persistence backend errors
	ErrorTypePersistence ErrorType = "persistence"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// Kind returns the error category. Promoted to every typed error below.
func (e *BaseError) Kind() ErrorType {
	return e.Type
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Store Errors

// ErrProjectNotFound is returned when a project id is unknown
type ErrProjectNotFound struct {
	*BaseError
	ProjectID string
}

func NewProjectNotFound(projectID string) *ErrProjectNotFound {
	return &ErrProjectNotFound{
		BaseError: NewBaseError(ErrorTypeStore, fmt.Sprintf("project not found: %s", projectID), nil),
		ProjectID: projectID,
	}
}

// ErrProjectExists is returned when creating a project whose id is taken
type ErrProjectExists struct {
	*BaseError
	ProjectID string
}

func NewProjectExists(projectID string) *ErrProjectExists {
	return &ErrProjectExists{
		BaseError: NewBaseError(ErrorTypeStore, fmt.Sprintf("project already exists: %s", projectID), nil),
		ProjectID: projectID,
	}
}

// ErrTopicNotFound is returned when a topic id is unknown
type ErrTopicNotFound struct {
	*BaseError
	TopicID string
}

func NewTopicNotFound(topicID string) *ErrTopicNotFound {
	return &ErrTopicNotFound{
		BaseError: NewBaseError(ErrorTypeStore, fmt.Sprintf("topic not found: %s", topicID), nil),
		TopicID:   topicID,
	}
}

// ErrInvalidStatus is returned for a status outside NOT_LEARNED/IN_PROGRESS/LEARNED
type ErrInvalidStatus struct {
	*BaseError
	Status string
}

func NewInvalidStatus(status string) *ErrInvalidStatus {
	return &ErrInvalidStatus{
		BaseError: NewBaseError(ErrorTypeStore, fmt.Sprintf("invalid topic status: %q", status), nil),
		Status:    status,
	}
}

// ErrInvalidIdentifier is returned when a label normalizes to an empty identifier
type ErrInvalidIdentifier struct {
	*BaseError
	Label string
}

func NewInvalidIdentifier(label string) *ErrInvalidIdentifier {
	return &ErrInvalidIdentifier{
		BaseError: NewBaseError(ErrorTypeStore, fmt.Sprintf("label has no usable identifier: %q", label), nil),
		Label:     label,
	}
}

// Ingest Errors

// ErrMalformedProposal describes a proposed topic that was skipped during ingestion.
// It is recorded on the ingestion result rather than returned.
type ErrMalformedProposal struct {
	*BaseError
	Index int
	Label string
}

func NewMalformedProposal(index int, label string) *ErrMalformedProposal {
	return &ErrMalformedProposal{
		BaseError: NewBaseError(ErrorTypeIngest, fmt.Sprintf("proposal %d has no usable label", index), nil),
		Index:     index,
		Label:     label,
	}
}

// LLM Errors

// ErrLLMFailed is returned when the extraction request fails
type ErrLLMFailed struct {
	*BaseError
	Model     string
	Attempts  int
	Retryable bool
}

func NewLLMFailed(model string, attempts int, retryable bool, err error) *ErrLLMFailed {
	return &ErrLLMFailed{
		BaseError: NewBaseError(ErrorTypeLLM, fmt.Sprintf("LLM request failed after %d attempts", attempts), err),
		Model:     model,
		Attempts:  attempts,
		Retryable: retryable,
	}
}

// ErrLLMNoResponse is returned when the model returns no choices
var ErrLLMNoResponse = NewBaseError(ErrorTypeLLM, "no response from LLM", nil)

// ErrLLMUnavailable is returned when no extraction model is configured
var ErrLLMUnavailable = NewBaseError(ErrorTypeLLM, "topic extraction is not configured", nil)

// ErrLLMParseFailed is returned when model output cannot be decoded into topics
type ErrLLMParseFailed struct {
	*BaseError
	Output string
}

func NewLLMParseFailed(output string, err error) *ErrLLMParseFailed {
	return &ErrLLMParseFailed{
		BaseError: NewBaseError(ErrorTypeLLM, "failed to parse topics from LLM output", err),
		Output:    output,
	}
}

// Persistence Errors

// ErrPersistFailed is returned when a backend cannot load or save records
type ErrPersistFailed struct {
	*BaseError
	Backend   string
	Operation string
}

func NewPersistFailed(backend, operation string, err error) *ErrPersistFailed {
	return &ErrPersistFailed{
		BaseError: NewBaseError(ErrorTypePersistence, fmt.Sprintf("%s %s failed", backend, operation), err),
		Backend:   backend,
		Operation: operation,
	}
}

// Context Errors

// ErrContextCancelled is returned when context is cancelled
type ErrContextCancelled struct {
	*BaseError
	Operation string
}

func NewContextCancelled(operation string, err error) *ErrContextCancelled {
	return &ErrContextCancelled{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context cancelled: %s", operation), err),
		Operation: operation,
	}
}

// ErrContextTimeout is returned when context times out
type ErrContextTimeout struct {
	*BaseError
	Operation string
	Timeout   time.Duration
}

func NewContextTimeout(operation string, timeout time.Duration) *ErrContextTimeout {
	return &ErrContextTimeout{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context timeout: %s (timeout: %v)", operation, timeout), nil),
		Operation: operation,
		Timeout:   timeout,
	}
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

type kinded interface {
	Kind() ErrorType
}

// IsErrorType checks if an error, or anything it wraps, is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	var k kinded
	if stderrors.As(err, &k) {
		return k.Kind() == errType
	}
	return false
}

// IsNotFound reports whether err is a missing project or topic
func IsNotFound(err error) bool {
	var projectErr *ErrProjectNotFound
	if stderrors.As(err, &projectErr) {
		return true
	}
	var topicErr *ErrTopicNotFound
	return stderrors.As(err, &topicErr)
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	// Context errors are not retryable
	if IsErrorType(err, ErrorTypeContext) {
		return false
	}
	var llmErr *ErrLLMFailed
	if stderrors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	// Backends may come back
	if IsErrorType(err, ErrorTypePersistence) {
		return true
	}
	return false
}

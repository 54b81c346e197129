package topic

import (
	"strings"

	apperrors "brainvibe/backend/pkg/errors"
)

// Status is a learner's progress on a topic
type Status string

const (
	NotLearned Status = "NOT_LEARNED"
	InProgress Status = "IN_PROGRESS"
	Learned    Status = "LEARNED"
)

// Statuses lists every valid status, least advanced first
var Statuses = []Status{NotLearned, InProgress, Learned}

// ParseStatus accepts the canonical upper-case names as well as the
// lower-case/hyphenated spellings older clients send ("learned", "in-progress").
func ParseStatus(s string) (Status, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	switch Status(normalized) {
	case NotLearned, InProgress, Learned:
		return Status(normalized), nil
	}
	return "", apperrors.NewInvalidStatus(s)
}

// Valid reports whether s is one of the three known statuses
func (s Status) Valid() bool {
	return s.rank() >= 0
}

func (s Status) rank() int {
	switch s {
	case NotLearned:
		return 0
	case InProgress:
		return 1
	case Learned:
		return 2
	}
	return -1
}

// MoreAdvanced reports whether s ranks strictly above other
func (s Status) MoreAdvanced(other Status) bool {
	return s.rank() > other.rank()
}

// MaxStatus returns the most advanced of the given statuses, NOT_LEARNED if none are valid
func MaxStatus(statuses ...Status) Status {
	best := NotLearned
	for _, s := range statuses {
		if s.MoreAdvanced(best) {
			best = s
		}
	}
	return best
}

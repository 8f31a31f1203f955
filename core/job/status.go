package job

import (
	"strings"

	"github.com/odpf/hpcjob/internal/errors"
)

const (
	StatusPending   Status = "PEN"
	StatusSubmitted Status = "SUB"
	StatusRunning   Status = "RUN"
	StatusPaused    Status = "PAS"
	StatusCompleted Status = "COM"
	StatusError     Status = "ERR"
	StatusAborted   Status = "ABT"
	StatusOther     Status = "OTH"
)

var displayNames = map[Status]string{
	StatusPending:   "Pending",
	StatusSubmitted: "Submitted",
	StatusRunning:   "Running",
	StatusPaused:    "Paused",
	StatusCompleted: "Completed",
	StatusError:     "Error",
	StatusAborted:   "Aborted",
	StatusOther:     "Other",
}

// Status is the canonical job state, independent of the scheduler's own codes.
type Status string

func (s Status) String() string {
	return string(s)
}

func (s Status) DisplayName() string {
	if name, ok := displayNames[s]; ok {
		return name
	}
	return string(s)
}

func (s Status) IsValid() bool {
	_, ok := displayNames[s]
	return ok
}

// IsTerminal reports whether polling must stop for a job in this status.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusAborted:
		return true
	default:
		return false
	}
}

// IsActive reports whether the job has been handed to the scheduler and not yet finished.
func (s Status) IsActive() bool {
	switch s {
	case StatusSubmitted, StatusRunning, StatusPaused:
		return true
	default:
		return false
	}
}

// StatusFromString accepts a short code ("RUN") or a display name ("Running"), case-insensitive.
func StatusFromString(status string) (Status, error) {
	for s, name := range displayNames {
		if strings.EqualFold(status, string(s)) || strings.EqualFold(status, name) {
			return s, nil
		}
	}
	return "", errors.InvalidArgument(EntityJob, "invalid status "+status)
}

// NonTerminalStatuses lists the statuses that are still polled.
func NonTerminalStatuses() []Status {
	return []Status{StatusPending, StatusSubmitted, StatusRunning, StatusPaused, StatusOther}
}

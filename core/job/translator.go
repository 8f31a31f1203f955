package job

import (
	"strings"
)

// DefaultStatusTable maps PBS one-letter job states to canonical statuses.
func DefaultStatusTable() map[string]Status {
	return map[string]Status{
		"B": StatusRunning,   // array job: at least one subjob has started
		"E": StatusCompleted, // exiting after having run
		"F": StatusCompleted, // finished
		"H": StatusPaused,    // held
		"M": StatusSubmitted, // moved to another server
		"Q": StatusSubmitted, // queued
		"R": StatusRunning,
		"S": StatusAborted, // suspended
		"T": StatusSubmitted,
		"U": StatusAborted, // cycle-harvesting job suspended due to keyboard activity
		"W": StatusSubmitted,
		"X": StatusRunning, // subjob has completed execution or has been deleted
	}
}

// Qstat is one status snapshot reported by the scheduler.
type Qstat struct {
	JobID   string
	Status  string
	Raw     map[string]any
	SubJobs []*Qstat
}

type Translation struct {
	Status  Status
	SubJobs []*SubJob
	Message string
}

type StatusTranslator struct {
	table map[string]Status
}

// NewStatusTranslator builds a translator on the default table with overrides applied on top.
func NewStatusTranslator(overrides map[string]Status) *StatusTranslator {
	table := DefaultStatusTable()
	for code, status := range overrides {
		table[strings.ToUpper(code)] = status
	}
	return &StatusTranslator{table: table}
}

// TranslateCode maps one scheduler code. Unknown codes map to Error.
func (t *StatusTranslator) TranslateCode(code string) Status {
	if s, ok := t.table[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return s
	}
	return StatusError
}

// Translate maps a snapshot to a canonical status. An empty snapshot means the
// scheduler no longer knows the job, which happens once a finished job ages out
// of its table, so it is reported as Completed.
func (t *StatusTranslator) Translate(q *Qstat) Translation {
	if q == nil || (strings.TrimSpace(q.Status) == "" && len(q.SubJobs) == 0) {
		return Translation{
			Status:  StatusCompleted,
			Message: "Job was not found on the scheduler. Unable to get status information.",
		}
	}
	if len(q.SubJobs) == 0 {
		return Translation{Status: t.TranslateCode(q.Status)}
	}

	subJobs := make([]*SubJob, 0, len(q.SubJobs))
	for i, sq := range q.SubJobs {
		subJobs = append(subJobs, &SubJob{
			JobID:     sq.JobID,
			Index:     i,
			RawStatus: sq.Status,
			Status:    t.TranslateCode(sq.Status),
			Qstat:     sq.Raw,
		})
	}
	return Translation{Status: t.Aggregate(q.Status, subJobs), SubJobs: subJobs}
}

// Aggregate derives the parent status of an array job from its sub-jobs. The parent
// is Running as soon as one sub-job has started, until every sub-job is terminal.
func (t *StatusTranslator) Aggregate(parentCode string, subJobs []*SubJob) Status {
	if len(subJobs) == 0 {
		return t.TranslateCode(parentCode)
	}
	if parentCode != "" {
		if parent := t.TranslateCode(parentCode); parent.IsTerminal() && parent != StatusError {
			return parent
		}
	}

	allTerminal, anyStarted, anyCompleted := true, false, false
	for _, sj := range subJobs {
		if !sj.Status.IsTerminal() {
			allTerminal = false
		}
		if sj.Status == StatusRunning || sj.Status == StatusCompleted {
			anyStarted = true
		}
		if sj.Status == StatusCompleted {
			anyCompleted = true
		}
	}

	switch {
	case allTerminal && anyCompleted:
		return StatusCompleted
	case allTerminal:
		return subJobs[0].Status
	case anyStarted:
		return StatusRunning
	}

	if parentCode != "" {
		return t.TranslateCode(parentCode)
	}
	for _, sj := range subJobs {
		if sj.Status != StatusPaused {
			return sj.Status
		}
	}
	return StatusPaused
}

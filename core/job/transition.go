package job

import (
	"fmt"

	"github.com/looplab/fsm"

	"github.com/odpf/hpcjob/internal/errors"
)

const (
	// Job was accepted by the scheduler, or is queued again behind a cleanup job.
	EventSubmit = "Submit"

	// At least one process of the job started on the compute nodes.
	EventStart = "Start"

	// Job is held by the scheduler or the user.
	EventHold = "Hold"

	// Job finished, or vanished from the scheduler after finishing.
	EventFinish = "Finish"

	// Job failed for a reason the lifecycle could not recover from.
	EventFail = "Fail"

	// Job was suspended or deleted before finishing.
	EventAbort = "Abort"
)

var (
	nonTerminal = []string{StatusPending.String(), StatusSubmitted.String(), StatusRunning.String(), StatusPaused.String(), StatusOther.String()}
	terminal    = []string{StatusCompleted.String(), StatusError.String(), StatusAborted.String()}

	jobEvents = fsm.Events{
		{Name: EventSubmit, Src: []string{
			StatusPending.String(), StatusRunning.String(), StatusPaused.String(), StatusOther.String(),
		}, Dst: StatusSubmitted.String()},
		{Name: EventStart, Src: []string{
			StatusPending.String(), StatusSubmitted.String(), StatusPaused.String(), StatusOther.String(),
		}, Dst: StatusRunning.String()},
		{Name: EventHold, Src: []string{
			StatusPending.String(), StatusSubmitted.String(), StatusRunning.String(), StatusOther.String(),
		}, Dst: StatusPaused.String()},
		{Name: EventFinish, Src: nonTerminal, Dst: StatusCompleted.String()},
		{Name: EventFail, Src: nonTerminal, Dst: StatusError.String()},
		{Name: EventAbort, Src: nonTerminal, Dst: StatusAborted.String()},
	}

	// Resubmission is the only way out of a terminal status.
	resubmitEvents = fsm.Events{
		{Name: EventSubmit, Src: append(append([]string{}, nonTerminal...), terminal...), Dst: StatusSubmitted.String()},
	}

	eventByStatus = map[Status]string{
		StatusSubmitted: EventSubmit,
		StatusRunning:   EventStart,
		StatusPaused:    EventHold,
		StatusCompleted: EventFinish,
		StatusError:     EventFail,
		StatusAborted:   EventAbort,
	}
)

// Transition moves the job forward along the lifecycle graph. Moving to the current
// status is a no-op; moving backwards, out of a terminal status or to Pending/Other
// returns a state conflict.
func (j *Job) Transition(to Status) error {
	return j.fire(jobEvents, to)
}

// TransitionForResubmit moves the job to Submitted from any status, including terminal ones.
func (j *Job) TransitionForResubmit() error {
	return j.fire(resubmitEvents, StatusSubmitted)
}

// CanTransition reports whether Transition(to) would succeed.
func (j *Job) CanTransition(to Status) bool {
	if to == j.status {
		return true
	}
	event, ok := eventByStatus[to]
	if !ok {
		return false
	}
	return fsm.NewFSM(j.status.String(), jobEvents, nil).Can(event)
}

// ForceStatus sets the status without consulting the graph. Used for explicit status
// updates requested by a caller and when loading a stored job.
func (j *Job) ForceStatus(status Status) {
	j.status = status
}

func (j *Job) fire(events fsm.Events, to Status) error {
	if to == j.status {
		return nil
	}
	event, ok := eventByStatus[to]
	if !ok {
		return errors.StateConflict(EntityJob, fmt.Sprintf("status %s can not be reached by a transition", to.DisplayName()))
	}

	machine := fsm.NewFSM(j.status.String(), events, fsm.Callbacks{
		"enter_state": func(e *fsm.Event) {
			j.status = Status(e.Dst)
		},
	})
	if err := machine.Event(event); err != nil {
		var noTransition fsm.NoTransitionError
		if errors.As(err, &noTransition) {
			return nil
		}
		return errors.StateConflict(EntityJob, fmt.Sprintf("job %s can not move from %s to %s",
			j.Name, j.status.DisplayName(), to.DisplayName()))
	}
	return nil
}

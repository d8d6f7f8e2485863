package orchestrator

import "time"

// State is the orchestrator's position in the playback state machine.
type State string

const (
	StatePlaying               State = "playing"
	StateInterruptedByQuestion State = "interrupted_by_question"
	StateInterruptedByBranch   State = "interrupted_by_branch"
	StateDivertedPlayback      State = "diverted_playback"
	StateCompleted             State = "completed"
	StateStalled               State = "stalled"
)

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateStalled
}

// EventType names an orchestrator transition.
type EventType string

const (
	EventQuestionShown    EventType = "question_shown"
	EventQuestionAnswered EventType = "question_answered"
	EventBranchShown      EventType = "branch_shown"
	EventBranchSelected   EventType = "branch_selected"
	EventSwitchArmed      EventType = "switch_armed"
	EventDiverted         EventType = "diverted"
	EventReturned         EventType = "returned"
	EventCompleted        EventType = "completed"
	EventStalled          EventType = "stalled"
	EventRevisited        EventType = "revisited"
	EventSeeked           EventType = "seeked"
)

// Event is emitted on every transition.
type Event struct {
	Type   EventType      `json:"type"`
	State  State          `json:"state"`
	At     time.Time      `json:"at"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Observer receives events on the orchestrator's goroutine. It may read
// orchestrator state but must not drive transitions.
type Observer func(Event)

// emit reports a transition to the observer, stamped with the state the
// orchestrator is now in.
func (o *Orchestrator) emit(t EventType, fields map[string]any) {
	if o.observer == nil {
		return
	}
	o.observer(Event{
		Type:   t,
		State:  o.state,
		At:     o.now(),
		Fields: fields,
	})
}

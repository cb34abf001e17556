package orchestration

import "fmt"

type OutcomeKind string

const (
	// OutcomeBusy means another turn held the gate, nothing was done.
	OutcomeBusy OutcomeKind = "busy"
	// OutcomeDispatched means the response is being spoken in the background
	// and the final outcome will be reported when the turn ends.
	OutcomeDispatched OutcomeKind = "dispatched"
	OutcomeCompleted  OutcomeKind = "completed"
	// OutcomeEmptyCommand means nothing usable was heard, an apology was spoken.
	OutcomeEmptyCommand OutcomeKind = "empty_command"
	// OutcomeApologyFragment means the language model could not be reached and
	// its apology was spoken instead of a response.
	OutcomeApologyFragment OutcomeKind = "apology_fragment"
	OutcomeFatal           OutcomeKind = "fatal"
)

// TurnOutcome is how a turn, or the part of it run by RunTurn, ended.
type TurnOutcome struct {
	TurnID string
	Kind   OutcomeKind
	Err    error
}

// Recovered reports whether the turn failed in an expected way and the user
// was told so.
func (o TurnOutcome) Recovered() bool {
	return o.Kind == OutcomeEmptyCommand || o.Kind == OutcomeApologyFragment
}

func (o TurnOutcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%s: %v", o.Kind, o.Err)
	}
	return string(o.Kind)
}

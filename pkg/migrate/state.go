package migrate

import "fmt"

// State is where a round of the search stands.
type State int

const (
	// StateAdvance picks up the next source event and resolves it without
	// the device when it can: system events and actions on the widget an
	// oracle just checked.
	StateAdvance State = iota
	// StateValidate ranks catalogue candidates for the current source event
	// and validates them by driving the app to each one.
	StateValidate
	// StateBacktrack rewinds the target sequence after an execution error
	// or a conflicting text field binding.
	StateBacktrack
	// StateExplore clicks through the current screen to learn more widgets
	// and transitions before giving up on an oracle.
	StateExplore
	// StateConverge ends the round.
	StateConverge
)

func (s State) String() string {
	switch s {
	case StateAdvance:
		return "advance"
	case StateValidate:
		return "validate"
	case StateBacktrack:
		return "backtrack"
	case StateExplore:
		return "explore"
	case StateConverge:
		return "converge"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome is the result of handling one state.
type Outcome int

const (
	// OutcomeBound means the current source event was bound to a target
	// event, possibly an empty one, and the search moved to the next event.
	OutcomeBound Outcome = iota
	// OutcomeNeedsDevice means the event can only be resolved on the device.
	OutcomeNeedsDevice
	// OutcomeExecFailed means replaying the target sequence failed.
	OutcomeExecFailed
	// OutcomeConflict means a stronger candidate is already bound to an
	// earlier text field step.
	OutcomeConflict
	// OutcomeUnmatchedOracle means no candidate validated for an oracle
	// that has not been retried after exploring.
	OutcomeUnmatchedOracle
	// OutcomeRewound means the backtrack was applied.
	OutcomeRewound
	// OutcomeExplored means the exploration pass finished.
	OutcomeExplored
	// OutcomeExhausted means every source event has been handled.
	OutcomeExhausted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeBound:
		return "bound"
	case OutcomeNeedsDevice:
		return "needs-device"
	case OutcomeExecFailed:
		return "exec-failed"
	case OutcomeConflict:
		return "conflict"
	case OutcomeUnmatchedOracle:
		return "unmatched-oracle"
	case OutcomeRewound:
		return "rewound"
	case OutcomeExplored:
		return "explored"
	case OutcomeExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Next returns the state that follows an outcome. Pairs that cannot occur
// end the round.
func Next(s State, o Outcome) State {
	switch s {
	case StateAdvance:
		switch o {
		case OutcomeBound:
			return StateAdvance
		case OutcomeNeedsDevice:
			return StateValidate
		case OutcomeExhausted:
			return StateConverge
		}
	case StateValidate:
		switch o {
		case OutcomeBound:
			return StateAdvance
		case OutcomeExecFailed, OutcomeConflict:
			return StateBacktrack
		case OutcomeUnmatchedOracle:
			return StateExplore
		}
	case StateBacktrack:
		if o == OutcomeRewound {
			return StateAdvance
		}
	case StateExplore:
		if o == OutcomeExplored {
			return StateValidate
		}
	case StateConverge:
	}
	return StateConverge
}

package orders

// State is the lifecycle of a single PlaceOrder call.
type State string

const (
	StateStarted    State = "STARTED"
	StateValidating State = "VALIDATING"
	StateCommitting State = "COMMITTING"
	StateCommitted  State = "COMMITTED"
	StateAborted    State = "ABORTED"
)

var validNext = map[State]map[State]bool{
	StateStarted:    {StateValidating: true, StateAborted: true},
	StateValidating: {StateCommitting: true, StateAborted: true},
	StateCommitting: {StateCommitted: true, StateAborted: true},
	StateCommitted:  {},
	StateAborted:    {},
}

func CanTransition(from, to State) bool {
	return validNext[from][to]
}

func (s State) Terminal() bool {
	return s == StateCommitted || s == StateAborted
}

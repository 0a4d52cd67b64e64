package model

// State tracks whether the parameters satisfy the model's constraints.
//
//	Uninitialized -> Initialized   ResetParameters
//	*             -> Dirty         MarkDirty (after an optimizer step)
//	Dirty         -> Constrained   first forward pass, or PostParameterUpdate
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateDirty
	StateConstrained
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateDirty:
		return "dirty"
	case StateConstrained:
		return "constrained"
	default:
		return "unknown"
	}
}

package filter

import "fmt"

// Action is the outcome a rule assigns to a message.
type Action int

const (
	// ActionSkip drops the message without notifying.
	ActionSkip Action = iota
	// ActionClassify hands the message to the urgency classifier.
	ActionClassify
	// ActionForceNotify notifies immediately, bypassing classification.
	ActionForceNotify
)

func (a Action) String() string {
	switch a {
	case ActionSkip:
		return "skip"
	case ActionClassify:
		return "classify"
	case ActionForceNotify:
		return "force_notify"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// ParseAction converts a config string into an Action.
func ParseAction(s string) (Action, error) {
	switch s {
	case "skip":
		return ActionSkip, nil
	case "classify":
		return ActionClassify, nil
	case "force_notify":
		return ActionForceNotify, nil
	default:
		return ActionSkip, fmt.Errorf("invalid action %q (must be one of: skip, classify, force_notify)", s)
	}
}

// Decision is the engine's verdict for one message: what to do and which
// rule decided it (e.g. "self", "keyword:production down", "channel:ops").
type Decision struct {
	Action Action
	Rule   string
}

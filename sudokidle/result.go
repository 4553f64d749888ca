package sudokidle

// Reason names the precondition that stopped an operation from taking effect.
type Reason string

const (
	ReasonLocked               Reason = "locked"
	ReasonNoUsesLeft           Reason = "no_uses_left"
	ReasonUnknownID            Reason = "unknown_id"
	ReasonMaxLevel             Reason = "max_level"
	ReasonInsufficientCurrency Reason = "insufficient_currency"
	ReasonFixedCell            Reason = "fixed_cell"
	ReasonNoBoard              Reason = "no_board"
	ReasonNotEnoughEmptyCells  Reason = "not_enough_empty_cells"
	ReasonBoardIncomplete      Reason = "board_incomplete"
	ReasonDisabled             Reason = "disabled"
	ReasonOutOfRange           Reason = "out_of_range"
)

// Result is the outcome of an operation guarded by gameplay preconditions. A rejected
// operation has no side effects; it is not an error and is never surfaced to the player.
type Result struct {
	Reason Reason `json:"reason,omitempty"`
}

// Ok is the result of an operation that took effect.
var Ok = Result{}

// Rejected builds a result for an operation that was refused for the given reason.
func Rejected(reason Reason) Result {
	return Result{Reason: reason}
}

// OK reports whether the operation took effect.
func (r Result) OK() bool {
	return r.Reason == ""
}

func (r Result) String() string {
	if r.OK() {
		return "ok"
	}
	return "rejected: " + string(r.Reason)
}

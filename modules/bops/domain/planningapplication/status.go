package planningapplication

// Status is the top-level lifecycle state of a planning application.
type Status string

const (
	StatusNotStarted            Status = "not_started"
	StatusInvalidated           Status = "invalidated"
	StatusInAssessment          Status = "in_assessment"
	StatusAwaitingDetermination Status = "awaiting_determination"
	StatusAwaitingCorrection    Status = "awaiting_correction"
	StatusDetermined            Status = "determined"
	StatusWithdrawn             Status = "withdrawn"
	StatusReturned              Status = "returned"
	StatusClosed                Status = "closed"
)

// Command names a guarded transition an actor can attempt.
type Command string

const (
	CommandInvalidate              Command = "invalidate"
	CommandValidate                Command = "validate"
	CommandSubmitRecommendation    Command = "submit_recommendation"
	CommandWithdrawRecommendation  Command = "withdraw_recommendation"
	CommandRejectRecommendation    Command = "reject_recommendation"
	CommandDetermine               Command = "determine"
	CommandWithdraw                Command = "withdraw"
	CommandReturn                  Command = "return"
	CommandClose                   Command = "close"
)

// Transition is a single allowed edge in the status machine.
type Transition struct {
	From    Status
	To      Status
	Command Command
}

var transitionsTable = []Transition{
	// Validation phase
	{From: StatusNotStarted, To: StatusInvalidated, Command: CommandInvalidate},
	{From: StatusInvalidated, To: StatusInvalidated, Command: CommandInvalidate},
	{From: StatusNotStarted, To: StatusInAssessment, Command: CommandValidate},
	{From: StatusInvalidated, To: StatusInAssessment, Command: CommandValidate},

	// Assessment / review cycle
	{From: StatusInAssessment, To: StatusAwaitingDetermination, Command: CommandSubmitRecommendation},
	{From: StatusAwaitingCorrection, To: StatusAwaitingDetermination, Command: CommandSubmitRecommendation},
	{From: StatusAwaitingDetermination, To: StatusInAssessment, Command: CommandWithdrawRecommendation},
	{From: StatusAwaitingDetermination, To: StatusAwaitingCorrection, Command: CommandRejectRecommendation},
	{From: StatusAwaitingDetermination, To: StatusDetermined, Command: CommandDetermine},

	// Closure from any non-terminal status
	{From: StatusNotStarted, To: StatusWithdrawn, Command: CommandWithdraw},
	{From: StatusInvalidated, To: StatusWithdrawn, Command: CommandWithdraw},
	{From: StatusInAssessment, To: StatusWithdrawn, Command: CommandWithdraw},
	{From: StatusAwaitingDetermination, To: StatusWithdrawn, Command: CommandWithdraw},
	{From: StatusAwaitingCorrection, To: StatusWithdrawn, Command: CommandWithdraw},
	{From: StatusNotStarted, To: StatusReturned, Command: CommandReturn},
	{From: StatusInvalidated, To: StatusReturned, Command: CommandReturn},
	{From: StatusInAssessment, To: StatusReturned, Command: CommandReturn},
	{From: StatusAwaitingDetermination, To: StatusReturned, Command: CommandReturn},
	{From: StatusAwaitingCorrection, To: StatusReturned, Command: CommandReturn},
	{From: StatusNotStarted, To: StatusClosed, Command: CommandClose},
	{From: StatusInvalidated, To: StatusClosed, Command: CommandClose},
	{From: StatusInAssessment, To: StatusClosed, Command: CommandClose},
	{From: StatusAwaitingDetermination, To: StatusClosed, Command: CommandClose},
	{From: StatusAwaitingCorrection, To: StatusClosed, Command: CommandClose},
}

// TransitionFor returns the edge for a status+command pair, if one exists.
func TransitionFor(from Status, command Command) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Command == command {
			return tr, true
		}
	}
	return Transition{}, false
}

// AllowedTransitions lists every edge leaving the given status. The UI derives
// which actions to enable from this; guard details stay in the services.
func AllowedTransitions(from Status) []Transition {
	var out []Transition
	for _, tr := range transitionsTable {
		if tr.From == from {
			out = append(out, tr)
		}
	}
	return out
}

func (s Status) IsTerminal() bool {
	return s == StatusDetermined || s.IsClosedFamily()
}

// IsClosedFamily reports whether the application left the workflow without a
// determination.
func (s Status) IsClosedFamily() bool {
	return s == StatusWithdrawn || s == StatusReturned || s == StatusClosed
}

func (s Status) IsValid() bool {
	switch s {
	case StatusNotStarted, StatusInvalidated, StatusInAssessment,
		StatusAwaitingDetermination, StatusAwaitingCorrection,
		StatusDetermined, StatusWithdrawn, StatusReturned, StatusClosed:
		return true
	}
	return false
}

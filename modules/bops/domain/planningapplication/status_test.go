package planningapplication

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionFor_HappyPath(t *testing.T) {
	cases := []struct {
		from    Status
		command Command
		to      Status
	}{
		{StatusNotStarted, CommandInvalidate, StatusInvalidated},
		{StatusInvalidated, CommandInvalidate, StatusInvalidated},
		{StatusNotStarted, CommandValidate, StatusInAssessment},
		{StatusInvalidated, CommandValidate, StatusInAssessment},
		{StatusInAssessment, CommandSubmitRecommendation, StatusAwaitingDetermination},
		{StatusAwaitingDetermination, CommandWithdrawRecommendation, StatusInAssessment},
		{StatusAwaitingDetermination, CommandRejectRecommendation, StatusAwaitingCorrection},
		{StatusAwaitingCorrection, CommandSubmitRecommendation, StatusAwaitingDetermination},
		{StatusAwaitingDetermination, CommandDetermine, StatusDetermined},
		{StatusInAssessment, CommandWithdraw, StatusWithdrawn},
		{StatusInAssessment, CommandReturn, StatusReturned},
		{StatusInAssessment, CommandClose, StatusClosed},
	}
	for _, tc := range cases {
		tr, ok := TransitionFor(tc.from, tc.command)
		require.True(t, ok, "%s from %s should be allowed", tc.command, tc.from)
		require.Equal(t, tc.to, tr.To)
	}
}

func TestTransitionFor_TerminalStatesAllowNothing(t *testing.T) {
	terminals := []Status{StatusDetermined, StatusWithdrawn, StatusReturned, StatusClosed}
	commands := []Command{
		CommandInvalidate, CommandValidate, CommandSubmitRecommendation,
		CommandWithdrawRecommendation, CommandRejectRecommendation,
		CommandDetermine, CommandWithdraw, CommandReturn, CommandClose,
	}
	for _, status := range terminals {
		require.True(t, status.IsTerminal())
		for _, command := range commands {
			_, ok := TransitionFor(status, command)
			require.False(t, ok, "%s from %s must be rejected", command, status)
		}
	}
}

func TestTransitionFor_ValidateSkipsInvalidated(t *testing.T) {
	// Validation may proceed straight from not_started; invalidation is not
	// a mandatory stop.
	tr, ok := TransitionFor(StatusNotStarted, CommandValidate)
	require.True(t, ok)
	require.Equal(t, StatusInAssessment, tr.To)
}

func TestTransitionFor_CannotDetermineFromAssessment(t *testing.T) {
	_, ok := TransitionFor(StatusInAssessment, CommandDetermine)
	require.False(t, ok)
}

func TestAllowedTransitions(t *testing.T) {
	allowed := AllowedTransitions(StatusAwaitingDetermination)
	commands := make([]Command, 0, len(allowed))
	for _, tr := range allowed {
		commands = append(commands, tr.Command)
	}
	require.ElementsMatch(t, []Command{
		CommandWithdrawRecommendation,
		CommandRejectRecommendation,
		CommandDetermine,
		CommandWithdraw,
		CommandReturn,
		CommandClose,
	}, commands)

	require.Empty(t, AllowedTransitions(StatusDetermined))
}

func TestIsClosedFamily(t *testing.T) {
	require.True(t, StatusWithdrawn.IsClosedFamily())
	require.True(t, StatusReturned.IsClosedFamily())
	require.True(t, StatusClosed.IsClosedFamily())
	require.False(t, StatusDetermined.IsClosedFamily())
	require.False(t, StatusInAssessment.IsClosedFamily())
}

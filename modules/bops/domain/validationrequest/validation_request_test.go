package validationrequest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMarkOpen(t *testing.T) {
	req := &ValidationRequest{State: StatePending}
	notifiedAt := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, req.MarkOpen(notifiedAt))
	require.Equal(t, StateOpen, req.State)
	require.Equal(t, notifiedAt, *req.NotifiedAt)

	// A second open is rejected.
	require.ErrorIs(t, req.MarkOpen(notifiedAt), ErrNotPending)
}

func TestMarkClosed_RequiresOpen(t *testing.T) {
	req := &ValidationRequest{State: StatePending}
	require.ErrorIs(t, req.MarkClosed(Response{Text: "done"}, time.Now()), ErrNotOpen)

	req.State = StateOpen
	closedAt := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, req.MarkClosed(Response{Text: "done"}, closedAt))
	require.Equal(t, StateClosed, req.State)
	require.Equal(t, "done", req.Response.Text)
	require.Equal(t, closedAt, *req.ClosedAt)
}

func TestMarkCancelled(t *testing.T) {
	req := &ValidationRequest{State: StateOpen}
	require.Error(t, req.MarkCancelled("", time.Now()), "reason is mandatory")

	cancelledAt := time.Date(2026, 2, 5, 9, 0, 0, 0, time.UTC)
	require.NoError(t, req.MarkCancelled("raised in error", cancelledAt))
	require.Equal(t, StateCancelled, req.State)
	require.Equal(t, "raised in error", req.CancelReason)
}

func TestMarkCancelled_LosesRaceAgainstResponse(t *testing.T) {
	// Whichever transition commits first wins; a closed request cannot be
	// cancelled and a cancelled request cannot be closed.
	closed := &ValidationRequest{State: StateClosed}
	require.ErrorIs(t, closed.MarkCancelled("too late", time.Now()), ErrNotCancellable)

	cancelled := &ValidationRequest{State: StateCancelled}
	require.ErrorIs(t, cancelled.MarkClosed(Response{Text: "too late"}, time.Now()), ErrNotOpen)
}

func TestUnresolved(t *testing.T) {
	require.True(t, (&ValidationRequest{State: StatePending}).Unresolved())
	require.True(t, (&ValidationRequest{State: StateOpen}).Unresolved())
	require.False(t, (&ValidationRequest{State: StateClosed}).Unresolved())
	require.False(t, (&ValidationRequest{State: StateCancelled}).Unresolved())
}

func TestEditable(t *testing.T) {
	require.True(t, (&ValidationRequest{State: StatePending}).Editable())
	require.True(t, (&ValidationRequest{State: StateOpen}).Editable())
	require.False(t, (&ValidationRequest{State: StateOpen, Response: &Response{Text: "x"}}).Editable())
	require.False(t, (&ValidationRequest{State: StateClosed}).Editable())
	require.False(t, (&ValidationRequest{State: StateCancelled}).Editable())
}

func TestOverdue(t *testing.T) {
	notifiedAt := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	req := &ValidationRequest{State: StateOpen, NotifiedAt: &notifiedAt}

	require.False(t, req.Overdue(notifiedAt.AddDate(0, 0, 15), 15))
	require.True(t, req.Overdue(notifiedAt.AddDate(0, 0, 16), 15))

	pending := &ValidationRequest{State: StatePending}
	require.False(t, pending.Overdue(notifiedAt.AddDate(0, 0, 30), 15))
}

func TestKindLabel(t *testing.T) {
	require.Equal(t, "new document", KindAdditionalDocument.Label())
	require.Equal(t, "replacement document", KindReplacementDocument.Label())
	require.Equal(t, "description change", KindDescriptionChange.Label())
}

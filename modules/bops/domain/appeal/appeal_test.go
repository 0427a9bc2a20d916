package appeal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var today = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestValidateStageDate_FutureRejected(t *testing.T) {
	a := &Appeal{}
	err := a.ValidateStageDate(StageLodged, date(2026, 6, 16), today)
	require.EqualError(t, err, "lodged at must be on or before today")

	// Today itself is fine.
	require.NoError(t, a.ValidateStageDate(StageLodged, date(2026, 6, 15), today))
}

func TestValidateStageDate_OrderingAgainstPreviousStage(t *testing.T) {
	lodged := date(2026, 6, 10)
	a := &Appeal{LodgedAt: &lodged}

	err := a.ValidateStageDate(StageValidated, date(2026, 6, 9), today)
	require.EqualError(t, err, "validated at must be on or after the lodged at date")

	// Same day as the previous stage is allowed.
	require.NoError(t, a.ValidateStageDate(StageValidated, date(2026, 6, 10), today))
	require.NoError(t, a.ValidateStageDate(StageValidated, date(2026, 6, 12), today))
}

func TestValidateStageDate_SkippedStageComparesEarlierRecorded(t *testing.T) {
	lodged := date(2026, 6, 10)
	a := &Appeal{LodgedAt: &lodged}

	// Validated was never recorded; the ordering check falls back to lodged.
	require.NoError(t, a.ValidateStageDate(StageStarted, date(2026, 6, 12), today))

	err := a.ValidateStageDate(StageStarted, date(2026, 6, 9), today)
	require.EqualError(t, err, "started at must be on or after the lodged at date")
}

func TestValidateStageDate_NoEarlierStagesRecorded(t *testing.T) {
	a := &Appeal{}
	require.NoError(t, a.ValidateStageDate(StageDetermined, date(2026, 6, 10), today))
}

func TestValidateStageDate_ZeroDate(t *testing.T) {
	a := &Appeal{}
	err := a.ValidateStageDate(StageLodged, time.Time{}, today)
	require.EqualError(t, err, "lodged at must be a valid date")
}

func TestValidateStageDate_FullSequence(t *testing.T) {
	a := &Appeal{}
	steps := []struct {
		stage Stage
		date  time.Time
	}{
		{StageLodged, date(2026, 5, 1)},
		{StageValidated, date(2026, 5, 10)},
		{StageStarted, date(2026, 5, 20)},
		{StageDetermined, date(2026, 6, 1)},
	}
	for _, step := range steps {
		require.NoError(t, a.ValidateStageDate(step.stage, step.date, today))
		a.SetStageDate(step.stage, step.date)
	}

	current, ok := a.CurrentStage()
	require.True(t, ok)
	require.Equal(t, StageDetermined, current)
}

func TestCurrentStage_Empty(t *testing.T) {
	a := &Appeal{}
	_, ok := a.CurrentStage()
	require.False(t, ok)
}

func TestStagePrevious(t *testing.T) {
	prev, ok := StageDetermined.Previous()
	require.True(t, ok)
	require.Equal(t, StageStarted, prev)

	_, ok = StageLodged.Previous()
	require.False(t, ok)
}

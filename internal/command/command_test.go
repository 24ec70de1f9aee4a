package command_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/escalada-box/internal/command"
)

func TestParseUnknownType(t *testing.T) {
	_, verr := command.Parse(map[string]any{"type": "NOT_A_COMMAND"})
	require.NotNil(t, verr)
	assert.Equal(t, "unknown_command_type", verr.Kind)
}

func TestParseInitRouteDefaults(t *testing.T) {
	cmd, verr := command.Parse(map[string]any{"type": "INIT_ROUTE"})
	require.Nil(t, verr)
	init, ok := cmd.(command.InitRoute)
	require.True(t, ok)
	assert.Equal(t, 1, init.RouteIndex)
	assert.Equal(t, 0, init.HoldsCount)
}

func TestParseInitRouteRangeValidation(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{"routeIndex too large", map[string]any{"type": "INIT_ROUTE", "routeIndex": 1000}},
		{"routeIndex too small", map[string]any{"type": "INIT_ROUTE", "routeIndex": 0}},
		{"holdsCount too large", map[string]any{"type": "INIT_ROUTE", "holdsCount": 101}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, verr := command.Parse(tt.raw)
			require.NotNil(t, verr)
			assert.Equal(t, "out_of_range", verr.Kind)
		})
	}
}

func TestParseInitRouteRejectsDangerousCompetitor(t *testing.T) {
	_, verr := command.Parse(map[string]any{
		"type": "INIT_ROUTE",
		"competitors": []any{
			map[string]any{"nume": "<script>alert(1)</script>"},
		},
	})
	require.NotNil(t, verr)
	assert.Equal(t, "dangerous_competitor_name", verr.Kind)
}

func TestNormalizeTimerPreset(t *testing.T) {
	tests := []struct {
		in      string
		wantOut string
		wantSec int
		wantErr bool
	}{
		{"1:5", "01:05", 65, false},
		{"05:09", "05:09", 309, false},
		{"99:59", "99:59", 99*60 + 59, false},
		{"100:00", "", 0, true},
		{"1:60", "", 0, true},
		{"garbage", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			out, sec, verr := command.NormalizeTimerPreset(tt.in)
			if tt.wantErr {
				require.NotNil(t, verr)
				return
			}
			require.Nil(t, verr)
			assert.Equal(t, tt.wantOut, out)
			assert.Equal(t, tt.wantSec, sec)
		})
	}
}

func TestParseSubmitScoreRequiresTarget(t *testing.T) {
	_, verr := command.Parse(map[string]any{"type": "SUBMIT_SCORE", "score": 10})
	require.NotNil(t, verr)
	assert.Equal(t, "missing_required_field", verr.Kind)
}

func TestParseSubmitScoreIdxCoercion(t *testing.T) {
	cmd, verr := command.Parse(map[string]any{"type": "SUBMIT_SCORE", "idx": "2"})
	require.Nil(t, verr)
	ss, ok := cmd.(command.SubmitScore)
	require.True(t, ok)
	require.NotNil(t, ss.Idx)
	assert.Equal(t, 2, *ss.Idx)
}

func TestParseSubmitScoreRejectsBooleanIdx(t *testing.T) {
	_, verr := command.Parse(map[string]any{"type": "SUBMIT_SCORE", "idx": true})
	require.NotNil(t, verr)
	assert.Equal(t, "invalid_submit_score_index", verr.Kind)
}

func TestParseRegisterTimeRange(t *testing.T) {
	_, verr := command.Parse(map[string]any{"type": "REGISTER_TIME", "registeredTime": 3601.0})
	require.NotNil(t, verr)
	assert.Equal(t, "out_of_range", verr.Kind)
}

func TestParseProgressUpdateDeltaRange(t *testing.T) {
	_, verr := command.Parse(map[string]any{"type": "PROGRESS_UPDATE", "delta": 11})
	require.NotNil(t, verr)
	assert.Equal(t, "out_of_range", verr.Kind)
}

func TestParseProgressUpdateAcceptsFractionalDelta(t *testing.T) {
	cmd, verr := command.Parse(map[string]any{"type": "PROGRESS_UPDATE", "delta": 0.5})
	require.Nil(t, verr)
	up, ok := cmd.(command.ProgressUpdate)
	require.True(t, ok)
	assert.Equal(t, 0.5, up.Delta)
}

func TestParseSubmitScoreAcceptsFractionalScore(t *testing.T) {
	cmd, verr := command.Parse(map[string]any{"type": "SUBMIT_SCORE", "competitor": "A", "score": 37.5})
	require.Nil(t, verr)
	ss, ok := cmd.(command.SubmitScore)
	require.True(t, ok)
	require.NotNil(t, ss.Score)
	assert.Equal(t, 37.5, *ss.Score)
}

func TestParseSetTimeCriterionRequiresField(t *testing.T) {
	_, verr := command.Parse(map[string]any{"type": "SET_TIME_CRITERION"})
	require.NotNil(t, verr)
	assert.Equal(t, "missing_required_field", verr.Kind)
}

func TestParsePrevRoundsTiebreakDecisionOrderDedup(t *testing.T) {
	cmd, verr := command.Parse(map[string]any{
		"type":        "SET_PREV_ROUNDS_TIEBREAK_DECISION",
		"decision":    "yes",
		"fingerprint": "tb3:deadbeef",
		"order":       []any{"A", "A", " B ", ""},
	})
	require.Nil(t, verr)
	d, ok := cmd.(command.SetPrevRoundsTiebreakDecision)
	require.True(t, ok)
	assert.Equal(t, []string{"A", "B"}, d.Order)
}

func TestValidateCompetitorNameSQLHeuristic(t *testing.T) {
	verr := command.ValidateCompetitorName("bob' OR '1'='1")
	require.NotNil(t, verr)
	assert.Equal(t, "dangerous_competitor_name", verr.Kind)
}

func TestBoxIdSentinelAccepted(t *testing.T) {
	_, verr := command.Parse(map[string]any{"type": "START_TIMER", "boxId": -1})
	require.Nil(t, verr)
}

func TestBoxIdOutOfRange(t *testing.T) {
	_, verr := command.Parse(map[string]any{"type": "START_TIMER", "boxId": 10000})
	require.NotNil(t, verr)
	assert.Equal(t, "out_of_range", verr.Kind)
}

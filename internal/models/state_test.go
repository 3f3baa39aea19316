package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvestDebateRecordCountsRounds(t *testing.T) {
	var d InvestDebateState
	require.NoError(t, d.Record(RoleBull, "up"))
	assert.Equal(t, 0, d.Rounds)
	require.NoError(t, d.Record(RoleBear, "down"))
	assert.Equal(t, 1, d.Rounds)
	assert.Equal(t, 2, d.Count)
	assert.Equal(t, RoleBear, d.LastSpeaker)
	assert.Equal(t, []string{"Bull Analyst: up"}, d.BullHistory)
	assert.Equal(t, "Bull Analyst: up\nBear Analyst: down", d.Transcript())

	err := d.Record(RoleTrader, "x")
	assert.True(t, errors.Is(err, ErrUnknownRole))
	assert.Equal(t, 2, d.Count)
}

func TestRiskDebateRecordCountsRounds(t *testing.T) {
	var d RiskDebateState
	for _, r := range []Role{RoleAggressive, RoleConservative, RoleNeutral, RoleAggressive} {
		require.NoError(t, d.Record(r, "turn"))
	}
	assert.Equal(t, 4, d.Count)
	assert.Equal(t, 1, d.Rounds)
	assert.Len(t, d.AggressiveHistory, 2)
	assert.Len(t, d.NeutralHistory, 1)
}

func TestRunStateFieldsAreWriteOnce(t *testing.T) {
	s := NewRunState("r1", "BTCUSDT", "2024-05-10", DefaultAnalystTeam())

	require.NoError(t, s.SetReport(AnalystMarket, "market ok"))
	assert.ErrorIs(t, s.SetReport(AnalystMarket, "again"), ErrFieldWritten)
	assert.Equal(t, "market ok", s.Reports[AnalystMarket])

	require.NoError(t, s.SetInvestmentPlan("plan"))
	assert.ErrorIs(t, s.SetInvestmentPlan("other"), ErrFieldWritten)
	require.NoError(t, s.SetTraderPlan("trade"))
	assert.ErrorIs(t, s.SetTraderPlan("other"), ErrFieldWritten)
	require.NoError(t, s.SetFinalDecision("BUY"))
	assert.ErrorIs(t, s.SetFinalDecision("SELL"), ErrFieldWritten)

	require.NoError(t, s.InvestDebate.SetJudgeDecision("j"))
	assert.ErrorIs(t, s.InvestDebate.SetJudgeDecision("k"), ErrFieldWritten)
}

func TestRunStateMessagesAndSituation(t *testing.T) {
	s := NewRunState("r1", "AAPL", "2024-05-10", []AnalystKind{AnalystNews, AnalystMarket})
	s.AppendMessage(Message{Agent: "a", Kind: MessagePrompt})
	s.AppendMessage(Message{Agent: "a", Kind: MessageReply})
	assert.Equal(t, 1, s.Messages[0].Seq)
	assert.Equal(t, 2, s.Messages[1].Seq)
	assert.NotZero(t, s.Messages[1].Timestamp)

	require.NoError(t, s.SetReport(AnalystMarket, "m"))
	require.NoError(t, s.SetReport(AnalystNews, "n"))
	assert.Equal(t, "n\n\nm", s.Situation())
}

func TestParseAnalystKinds(t *testing.T) {
	kinds, err := ParseAnalystKinds([]string{"Market", "news", "market"})
	require.NoError(t, err)
	assert.Equal(t, []AnalystKind{AnalystMarket, AnalystNews}, kinds)

	_, err = ParseAnalystKinds([]string{"astrology"})
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestRunStateFailKeepsPartialState(t *testing.T) {
	s := NewRunState("r1", "AAPL", "2024-05-10", nil)
	require.NoError(t, s.SetInvestmentPlan("plan"))
	s.Fail("trading", errors.New("boom"))
	assert.Equal(t, StatusFailed, s.Status)
	assert.Equal(t, "trading", s.FailedStage)
	assert.Equal(t, "boom", s.Error)
	assert.Equal(t, "plan", s.InvestmentPlan)
	assert.Empty(t, s.Signal)
}

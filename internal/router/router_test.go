package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-bigpig/tradeagents/internal/models"
)

func TestToolLoop(t *testing.T) {
	tests := []struct {
		name       string
		calls      bool
		iterations int
		max        int
		want       ToolDecision
	}{
		{"no tool calls advances", false, 0, 8, Advance},
		{"no tool calls at cap still advances", false, 8, 8, Advance},
		{"tool calls under cap run", true, 3, 8, RunTools},
		{"tool calls at cap finalize", true, 8, 8, Finalize},
		{"tool calls past cap finalize", true, 9, 8, Finalize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToolLoop(tt.calls, tt.iterations, tt.max))
		})
	}
	assert.Equal(t, "finalize", Finalize.String())
}

func runResearch(t *testing.T, maxRounds int) []models.Role {
	t.Helper()
	var d models.InvestDebateState
	var turns []models.Role
	for i := 0; i < 100; i++ {
		next := NextResearch(&d, maxRounds)
		if next == models.RoleInvestJudge {
			return turns
		}
		turns = append(turns, next)
		require.NoError(t, d.Record(next, "arg"))
	}
	t.Fatal("research debate did not terminate")
	return nil
}

func TestResearchDebateAlternatesAndTerminates(t *testing.T) {
	assert.Empty(t, runResearch(t, 0))
	assert.Equal(t, []models.Role{models.RoleBull, models.RoleBear}, runResearch(t, 1))

	for _, m := range []int{2, 3, 5} {
		turns := runResearch(t, m)
		require.Len(t, turns, 2*m)
		assert.Equal(t, models.RoleBull, turns[0])
		for i := 1; i < len(turns); i++ {
			assert.NotEqual(t, turns[i-1], turns[i], "consecutive turn at %d", i)
		}
	}
}

func runRisk(t *testing.T, maxRounds int) ([]models.Role, models.RiskDebateState) {
	t.Helper()
	var d models.RiskDebateState
	var turns []models.Role
	for i := 0; i < 100; i++ {
		next := NextRisk(&d, maxRounds)
		if next == models.RoleRiskJudge {
			return turns, d
		}
		turns = append(turns, next)
		require.NoError(t, d.Record(next, "view"))
	}
	t.Fatal("risk debate did not terminate")
	return nil, d
}

func TestRiskDebateRotatesAndTerminates(t *testing.T) {
	turns, d := runRisk(t, 2)
	require.Len(t, turns, 6)
	order := []models.Role{models.RoleAggressive, models.RoleConservative, models.RoleNeutral}
	for i, r := range turns {
		assert.Equal(t, order[i%3], r)
	}
	assert.Equal(t, 2, d.Rounds)

	turns, _ = runRisk(t, 0)
	assert.Empty(t, turns)
}

package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/adk/model"

	"github.com/run-bigpig/tradeagents/internal/adk"
	"github.com/run-bigpig/tradeagents/internal/agent"
	"github.com/run-bigpig/tradeagents/internal/models"
)

// ErrNothingToReflect 运行状态中没有可供反思的内容
var ErrNothingToReflect = errors.New("run has nothing to reflect on")

// summaryLimit 摘要中保留的决策文本长度
const summaryLimit = 600

// Reflector 事后反思，为每个参与的角色写入一条新记录
type Reflector struct {
	store *Store
	llm   model.LLM
}

// NewReflector 创建反思器，llm 为 nil 时只写入确定性摘要
func NewReflector(store *Store, llm model.LLM) *Reflector {
	return &Reflector{store: store, llm: llm}
}

// Reflect 按真实收益 outcome 写入反思记录
func (r *Reflector) Reflect(ctx context.Context, state *models.RunState, outcome float64) ([]models.MemoryRecord, error) {
	situation := state.Situation()
	if strings.TrimSpace(situation) == "" {
		return nil, ErrNothingToReflect
	}

	var (
		written []models.MemoryRecord
		errs    []error
	)
	for _, role := range models.MemoryRoles() {
		decision := RoleDecision(state, role)
		if decision == "" {
			log.Debug("reflect skip %s: did not take part", role)
			continue
		}
		rec, err := r.store.Add(ctx, Entry{
			Role:         role,
			Situation:    situation,
			Lesson:       r.lesson(ctx, role, situation, decision, outcome),
			OutcomeScore: outcome,
			Symbol:       state.Symbol,
			Date:         state.Date,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("reflect %s: %w", role, err))
			continue
		}
		written = append(written, *rec)
	}
	if len(written) == 0 && len(errs) == 0 {
		return nil, ErrNothingToReflect
	}
	return written, errors.Join(errs...)
}

// lesson 优先由模型总结经验，失败时退回摘要
func (r *Reflector) lesson(ctx context.Context, role models.Role, situation, decision string, outcome float64) string {
	if r.llm != nil {
		text, err := adk.GenerateText(ctx, r.llm, agent.ReflectionPrompt(role, situation, decision, outcome))
		if err == nil && text != "" {
			return text
		}
		log.Warn("reflection lesson for %s fell back to summary: %v", role, err)
	}
	return summarize(role, decision, outcome)
}

// RoleDecision 角色在本次运行中的发言或决策
func RoleDecision(state *models.RunState, role models.Role) string {
	switch role {
	case models.RoleBull:
		return strings.Join(state.InvestDebate.BullHistory, "\n")
	case models.RoleBear:
		return strings.Join(state.InvestDebate.BearHistory, "\n")
	case models.RoleInvestJudge:
		return state.InvestDebate.JudgeDecision
	case models.RoleTrader:
		return state.TraderPlan
	case models.RoleRiskJudge:
		return state.FinalDecision
	default:
		return ""
	}
}

func summarize(role models.Role, decision string, outcome float64) string {
	verdict := "a gain"
	if outcome < 0 {
		verdict = "a loss"
	}
	decision = strings.TrimSpace(decision)
	if r := []rune(decision); len(r) > summaryLimit {
		decision = string(r[:summaryLimit]) + "..."
	}
	return fmt.Sprintf("The %s's call ended in %s (return %+.2f). What it argued: %s",
		role.DisplayName(), verdict, outcome, decision)
}

package pipeline

import (
	"context"
	"time"

	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/run-bigpig/tradeagents/internal/agent"
	"github.com/run-bigpig/tradeagents/internal/models"
	"github.com/run-bigpig/tradeagents/internal/router"
)

// runResearch 多空辩论，满轮次后由研究经理给出投资计划
func (o *Orchestrator) runResearch(ctx context.Context, state *models.RunState) error {
	reports := agent.FormatReports(state)
	situation := state.Situation()
	d := &state.InvestDebate

	for {
		next := router.NextResearch(d, o.opts.MaxDebateRounds)
		b := o.briefing(ctx, state, next, reports, situation)

		if next == models.RoleInvestJudge {
			text, err := o.speak(ctx, state, StageResearch, next, "deep", agent.InvestJudgePrompt(b, d.Transcript()))
			if err != nil {
				return err
			}
			if err := d.SetJudgeDecision(text); err != nil {
				return &StageError{Stage: StageResearch, Role: string(next), Err: err}
			}
			if err := state.SetInvestmentPlan(text); err != nil {
				return &StageError{Stage: StageResearch, Role: string(next), Err: err}
			}
			log.Info("research debate closed after %d turns (%d rounds)", d.Count, d.Rounds)
			return nil
		}

		var prompt string
		if next == models.RoleBull {
			prompt = agent.BullPrompt(b, d.Transcript(), last(d.BearHistory))
		} else {
			prompt = agent.BearPrompt(b, d.Transcript(), last(d.BullHistory))
		}
		text, err := o.speak(ctx, state, StageResearch, next, "quick", prompt)
		if err != nil {
			return err
		}
		if err := d.Record(next, text); err != nil {
			return &StageError{Stage: StageResearch, Role: string(next), Err: err}
		}
		o.metrics.DebateTurn(StageResearch)
		log.Debug("research turn %d: %s", d.Count, next)
	}
}

// runTrader 交易员根据投资计划给出交易方案
func (o *Orchestrator) runTrader(ctx context.Context, state *models.RunState) error {
	b := o.briefing(ctx, state, models.RoleTrader, agent.FormatReports(state), state.Situation())
	text, err := o.speak(ctx, state, StageTrader, models.RoleTrader, "quick", agent.TraderPrompt(b, state.InvestmentPlan))
	if err != nil {
		return err
	}
	if err := state.SetTraderPlan(text); err != nil {
		return &StageError{Stage: StageTrader, Role: string(models.RoleTrader), Err: err}
	}
	return nil
}

// runRisk 三方风险辩论，满轮次后由风险经理给出最终决策
func (o *Orchestrator) runRisk(ctx context.Context, state *models.RunState) error {
	reports := agent.FormatReports(state)
	situation := state.Situation()
	d := &state.RiskDebate

	for {
		next := router.NextRisk(d, o.opts.MaxRiskDiscussRounds)
		b := o.briefing(ctx, state, next, reports, situation)

		if next == models.RoleRiskJudge {
			text, err := o.speak(ctx, state, StageRisk, next, "deep", agent.RiskJudgePrompt(b, state.TraderPlan, d.Transcript()))
			if err != nil {
				return err
			}
			if err := d.SetJudgeDecision(text); err != nil {
				return &StageError{Stage: StageRisk, Role: string(next), Err: err}
			}
			if err := state.SetFinalDecision(text); err != nil {
				return &StageError{Stage: StageRisk, Role: string(next), Err: err}
			}
			log.Info("risk debate closed after %d turns (%d rounds)", d.Count, d.Rounds)
			return nil
		}

		text, err := o.speak(ctx, state, StageRisk, next, "quick", agent.RiskPrompt(next, b, state.TraderPlan, d))
		if err != nil {
			return err
		}
		if err := d.Record(next, text); err != nil {
			return &StageError{Stage: StageRisk, Role: string(next), Err: err}
		}
		o.metrics.DebateTurn(StageRisk)
		log.Debug("risk turn %d: %s", d.Count, next)
	}
}

// briefing 组装角色上下文，记忆检索失败只告警
func (o *Orchestrator) briefing(ctx context.Context, state *models.RunState, role models.Role, reports, situation string) agent.Briefing {
	b := agent.Briefing{Symbol: state.Symbol, Date: state.Date, Reports: reports}
	if o.memory == nil || o.opts.MemoryTopK <= 0 || !role.IsMemoryRole() || situation == "" {
		return b
	}
	lessons, err := o.memory.Lessons(ctx, role, situation, o.opts.MemoryTopK)
	if err != nil {
		log.Warn("memory lookup for %s failed, continuing without lessons: %v", role, err)
		return b
	}
	b.Lessons = lessons
	return b
}

// speak 单轮角色发言，提示与回复都记录到运行消息中
func (o *Orchestrator) speak(ctx context.Context, state *models.RunState, stageName string, role models.Role, tier, prompt string) (string, error) {
	o.emit(ProgressEvent{Type: "agent_start", Stage: stageName, Role: string(role), Detail: role.DisplayName()})
	state.AppendMessage(models.Message{Stage: stageName, Agent: string(role), Kind: models.MessagePrompt, Content: prompt})

	llm := o.tiers.Quick
	if tier == "deep" {
		llm = o.tiers.Deep
	}
	reply, err := o.call(ctx, stageName, string(role), tier, llm, &model.LLMRequest{
		Contents: []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		Config:   o.generateConfig(""),
	})
	if err != nil {
		o.emit(ProgressEvent{Type: "agent_error", Stage: stageName, Role: string(role), Detail: err.Error()})
		return "", &StageError{Stage: stageName, Role: string(role), Err: err}
	}

	state.AppendMessage(models.Message{
		Stage:     stageName,
		Agent:     string(role),
		Kind:      models.MessageReply,
		Content:   reply.Text,
		Timestamp: time.Now().UnixMilli(),
	})
	o.emit(ProgressEvent{Type: "agent_done", Stage: stageName, Role: string(role), Content: truncate(reply.Text, 200)})
	return reply.Text, nil
}

func last(h []string) string {
	if len(h) == 0 {
		return ""
	}
	return h[len(h)-1]
}

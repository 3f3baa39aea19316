package agent

import (
	"fmt"
	"strings"

	"github.com/run-bigpig/tradeagents/internal/adk/tools"
	"github.com/run-bigpig/tradeagents/internal/models"
)

// ProposalMarker 最终交易建议标记
const ProposalMarker = "FINAL TRANSACTION PROPOSAL:"

// Briefing 各角色共享的上下文
type Briefing struct {
	Symbol  string
	Date    string
	Reports string   // 已格式化的分析师报告
	Lessons []string // 当前角色检索到的历史经验
}

// FormatReports 按分析师顺序格式化报告
func FormatReports(state *models.RunState) string {
	var sb strings.Builder
	for _, kind := range state.Analysts {
		report, ok := state.Reports[kind]
		if !ok {
			continue
		}
		title := string(kind)
		if spec, err := LookupAnalyst(kind); err == nil {
			title = spec.ReportTitle
		}
		fmt.Fprintf(&sb, "## %s\n%s\n\n", title, strings.TrimSpace(report))
	}
	return strings.TrimSpace(sb.String())
}

func (b Briefing) lessons() string {
	if len(b.Lessons) == 0 {
		return "No past lessons recorded."
	}
	var sb strings.Builder
	for i, l := range b.Lessons {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, strings.TrimSpace(l))
	}
	return strings.TrimSpace(sb.String())
}

// AnalystInstruction 分析师系统指令
func AnalystInstruction(a *Analyst, symbol, date string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are the %s on a trading research team, collaborating with other assistants. ", a.Spec.Name)
	fmt.Fprintf(&sb, "Your job is to analyse %s.\n\n", a.Spec.Focus)
	fmt.Fprintf(&sb, "Asset: %s\nAnalysis date: %s\n", symbol, date)
	sb.WriteString(toolsDescription(a.Tools))
	sb.WriteString("\nUse the tools to gather data before you write. Only use data dated on or before the analysis date. ")
	sb.WriteString("Write a detailed, specific report; avoid saying the trends are mixed without evidence. ")
	sb.WriteString("Finish with a Markdown table that summarises the key points.\n")
	fmt.Fprintf(&sb, "If you reach a firm view, prefix it with %s **BUY/HOLD/SELL** so the team can see it.", ProposalMarker)
	return sb.String()
}

// toolsDescription 构建可用工具说明
func toolsDescription(ts *tools.Toolset) string {
	if ts.Len() == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\nAvailable tools:\n")
	for _, t := range ts.Tools() {
		fmt.Fprintf(&sb, "- %s: %s\n", t.Name(), t.Description())
	}
	return sb.String()
}

// AnalystKickoff 分析师的首条用户消息
func AnalystKickoff(symbol, date string) string {
	return fmt.Sprintf("Prepare your report on %s as of %s.", symbol, date)
}

// FinalizeInstruction 工具调用次数用尽后的收尾指令
func FinalizeInstruction() string {
	return "The tool budget for this report is exhausted. Do not request more tools. " +
		"Write your final report now using only the data already gathered above."
}

// BullPrompt 多方研究员
func BullPrompt(b Briefing, history, lastBear string) string {
	return fmt.Sprintf(`You are a Bull Analyst arguing for investing in %s as of %s. Build a strong, evidence-based case
that stresses growth potential, competitive advantages and positive indicators, and directly rebut the bear's points.
Speak conversationally, as in a live debate, rather than listing data.

Research reports:
%s

Debate so far:
%s

Last bear argument:
%s

Lessons from similar past situations:
%s

Give your next argument.`, b.Symbol, b.Date, b.Reports, orNone(history), orNone(lastBear), b.lessons())
}

// BearPrompt 空方研究员
func BearPrompt(b Briefing, history, lastBull string) string {
	return fmt.Sprintf(`You are a Bear Analyst arguing against investing in %s as of %s. Build a well-reasoned case that
stresses risks, weaknesses and negative indicators, and directly expose the flaws in the bull's points.
Speak conversationally, as in a live debate, rather than listing data.

Research reports:
%s

Debate so far:
%s

Last bull argument:
%s

Lessons from similar past situations:
%s

Give your next argument.`, b.Symbol, b.Date, b.Reports, orNone(history), orNone(lastBull), b.lessons())
}

// InvestJudgePrompt 研究经理
func InvestJudgePrompt(b Briefing, history string) string {
	return fmt.Sprintf(`You are the Research Manager and debate facilitator for %s as of %s. Critically evaluate the
bull/bear debate below and make a definitive decision: Buy, Sell, or Hold. Do not default to Hold just because both sides
have valid points; commit to the stance the strongest arguments support.

Produce an investment plan for the trader with:
1. Recommendation: Buy, Sell or Hold.
2. Rationale: the arguments that led to it.
3. Strategic actions: concrete steps to implement it.

Learn from these past mistakes:
%s

Research reports:
%s

Debate history:
%s`, b.Symbol, b.Date, b.lessons(), b.Reports, orNone(history))
}

// TraderPrompt 交易员
func TraderPrompt(b Briefing, investmentPlan string) string {
	return fmt.Sprintf(`You are a trader deciding on %s as of %s. Based on the research team's plan and the reports
below, propose a specific trade: direction, sizing, entry, stop and target.

Investment plan:
%s

Research reports:
%s

Lessons from similar past trades:
%s

Always end your response with '%s **BUY/HOLD/SELL**' to confirm your recommendation.`,
		b.Symbol, b.Date, investmentPlan, b.Reports, b.lessons(), ProposalMarker)
}

// riskStances 三方立场
var riskStances = map[models.Role]string{
	models.RoleAggressive: "the Aggressive Risk Analyst. Champion high-reward opportunities and bold strategies, " +
		"and challenge caution that would leave upside on the table.",
	models.RoleConservative: "the Conservative Risk Analyst. Protect assets, minimise volatility and favour steady " +
		"growth; point out where the plan exposes the firm to undue risk.",
	models.RoleNeutral: "the Neutral Risk Analyst. Weigh both upside and downside, challenge whichever side is " +
		"overly optimistic or overly cautious, and argue for a balanced, sustainable approach.",
}

// RiskPrompt 风险辩论三方
func RiskPrompt(role models.Role, b Briefing, traderPlan string, d *models.RiskDebateState) string {
	return fmt.Sprintf(`You are %s

The trader's proposal for %s as of %s:
%s

Research reports:
%s

Debate so far:
%s

Latest aggressive view: %s
Latest conservative view: %s
Latest neutral view: %s

Respond to the other analysts' latest points directly. If there are none yet, present your own view. Speak
conversationally, without special formatting.`,
		riskStances[role], b.Symbol, b.Date, traderPlan, b.Reports, orNone(d.Transcript()),
		orNone(last(d.AggressiveHistory)), orNone(last(d.ConservativeHistory)), orNone(last(d.NeutralHistory)))
}

// RiskJudgePrompt 风险经理，给出最终决策
func RiskJudgePrompt(b Briefing, traderPlan string, history string) string {
	return fmt.Sprintf(`As the Portfolio Manager and risk debate judge for %s as of %s, evaluate the debate between
the aggressive, conservative and neutral analysts and decide the final action: Buy, Sell, or Hold. Choose Hold only
when the arguments specifically justify it, not as a fallback.

Trader's original plan:
%s

Research reports:
%s

Lessons from past decisions:
%s

Risk debate:
%s

Explain your reasoning, refine the trader's plan accordingly, and end with '%s **BUY/HOLD/SELL**'.`,
		b.Symbol, b.Date, traderPlan, b.Reports, b.lessons(), orNone(history), ProposalMarker)
}

// ReflectionPrompt 事后反思
func ReflectionPrompt(role models.Role, situation, decision string, outcome float64) string {
	verdict := "profitable"
	if outcome < 0 {
		verdict = "a loss"
	}
	return fmt.Sprintf(`You are reviewing a past trading decision made by the %s.

Market situation at the time:
%s

What the %s said:
%s

The realised outcome was %s (return %+.2f).

In at most 150 words: state whether the reasoning was correct, which factors were overweighted or missed, and one
concrete lesson to apply the next time a similar situation appears.`,
		role.DisplayName(), situation, role.DisplayName(), orNone(decision), verdict, outcome)
}

func last(h []string) string {
	if len(h) == 0 {
		return ""
	}
	return h[len(h)-1]
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}

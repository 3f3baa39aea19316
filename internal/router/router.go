// Package router 每次模型调用后决定下一步流转
package router

import "github.com/run-bigpig/tradeagents/internal/models"

// ToolDecision 分析师工具循环的路由结果
type ToolDecision int

const (
	// Advance 把回复作为分析师报告
	Advance ToolDecision = iota
	// RunTools 执行工具后再次调用分析师
	RunTools
	// Finalize 解绑工具后再调用一次
	Finalize
)

func (d ToolDecision) String() string {
	switch d {
	case Advance:
		return "advance"
	case RunTools:
		return "tools"
	case Finalize:
		return "finalize"
	default:
		return "unknown"
	}
}

// ToolLoop 路由分析师回复，iterations 为已执行的工具轮数
func ToolLoop(hasToolCalls bool, iterations, maxIterations int) ToolDecision {
	if !hasToolCalls {
		return Advance
	}
	if iterations >= maxIterations {
		return Finalize
	}
	return RunTools
}

// NextResearch 返回下一位多空发言者
// 双方各发言 maxRounds 次后交给研究经理
func NextResearch(d *models.InvestDebateState, maxRounds int) models.Role {
	if d.Count >= 2*maxRounds {
		return models.RoleInvestJudge
	}
	if d.LastSpeaker == models.RoleBull {
		return models.RoleBear
	}
	return models.RoleBull
}

// NextRisk 按 激进 -> 保守 -> 中性 轮转，满 maxRounds 轮后交给风险经理
func NextRisk(d *models.RiskDebateState, maxRounds int) models.Role {
	if d.Count >= 3*maxRounds {
		return models.RoleRiskJudge
	}
	switch d.LastSpeaker {
	case models.RoleAggressive:
		return models.RoleConservative
	case models.RoleConservative:
		return models.RoleNeutral
	default:
		return models.RoleAggressive
	}
}

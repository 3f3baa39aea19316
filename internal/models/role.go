package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownRole 未知角色
var ErrUnknownRole = errors.New("unknown role")

// Role 流水线中的角色
type Role string

const (
	RoleBull         Role = "bull"
	RoleBear         Role = "bear"
	RoleInvestJudge  Role = "invest_judge"
	RoleTrader       Role = "trader"
	RoleAggressive   Role = "aggressive"
	RoleConservative Role = "conservative"
	RoleNeutral      Role = "neutral"
	RoleRiskJudge    Role = "risk_manager"
)

// DisplayName 用于转录文本的角色名
func (r Role) DisplayName() string {
	switch r {
	case RoleBull:
		return "Bull Analyst"
	case RoleBear:
		return "Bear Analyst"
	case RoleInvestJudge:
		return "Research Manager"
	case RoleTrader:
		return "Trader"
	case RoleAggressive:
		return "Aggressive Analyst"
	case RoleConservative:
		return "Conservative Analyst"
	case RoleNeutral:
		return "Neutral Analyst"
	case RoleRiskJudge:
		return "Portfolio Manager"
	default:
		return string(r)
	}
}

// MemoryRoles 拥有独立记忆分区的角色
func MemoryRoles() []Role {
	return []Role{RoleBull, RoleBear, RoleTrader, RoleInvestJudge, RoleRiskJudge}
}

// IsMemoryRole 判断角色是否拥有记忆分区
func (r Role) IsMemoryRole() bool {
	for _, m := range MemoryRoles() {
		if m == r {
			return true
		}
	}
	return false
}

// AnalystKind 分析师类型（封闭枚举）
type AnalystKind string

const (
	AnalystMarket       AnalystKind = "market"
	AnalystSocial       AnalystKind = "social"
	AnalystNews         AnalystKind = "news"
	AnalystFundamentals AnalystKind = "fundamentals"
	AnalystMacro        AnalystKind = "macro"
	AnalystOnChain      AnalystKind = "onchain"
)

// AllAnalystKinds 返回全部受支持的分析师类型
func AllAnalystKinds() []AnalystKind {
	return []AnalystKind{
		AnalystMarket,
		AnalystSocial,
		AnalystNews,
		AnalystFundamentals,
		AnalystMacro,
		AnalystOnChain,
	}
}

// DefaultAnalystTeam 默认分析师团队
func DefaultAnalystTeam() []AnalystKind {
	return []AnalystKind{AnalystMarket, AnalystSocial, AnalystNews, AnalystFundamentals}
}

// Valid 判断是否为受支持的类型
func (k AnalystKind) Valid() bool {
	for _, a := range AllAnalystKinds() {
		if a == k {
			return true
		}
	}
	return false
}

// ReportKey 报告字段名
func (k AnalystKind) ReportKey() string {
	return string(k) + "_report"
}

// ParseAnalystKind 解析分析师类型
func ParseAnalystKind(s string) (AnalystKind, error) {
	k := AnalystKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: analyst %q", ErrUnknownRole, s)
	}
	return k, nil
}

// ParseAnalystKinds 解析分析师列表并去重，保持原有顺序
func ParseAnalystKinds(names []string) ([]AnalystKind, error) {
	seen := make(map[AnalystKind]bool, len(names))
	kinds := make([]AnalystKind, 0, len(names))
	for _, n := range names {
		k, err := ParseAnalystKind(n)
		if err != nil {
			return nil, err
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		kinds = append(kinds, k)
	}
	return kinds, nil
}

package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrFieldWritten 字段已由所属阶段写入，不可再次修改
var ErrFieldWritten = errors.New("field already written")

// RunStatus 运行状态
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// InvestDebateState 多空辩论状态
type InvestDebateState struct {
	BullHistory   []string `json:"bullHistory"`
	BearHistory   []string `json:"bearHistory"`
	History       []string `json:"history"`
	Count         int      `json:"count"`
	Rounds        int      `json:"rounds"`
	LastSpeaker   Role     `json:"lastSpeaker,omitempty"`
	JudgeDecision string   `json:"judgeDecision,omitempty"`
}

// Record 记录一次发言。一轮由多空双方各发言一次组成
func (d *InvestDebateState) Record(speaker Role, text string) error {
	line := speaker.DisplayName() + ": " + text
	switch speaker {
	case RoleBull:
		d.BullHistory = append(d.BullHistory, line)
	case RoleBear:
		d.BearHistory = append(d.BearHistory, line)
	default:
		return fmt.Errorf("%w: %s in research debate", ErrUnknownRole, speaker)
	}
	d.History = append(d.History, line)
	d.Count++
	d.Rounds = d.Count / 2
	d.LastSpeaker = speaker
	return nil
}

// SetJudgeDecision 写入研究经理的结论
func (d *InvestDebateState) SetJudgeDecision(text string) error {
	if d.JudgeDecision != "" {
		return fmt.Errorf("%w: invest judge decision", ErrFieldWritten)
	}
	d.JudgeDecision = text
	return nil
}

// Transcript 完整辩论记录
func (d *InvestDebateState) Transcript() string {
	return strings.Join(d.History, "\n")
}

// RiskDebateState 风险辩论状态
type RiskDebateState struct {
	AggressiveHistory   []string `json:"aggressiveHistory"`
	ConservativeHistory []string `json:"conservativeHistory"`
	NeutralHistory      []string `json:"neutralHistory"`
	History             []string `json:"history"`
	Count               int      `json:"count"`
	Rounds              int      `json:"rounds"`
	LastSpeaker         Role     `json:"lastSpeaker,omitempty"`
	JudgeDecision       string   `json:"judgeDecision,omitempty"`
}

// Record 记录一次发言。一轮由三方各发言一次组成
func (d *RiskDebateState) Record(speaker Role, text string) error {
	line := speaker.DisplayName() + ": " + text
	switch speaker {
	case RoleAggressive:
		d.AggressiveHistory = append(d.AggressiveHistory, line)
	case RoleConservative:
		d.ConservativeHistory = append(d.ConservativeHistory, line)
	case RoleNeutral:
		d.NeutralHistory = append(d.NeutralHistory, line)
	default:
		return fmt.Errorf("%w: %s in risk debate", ErrUnknownRole, speaker)
	}
	d.History = append(d.History, line)
	d.Count++
	d.Rounds = d.Count / 3
	d.LastSpeaker = speaker
	return nil
}

// SetJudgeDecision 写入风险经理的结论
func (d *RiskDebateState) SetJudgeDecision(text string) error {
	if d.JudgeDecision != "" {
		return fmt.Errorf("%w: risk judge decision", ErrFieldWritten)
	}
	d.JudgeDecision = text
	return nil
}

// Transcript 完整辩论记录
func (d *RiskDebateState) Transcript() string {
	return strings.Join(d.History, "\n")
}

// RunState 单次 (symbol, date) 运行状态
type RunState struct {
	RunID          string                 `json:"runId"`
	Symbol         string                 `json:"symbol"`
	Date           string                 `json:"date"`
	Status         RunStatus              `json:"status"`
	Analysts       []AnalystKind          `json:"analysts"`
	Messages       []Message              `json:"messages"`
	Reports        map[AnalystKind]string `json:"reports"`
	InvestDebate   InvestDebateState      `json:"investDebate"`
	InvestmentPlan string                 `json:"investmentPlan,omitempty"`
	TraderPlan     string                 `json:"traderPlan,omitempty"`
	RiskDebate     RiskDebateState        `json:"riskDebate"`
	FinalDecision  string                 `json:"finalDecision,omitempty"`
	Signal         string                 `json:"signal,omitempty"`
	Error          string                 `json:"error,omitempty"`
	FailedStage    string                 `json:"failedStage,omitempty"`
	StartedAt      time.Time              `json:"startedAt"`
	FinishedAt     time.Time              `json:"finishedAt,omitempty"`
}

// NewRunState 创建空的运行状态
func NewRunState(runID, symbol, date string, analysts []AnalystKind) *RunState {
	return &RunState{
		RunID:     runID,
		Symbol:    symbol,
		Date:      date,
		Status:    StatusRunning,
		Analysts:  append([]AnalystKind(nil), analysts...),
		Messages:  []Message{},
		Reports:   make(map[AnalystKind]string, len(analysts)),
		StartedAt: time.Now(),
	}
}

// AppendMessage 追加消息并分配序号
func (s *RunState) AppendMessage(m Message) {
	m.Seq = len(s.Messages) + 1
	if m.Timestamp == 0 {
		m.Timestamp = time.Now().UnixMilli()
	}
	s.Messages = append(s.Messages, m)
}

// SetReport 写入分析师报告
func (s *RunState) SetReport(kind AnalystKind, text string) error {
	if _, ok := s.Reports[kind]; ok {
		return fmt.Errorf("%w: %s", ErrFieldWritten, kind.ReportKey())
	}
	s.Reports[kind] = text
	return nil
}

// SetInvestmentPlan 写入投资计划
func (s *RunState) SetInvestmentPlan(text string) error {
	return setOnce(&s.InvestmentPlan, text, "investment_plan")
}

// SetTraderPlan 写入交易员方案
func (s *RunState) SetTraderPlan(text string) error {
	return setOnce(&s.TraderPlan, text, "trader_investment_plan")
}

// SetFinalDecision 写入最终决策
func (s *RunState) SetFinalDecision(text string) error {
	return setOnce(&s.FinalDecision, text, "final_trade_decision")
}

func setOnce(field *string, text, name string) error {
	if *field != "" {
		return fmt.Errorf("%w: %s", ErrFieldWritten, name)
	}
	*field = text
	return nil
}

// Situation 按分析师顺序拼接全部报告，作为记忆检索的查询文本
func (s *RunState) Situation() string {
	parts := make([]string, 0, len(s.Analysts))
	for _, kind := range s.Analysts {
		if r := s.Reports[kind]; r != "" {
			parts = append(parts, r)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Fail 标记运行失败，保留已完成的部分状态
func (s *RunState) Fail(stage string, err error) {
	s.Status = StatusFailed
	s.FailedStage = stage
	if err != nil {
		s.Error = err.Error()
	}
	s.FinishedAt = time.Now()
}

// Complete 标记运行成功
func (s *RunState) Complete(signal string) {
	s.Status = StatusCompleted
	s.Signal = signal
	s.FinishedAt = time.Now()
}

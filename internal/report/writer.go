// Package report 把运行结果写成分阶段 Markdown 与完整状态快照
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/run-bigpig/tradeagents/internal/agent"
	"github.com/run-bigpig/tradeagents/internal/logger"
	"github.com/run-bigpig/tradeagents/internal/models"
	"github.com/run-bigpig/tradeagents/internal/pkg/paths"
)

var log = logger.New("report")

// StateFile 完整状态快照文件名
const StateFile = "full_state.json"

// maxStateSize 读取快照的大小上限
const maxStateSize = 32 << 20

// ErrInvalidState 快照内容不完整
var ErrInvalidState = errors.New("invalid run state snapshot")

// RunDir 运行产物目录 <dir>/<symbol>/<date>
func RunDir(dir, symbol, date string) string {
	return filepath.Join(dir, safeName(symbol), safeName(date))
}

// Write 写出运行产物，返回产物目录
func Write(dir string, state *models.RunState) (string, error) {
	runDir, err := paths.EnsureDir(RunDir(dir, state.Symbol, state.Date), "reports")
	if err != nil {
		return "", fmt.Errorf("create results dir: %w", err)
	}

	files := map[string]string{}
	for _, kind := range state.Analysts {
		if text, ok := state.Reports[kind]; ok {
			files[kind.ReportKey()+".md"] = section(reportTitle(kind), text)
		}
	}
	if d := state.InvestDebate; len(d.History) > 0 || d.JudgeDecision != "" {
		files["research_debate.md"] = debate("Research Debate", d.History, d.JudgeDecision)
	}
	if state.InvestmentPlan != "" {
		files["investment_plan.md"] = section("Investment Plan", state.InvestmentPlan)
	}
	if state.TraderPlan != "" {
		files["trader_investment_plan.md"] = section("Trader Plan", state.TraderPlan)
	}
	if d := state.RiskDebate; len(d.History) > 0 || d.JudgeDecision != "" {
		files["risk_debate.md"] = debate("Risk Debate", d.History, d.JudgeDecision)
	}
	if state.FinalDecision != "" {
		files["final_trade_decision.md"] = section("Final Trade Decision", state.FinalDecision)
	}

	for name, body := range files {
		if err := os.WriteFile(filepath.Join(runDir, name), []byte(body), 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", name, err)
		}
	}

	base := filepath.Dir(runDir)
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(base, StateFile), raw, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", StateFile, err)
	}
	log.Info("run %s written to %s (%d reports)", state.RunID, base, len(files))
	return base, nil
}

// Load 读取状态快照，path 可以是快照文件或产物目录
func Load(path string) (*models.RunState, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		path = filepath.Join(path, StateFile)
		if info, err = os.Stat(path); err != nil {
			return nil, err
		}
	}
	if info.Size() > maxStateSize {
		return nil, fmt.Errorf("%w: %s is larger than %d bytes", ErrInvalidState, path, maxStateSize)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var state models.RunState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if state.Symbol == "" || state.Date == "" {
		return nil, fmt.Errorf("%w: missing symbol or date", ErrInvalidState)
	}
	if state.Reports == nil {
		state.Reports = map[models.AnalystKind]string{}
	}
	return &state, nil
}

func reportTitle(kind models.AnalystKind) string {
	if spec, err := agent.LookupAnalyst(kind); err == nil {
		return spec.ReportTitle
	}
	return string(kind)
}

func section(title, body string) string {
	return "# " + title + "\n\n" + strings.TrimSpace(body) + "\n"
}

func debate(title string, history []string, decision string) string {
	var sb strings.Builder
	sb.WriteString("# " + title + "\n\n")
	for _, line := range history {
		sb.WriteString(strings.TrimSpace(line) + "\n\n")
	}
	if decision != "" {
		sb.WriteString("## Decision\n\n" + strings.TrimSpace(decision) + "\n")
	}
	return sb.String()
}

// safeName 去掉路径分隔符，避免逃出结果目录
func safeName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, s)
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}

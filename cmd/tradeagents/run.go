package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/run-bigpig/tradeagents/internal/config"
	"github.com/run-bigpig/tradeagents/internal/pipeline"
	"github.com/run-bigpig/tradeagents/internal/report"
)

type runOptions struct {
	symbol      string
	date        string
	analysts    []string
	debate      int
	risk        int
	parallel    bool
	stream      bool
	metricsAddr string
	jsonOut     bool
	noSave      bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Produce a BUY/SELL/HOLD recommendation for a symbol and date",
		Long: `Run the full pipeline: analysts, research debate, trader, risk debate and signal extraction.

Examples:
  tradeagents run --symbol BTCUSDT --date 2024-05-10
  tradeagents run --symbol ETHUSDT --analysts market,news,onchain --debate-rounds 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, root, opts)
		},
	}
	opts.bindFlags(cmd)
	_ = cmd.MarkFlagRequired("symbol")
	return cmd
}

func (o *runOptions) bindFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.symbol, "symbol", "s", "", "asset symbol, e.g. BTCUSDT")
	f.StringVarP(&o.date, "date", "d", "", "analysis date (YYYY-MM-DD), defaults to today")
	f.StringSliceVar(&o.analysts, "analysts", nil, "analyst team, e.g. market,news,social")
	f.IntVar(&o.debate, "debate-rounds", -1, "override pipeline.max_debate_rounds")
	f.IntVar(&o.risk, "risk-rounds", -1, "override pipeline.max_risk_discuss_rounds")
	f.BoolVar(&o.parallel, "parallel", false, "run analysts in parallel")
	f.BoolVar(&o.stream, "stream", false, "stream model output (logged at debug level)")
	f.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
	f.BoolVar(&o.jsonOut, "json", false, "print the full run state as JSON")
	f.BoolVar(&o.noSave, "no-save", false, "do not write run artifacts")
}

// applyOverrides 命令行参数覆盖配置
func (o *runOptions) applyOverrides(cmd *cobra.Command, p *config.PipelineConfig) {
	if len(o.analysts) > 0 {
		p.Analysts = o.analysts
	}
	if cmd.Flags().Changed("debate-rounds") {
		p.MaxDebateRounds = o.debate
	}
	if cmd.Flags().Changed("risk-rounds") {
		p.MaxRiskDiscussRounds = o.risk
	}
	if o.parallel {
		p.ParallelAnalysts = true
	}
}

func runPipeline(cmd *cobra.Command, root *rootOptions, opts *runOptions) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	opts.applyOverrides(cmd, &cfg.Pipeline)
	if opts.stream {
		cfg.LLM.Stream = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if opts.date == "" {
		opts.date = time.Now().Format(time.DateOnly)
	}

	ctx, stop := runContext(cmd.Context())
	defer stop()

	a, err := newApp(ctx, cfg, appOptions{
		connectMCP:  true,
		metricsAddr: opts.metricsAddr,
		progress:    progressLogger,
	})
	if err != nil {
		return err
	}
	defer a.close()

	state, sig, runErr := a.orchestrator.Run(ctx, opts.symbol, opts.date)
	if state != nil && !opts.noSave {
		dir, err := report.Write(cfg.Results.Dir, state)
		if err != nil {
			log.Error("save results: %v", err)
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "results: %s\n", dir)
		}
	}
	if runErr != nil {
		return runErr
	}

	out := cmd.OutOrStdout()
	if opts.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	}
	fmt.Fprintf(out, "%s %s: %s\n", state.Symbol, state.Date, sig)
	return nil
}

// progressLogger 把进度事件写入日志
func progressLogger(ev pipeline.ProgressEvent) {
	switch ev.Type {
	case "stage_start":
		log.Info("stage %s", ev.Stage)
	case "agent_delta":
		log.Debug("[%s] %s > %s", ev.Stage, ev.Role, ev.Content)
	case "agent_error":
		log.Warn("[%s] %s: %s", ev.Stage, ev.Role, ev.Detail)
	default:
		log.Debug("[%s] %s %s %s", ev.Stage, ev.Role, ev.Type, ev.Detail)
	}
}

// runContext SIGINT/SIGTERM 时取消
func runContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

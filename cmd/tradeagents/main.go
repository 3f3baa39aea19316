// Package main tradeagents 命令行：运行交易建议流水线与事后反思
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/run-bigpig/tradeagents/internal/config"
	"github.com/run-bigpig/tradeagents/internal/logger"
)

var version = "dev"

var log = logger.New("cli")

func main() {
	code := 0
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		code = 1
	}
	logger.Sync()
	os.Exit(code)
}

// rootOptions 全局参数
type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "tradeagents",
		Short: "Multi-agent trading recommendation pipeline",
		Long: `tradeagents runs a team of LLM analysts, a bull/bear research debate, a trader and a
three-way risk debate to produce a BUY/SELL/HOLD recommendation for an asset on a date.

Examples:
  # Analyse BTCUSDT as of a date
  tradeagents run --symbol BTCUSDT --date 2024-05-10

  # Record the realised outcome so later runs can learn from it
  tradeagents reflect --state results/BTCUSDT/2024-05-10 --outcome -150`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level (debug|info|warn|error)")

	root.AddCommand(newRunCmd(opts), newReflectCmd(opts), newVersionCmd())
	return root
}

// loadConfig 加载配置并初始化日志
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := logger.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "tradeagents", version)
		},
	}
}

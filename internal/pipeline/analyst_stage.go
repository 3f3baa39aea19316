package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/run-bigpig/tradeagents/internal/adk"
	"github.com/run-bigpig/tradeagents/internal/agent"
	"github.com/run-bigpig/tradeagents/internal/models"
	"github.com/run-bigpig/tradeagents/internal/router"
)

// analystResult 单个分析师的输出，合并前不触碰共享状态
type analystResult struct {
	kind     models.AnalystKind
	report   string
	done     bool
	messages []models.Message
}

func (r *analystResult) log(m models.Message) {
	m.Stage = StageAnalysts
	m.Agent = string(r.kind)
	m.Timestamp = time.Now().UnixMilli()
	r.messages = append(r.messages, m)
}

// runAnalysts 运行分析师团队，结果按配置顺序合并
func (o *Orchestrator) runAnalysts(ctx context.Context, state *models.RunState) error {
	analysts := o.container.GetAnalysts(state.Analysts)
	if len(analysts) == 0 {
		return &StageError{Stage: StageAnalysts, Err: ErrNoAnalysts}
	}
	results := make([]*analystResult, len(analysts))

	var runErr error
	if o.opts.ParallelAnalysts {
		g, gctx := errgroup.WithContext(ctx)
		for i, a := range analysts {
			g.Go(func() error {
				res, err := o.runAnalyst(gctx, state.Symbol, state.Date, a)
				results[i] = res
				return err
			})
		}
		runErr = g.Wait()
	} else {
		for i, a := range analysts {
			res, err := o.runAnalyst(ctx, state.Symbol, state.Date, a)
			results[i] = res
			if err != nil {
				runErr = err
				break
			}
		}
	}

	for _, res := range results {
		if res == nil {
			continue
		}
		for _, m := range res.messages {
			state.AppendMessage(m)
		}
		if !res.done {
			continue
		}
		if err := state.SetReport(res.kind, res.report); err != nil {
			return &StageError{Stage: StageAnalysts, Role: string(res.kind), Err: err}
		}
	}
	return runErr
}

// runAnalyst 单个分析师的工具循环
// 每个分析师拥有独立的对话历史，回复不含工具调用时作为报告
func (o *Orchestrator) runAnalyst(ctx context.Context, symbol, date string, a *agent.Analyst) (*analystResult, error) {
	kind := a.Spec.Kind
	res := &analystResult{kind: kind}
	o.emit(ProgressEvent{Type: "agent_start", Stage: StageAnalysts, Role: string(kind), Detail: a.Spec.Name})

	kickoff := agent.AnalystKickoff(symbol, date)
	history := []*genai.Content{genai.NewContentFromText(kickoff, genai.RoleUser)}
	res.log(models.Message{Kind: models.MessagePrompt, Content: kickoff})

	cfg := o.generateConfig(agent.AnalystInstruction(a, symbol, date))
	cfg.Tools = a.Tools.GenaiTools()

	fail := func(err error) (*analystResult, error) {
		o.emit(ProgressEvent{Type: "agent_error", Stage: StageAnalysts, Role: string(kind), Detail: err.Error()})
		return res, &StageError{Stage: StageAnalysts, Role: string(kind), Err: err}
	}

	for iterations := 0; ; {
		reply, err := o.call(ctx, StageAnalysts, string(kind), "quick", o.tiers.Quick, &model.LLMRequest{Contents: history, Config: cfg})
		if err != nil {
			return fail(err)
		}
		res.log(replyMessage(reply))

		decision := router.ToolLoop(reply.HasToolCalls(), iterations, o.opts.MaxToolIterations)
		log.Debug("analyst %s: iteration %d, %d tool calls -> %s", kind, iterations, len(reply.Calls), decision)

		switch decision {
		case router.Advance:
			res.report, res.done = reply.Text, true
			o.emit(ProgressEvent{Type: "agent_done", Stage: StageAnalysts, Role: string(kind)})
			return res, nil

		case router.RunTools:
			history = append(history, reply.Content, o.runTools(ctx, a, reply.Calls, res))
			iterations++

		case router.Finalize:
			log.Warn("analyst %s hit the tool limit (%d), finalizing without tools", kind, o.opts.MaxToolIterations)
			finalize := agent.FinalizeInstruction()
			history = append(history, genai.NewContentFromText(finalize, genai.RoleUser))
			res.log(models.Message{Kind: models.MessagePrompt, Content: finalize})

			noTools := *cfg
			noTools.Tools = nil
			final, err := o.call(ctx, StageAnalysts, string(kind), "quick", o.tiers.Quick, &model.LLMRequest{Contents: history, Config: &noTools})
			if err != nil {
				return fail(err)
			}
			res.log(replyMessage(final))
			res.report, res.done = final.Text, true
			o.emit(ProgressEvent{Type: "agent_done", Stage: StageAnalysts, Role: string(kind)})
			return res, nil
		}
	}
}

// runTools 执行一轮工具调用，失败的调用以 error 字段返回给模型
func (o *Orchestrator) runTools(ctx context.Context, a *agent.Analyst, calls []*genai.FunctionCall, res *analystResult) *genai.Content {
	parts := make([]*genai.Part, 0, len(calls))
	for _, call := range calls {
		o.emit(ProgressEvent{Type: "tool_call", Stage: StageAnalysts, Role: string(res.kind), Detail: call.Name})

		out, err := o.runTool(ctx, a, call)
		o.metrics.ToolCall(err)
		response := map[string]any{"result": out}
		msg := models.Message{Kind: models.MessageToolResult, ToolName: call.Name, ToolCallID: call.ID, Content: out}
		if err != nil {
			log.Warn("tool %s for %s failed: %v", call.Name, res.kind, err)
			response = map[string]any{"error": err.Error()}
			msg.Content, msg.IsError = err.Error(), true
		} else {
			log.Debug("tool %s for %s returned %d bytes", call.Name, res.kind, len(out))
		}
		res.log(msg)

		parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
			ID:       call.ID,
			Name:     call.Name,
			Response: response,
		}})
		o.emit(ProgressEvent{Type: "tool_result", Stage: StageAnalysts, Role: string(res.kind), Detail: call.Name, Content: truncate(msg.Content, 200)})
	}
	return &genai.Content{Role: genai.RoleUser, Parts: parts}
}

func (o *Orchestrator) runTool(ctx context.Context, a *agent.Analyst, call *genai.FunctionCall) (string, error) {
	tool, err := a.Tools.Lookup(call.Name)
	if err != nil {
		return "", err
	}
	if o.opts.ToolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.ToolTimeout)
		defer cancel()
	}
	out, err := tool.Run(ctx, call.Args)
	if err != nil {
		return "", fmt.Errorf("%s: %w", call.Name, err)
	}
	return out, nil
}

// call 带单次超时调用模型，开启流式时转发增量文本
func (o *Orchestrator) call(ctx context.Context, stageName, role, tier string, llm model.LLM, req *model.LLMRequest) (*adk.Reply, error) {
	if o.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.CallTimeout)
		defer cancel()
	}
	o.metrics.ModelCall(tier)
	start := time.Now()
	var (
		reply *adk.Reply
		err   error
	)
	if o.opts.Stream {
		reply, err = adk.GenerateStream(ctx, llm, req, func(text string) {
			o.emit(ProgressEvent{Type: "agent_delta", Stage: stageName, Role: role, Content: text})
		})
	} else {
		reply, err = adk.Generate(ctx, llm, req)
	}
	if err != nil {
		return nil, fmt.Errorf("%s model %s: %w", tier, llm.Name(), err)
	}
	log.Debug("%s model %s replied in %s, %d chars, %d tool calls",
		tier, llm.Name(), time.Since(start).Round(time.Millisecond), len(reply.Text), len(reply.Calls))
	return reply, nil
}

func (o *Orchestrator) generateConfig(instruction string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if instruction != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(instruction)}}
	}
	if o.opts.Temperature > 0 {
		t := float32(o.opts.Temperature)
		cfg.Temperature = &t
	}
	return cfg
}

func replyMessage(reply *adk.Reply) models.Message {
	m := models.Message{Kind: models.MessageReply, Content: reply.Text}
	for _, c := range reply.Calls {
		m.ToolCalls = append(m.ToolCalls, models.ToolCall{ID: c.ID, Name: c.Name, Args: c.Args})
	}
	return m
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

package handoff

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/moneta/llm"
	"github.com/BaSui01/moneta/llm/tokenizer"
	"github.com/BaSui01/moneta/llm/tools"
	"github.com/BaSui01/moneta/types"
)

// HandoffToolPrefix prefixes the synthetic tools that request a handoff.
const HandoffToolPrefix = "handoff_to_"

// DefaultMaxToolRounds bounds capability round trips inside one invocation.
const DefaultMaxToolRounds = 5

// LLMRunnerConfig configures an LLMRunner.
type LLMRunnerConfig struct {
	Model            string
	Temperature      float32
	MaxTokens        int
	MaxToolRounds    int
	MaxHistoryTokens int
}

// LLMRunner invokes agents through a completion provider. Handoff targets are
// exposed as handoff_to_<agent> tools; capability calls run inside the
// invocation and their results are fed back until the model answers.
type LLMRunner struct {
	provider  llm.Provider
	registry  *tools.DefaultRegistry
	executor  tools.ToolExecutor
	tokenizer tokenizer.Tokenizer
	cfg       LLMRunnerConfig
	logger    *zap.Logger
}

// NewLLMRunner 创建基于补全服务的 AgentRunner。
func NewLLMRunner(provider llm.Provider, registry *tools.DefaultRegistry, executor tools.ToolExecutor, cfg LLMRunnerConfig, logger *zap.Logger) *LLMRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = DefaultMaxToolRounds
	}
	return &LLMRunner{
		provider:  provider,
		registry:  registry,
		executor:  executor,
		tokenizer: tokenizer.ForModel(cfg.Model),
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "llm_runner")),
	}
}

type handoffArgs struct {
	Note string `json:"note"`
}

var handoffParameters = json.RawMessage(`{"type":"object","properties":{"note":{"type":"string","description":"Context for the receiving agent"}}}`)

// Invoke implements AgentRunner.
func (r *LLMRunner) Invoke(ctx context.Context, wf *Workflow, def AgentDefinition, history types.Conversation) (Decision, error) {
	toolSchemas, err := r.toolsFor(wf, def)
	if err != nil {
		return Decision{}, err
	}

	messages := append([]llm.Message{{Role: llm.RoleSystem, Content: def.Instructions}}, r.convert(r.trim(history))...)

	for round := 0; ; round++ {
		req := &llm.ChatRequest{
			Model:       r.cfg.Model,
			Messages:    messages,
			MaxTokens:   r.cfg.MaxTokens,
			Temperature: r.cfg.Temperature,
			Tools:       toolSchemas,
			Metadata:    map[string]string{"agent": def.Name},
		}
		if traceID, ok := types.TraceID(ctx); ok {
			req.TraceID = traceID
		}
		if userID, ok := types.UserID(ctx); ok {
			req.UserID = userID
		}
		if round >= r.cfg.MaxToolRounds {
			req.ToolChoice = "none"
		}

		resp, err := r.provider.Completion(ctx, req)
		if err != nil {
			return Decision{}, err
		}
		msg, ok := resp.FirstMessage()
		if !ok {
			return Decision{}, types.NewError(types.ErrUpstreamError, "completion returned no choices")
		}

		if len(msg.ToolCalls) == 0 || round >= r.cfg.MaxToolRounds {
			return Decision{Text: msg.Content}, nil
		}

		if d, ok := r.handoffDecision(msg); ok {
			return d, nil
		}

		calls := ensureCallIDs(msg.ToolCalls)
		results := r.execute(ctx, def, calls)
		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: msg.Content, ToolCalls: calls})
		for _, res := range results {
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Name:       res.Name,
				ToolCallID: res.ToolCallID,
				Content:    res.Content(),
			})
		}
		r.logger.Debug("capability round completed",
			zap.String("agent", def.Name),
			zap.Int("round", round+1),
			zap.Int("calls", len(results)))
	}
}

// execute runs only the calls naming one of def's capabilities. Any other
// call is answered with an error payload and never reaches the executor.
func (r *LLMRunner) execute(ctx context.Context, def AgentDefinition, calls []llm.ToolCall) []tools.ToolResult {
	allowed := make(map[string]bool, len(def.Capabilities))
	for _, name := range def.Capabilities {
		allowed[name] = true
	}

	results := make([]tools.ToolResult, len(calls))
	var (
		permitted []llm.ToolCall
		index     []int
	)
	for i, call := range calls {
		if allowed[call.Name] {
			permitted = append(permitted, call)
			index = append(index, i)
			continue
		}
		r.logger.Warn("capability outside agent binding rejected",
			zap.String("agent", def.Name),
			zap.String("capability", call.Name))
		results[i] = tools.ToolResult{
			ToolCallID: call.ID,
			Name:       call.Name,
			Error:      fmt.Sprintf("capability %s is not available to agent %s", call.Name, def.Name),
		}
	}

	if len(permitted) > 0 {
		for j, res := range r.executor.Execute(ctx, permitted) {
			results[index[j]] = res
		}
	}
	return results
}

// handoffDecision returns the first handoff tool call, if any. Capability
// calls in the same message are ignored once a handoff is requested.
func (r *LLMRunner) handoffDecision(msg llm.Message) (Decision, bool) {
	for _, call := range msg.ToolCalls {
		if !strings.HasPrefix(call.Name, HandoffToolPrefix) {
			continue
		}
		var args handoffArgs
		if len(call.Arguments) > 0 {
			if err := json.Unmarshal(call.Arguments, &args); err != nil {
				r.logger.Debug("handoff arguments not decodable", zap.Error(err))
			}
		}
		return Decision{
			Target: strings.TrimPrefix(call.Name, HandoffToolPrefix),
			Note:   args.Note,
			Text:   msg.Content,
		}, true
	}
	return Decision{}, false
}

func (r *LLMRunner) toolsFor(wf *Workflow, def AgentDefinition) ([]llm.ToolSchema, error) {
	var out []llm.ToolSchema
	for _, target := range wf.HandoffTargets(def) {
		out = append(out, llm.ToolSchema{
			Name:        HandoffToolPrefix + target.Name,
			Description: fmt.Sprintf("Transfer the conversation to %s. %s", target.Name, target.Description),
			Parameters:  handoffParameters,
		})
	}
	if len(def.Capabilities) > 0 && r.registry != nil {
		schemas, err := r.registry.Schemas(def.Capabilities)
		if err != nil {
			return nil, err
		}
		out = append(out, schemas...)
	}
	return out, nil
}

// trim keeps the newest suffix of history that fits the token budget.
func (r *LLMRunner) trim(history types.Conversation) types.Conversation {
	if r.cfg.MaxHistoryTokens <= 0 || len(history) == 0 {
		return history
	}
	msgs := make([]tokenizer.Message, len(history))
	for i, m := range history {
		msgs[i] = tokenizer.Message{Role: string(m.Role), Content: m.Content}
	}
	kept, _, err := tokenizer.TrimToBudget(r.tokenizer, msgs, r.cfg.MaxHistoryTokens, false)
	if err != nil {
		r.logger.Warn("history trimming failed", zap.Error(err))
		return history
	}
	return history[len(history)-len(kept):]
}

func (r *LLMRunner) convert(history types.Conversation) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		msg := llm.Message{Role: llm.Role(m.Role), Content: m.Content}
		if m.Role == types.RoleAssistant {
			msg.Name = m.Name
		}
		out = append(out, msg)
	}
	return out
}

func ensureCallIDs(calls []llm.ToolCall) []llm.ToolCall {
	out := make([]llm.ToolCall, len(calls))
	for i, c := range calls {
		if c.ID == "" {
			c.ID = "call_" + uuid.NewString()
		}
		out[i] = c
	}
	return out
}

var _ AgentRunner = (*LLMRunner)(nil)

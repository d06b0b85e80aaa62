package metrics

import (
	"context"
	"time"

	"github.com/BaSui01/moneta/llm"
)

// InstrumentedProvider records request counts, latency and token usage
// for every completion made through the wrapped provider.
type InstrumentedProvider struct {
	llm.Provider
	collector *Collector
}

// InstrumentProvider wraps p. A nil collector returns p unchanged.
func (c *Collector) InstrumentProvider(p llm.Provider) llm.Provider {
	if c == nil {
		return p
	}
	return &InstrumentedProvider{Provider: p, collector: c}
}

// Completion forwards to the wrapped provider.
func (p *InstrumentedProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	start := time.Now()
	resp, err := p.Provider.Completion(ctx, req)

	model := req.Model
	status := "success"
	var prompt, completion int
	if err != nil {
		status = "error"
	} else if resp != nil {
		if resp.Model != "" {
			model = resp.Model
		}
		prompt, completion = resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	}
	p.collector.RecordLLMRequest(p.Name(), model, status, time.Since(start), prompt, completion)
	return resp, err
}

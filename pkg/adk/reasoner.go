package adk

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/user/sentinel-adk/pkg/engine"
	"github.com/user/sentinel-adk/pkg/logging"
)

// DefaultLLMCap bounds the findings accepted from one model response.
const DefaultLLMCap = 25

// Reasoner turns recon data into findings. Heuristics always run; the
// provider pass is added when a provider is configured.
type Reasoner struct {
	provider LLMProvider
	name     string
	cap      int
}

// NewReasoner returns a reasoner backed by provider. A nil provider gives a
// heuristics-only reasoner.
func NewReasoner(provider LLMProvider, name string) *Reasoner {
	return &Reasoner{provider: provider, name: name, cap: DefaultLLMCap}
}

// Reason returns heuristic findings followed by model findings. A provider
// failure is logged and leaves the heuristic findings in place.
func (r *Reasoner) Reason(ctx context.Context, data *engine.ReconData) ([]engine.Finding, error) {
	if data == nil {
		return nil, fmt.Errorf("no recon data")
	}
	findings := Heuristics(data)
	if r.provider == nil {
		return findings, nil
	}

	llm, err := r.ask(ctx, data)
	if err != nil {
		if ctx.Err() != nil {
			return findings, ctx.Err()
		}
		logging.L().Warnw("llm reasoning failed, using heuristics only", "provider", r.name, "error", err)
		return findings, nil
	}
	return append(findings, llm...), nil
}

func (r *Reasoner) ask(ctx context.Context, data *engine.ReconData) ([]engine.Finding, error) {
	msgs, err := BuildReasoningMessages(data)
	if err != nil {
		return nil, err
	}
	resp, err := r.provider.GenerateResponse(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.name, err)
	}
	return ParseFindings(resp, r.cap)
}

type llmFinding struct {
	Issue       string `json:"issue"`
	Category    string `json:"category"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Evidence    string `json:"evidence"`
	Remediation string `json:"remediation"`
}

// ParseFindings decodes a model response holding a JSON array of findings.
// Code fences and surrounding prose are tolerated. Entries without an issue
// title are dropped and at most limit findings are kept.
func ParseFindings(resp string, limit int) ([]engine.Finding, error) {
	start := strings.IndexByte(resp, '[')
	end := strings.LastIndexByte(resp, ']')
	if start < 0 || end < start {
		return nil, fmt.Errorf("response holds no JSON array")
	}
	var raw []llmFinding
	if err := json.Unmarshal([]byte(resp[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("decode findings: %w", err)
	}

	var out []engine.Finding
	for _, f := range raw {
		if limit > 0 && len(out) >= limit {
			break
		}
		if strings.TrimSpace(f.Issue) == "" {
			continue
		}
		sev, _ := engine.ParseSeverity(f.Severity)
		out = append(out, engine.Finding{
			ID:          fmt.Sprintf("LLM-%d", len(out)),
			Category:    engine.ParseCategory(f.Category),
			Issue:       strings.TrimSpace(f.Issue),
			Description: f.Description,
			Severity:    sev,
			Evidence:    f.Evidence,
			Remediation: f.Remediation,
			Source:      "llm",
		})
	}
	return out, nil
}

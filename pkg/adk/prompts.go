package adk

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/user/sentinel-adk/pkg/engine"
)

//go:embed prompts/reasoning_prompt.md
var reasoningPrompt string

// GetReasoningPrompt returns the system prompt used for vulnerability reasoning.
func GetReasoningPrompt() string {
	return reasoningPrompt
}

// maxPromptFile bounds each repository file quoted in the prompt.
const maxPromptFile = 8 << 10

// BuildReasoningMessages renders recon data into the conversation sent to
// the provider.
func BuildReasoningMessages(data *engine.ReconData) ([]Message, error) {
	trimmed := *data
	if len(data.Files) > 0 {
		trimmed.Files = make(map[string]string, len(data.Files))
		for k, v := range data.Files {
			if len(v) > maxPromptFile {
				v = v[:maxPromptFile] + "\n[truncated]"
			}
			trimmed.Files[k] = v
		}
	}
	doc, err := json.MarshalIndent(trimmed, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode recon data: %w", err)
	}
	return []Message{
		{Role: "system", Content: reasoningPrompt},
		{Role: "user", Content: fmt.Sprintf("Target type: %s\nRecon data:\n%s", data.Kind, doc)},
	}, nil
}

// Package adk talks to LLM providers and turns recon data into findings.
package adk

import (
	"context"
)

// Message represents a chat message
type Message struct {
	Role    string // "user", "model", "system"
	Content string
}

// LLMProvider defines the interface for different AI models
type LLMProvider interface {
	GenerateResponse(ctx context.Context, history []Message) (string, error)
	ListModels(ctx context.Context) ([]string, error)
}

// ProviderConfig selects a provider for reasoning. A config without an API
// key disables the LLM pass.
type ProviderConfig struct {
	Provider string
	APIKey   string
	Model    string
}

func (c *ProviderConfig) Enabled() bool {
	return c != nil && c.Provider != "" && c.APIKey != ""
}

// splitSystem separates system messages from the conversation.
func splitSystem(history []Message) (system string, rest []Message) {
	for _, m := range history {
		if m.Role == "system" {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}

package adk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/sentinel-adk/pkg/engine"
)

func issues(fs []engine.Finding) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Issue
	}
	return out
}

func TestWebHeuristics(t *testing.T) {
	data := &engine.ReconData{
		Kind:       engine.ReconWeb,
		Target:     "http://shop.example.com",
		StatusCode: 200,
		Headers: map[string]string{
			"Server":       "nginx/1.18.0",
			"X-Powered-By": "PHP/7.4",
		},
		Cookies:   []engine.CookieInfo{{Name: "session"}},
		Scripts:   []string{"/static/jquery-1.12.4.min.js", "/static/app.js"},
		Comments:  []string{"build 42", "TODO remove admin password"},
		Secrets:   []engine.SecretMatch{{Rule: "aws-access-key", Location: "body", Redacted: "AKIA****"}},
		OpenPorts: []engine.PortInfo{{Host: "shop.example.com", Port: "6379", Protocol: "tcp", Service: "redis"}, {Port: "443", Protocol: "tcp"}},
	}

	fs := Heuristics(data)
	got := issues(fs)

	assert.Contains(t, got, "Unencrypted HTTP Transport")
	assert.Contains(t, got, "Missing Content-Security-Policy")
	assert.Contains(t, got, "Missing Clickjacking Protection")
	assert.Contains(t, got, "Missing X-Content-Type-Options")
	assert.NotContains(t, got, "Missing HSTS Header", "HSTS only applies to https targets")
	assert.Contains(t, got, "Server Version Disclosure")
	assert.Contains(t, got, "Technology Disclosure via X-Powered-By")
	assert.Contains(t, got, "Insecure Cookie: session")
	assert.Contains(t, got, "Exposed Secret in Page Source: aws-access-key")
	assert.Contains(t, got, "Outdated jQuery 1.12.4")
	assert.Contains(t, got, "Sensitive HTML Comment")
	assert.Contains(t, got, "Exposed Redis Service")

	for i, f := range fs {
		assert.Equal(t, "heuristics", f.Source)
		assert.Equal(t, fmt.Sprintf("HEUR-%d", i), f.ID)
		assert.NotEmpty(t, f.Remediation)
	}

	for _, f := range fs {
		if strings.HasPrefix(f.Issue, "Exposed Secret") {
			assert.Equal(t, engine.SeverityCritical, f.Severity)
			assert.Equal(t, engine.CategoryAuthFailures, f.Category)
		}
	}
}

func TestWebHeuristicsHardenedSite(t *testing.T) {
	data := &engine.ReconData{
		Kind:   engine.ReconWeb,
		Target: "https://secure.example.com",
		Headers: map[string]string{
			"strict-transport-security": "max-age=31536000",
			"content-security-policy":   "default-src 'self'; frame-ancestors 'none'",
			"x-content-type-options":    "nosniff",
			"server":                    "nginx",
		},
		Cookies: []engine.CookieInfo{{Name: "sid", Secure: true, HTTPOnly: true, SameSite: "Lax"}},
	}
	assert.Empty(t, Heuristics(data))
}

func TestRepoHeuristics(t *testing.T) {
	data := &engine.ReconData{
		Kind:   engine.ReconRepo,
		Target: "https://github.com/acme/app",
		Files: map[string]string{
			".env":                          "DB_PASSWORD=hunter2\n",
			"Dockerfile":                    "FROM node:latest\nCOPY . /app\nCMD [\"node\", \"app.js\"]\n",
			"package.json":                  `{"dependencies":{"express":"^4.18.0","lodash":"*"},"devDependencies":{"jest":"latest"}}`,
			"requirements.txt":              "# pinned\nflask==2.0.1\nrequests\n",
			"docker-compose.yml":            "services:\n  app:\n    image: app\n    privileged: true\n",
			".github/workflows/ci.yml":      "name: ci\non:\n  pull_request_target:\n    types: [opened]\n",
			".github/workflows/release.yml": "on: push\n",
		},
		Secrets: []engine.SecretMatch{{Rule: "github-token", Location: "config.js", Redacted: "ghp_****"}},
	}

	fs := Heuristics(data)
	byIssue := make(map[string]engine.Finding, len(fs))
	for _, f := range fs {
		byIssue[f.Issue] = f
	}

	require.Contains(t, byIssue, "Committed Environment File")
	require.Contains(t, byIssue, "Container Runs as Root")
	require.Contains(t, byIssue, "Unpinned Base Image")
	assert.Equal(t, "File: Dockerfile:1\nImage: node:latest", byIssue["Unpinned Base Image"].Evidence)

	require.Contains(t, byIssue, "Unpinned Dependency Versions")
	assert.Contains(t, byIssue["Unpinned Dependency Versions"].Evidence, "jest, lodash")
	assert.NotContains(t, byIssue["Unpinned Dependency Versions"].Evidence, "express")

	require.Contains(t, byIssue, "Unpinned Python Requirements")
	assert.Contains(t, byIssue["Unpinned Python Requirements"].Evidence, "requests")
	assert.NotContains(t, byIssue["Unpinned Python Requirements"].Evidence, "flask")

	require.Contains(t, byIssue, "Privileged Container in Compose File")
	assert.Equal(t, "File: docker-compose.yml:4", byIssue["Privileged Container in Compose File"].Evidence)

	wf := byIssue["Workflow Triggered by pull_request_target"]
	assert.Equal(t, "File: .github/workflows/ci.yml:3", wf.Evidence)
	assert.Equal(t, engine.CategorySoftwareIntegrity, wf.Category)

	secret := byIssue["Hardcoded Secret in Repository: github-token"]
	assert.Equal(t, engine.SeverityHigh, secret.Severity)
}

func TestRepoHeuristicsPinnedDockerfile(t *testing.T) {
	data := &engine.ReconData{
		Kind: engine.ReconRepo,
		Files: map[string]string{
			"Dockerfile": "FROM golang:1.22 AS build\nFROM gcr.io/distroless/static@sha256:abc\nUSER nonroot\n",
		},
	}
	assert.Empty(t, Heuristics(data))
}

type fakeProvider struct {
	resp string
	err  error
	got  []Message
}

func (f *fakeProvider) GenerateResponse(_ context.Context, history []Message) (string, error) {
	f.got = history
	return f.resp, f.err
}

func (f *fakeProvider) ListModels(context.Context) ([]string, error) { return []string{"fake"}, nil }

func TestReasonerHeuristicsOnly(t *testing.T) {
	r := NewReasoner(nil, "")
	fs, err := r.Reason(context.Background(), &engine.ReconData{Kind: engine.ReconWeb, Target: "http://a.example"})
	require.NoError(t, err)
	require.NotEmpty(t, fs)
	for _, f := range fs {
		assert.Equal(t, "heuristics", f.Source)
	}

	_, err = r.Reason(context.Background(), nil)
	assert.Error(t, err)
}

func TestReasonerMergesProviderFindings(t *testing.T) {
	p := &fakeProvider{resp: "Here you go:\n```json\n" + `[
		{"issue":"SQL Injection in search","category":"A03:2021 - Injection","severity":"critical","description":"d","evidence":"q param","remediation":"use prepared statements"},
		{"issue":"","category":"A01","severity":"High"},
		{"issue":"Weird","category":"nonsense","severity":"extreme"}
	]` + "\n```"}
	r := NewReasoner(p, "openai")

	data := &engine.ReconData{
		Kind:   engine.ReconWeb,
		Target: "https://a.example",
		Headers: map[string]string{
			"Strict-Transport-Security": "max-age=1",
			"Content-Security-Policy":   "frame-ancestors 'none'",
			"X-Content-Type-Options":    "nosniff",
		},
	}
	fs, err := r.Reason(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, fs, 2)

	assert.Equal(t, "LLM-0", fs[0].ID)
	assert.Equal(t, "llm", fs[0].Source)
	assert.Equal(t, engine.CategoryInjection, fs[0].Category)
	assert.Equal(t, engine.SeverityCritical, fs[0].Severity)

	assert.Equal(t, "LLM-1", fs[1].ID)
	assert.Equal(t, engine.CategoryMisconfiguration, fs[1].Category)
	assert.Equal(t, engine.SeverityMedium, fs[1].Severity)

	require.Len(t, p.got, 2)
	assert.Equal(t, "system", p.got[0].Role)
	assert.Contains(t, p.got[1].Content, "Target type: web")
}

func TestReasonerProviderFailureFallsBack(t *testing.T) {
	data := &engine.ReconData{Kind: engine.ReconWeb, Target: "http://a.example"}
	want := Heuristics(data)

	for _, p := range []*fakeProvider{
		{err: errors.New("quota exceeded")},
		{resp: "I could not find anything."},
		{resp: "[{not json}]"},
	} {
		fs, err := NewReasoner(p, "gemini").Reason(context.Background(), data)
		require.NoError(t, err)
		assert.Equal(t, want, fs)
	}
}

func TestParseFindingsCap(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < 40; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"issue":"x","severity":"Low"}`)
	}
	sb.WriteString("]")
	fs, err := ParseFindings(sb.String(), DefaultLLMCap)
	require.NoError(t, err)
	assert.Len(t, fs, DefaultLLMCap)
}

func TestBuildReasoningMessagesTruncatesFiles(t *testing.T) {
	data := &engine.ReconData{
		Kind:  engine.ReconRepo,
		Files: map[string]string{"big.js": strings.Repeat("a", maxPromptFile+100)},
	}
	msgs, err := BuildReasoningMessages(data)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, GetReasoningPrompt(), msgs[0].Content)
	assert.Contains(t, msgs[1].Content, "[truncated]")
	assert.Len(t, data.Files["big.js"], maxPromptFile+100, "input must not be modified")
}

func TestOpenAIProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/chat/completions":
			var body struct {
				Model    string `json:"model"`
				Messages []struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"messages"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "gpt-4o-mini", body.Model)
			require.Len(t, body.Messages, 3)
			assert.Equal(t, "assistant", body.Messages[2].Role)
			_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"[]"}}]}`))
		case "/models":
			_, _ = w.Write([]byte(`{"data":[{"id":"gpt-4o"},{"id":"dall-e-3"},{"id":"o3-mini"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", "")
	p.BaseURL = srv.URL

	out, err := p.GenerateResponse(context.Background(), []Message{
		{Role: "system", Content: "s"},
		{Role: "user", Content: "u"},
		{Role: "model", Content: "m"},
	})
	require.NoError(t, err)
	assert.Equal(t, "[]", out)

	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-4o", "o3-mini"}, models)
}

func TestOpenAIProviderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("bad", "gpt-4o")
	p.BaseURL = srv.URL
	_, err := p.GenerateResponse(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestAnthropicProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "be precise", body["system"])
		msgs, _ := body["messages"].([]interface{})
		assert.Len(t, msgs, 1)
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"[{\"issue\":"},{"type":"text","text":"\"x\"}]"}]}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider("key", "")
	p.BaseURL = srv.URL
	out, err := p.GenerateResponse(context.Background(), []Message{
		{Role: "system", Content: "be precise"},
		{Role: "user", Content: "scan"},
	})
	require.NoError(t, err)
	assert.Equal(t, `[{"issue":"x"}]`, out)

	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	assert.Contains(t, models, "claude-sonnet-4-5")
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider(context.Background(), "mystery", "k", "")
	assert.Error(t, err)

	p, err := NewProvider(context.Background(), "anthropic", "k", "")
	require.NoError(t, err)
	assert.IsType(t, &AnthropicProvider{}, p)
}

func TestProviderConfigEnabled(t *testing.T) {
	var nilCfg *ProviderConfig
	assert.False(t, nilCfg.Enabled())
	assert.False(t, (&ProviderConfig{Provider: "openai"}).Enabled())
	assert.True(t, (&ProviderConfig{Provider: "openai", APIKey: "k"}).Enabled())
}

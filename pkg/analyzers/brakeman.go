package analyzers

import (
	"encoding/json"
	"fmt"

	"github.com/user/sentinel-adk/pkg/engine"
)

type brakemanOutput struct {
	Warnings []struct {
		WarningType string `json:"warning_type"`
		Message     string `json:"message"`
		File        string `json:"file"`
		Line        *int   `json:"line"`
		Code        string `json:"code"`
		UserInput   string `json:"user_input"`
		Link        string `json:"link"`
		Confidence  string `json:"confidence"`
	} `json:"warnings"`
}

// Brakeman grades warnings by confidence rather than severity.
var brakemanSeverity = SeverityTable{
	"HIGH":   engine.SeverityCritical,
	"MEDIUM": engine.SeverityHigh,
	"WEAK":   engine.SeverityMedium,
}

var brakemanCategories = CategoryTable{
	Keywords: []CategoryRule{
		{"sql", engine.CategoryInjection},
		{"injection", engine.CategoryInjection},
		{"command", engine.CategoryInjection},
		{"xss", engine.CategoryInjection},
		{"cross-site scripting", engine.CategoryInjection},
		{"mass assignment", engine.CategoryBrokenAccessControl},
		{"attr", engine.CategoryBrokenAccessControl},
		{"csrf", engine.CategoryBrokenAccessControl},
		{"forgery", engine.CategoryBrokenAccessControl},
		{"redirect", engine.CategoryBrokenAccessControl},
		{"session", engine.CategoryAuthFailures},
		{"cookie", engine.CategoryAuthFailures},
		{"file", engine.CategoryBrokenAccessControl},
		{"path", engine.CategoryBrokenAccessControl},
	},
}

func newBrakeman(exec Executor) *Tool {
	return &Tool{
		ToolName:     "brakeman",
		IDPrefix:     "BRAKEMAN",
		ProbeCommand: "brakeman",
		Extensions:   []string{".rb", ".erb"},
		Command:      "brakeman",
		Args: func(target, _ string) []string {
			return []string{"-p", target, "-f", "json", "--no-pager", "-q", "--force"}
		},
		Parse:      parseBrakeman,
		Severity:   brakemanSeverity,
		Categories: brakemanCategories,
		exec:       exec,
	}
}

func parseBrakeman(raw json.RawMessage, c *Collector) error {
	var doc brakemanOutput
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	for _, w := range doc.Warnings {
		line := 0
		if w.Line != nil {
			line = *w.Line
		}
		if !c.Add(engine.Finding{
			Category:    c.Category(w.WarningType),
			Issue:       fmt.Sprintf("%s: %s", w.WarningType, truncate(firstNonEmpty(w.Message, "Rails security issue"), 80)),
			Description: firstNonEmpty(w.Message, "Security issue detected in Rails application."),
			Severity:    c.Severity(w.Confidence),
			Evidence:    Evidence(w.File, line, "Code", w.Code, "User Input", w.UserInput),
			Remediation: firstNonEmpty(w.Link, "Follow Rails security best practices (guides.rubyonrails.org/security.html)."),
		}) {
			break
		}
	}
	return nil
}

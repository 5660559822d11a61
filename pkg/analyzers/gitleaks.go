package analyzers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/user/sentinel-adk/pkg/engine"
)

type gitleaksFinding struct {
	Description string `json:"Description"`
	File        string `json:"File"`
	StartLine   int    `json:"StartLine"`
	Secret      string `json:"Secret"`
	RuleID      string `json:"RuleID"`
	Match       string `json:"Match"`
}

// Every leaked credential is Critical except the noisy generic rule.
var gitleaksSeverity = SeverityTable{
	"SECRET":          engine.SeverityCritical,
	"GENERIC-API-KEY": engine.SeverityHigh,
}

var secretCategories = CategoryTable{Default: engine.CategoryAuthFailures}

func newGitleaks(exec Executor) *Tool {
	return &Tool{
		ToolName:     "gitleaks",
		IDPrefix:     "GITLEAKS",
		ProbeCommand: "gitleaks",
		Command:      "gitleaks",
		ReportFile:   true,
		Args: func(target, reportPath string) []string {
			return []string{"detect", "--source", target, "--no-git", "--report-format", "json", "--report-path", reportPath, "--exit-code", "0"}
		},
		Parse:      parseGitleaks,
		Severity:   gitleaksSeverity,
		Categories: secretCategories,
		exec:       exec,
	}
}

func parseGitleaks(raw json.RawMessage, c *Collector) error {
	var leaks []gitleaksFinding
	if err := json.Unmarshal(raw, &leaks); err != nil {
		return err
	}
	for _, gl := range leaks {
		match := gl.Match
		if gl.Secret != "" {
			match = strings.ReplaceAll(match, gl.Secret, engine.Redact(gl.Secret))
		}
		sev := c.Severity(gl.RuleID)
		if _, known := gitleaksSeverity[strings.ToUpper(gl.RuleID)]; !known {
			sev = c.Severity("secret")
		}
		if !c.Add(engine.Finding{
			Category:    c.Category(gl.RuleID),
			Issue:       "Hardcoded Secret: " + firstNonEmpty(gl.Description, gl.RuleID),
			Description: fmt.Sprintf("Gitleaks rule %s matched a credential in the working tree.", gl.RuleID),
			Severity:    sev,
			Evidence:    Evidence(gl.File, gl.StartLine, "Rule", gl.RuleID, "Match", match),
			Remediation: "Revoke the secret immediately and remove it from git history.",
		}) {
			break
		}
	}
	return nil
}

package analyzers

import (
	"encoding/json"

	"github.com/user/sentinel-adk/pkg/engine"
)

type banditOutput struct {
	Results []struct {
		TestID        string `json:"test_id"`
		TestName      string `json:"test_name"`
		IssueText     string `json:"issue_text"`
		IssueSeverity string `json:"issue_severity"`
		Filename      string `json:"filename"`
		LineNumber    int    `json:"line_number"`
		Code          string `json:"code"`
		MoreInfo      string `json:"more_info"`
	} `json:"results"`
}

var banditSeverity = SeverityTable{
	"HIGH":   engine.SeverityHigh,
	"MEDIUM": engine.SeverityMedium,
	"LOW":    engine.SeverityLow,
}

// Bandit groups its test ids by hundreds.
var banditCategories = CategoryTable{
	Prefixes: []CategoryRule{
		{"B1", engine.CategoryInjection},
		{"B3", engine.CategoryCryptoFailures},
		{"B5", engine.CategoryMisconfiguration},
		{"B6", engine.CategoryBrokenAccessControl},
		{"B7", engine.CategoryInjection},
	},
}

func newBandit(exec Executor) *Tool {
	return &Tool{
		ToolName:     "bandit",
		IDPrefix:     "BANDIT",
		ProbeCommand: "bandit",
		Extensions:   []string{".py"},
		Command:      "bandit",
		Args: func(target, _ string) []string {
			return []string{"-r", target, "-f", "json", "-ll", "--quiet"}
		},
		Parse:      parseBandit,
		Severity:   banditSeverity,
		Categories: banditCategories,
		exec:       exec,
	}
}

func parseBandit(raw json.RawMessage, c *Collector) error {
	var doc banditOutput
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	for _, r := range doc.Results {
		if !c.Add(engine.Finding{
			Category:    c.Category(r.TestID),
			Issue:       firstNonEmpty(r.TestName, r.IssueText),
			Description: firstNonEmpty(r.IssueText, "Security issue detected by Bandit"),
			Severity:    c.Severity(r.IssueSeverity),
			Evidence:    Evidence(r.Filename, r.LineNumber, "Code", truncate(r.Code, 200)),
			Remediation: firstNonEmpty(r.MoreInfo, "Review and fix the identified security issue."),
		}) {
			break
		}
	}
	return nil
}

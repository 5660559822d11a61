package analyzers

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/user/sentinel-adk/pkg/engine"
)

type gosecOutput struct {
	Issues []struct {
		Severity   string `json:"severity"`
		Confidence string `json:"confidence"`
		CWE        *struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		} `json:"cwe"`
		RuleID  string `json:"rule_id"`
		Details string `json:"details"`
		File    string `json:"file"`
		Code    string `json:"code"`
		Line    string `json:"line"` // "12" or "12-14"
	} `json:"Issues"`
}

var gosecSeverity = SeverityTable{
	"HIGH":   engine.SeverityHigh,
	"MEDIUM": engine.SeverityMedium,
	"LOW":    engine.SeverityLow,
}

// gosec rule families: G1 general, G2 injection, G3 filesystem, G4 crypto,
// G5 blocklisted crypto imports, G6 memory.
var gosecCategories = CategoryTable{
	Prefixes: []CategoryRule{
		{"G101", engine.CategoryAuthFailures},
		{"G1", engine.CategoryMisconfiguration},
		{"G2", engine.CategoryInjection},
		{"G3", engine.CategoryBrokenAccessControl},
		{"G4", engine.CategoryCryptoFailures},
		{"G5", engine.CategoryCryptoFailures},
	},
}

func newGosec(exec Executor) *Tool {
	return &Tool{
		ToolName:     "gosec",
		IDPrefix:     "GOSEC",
		ProbeCommand: "gosec",
		Extensions:   []string{".go"},
		Command:      "gosec",
		Args: func(_, _ string) []string {
			return []string{"-fmt=json", "-quiet", "./..."}
		},
		Parse:      parseGosec,
		Severity:   gosecSeverity,
		Categories: gosecCategories,
		exec:       exec,
	}
}

func parseGosec(raw json.RawMessage, c *Collector) error {
	var doc gosecOutput
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	for _, issue := range doc.Issues {
		remediation := "Review and fix the identified security pattern."
		if issue.CWE != nil && issue.CWE.ID != "" {
			remediation = fmt.Sprintf("CWE-%s: %s", issue.CWE.ID, firstNonEmpty(issue.CWE.URL, "Review Go security practices."))
		}
		if !c.Add(engine.Finding{
			Category:    c.Category(issue.RuleID),
			Issue:       firstNonEmpty(issue.Details, "Go security issue"),
			Description: fmt.Sprintf("%s (Confidence: %s)", firstNonEmpty(issue.Details, "Security issue detected"), firstNonEmpty(issue.Confidence, "unknown")),
			Severity:    c.Severity(issue.Severity),
			Evidence:    Evidence(issue.File, leadingInt(issue.Line), "Rule", issue.RuleID, "Code", truncate(issue.Code, 200)),
			Remediation: remediation,
		}) {
			break
		}
	}
	return nil
}

// leadingInt parses the digits at the start of s, so "12-14" yields 12.
func leadingInt(s string) int {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(s[:end])
	return n
}

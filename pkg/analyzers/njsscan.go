package analyzers

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/user/sentinel-adk/pkg/engine"
)

type njsscanRule struct {
	Metadata struct {
		Description string `json:"description"`
		Severity    string `json:"severity"`
		OWASP       string `json:"owasp"`
		OWASPWeb    string `json:"owasp-web"`
		CWE         string `json:"cwe"`
	} `json:"metadata"`
	Files []struct {
		FilePath      string `json:"file_path"`
		MatchPosition []int  `json:"match_position"`
		MatchLines    []int  `json:"match_lines"`
	} `json:"files"`
}

var njsscanSeverity = SeverityTable{
	"ERROR":   engine.SeverityCritical,
	"WARNING": engine.SeverityHigh,
	"INFO":    engine.SeverityMedium,
}

// njsscan tags rules with 2017 style OWASP codes (a1..a10).
var njsscanCategories = CategoryTable{
	Prefixes: []CategoryRule{
		{"A10", engine.CategoryMisconfiguration},
		{"A1", engine.CategoryInjection},
		{"A2", engine.CategoryAuthFailures},
		{"A3", engine.CategoryCryptoFailures},
		{"A4", engine.CategoryMisconfiguration},
		{"A5", engine.CategoryBrokenAccessControl},
		{"A6", engine.CategoryMisconfiguration},
		{"A7", engine.CategoryInjection},
		{"A8", engine.CategorySoftwareIntegrity},
		{"A9", engine.CategoryVulnerableComponents},
	},
	Keywords: []CategoryRule{
		{"injection", engine.CategoryInjection},
		{"xss", engine.CategoryInjection},
		{"auth", engine.CategoryAuthFailures},
		{"crypto", engine.CategoryCryptoFailures},
		{"misconfig", engine.CategoryMisconfiguration},
	},
}

func newNjsscan(exec Executor) *Tool {
	return &Tool{
		ToolName:     "njsscan",
		IDPrefix:     "NJSSCAN",
		ProbeCommand: "njsscan",
		Extensions:   []string{".js", ".ts", ".jsx", ".tsx", ".mjs"},
		Command:      "njsscan",
		Args: func(target, _ string) []string {
			return []string{"--json", target}
		},
		Parse:      parseNjsscan,
		Severity:   njsscanSeverity,
		Categories: njsscanCategories,
		exec:       exec,
	}
}

func parseNjsscan(raw json.RawMessage, c *Collector) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}

	groups := make([]string, 0, len(doc))
	for g := range doc {
		if g == "errors" || g == "njsscan_version" {
			continue
		}
		groups = append(groups, g)
	}
	sort.Strings(groups)

	for _, group := range groups {
		var rules map[string]njsscanRule
		if err := json.Unmarshal(doc[group], &rules); err != nil {
			return fmt.Errorf("group %s: %w", group, err)
		}
		ids := make([]string, 0, len(rules))
		for id := range rules {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			rule := rules[id]
			md := rule.Metadata

			locs := make([]string, 0, 3)
			for i, f := range rule.Files {
				if i == 3 {
					break
				}
				line := "?"
				if len(f.MatchLines) > 0 {
					line = fmt.Sprint(f.MatchLines[0])
				}
				locs = append(locs, f.FilePath+":"+line)
			}

			if !c.Add(engine.Finding{
				Category:    c.Category(firstNonEmpty(md.OWASPWeb, md.OWASP, group)),
				Issue:       firstNonEmpty(md.Description, id),
				Description: fmt.Sprintf("%s (Severity: %s)", firstNonEmpty(md.Description, "Security issue detected"), firstNonEmpty(md.Severity, "unknown")),
				Severity:    c.Severity(md.Severity),
				Evidence:    fmt.Sprintf("Rule: %s\nFiles:\n%s", id, orNA(strings.Join(locs, "\n"))),
				Remediation: firstNonEmpty(md.CWE, "Follow secure coding practices for Node.js applications."),
			}) {
				return nil
			}
		}
	}
	return nil
}

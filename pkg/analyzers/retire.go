package analyzers

import (
	"encoding/json"
	"fmt"

	"github.com/user/sentinel-adk/pkg/engine"
)

// RetireCap is lower than DefaultCap; one vulnerable bundle repeats the
// same advisory many times.
const RetireCap = 15

type retireEntry struct {
	File    string `json:"file"`
	Results []struct {
		Component       string `json:"component"`
		Version         string `json:"version"`
		Vulnerabilities []struct {
			Severity    string   `json:"severity"`
			Info        []string `json:"info"`
			Identifiers struct {
				CVE     []string `json:"CVE"`
				Summary string   `json:"summary"`
			} `json:"identifiers"`
		} `json:"vulnerabilities"`
	} `json:"results"`
}

var retireSeverity = SeverityTable{
	"CRITICAL": engine.SeverityCritical,
	"HIGH":     engine.SeverityHigh,
	"MEDIUM":   engine.SeverityMedium,
	"LOW":      engine.SeverityLow,
}

func newRetire(exec Executor) *Tool {
	return &Tool{
		ToolName:        "retire.js",
		IDPrefix:        "RETIRE",
		AlwaysAvailable: true,
		Extensions:      []string{".js", ".mjs", ".cjs"},
		Markers:         []string{"package.json"},
		Command:         "npx",
		Args: func(target, _ string) []string {
			return []string{"-y", "retire", "--path", target, "--outputformat", "json", "--exitwith", "0"}
		},
		Parse:      parseRetire,
		Severity:   retireSeverity,
		Categories: dependencyCategories,
		Cap:        RetireCap,
		exec:       exec,
	}
}

// parseRetire accepts both the bare array of older releases and the
// {"data": [...]} envelope of retire 4.
func parseRetire(raw json.RawMessage, c *Collector) error {
	var entries []retireEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		var envelope struct {
			Data []retireEntry `json:"data"`
		}
		if err2 := json.Unmarshal(raw, &envelope); err2 != nil {
			return err
		}
		entries = envelope.Data
	}

	for _, entry := range entries {
		for _, lib := range entry.Results {
			for _, vuln := range lib.Vulnerabilities {
				info := ""
				if len(vuln.Info) > 0 {
					info = vuln.Info[0]
				}
				advisory := vuln.Identifiers.Summary
				if len(vuln.Identifiers.CVE) > 0 {
					advisory = vuln.Identifiers.CVE[0]
				}
				if !c.Add(engine.Finding{
					Category:    c.Category(lib.Component),
					Issue:       fmt.Sprintf("Vulnerable Library: %s@%s", lib.Component, lib.Version),
					Description: fmt.Sprintf("%s found in %s version %s.", firstNonEmpty(info, "Known vulnerability"), lib.Component, lib.Version),
					Severity:    c.Severity(vuln.Severity),
					Evidence:    fmt.Sprintf("Component: %s@%s\nFile: %s\nCVE/Advisory: %s", lib.Component, lib.Version, orNA(entry.File), orNA(advisory)),
					Remediation: fmt.Sprintf("Upgrade %s to a patched version. %s", lib.Component, info),
				}) {
					return nil
				}
			}
		}
	}
	return nil
}

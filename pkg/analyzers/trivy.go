package analyzers

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/user/sentinel-adk/pkg/engine"
)

type trivyOutput struct {
	Results []struct {
		Target          string `json:"Target"`
		Vulnerabilities []struct {
			VulnerabilityID  string `json:"VulnerabilityID"`
			PkgName          string `json:"PkgName"`
			InstalledVersion string `json:"InstalledVersion"`
			FixedVersion     string `json:"FixedVersion"`
			Title            string `json:"Title"`
			Severity         string `json:"Severity"`
			PrimaryURL       string `json:"PrimaryURL"`
		} `json:"Vulnerabilities"`
		Misconfigurations []struct {
			ID            string `json:"ID"`
			Title         string `json:"Title"`
			Description   string `json:"Description"`
			Resolution    string `json:"Resolution"`
			Severity      string `json:"Severity"`
			CauseMetadata struct {
				StartLine int `json:"StartLine"`
			} `json:"CauseMetadata"`
		} `json:"Misconfigurations"`
		Secrets []struct {
			RuleID    string `json:"RuleID"`
			Title     string `json:"Title"`
			Severity  string `json:"Severity"`
			StartLine int    `json:"StartLine"`
		} `json:"Secrets"`
	} `json:"Results"`
}

var trivySeverity = SeverityTable{
	"CRITICAL": engine.SeverityCritical,
	"HIGH":     engine.SeverityHigh,
	"MEDIUM":   engine.SeverityMedium,
	"LOW":      engine.SeverityLow,
}

// Trivy reports three result classes; the class decides the category.
var trivyCategories = CategoryTable{
	Prefixes: []CategoryRule{
		{"VULN", engine.CategoryVulnerableComponents},
		{"SECRET", engine.CategoryAuthFailures},
		{"MISCONFIG", engine.CategoryMisconfiguration},
	},
}

func newTrivy(exec Executor) *Tool {
	return &Tool{
		ToolName:     "trivy",
		IDPrefix:     "TRIVY",
		ProbeCommand: "trivy",
		Command:      "trivy",
		Args: func(target, _ string) []string {
			return []string{"fs", "--scanners", "vuln,misconfig,secret", "--format", "json", "--quiet", target}
		},
		Parse:      parseTrivy,
		Severity:   trivySeverity,
		Categories: trivyCategories,
		exec:       exec,
	}
}

func parseTrivy(raw json.RawMessage, c *Collector) error {
	var doc trivyOutput
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	for _, r := range doc.Results {
		target := filepath.ToSlash(r.Target)
		for _, v := range r.Vulnerabilities {
			remediation := fmt.Sprintf("No fixed release of %s is published yet; consider replacing it.", v.PkgName)
			if v.FixedVersion != "" {
				remediation = fmt.Sprintf("Upgrade %s to %s.", v.PkgName, v.FixedVersion)
			}
			if !c.Add(engine.Finding{
				Category:    c.Category("VULN"),
				Issue:       fmt.Sprintf("Vulnerable Dependency: %s@%s", v.PkgName, v.InstalledVersion),
				Description: fmt.Sprintf("%s: %s", v.VulnerabilityID, firstNonEmpty(v.Title, "Known vulnerability")),
				Severity:    c.Severity(v.Severity),
				Evidence:    Evidence(target, 0, "Advisory", v.VulnerabilityID, "Reference", v.PrimaryURL),
				Remediation: remediation,
			}) {
				return nil
			}
		}
		for _, m := range r.Misconfigurations {
			if !c.Add(engine.Finding{
				Category:    c.Category("MISCONFIG"),
				Issue:       firstNonEmpty(m.Title, m.ID),
				Description: firstNonEmpty(m.Description, m.Title),
				Severity:    c.Severity(m.Severity),
				Evidence:    Evidence(target, m.CauseMetadata.StartLine, "Rule", m.ID),
				Remediation: firstNonEmpty(m.Resolution, "Harden the configuration."),
			}) {
				return nil
			}
		}
		for _, s := range r.Secrets {
			if !c.Add(engine.Finding{
				Category:    c.Category("SECRET"),
				Issue:       "Hardcoded Secret: " + firstNonEmpty(s.Title, s.RuleID),
				Description: fmt.Sprintf("Secret matching rule %s committed to the repository.", s.RuleID),
				Severity:    c.Severity(s.Severity),
				Evidence:    Evidence(target, s.StartLine, "Rule", s.RuleID),
				Remediation: "Revoke the secret, rotate it and remove it from history.",
			}) {
				return nil
			}
		}
	}
	return nil
}

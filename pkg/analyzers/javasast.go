package analyzers

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/user/sentinel-adk/pkg/engine"
)

type pmdOutput struct {
	Files []struct {
		Filename   string `json:"filename"`
		Violations []struct {
			BeginLine       int    `json:"beginline"`
			Description     string `json:"description"`
			Rule            string `json:"rule"`
			RuleSet         string `json:"ruleset"`
			Priority        int    `json:"priority"`
			ExternalInfoURL string `json:"externalInfoUrl"`
		} `json:"violations"`
	} `json:"files"`
}

// PMD priorities run from 1 (blocker) to 5 (info).
var pmdSeverity = SeverityTable{
	"1": engine.SeverityCritical,
	"2": engine.SeverityHigh,
	"3": engine.SeverityMedium,
	"4": engine.SeverityLow,
	"5": engine.SeverityLow,
}

var pmdCategories = CategoryTable{
	Keywords: []CategoryRule{
		{"sql", engine.CategoryInjection},
		{"injection", engine.CategoryInjection},
		{"xss", engine.CategoryInjection},
		{"script", engine.CategoryInjection},
		{"crypto", engine.CategoryCryptoFailures},
		{"cipher", engine.CategoryCryptoFailures},
		{"hash", engine.CategoryCryptoFailures},
		{"auth", engine.CategoryAuthFailures},
		{"password", engine.CategoryAuthFailures},
		{"serial", engine.CategorySoftwareIntegrity},
	},
}

var pmdSecurityWords = []string{"sql", "injection", "xss", "crypto", "security", "password", "hard"}

func newJavaSAST(exec Executor) *Tool {
	return &Tool{
		ToolName:        "java-sast",
		IDPrefix:        "JAVA",
		AlwaysAvailable: true,
		Extensions:      []string{".java", ".kt"},
		Command:         "npx",
		Args: func(target, _ string) []string {
			return []string{"-y", "pmd", "check", "-d", target, "-R", "rulesets/java/quickstart.xml", "-f", "json", "--no-progress"}
		},
		Parse:      parsePMD,
		Severity:   pmdSeverity,
		Categories: pmdCategories,
		exec:       exec,
	}
}

// parsePMD keeps security-flavoured rules and anything of priority 2 or
// higher.
func parsePMD(raw json.RawMessage, c *Collector) error {
	var doc pmdOutput
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	for _, file := range doc.Files {
		for _, v := range file.Violations {
			if !pmdSecurityRelevant(v.Rule) && (v.Priority == 0 || v.Priority > 2) {
				continue
			}
			if !c.Add(engine.Finding{
				Category:    c.Category(v.Rule),
				Issue:       firstNonEmpty(v.Rule, "Java Security Issue"),
				Description: firstNonEmpty(strings.TrimSpace(v.Description), "Potential security issue in Java source code."),
				Severity:    c.Severity(strconv.Itoa(v.Priority)),
				Evidence:    Evidence(file.Filename, v.BeginLine, "Rule", orNA(v.RuleSet)+" > "+orNA(v.Rule)),
				Remediation: firstNonEmpty(v.ExternalInfoURL, "Follow Java secure coding guidelines (OWASP Java)."),
			}) {
				return nil
			}
		}
	}
	return nil
}

func pmdSecurityRelevant(rule string) bool {
	r := strings.ToLower(rule)
	for _, w := range pmdSecurityWords {
		if strings.Contains(r, w) {
			return true
		}
	}
	return false
}

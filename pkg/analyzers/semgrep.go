package analyzers

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/user/sentinel-adk/pkg/engine"
)

type semgrepOutput struct {
	Results []struct {
		CheckID string `json:"check_id"`
		Path    string `json:"path"`
		Start   struct {
			Line int `json:"line"`
		} `json:"start"`
		Extra struct {
			Message  string `json:"message"`
			Severity string `json:"severity"` // INFO|WARNING|ERROR
			Lines    string `json:"lines"`
			Metadata struct {
				OWASP      interface{} `json:"owasp"` // string | []string
				CWE        interface{} `json:"cwe"`
				References []string    `json:"references"`
			} `json:"metadata"`
		} `json:"extra"`
	} `json:"results"`
}

var semgrepSeverity = SeverityTable{
	"ERROR":   engine.SeverityHigh,
	"WARNING": engine.SeverityMedium,
	"INFO":    engine.SeverityLow,
}

var semgrepCategories = CategoryTable{
	Keywords: []CategoryRule{
		{"sql", engine.CategoryInjection},
		{"injection", engine.CategoryInjection},
		{"xss", engine.CategoryInjection},
		{"exec", engine.CategoryInjection},
		{"eval", engine.CategoryInjection},
		{"crypto", engine.CategoryCryptoFailures},
		{"md5", engine.CategoryCryptoFailures},
		{"sha1", engine.CategoryCryptoFailures},
		{"tls", engine.CategoryCryptoFailures},
		{"secret", engine.CategoryAuthFailures},
		{"password", engine.CategoryAuthFailures},
		{"jwt", engine.CategoryAuthFailures},
		{"deserializ", engine.CategorySoftwareIntegrity},
		{"pickle", engine.CategorySoftwareIntegrity},
		{"path-traversal", engine.CategoryBrokenAccessControl},
		{"csrf", engine.CategoryBrokenAccessControl},
		{"redirect", engine.CategoryBrokenAccessControl},
	},
}

func newSemgrep(exec Executor) *Tool {
	return &Tool{
		ToolName:     "semgrep",
		IDPrefix:     "SEMGREP",
		ProbeCommand: "semgrep",
		Command:      "semgrep",
		Args: func(target, _ string) []string {
			return []string{"scan", "--config=auto", "--json", "--quiet", "--metrics=off", target}
		},
		Parse:      parseSemgrep,
		Severity:   semgrepSeverity,
		Categories: semgrepCategories,
		exec:       exec,
	}
}

func parseSemgrep(raw json.RawMessage, c *Collector) error {
	var doc semgrepOutput
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	for _, r := range doc.Results {
		category := owasp2021(r.Extra.Metadata.OWASP)
		if category == "" {
			category = c.Category(r.CheckID)
		}
		ruleName := r.CheckID
		if i := strings.LastIndexByte(ruleName, '.'); i >= 0 {
			ruleName = ruleName[i+1:]
		}
		remediation := "Review the flagged code against the rule documentation."
		if len(r.Extra.Metadata.References) > 0 {
			remediation = r.Extra.Metadata.References[0]
		}
		if !c.Add(engine.Finding{
			Category:    category,
			Issue:       firstNonEmpty(ruleName, "Semgrep finding"),
			Description: r.Extra.Message,
			Severity:    c.Severity(r.Extra.Severity),
			Evidence:    Evidence(filepath.ToSlash(r.Path), r.Start.Line, "Rule", r.CheckID, "Code", truncate(r.Extra.Lines, 200)),
			Remediation: remediation,
		}) {
			break
		}
	}
	return nil
}

// owasp2021 picks the first 2021 edition tag out of semgrep's owasp metadata.
func owasp2021(v interface{}) engine.Category {
	var tags []string
	switch t := v.(type) {
	case string:
		tags = []string{t}
	case []interface{}:
		for _, e := range t {
			if s, ok := e.(string); ok {
				tags = append(tags, s)
			}
		}
	}
	for _, tag := range tags {
		if !strings.Contains(tag, "2021") {
			continue
		}
		cat := engine.ParseCategory(tag)
		if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(tag)), string(cat)[:3]) {
			return cat
		}
	}
	return ""
}

package analyzers

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/user/sentinel-adk/pkg/engine"
)

type phpstanOutput struct {
	Files map[string]struct {
		Messages []struct {
			Message string `json:"message"`
			Line    int    `json:"line"`
			Tip     string `json:"tip"`
		} `json:"messages"`
	} `json:"files"`
}

// PHPStan has no severity; messages are graded by whether they look
// security relevant.
var phpstanSeverity = SeverityTable{
	"SECURITY": engine.SeverityHigh,
	"GENERAL":  engine.SeverityMedium,
}

var phpstanCategories = CategoryTable{
	Keywords: []CategoryRule{
		{"sql", engine.CategoryInjection},
		{"inject", engine.CategoryInjection},
		{"exec", engine.CategoryInjection},
		{"eval", engine.CategoryInjection},
		{"xss", engine.CategoryInjection},
		{"unescaped", engine.CategoryInjection},
		{"echo", engine.CategoryInjection},
		{"password", engine.CategoryAuthFailures},
		{"auth", engine.CategoryAuthFailures},
		{"file", engine.CategoryBrokenAccessControl},
		{"include", engine.CategoryBrokenAccessControl},
		{"path", engine.CategoryBrokenAccessControl},
	},
}

var phpSecurityWords = []string{
	"sql", "inject", "xss", "exec", "eval", "shell", "password", "unescaped",
	"unsafe", "deprecated", "vulnerability", "file_get_contents", "include", "require",
}

func newPHPStan(exec Executor) *Tool {
	return &Tool{
		ToolName:     "phpstan",
		IDPrefix:     "PHP",
		ProbeCommand: "phpstan",
		Extensions:   []string{".php"},
		Command:      "phpstan",
		Args: func(target, _ string) []string {
			return []string{"analyse", target, "--error-format=json", "--no-progress", "--level=5"}
		},
		Parse:      parsePHPStan,
		Severity:   phpstanSeverity,
		Categories: phpstanCategories,
		exec:       exec,
	}
}

func parsePHPStan(raw json.RawMessage, c *Collector) error {
	var doc phpstanOutput
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}

	paths := make([]string, 0, len(doc.Files))
	for p := range doc.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		for _, m := range doc.Files[path].Messages {
			grade := "general"
			category := engine.CategoryMisconfiguration
			if phpSecurityRelevant(m.Message) {
				grade = "security"
				category = c.Category(m.Message)
			}
			if !c.Add(engine.Finding{
				Category:    category,
				Issue:       "PHP Issue: " + truncate(firstNonEmpty(m.Message, "Unknown"), 100),
				Description: firstNonEmpty(m.Message, "Static analysis issue in PHP code."),
				Severity:    c.Severity(grade),
				Evidence:    Evidence(path, m.Line, "Tip", m.Tip),
				Remediation: firstNonEmpty(m.Tip, "Review PHP code for security best practices."),
			}) {
				return nil
			}
		}
	}
	return nil
}

func phpSecurityRelevant(msg string) bool {
	m := strings.ToLower(msg)
	for _, w := range phpSecurityWords {
		if strings.Contains(m, w) {
			return true
		}
	}
	return false
}

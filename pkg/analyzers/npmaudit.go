package analyzers

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/user/sentinel-adk/pkg/engine"
)

type npmAuditOutput struct {
	Vulnerabilities map[string]struct {
		Name         string            `json:"name"`
		Severity     string            `json:"severity"`
		IsDirect     bool              `json:"isDirect"`
		Range        string            `json:"range"`
		Via          []json.RawMessage `json:"via"` // advisory object or package name
		FixAvailable json.RawMessage   `json:"fixAvailable"`
	} `json:"vulnerabilities"`
}

type npmAdvisory struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

var npmSeverity = SeverityTable{
	"CRITICAL": engine.SeverityCritical,
	"HIGH":     engine.SeverityHigh,
	"MODERATE": engine.SeverityMedium,
	"LOW":      engine.SeverityLow,
}

var dependencyCategories = CategoryTable{Default: engine.CategoryVulnerableComponents}

func newNpmAudit(exec Executor) *Tool {
	return &Tool{
		ToolName:        "npm-audit",
		IDPrefix:        "NPM-AUDIT",
		AlwaysAvailable: true,
		Markers:         []string{"package.json"},
		Command:         "npm",
		Args: func(_, _ string) []string {
			return []string{"audit", "--json", "--production"}
		},
		Parse:      parseNpmAudit,
		Severity:   npmSeverity,
		Categories: dependencyCategories,
		exec:       exec,
	}
}

func parseNpmAudit(raw json.RawMessage, c *Collector) error {
	var doc npmAuditOutput
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}

	names := make([]string, 0, len(doc.Vulnerabilities))
	for name := range doc.Vulnerabilities {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v := doc.Vulnerabilities[name]

		var advisory npmAdvisory
		if len(v.Via) > 0 {
			_ = json.Unmarshal(v.Via[0], &advisory)
		}
		direct := "No (transitive)"
		if v.IsDirect {
			direct = "Yes"
		}
		remediation := "No automated fix available. Consider replacing the dependency."
		if fix := strings.TrimSpace(string(v.FixAvailable)); fix != "" && fix != "false" && fix != "null" {
			remediation = "Update to a fixed version. Run: npm audit fix"
		}

		if !c.Add(engine.Finding{
			Category:    c.Category(name),
			Issue:       "Vulnerable Dependency: " + name,
			Description: strings.TrimSpace(fmt.Sprintf("%s in %s@%s.", firstNonEmpty(advisory.Title, "Known vulnerability"), name, firstNonEmpty(v.Range, "unknown"))),
			Severity:    c.Severity(v.Severity),
			Evidence:    fmt.Sprintf("Package: %s\nAffected versions: %s\nDirect: %s", name, orNA(v.Range), direct),
			Remediation: remediation,
		}) {
			break
		}
	}
	return nil
}

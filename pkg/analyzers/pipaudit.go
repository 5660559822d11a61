package analyzers

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/user/sentinel-adk/pkg/engine"
)

type pipDependency struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Vulns   []struct {
		ID          string   `json:"id"`
		FixVersions []string `json:"fix_versions"`
		Description string   `json:"description"`
	} `json:"vulns"`
}

// pip-audit has no severity field; every advisory is reported as High.
var pipSeverity = SeverityTable{"": engine.SeverityHigh}

var pythonManifests = []string{"requirements.txt", "Pipfile", "setup.py", "pyproject.toml"}

func newPipAudit(exec Executor) *Tool {
	return &Tool{
		ToolName:     "pip-audit",
		IDPrefix:     "PIPAUDIT",
		ProbeCommand: "pip-audit",
		Markers:      pythonManifests,
		Command:      "pip-audit",
		Args:         pipAuditArgs,
		Parse:        parsePipAudit,
		Severity:     pipSeverity,
		Categories:   dependencyCategories,
		exec:         exec,
	}
}

func pipAuditArgs(target, _ string) []string {
	args := []string{"--format=json", "--desc"}
	req := filepath.Join(target, "requirements.txt")
	if _, err := os.Stat(req); err == nil {
		args = append(args, "-r", req)
	}
	return args
}

func parsePipAudit(raw json.RawMessage, c *Collector) error {
	var deps []pipDependency
	if err := json.Unmarshal(raw, &deps); err != nil {
		var envelope struct {
			Dependencies []pipDependency `json:"dependencies"`
		}
		if err2 := json.Unmarshal(raw, &envelope); err2 != nil {
			return err
		}
		deps = envelope.Dependencies
	}

	for _, dep := range deps {
		for _, v := range dep.Vulns {
			fixed := "Not specified"
			remediation := fmt.Sprintf("Review advisory %s and find an alternative package.", v.ID)
			if n := len(v.FixVersions); n > 0 {
				fixed = strings.Join(v.FixVersions, ", ")
				remediation = fmt.Sprintf("Upgrade %s to version %s", dep.Name, v.FixVersions[n-1])
			}
			if !c.Add(engine.Finding{
				Category:    c.Category(dep.Name),
				Issue:       fmt.Sprintf("Vulnerable Python Package: %s@%s", dep.Name, dep.Version),
				Description: fmt.Sprintf("%s: %s in %s version %s.", v.ID, firstNonEmpty(v.Description, "Known vulnerability"), dep.Name, dep.Version),
				Severity:    c.Severity(""),
				Evidence:    fmt.Sprintf("Package: %s==%s\nVulnerability: %s\nFixed in: %s", dep.Name, dep.Version, v.ID, fixed),
				Remediation: remediation,
			}) {
				return nil
			}
		}
	}
	return nil
}

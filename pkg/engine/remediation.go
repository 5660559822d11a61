package engine

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed catalog/remediation/*.yaml
var remediationFS embed.FS

// RemediationTemplate is the fix guidance for one taxonomy category.
type RemediationTemplate struct {
	ID         string   `yaml:"id"`
	Category   Category `yaml:"category"`
	Name       string   `yaml:"name"`
	Standard   string   `yaml:"standard"`
	Guidance   string   `yaml:"guidance"`
	Validation string   `yaml:"validation"`
	References []string `yaml:"references"`
}

// RemediationCatalog maps categories to remediation templates.
type RemediationCatalog struct {
	Templates map[Category]RemediationTemplate
}

// NewRemediationCatalog returns a catalog loaded with the built-in templates.
func NewRemediationCatalog() (*RemediationCatalog, error) {
	c := &RemediationCatalog{Templates: make(map[Category]RemediationTemplate)}
	sub, err := fs.Sub(remediationFS, "catalog/remediation")
	if err != nil {
		return nil, err
	}
	if err := c.load(sub); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadTemplates reads YAML templates from dir. A template for a category
// that is already present replaces it.
func (c *RemediationCatalog) LoadTemplates(dir string) error {
	return c.load(os.DirFS(dir))
}

func (c *RemediationCatalog) load(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return err
	}
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return err
		}
		var t RemediationTemplate
		if err := yaml.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("failed to parse %s: %w", entry.Name(), err)
		}
		if t.Category == "" {
			return fmt.Errorf("template %s has no category", entry.Name())
		}
		c.Templates[ParseCategory(string(t.Category))] = t
	}
	return nil
}

// Lookup returns the template for category.
func (c *RemediationCatalog) Lookup(category Category) (RemediationTemplate, bool) {
	t, ok := c.Templates[category]
	return t, ok
}

// Render produces remediation text for f. Findings that already carry a
// remediation are returned unchanged.
func (c *RemediationCatalog) Render(f Finding) (string, error) {
	if strings.TrimSpace(f.Remediation) != "" {
		return f.Remediation, nil
	}
	t, ok := c.Lookup(f.Category)
	if !ok {
		return "", fmt.Errorf("no remediation template for %s", f.Category)
	}
	vars := map[string]string{
		"Issue":    f.Issue,
		"Category": string(f.Category),
		"Severity": f.Severity.String(),
		"Evidence": f.Evidence,
		"Source":   f.Source,
	}
	guidance, err := renderString("guidance", t.Guidance, vars)
	if err != nil {
		return "", err
	}
	if t.Validation == "" {
		return strings.TrimSpace(guidance), nil
	}
	validation, err := renderString("validation", t.Validation, vars)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(guidance) + "\nValidate: " + strings.TrimSpace(validation), nil
}

// Apply fills the Remediation of every finding that lacks one. Findings whose
// category has no template are left as they are.
func (c *RemediationCatalog) Apply(findings []Finding) []Finding {
	out := make([]Finding, len(findings))
	for i, f := range findings {
		if text, err := c.Render(f); err == nil {
			f.Remediation = text
		}
		out[i] = f
	}
	return out
}

func renderString(name, tmplStr string, vars map[string]string) (string, error) {
	t, err := template.New(name).Option("missingkey=zero").Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return buf.String(), nil
}

package engine

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed catalog/compliance/*.yaml
var complianceFS embed.FS

// Control is a single requirement of a compliance standard.
type Control struct {
	ID          string     `yaml:"id"`
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Categories  []Category `yaml:"categories"`
}

// Profile is a compliance standard such as PCI-DSS.
type Profile struct {
	Standard    string    `yaml:"standard"`
	Description string    `yaml:"description"`
	Controls    []Control `yaml:"controls"`
}

// ControlRef points at one control of one standard.
type ControlRef struct {
	Standard string
	ID       string
	Name     string
}

func (r ControlRef) String() string {
	return fmt.Sprintf("%s %s", r.Standard, r.ID)
}

// ComplianceCatalog maps taxonomy categories to the controls they affect.
type ComplianceCatalog struct {
	Profiles map[string]Profile
}

// NewComplianceCatalog returns a catalog loaded with the built-in profiles.
func NewComplianceCatalog() (*ComplianceCatalog, error) {
	c := &ComplianceCatalog{Profiles: make(map[string]Profile)}
	sub, err := fs.Sub(complianceFS, "catalog/compliance")
	if err != nil {
		return nil, err
	}
	if err := c.load(sub); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadProfiles reads YAML profiles from dir.
func (c *ComplianceCatalog) LoadProfiles(dir string) error {
	return c.load(os.DirFS(dir))
}

func (c *ComplianceCatalog) load(fsys fs.FS) error {
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
		var p Profile
		if err := yaml.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("failed to parse %s: %w", entry.Name(), err)
		}
		for i, ctl := range p.Controls {
			for j, cat := range ctl.Categories {
				p.Controls[i].Categories[j] = ParseCategory(string(cat))
			}
		}
		c.Profiles[p.Standard] = p
	}
	return nil
}

// ListStandards returns the loaded standard names, sorted.
func (c *ComplianceCatalog) ListStandards() []string {
	keys := make([]string, 0, len(c.Profiles))
	for k := range c.Profiles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetProfile retrieves a profile by name.
func (c *ComplianceCatalog) GetProfile(name string) (Profile, bool) {
	p, ok := c.Profiles[name]
	return p, ok
}

// ControlsFor lists every control touched by category, ordered by standard
// then control id.
func (c *ComplianceCatalog) ControlsFor(category Category) []ControlRef {
	var refs []ControlRef
	for _, std := range c.ListStandards() {
		for _, ctl := range c.Profiles[std].Controls {
			for _, cat := range ctl.Categories {
				if cat == category {
					refs = append(refs, ControlRef{Standard: std, ID: ctl.ID, Name: ctl.Name})
					break
				}
			}
		}
	}
	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].Standard != refs[j].Standard {
			return refs[i].Standard < refs[j].Standard
		}
		return refs[i].ID < refs[j].ID
	})
	return refs
}

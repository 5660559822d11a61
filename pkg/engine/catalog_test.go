package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemediationCatalogCoversTaxonomy(t *testing.T) {
	c, err := NewRemediationCatalog()
	require.NoError(t, err)

	for _, cat := range Categories {
		_, ok := c.Lookup(cat)
		assert.True(t, ok, "missing template for %s", cat)
	}
}

func TestRemediationRender(t *testing.T) {
	c, err := NewRemediationCatalog()
	require.NoError(t, err)

	text, err := c.Render(Finding{Issue: "SQL built from request", Category: CategoryInjection, Evidence: "File: app.py:10"})
	require.NoError(t, err)
	assert.Contains(t, text, "SQL built from request")
	assert.Contains(t, text, "Validate:")
	assert.Contains(t, text, "File: app.py:10")

	kept, err := c.Render(Finding{Category: CategoryInjection, Remediation: "use prepared statements"})
	require.NoError(t, err)
	assert.Equal(t, "use prepared statements", kept)
}

func TestRemediationApplyAndOverride(t *testing.T) {
	dir := t.TempDir()
	custom := "id: CUSTOM\ncategory: A05\nname: custom\nguidance: \"Tighten {{.Issue}}\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.yaml"), []byte(custom), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0600))

	c, err := NewRemediationCatalog()
	require.NoError(t, err)
	require.NoError(t, c.LoadTemplates(dir))

	out := c.Apply([]Finding{{Issue: "CORS", Category: CategoryMisconfiguration}})
	require.Len(t, out, 1)
	assert.Equal(t, "Tighten CORS", out[0].Remediation)
}

func TestRemediationRejectsTemplateWithoutCategory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("id: X\n"), 0600))

	c, err := NewRemediationCatalog()
	require.NoError(t, err)
	assert.Error(t, c.LoadTemplates(dir))
}

func TestComplianceControlsFor(t *testing.T) {
	c, err := NewComplianceCatalog()
	require.NoError(t, err)

	assert.Equal(t, []string{"HIPAA", "PCI-DSS", "SOC2"}, c.ListStandards())

	refs := c.ControlsFor(CategoryVulnerableComponents)
	require.NotEmpty(t, refs)
	assert.Equal(t, "PCI-DSS", refs[0].Standard)
	assert.Equal(t, "PCI-DSS 6.3.3", refs[0].String())

	p, ok := c.GetProfile("SOC2")
	require.True(t, ok)
	assert.NotEmpty(t, p.Controls)
}

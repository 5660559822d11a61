package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/user/sentinel-adk/pkg/engine"
)

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "", maskKey(""))
	assert.Equal(t, "*****", maskKey("short"))
	assert.Equal(t, "sk-a****wxyz", maskKey("sk-a1234wxyz"))
}

func TestSnapshotPath(t *testing.T) {
	assert.Equal(t, engine.DefaultSnapshotPath, snapshotPath([]string{"scan-1"}))
	assert.Equal(t, "base.json", snapshotPath([]string{"scan-1", "base.json"}))
}

func TestCommandTree(t *testing.T) {
	want := []string{"scan", "scans", "report", "analyzers", "snapshot", "config"}
	var got []string
	for _, c := range rootCmd.Commands() {
		got = append(got, c.Name())
	}
	for _, name := range want {
		assert.Contains(t, got, name)
	}
}

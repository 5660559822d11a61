package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityOrdering(t *testing.T) {
	assert.Less(t, SeverityLow, SeverityMedium)
	assert.Less(t, SeverityMedium, SeverityHigh)
	assert.Less(t, SeverityHigh, SeverityCritical)
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in   string
		want Severity
		ok   bool
	}{
		{"Critical", SeverityCritical, true},
		{"HIGH", SeverityHigh, true},
		{"moderate", SeverityMedium, true},
		{" low ", SeverityLow, true},
		{"info", SeverityMedium, false},
		{"", SeverityMedium, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseSeverity(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestFindingJSONUsesSeverityNames(t *testing.T) {
	f := Finding{ID: "x", Category: CategoryInjection, Issue: "SQLi", Severity: SeverityHigh}
	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"severity":"High"`)

	var back Finding
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, f, back)
}

func TestSeverityRejectsInvalidValues(t *testing.T) {
	_, err := Severity(0).MarshalText()
	assert.Error(t, err)

	var s Severity
	assert.Error(t, s.UnmarshalText([]byte("bogus")))
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
	}{
		{"A03:2021 - Injection", CategoryInjection},
		{"a07", CategoryAuthFailures},
		{"A06:2021-Vulnerable Components", CategoryVulnerableComponents},
		{"cryptographic failures", CategoryCryptoFailures},
		{"auth", CategoryAuthFailures},
		{"A04:2021-Insecure Design", CategoryMisconfiguration},
		{"", CategoryMisconfiguration},
		{"xx", CategoryMisconfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCategory(tt.in))
		})
	}
}

func TestToolResultDurationMs(t *testing.T) {
	r := ToolResult{Duration: 1500 * 1e6}
	assert.EqualValues(t, 1500, r.DurationMs())
}

package engine

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Severity is the normalized four-level ordinal every tool vocabulary maps onto.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "Low"
	case SeverityMedium:
		return "Medium"
	case SeverityHigh:
		return "High"
	case SeverityCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// ParseSeverity converts a case-insensitive severity name. Unknown names map
// to Medium and report ok=false.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return SeverityLow, true
	case "medium", "moderate":
		return SeverityMedium, true
	case "high":
		return SeverityHigh, true
	case "critical":
		return SeverityCritical, true
	default:
		return SeverityMedium, false
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	if s < SeverityLow || s > SeverityCritical {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	sev, ok := ParseSeverity(string(b))
	if !ok {
		return fmt.Errorf("unknown severity %q", string(b))
	}
	*s = sev
	return nil
}

// Category is a tag from the fixed OWASP 2021 style taxonomy.
type Category string

const (
	CategoryBrokenAccessControl  Category = "A01:2021-Broken Access Control"
	CategoryCryptoFailures       Category = "A02:2021-Cryptographic Failures"
	CategoryInjection            Category = "A03:2021-Injection"
	CategoryMisconfiguration     Category = "A05:2021-Security Misconfiguration"
	CategoryVulnerableComponents Category = "A06:2021-Vulnerable Components"
	CategoryAuthFailures         Category = "A07:2021-Auth Failures"
	CategorySoftwareIntegrity    Category = "A08:2021-Software Integrity"
)

// Categories lists the taxonomy in OWASP order.
var Categories = []Category{
	CategoryBrokenAccessControl,
	CategoryCryptoFailures,
	CategoryInjection,
	CategoryMisconfiguration,
	CategoryVulnerableComponents,
	CategoryAuthFailures,
	CategorySoftwareIntegrity,
}

// ParseCategory matches free text such as "A03:2021 - Injection", "a07" or
// "injection" against the taxonomy, by Axx code first and then by name.
// Anything else falls back to misconfiguration.
func ParseCategory(s string) Category {
	s = strings.TrimSpace(s)
	if len(s) >= 3 {
		code := strings.ToUpper(s[:3])
		for _, c := range Categories {
			if strings.HasPrefix(string(c), code) {
				return c
			}
		}
	}
	if s != "" {
		lower := strings.ToLower(s)
		for _, c := range Categories {
			name := strings.ToLower(string(c)[strings.IndexByte(string(c), '-')+1:])
			if strings.Contains(lower, name) || (len(lower) >= 4 && strings.Contains(name, lower)) {
				return c
			}
		}
	}
	return CategoryMisconfiguration
}

// Finding is the normalized unit of a detected issue. Treat values as
// immutable once built.
type Finding struct {
	ID          string   `json:"id"`
	Category    Category `json:"category"`
	Issue       string   `json:"issue"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Evidence    string   `json:"evidence"`
	Remediation string   `json:"remediation"`
	Source      string   `json:"source,omitempty"` // adapter or branch that produced it
}

// ToolResult is the outcome of one external process invocation. It is always
// fully formed: either a completed run or a failure, never "running".
type ToolResult struct {
	ToolName  string          `json:"tool_name"`
	Success   bool            `json:"success"`
	RawOutput string          `json:"raw_output"`
	Parsed    json.RawMessage `json:"parsed,omitempty"`
	ErrorText string          `json:"error,omitempty"`
	ExitCode  int             `json:"exit_code"`
	Duration  time.Duration   `json:"-"`
}

// DurationMs reports the run duration in milliseconds.
func (r ToolResult) DurationMs() int64 {
	return r.Duration.Milliseconds()
}

// Package report scores a finished scan and renders it as markdown, JSON or
// a styled terminal view.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/user/sentinel-adk/pkg/engine"
	"github.com/user/sentinel-adk/pkg/store"
)

// Severity weights used by the risk score.
const (
	weightCritical = 30
	weightHigh     = 15
	weightMedium   = 5
	weightLow      = 2
	maxScore       = 100
)

type Level string

const (
	LevelLow      Level = "LOW"
	LevelMedium   Level = "MEDIUM"
	LevelHigh     Level = "HIGH"
	LevelCritical Level = "CRITICAL"
)

// Risk is the weighted risk score of a finding set.
type Risk struct {
	Score int   `json:"score"`
	Level Level `json:"level"`
}

// SeverityCount is one row of the severity summary.
type SeverityCount struct {
	Severity string `json:"severity"`
	Count    int    `json:"count"`
}

// Score computes min(100, 30C + 15H + 5M + 2L) and its level.
func Score(findings []engine.Finding) Risk {
	counts := engine.CountBySeverity(findings)
	score := weightCritical*counts[engine.SeverityCritical] +
		weightHigh*counts[engine.SeverityHigh] +
		weightMedium*counts[engine.SeverityMedium] +
		weightLow*counts[engine.SeverityLow]
	if score > maxScore {
		score = maxScore
	}
	return Risk{Score: score, Level: levelFor(score)}
}

func levelFor(score int) Level {
	switch {
	case score >= 80:
		return LevelCritical
	case score >= 50:
		return LevelHigh
	case score >= 20:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Entry is a finding annotated with the compliance controls its category
// touches.
type Entry struct {
	engine.Finding
	Controls []engine.ControlRef `json:"controls,omitempty"`
}

// Report is the rendered view of one scan.
type Report struct {
	ScanID      string          `json:"scan_id"`
	Target      string          `json:"target"`
	Status      store.Status    `json:"status"`
	Mode        string          `json:"mode"`
	GeneratedAt time.Time       `json:"generated_at"`
	Risk        Risk            `json:"risk"`
	Summary     []SeverityCount `json:"summary"`
	Findings    []Entry         `json:"findings"`
	Logs        []store.LogLine `json:"logs,omitempty"`
}

// Builder assembles reports. Both catalogs are optional.
type Builder struct {
	remediation *engine.RemediationCatalog
	compliance  *engine.ComplianceCatalog
	now         func() time.Time
}

func NewBuilder(rem *engine.RemediationCatalog, comp *engine.ComplianceCatalog) *Builder {
	return &Builder{remediation: rem, compliance: comp, now: time.Now}
}

// Build scores findings and fills missing remediation text from the catalog.
// Findings keep the order they were persisted in.
func (b *Builder) Build(scan *store.Scan, findings []engine.Finding) Report {
	if b.remediation != nil {
		findings = b.remediation.Apply(findings)
	}

	r := Report{
		ScanID:      scan.ID,
		Target:      scan.Target,
		Status:      scan.Status,
		Mode:        scan.Mode,
		GeneratedAt: b.now().UTC(),
		Risk:        Score(findings),
		Logs:        scan.Logs,
		Findings:    make([]Entry, 0, len(findings)),
	}

	counts := engine.CountBySeverity(findings)
	for _, s := range []engine.Severity{engine.SeverityCritical, engine.SeverityHigh, engine.SeverityMedium, engine.SeverityLow} {
		r.Summary = append(r.Summary, SeverityCount{Severity: s.String(), Count: counts[s]})
	}

	controls := make(map[engine.Category][]engine.ControlRef)
	for _, f := range findings {
		e := Entry{Finding: f}
		if b.compliance != nil {
			refs, ok := controls[f.Category]
			if !ok {
				refs = b.compliance.ControlsFor(f.Category)
				controls[f.Category] = refs
			}
			e.Controls = refs
		}
		r.Findings = append(r.Findings, e)
	}
	return r
}

type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts text, json, markdown and md. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want text, json or markdown)", s)
	}
}

// Write renders r to w in the given format.
func Write(w io.Writer, r Report, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatMarkdown:
		return WriteMarkdown(w, r)
	case FormatText, "":
		_, err := io.WriteString(w, Terminal(r))
		return err
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

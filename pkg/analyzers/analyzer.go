// Package analyzers adapts external static-analysis tools to engine.Finding.
//
// Every adapter is a Tool value: a bundle of probe, relevance, argument
// builder, parser and mapping tables driven by one shared scan algorithm.
package analyzers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/user/sentinel-adk/pkg/engine"
	"github.com/user/sentinel-adk/pkg/logging"
	"github.com/user/sentinel-adk/pkg/runner"
)

// DefaultCap bounds the findings one adapter emits per scan.
const DefaultCap = 20

// Config is the input of one adapter scan.
type Config struct {
	TargetPath string
}

// Analyzer is the contract the orchestrator dispatches on.
type Analyzer interface {
	Name() string
	Available(ctx context.Context) bool
	Scan(ctx context.Context, cfg Config) []engine.Finding
}

// Executor is the part of runner.Runner adapters depend on.
type Executor interface {
	Probe(ctx context.Context, command string) bool
	Run(ctx context.Context, t runner.Task) engine.ToolResult
}

// SeverityTable maps a tool's severity vocabulary, upper-cased, onto the
// four-level ordinal. Unmapped values are Medium.
type SeverityTable map[string]engine.Severity

func (t SeverityTable) Lookup(s string) engine.Severity {
	if sev, ok := t[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return sev
	}
	return engine.SeverityMedium
}

// CategoryRule maps rule identifiers that contain (or start with) Match.
type CategoryRule struct {
	Match    string
	Category engine.Category
}

// CategoryTable maps tool rule identifiers onto the taxonomy. Prefix rules
// are compared against the upper-cased key, keyword rules against the
// lower-cased key. Unmapped keys fall back to Default, or misconfiguration.
type CategoryTable struct {
	Prefixes []CategoryRule
	Keywords []CategoryRule
	Default  engine.Category
}

func (t CategoryTable) Lookup(key string) engine.Category {
	upper := strings.ToUpper(strings.TrimSpace(key))
	if upper != "" {
		for _, r := range t.Prefixes {
			if strings.HasPrefix(upper, r.Match) {
				return r.Category
			}
		}
		lower := strings.ToLower(upper)
		for _, r := range t.Keywords {
			if strings.Contains(lower, r.Match) {
				return r.Category
			}
		}
	}
	if t.Default != "" {
		return t.Default
	}
	return engine.CategoryMisconfiguration
}

// Collector accumulates findings for one scan and enforces the cap.
type Collector struct {
	source   string
	prefix   string
	cap      int
	severity SeverityTable
	category CategoryTable
	findings []engine.Finding
}

func newCollector(t *Tool) *Collector {
	c := t.Cap
	if c <= 0 {
		c = DefaultCap
	}
	return &Collector{
		source:   t.ToolName,
		prefix:   t.IDPrefix,
		cap:      c,
		severity: t.Severity,
		category: t.Categories,
	}
}

// Add appends f with a scan-local id. It returns false once the cap is reached
// and the finding was dropped.
func (c *Collector) Add(f engine.Finding) bool {
	if c.Full() {
		return false
	}
	f.ID = fmt.Sprintf("%s-%d", c.prefix, len(c.findings))
	f.Source = c.source
	if f.Severity == 0 {
		f.Severity = engine.SeverityMedium
	}
	if f.Category == "" {
		f.Category = engine.CategoryMisconfiguration
	}
	c.findings = append(c.findings, f)
	return true
}

func (c *Collector) Full() bool { return len(c.findings) >= c.cap }

// Severity maps a tool severity through the adapter's table.
func (c *Collector) Severity(s string) engine.Severity { return c.severity.Lookup(s) }

// Category maps a tool rule identifier through the adapter's table.
func (c *Collector) Category(key string) engine.Category { return c.category.Lookup(key) }

func (c *Collector) Findings() []engine.Finding { return c.findings }

// Evidence formats "File: path:line" followed by labelled context lines.
// A non-positive line is rendered as "?". Empty values become "N/A".
func Evidence(path string, line int, kv ...string) string {
	var sb strings.Builder
	loc := "?"
	if line > 0 {
		loc = strconv.Itoa(line)
	}
	fmt.Fprintf(&sb, "File: %s:%s", orNA(path), loc)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&sb, "\n%s: %s", kv[i], orNA(strings.TrimSpace(kv[i+1])))
	}
	return sb.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Tool is a capability bundle describing one adapter.
type Tool struct {
	ToolName string
	IDPrefix string

	// ProbeCommand is looked up on PATH by Available unless AlwaysAvailable
	// is set (tools fetched on demand through npx or shipped with npm).
	ProbeCommand    string
	AlwaysAvailable bool

	// Extensions and Markers gate the scan. A tool with neither always runs.
	Extensions []string
	Markers    []string

	Command string
	// Args builds the command line. reportPath is set only for tools with
	// ReportFile; their JSON is read from that file instead of stdout.
	Args       func(target, reportPath string) []string
	ReportFile bool
	Timeout    time.Duration

	// Parse walks decoded tool output. InProcess replaces the external
	// command entirely.
	Parse     func(raw json.RawMessage, c *Collector) error
	InProcess func(ctx context.Context, cfg Config, c *Collector) error

	Severity   SeverityTable
	Categories CategoryTable
	Cap        int

	exec Executor
}

func (t *Tool) Name() string { return t.ToolName }

// Available reports whether the tool can run on this host.
func (t *Tool) Available(ctx context.Context) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			logging.L().Warnw("availability probe panicked", "tool", t.ToolName, "panic", p)
			ok = false
		}
	}()
	if t.AlwaysAvailable {
		return true
	}
	if t.exec == nil || t.ProbeCommand == "" {
		return false
	}
	return t.exec.Probe(ctx, t.ProbeCommand)
}

// Relevant applies the file pre-check to dir.
func (t *Tool) Relevant(dir string) bool {
	if len(t.Extensions) == 0 && len(t.Markers) == 0 {
		return true
	}
	return HasMarker(dir, t.Markers) || HasFilesWithExtension(dir, t.Extensions)
}

// Scan runs the shared adapter algorithm. Failures of any kind yield an
// empty result.
func (t *Tool) Scan(ctx context.Context, cfg Config) (out []engine.Finding) {
	log := logging.L().With("tool", t.ToolName)
	defer func() {
		if p := recover(); p != nil {
			log.Warnw("adapter panicked", "panic", p)
			out = nil
		}
	}()

	if !t.Relevant(cfg.TargetPath) {
		log.Debugw("no relevant files, skipping", "target", cfg.TargetPath)
		return nil
	}

	c := newCollector(t)
	if t.InProcess != nil {
		if err := t.InProcess(ctx, cfg, c); err != nil {
			log.Warnw("in-process scan failed", "error", err)
			return nil
		}
		return c.Findings()
	}

	raw, err := t.execute(ctx, cfg)
	if err != nil {
		log.Warnw("tool execution failed", "error", err)
		return nil
	}
	if raw == nil {
		log.Debugw("no parsed output")
		return nil
	}
	if err := t.Parse(raw, c); err != nil {
		log.Warnw("failed to decode tool output", "error", err)
		return nil
	}
	return c.Findings()
}

func (t *Tool) execute(ctx context.Context, cfg Config) (json.RawMessage, error) {
	if t.exec == nil {
		return nil, fmt.Errorf("no executor configured")
	}

	var reportPath string
	if t.ReportFile {
		f, err := os.CreateTemp("", t.IDPrefix+"-report-*.json")
		if err != nil {
			return nil, fmt.Errorf("create report file: %w", err)
		}
		reportPath = f.Name()
		f.Close()
		defer os.Remove(reportPath)
	}

	res := t.exec.Run(ctx, runner.Task{
		ToolName: t.ToolName,
		Command:  t.Command,
		Args:     t.Args(cfg.TargetPath, reportPath),
		Dir:      cfg.TargetPath,
		Timeout:  t.Timeout,
	})
	if !res.Success {
		return nil, fmt.Errorf("%s", res.ErrorText)
	}
	if !t.ReportFile {
		return res.Parsed, nil
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 || !json.Valid(data) {
		return nil, nil
	}
	return json.RawMessage(data), nil
}

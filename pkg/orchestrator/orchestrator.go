// Package orchestrator runs every registered analyzer against one working
// copy and merges their findings.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/user/sentinel-adk/pkg/analyzers"
	"github.com/user/sentinel-adk/pkg/engine"
	"github.com/user/sentinel-adk/pkg/logging"
	"github.com/user/sentinel-adk/pkg/telemetry"
)

// ProgressFunc receives human-readable progress lines. It is called from
// analyzer goroutines and must be safe for concurrent use.
type ProgressFunc func(line string)

// AnalyzerObserver is told how many findings each analyzer produced.
type AnalyzerObserver interface {
	ObserveAnalyzer(name string, findings int)
}

// AdapterReport summarizes one analyzer run.
type AdapterReport struct {
	Name     string
	Findings int
	Elapsed  time.Duration
	Err      string // set when the analyzer panicked
}

type Result struct {
	Findings     []engine.Finding
	Reports      []AdapterReport
	Excluded     []string
	Total        int // findings before deduplication
	Deduplicated int // findings removed by deduplication
}

type Orchestrator struct {
	analyzers []analyzers.Analyzer
	progress  ProgressFunc
	observer  AnalyzerObserver
}

type Option func(*Orchestrator)

func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

func WithObserver(obs AnalyzerObserver) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// New builds an orchestrator over as. Invocation order is the slice order.
func New(as []analyzers.Analyzer, opts ...Option) *Orchestrator {
	o := &Orchestrator{analyzers: as}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) emit(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	logging.L().Info(line)
	if o.progress != nil {
		o.progress(line)
	}
}

// Run probes every analyzer, scans with the available ones and returns the
// merged, deduplicated findings. It fails only when no analyzer is registered.
func (o *Orchestrator) Run(ctx context.Context, targetPath string) (Result, error) {
	if len(o.analyzers) == 0 {
		return Result{}, engine.ErrNoAnalyzers
	}

	ctx, span := telemetry.Tracer().Start(ctx, "orchestrator.run",
		trace.WithAttributes(
			attribute.String("target_path", targetPath),
			attribute.Int("analyzers", len(o.analyzers)),
		),
	)
	defer span.End()

	available, excluded := o.probe(ctx)
	var res Result
	res.Excluded = excluded
	for _, name := range excluded {
		logging.L().Debugw("analyzer excluded", "analyzer", name)
	}

	names := make([]string, len(available))
	for i, a := range available {
		names[i] = a.Name()
	}
	o.emit("[PARALLEL] Launching %d static analyzers: %s", len(available), strings.Join(names, ", "))

	start := time.Now()
	reports, perAdapter := o.scan(ctx, available, targetPath)
	res.Reports = reports

	var merged []engine.Finding
	for i, fs := range perAdapter {
		merged = append(merged, fs...)
		if o.observer != nil {
			o.observer.ObserveAnalyzer(reports[i].Name, len(fs))
		}
	}
	res.Total = len(merged)
	res.Findings = engine.Deduplicate(merged)
	res.Deduplicated = res.Total - len(res.Findings)

	span.SetAttributes(
		attribute.Int("findings.total", res.Total),
		attribute.Int("findings.unique", len(res.Findings)),
		attribute.Int("analyzers.excluded", len(excluded)),
	)
	o.emit("[PARALLEL] %d analyzers completed in %s: %d findings (%d duplicates removed)",
		len(available), time.Since(start).Round(time.Millisecond), len(res.Findings), res.Deduplicated)
	return res, nil
}

// probe calls Available on every analyzer at once. Unavailable or panicking
// analyzers are excluded.
func (o *Orchestrator) probe(ctx context.Context) (available []analyzers.Analyzer, excluded []string) {
	ok := make([]bool, len(o.analyzers))
	var wg sync.WaitGroup
	for i, a := range o.analyzers {
		wg.Add(1)
		go func(i int, a analyzers.Analyzer) {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					logging.L().Warnw("availability check panicked", "analyzer", a.Name(), "panic", p)
					ok[i] = false
				}
			}()
			ok[i] = a.Available(ctx)
		}(i, a)
	}
	wg.Wait()

	for i, a := range o.analyzers {
		if ok[i] {
			available = append(available, a)
		} else {
			excluded = append(excluded, a.Name())
		}
	}
	return available, excluded
}

func (o *Orchestrator) scan(ctx context.Context, as []analyzers.Analyzer, targetPath string) ([]AdapterReport, [][]engine.Finding) {
	reports := make([]AdapterReport, len(as))
	findings := make([][]engine.Finding, len(as))
	cfg := analyzers.Config{TargetPath: targetPath}

	var wg sync.WaitGroup
	for i, a := range as {
		wg.Add(1)
		go func(i int, a analyzers.Analyzer) {
			defer wg.Done()
			start := time.Now()
			reports[i].Name = a.Name()
			defer func() {
				if p := recover(); p != nil {
					findings[i] = nil
					reports[i].Err = fmt.Sprintf("panic: %v", p)
					logging.L().Warnw("analyzer failed", "analyzer", a.Name(), "reason", reports[i].Err)
				}
				reports[i].Elapsed = time.Since(start)
				reports[i].Findings = len(findings[i])
				o.emit("[%s] %d findings in %.1fs", a.Name(), reports[i].Findings, reports[i].Elapsed.Seconds())
			}()
			findings[i] = a.Scan(ctx, cfg)
		}(i, a)
	}
	wg.Wait()
	return reports, findings
}

package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/user/sentinel-adk/pkg/engine"
	"github.com/user/sentinel-adk/pkg/logging"
	"github.com/user/sentinel-adk/pkg/store"
	"github.com/user/sentinel-adk/pkg/telemetry"
)

// Deps are the collaborators of a Coordinator. Store, Validator, Recon and
// Reasoner are required; Stager and Static may be nil when static analysis
// is not wired.
type Deps struct {
	Store     store.Store
	Validator Validator
	Recon     Recon
	Reasoner  Reasoner
	Stager    Stager
	Static    StaticRunner
	Observer  Observer
	// Progress mirrors every scan log line, typically to the terminal.
	Progress func(line string)
}

// Options are per-run settings.
type Options struct {
	// Mode overrides the mode stored with the scan.
	Mode Mode
	// NoStatic disables the static branch even in static or full mode.
	NoStatic bool
	// Provider names the LLM provider for log lines. Empty means heuristics only.
	Provider string
}

// Outcome summarizes a finished run.
type Outcome struct {
	ScanID   string
	Status   store.Status
	Kind     TargetKind
	Mode     Mode
	Findings []engine.Finding
}

type Coordinator struct {
	deps Deps
}

func New(deps Deps) *Coordinator {
	return &Coordinator{deps: deps}
}

// Run executes the scan scanID. It returns an error only when the scan ends
// FAILED; branch failures are logged and tolerated.
func (c *Coordinator) Run(ctx context.Context, scanID string, opts Options) (out Outcome, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("scan_id", scanID)))
	defer span.End()

	out.ScanID = scanID
	defer func() {
		if p := recover(); p != nil {
			err = c.fail(ctx, scanID, fmt.Errorf("panic: %v", p))
			out.Status = store.StatusFailed
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	scan, err := c.deps.Store.GetScan(ctx, scanID)
	if err != nil {
		out.Status = store.StatusFailed
		return out, c.fail(ctx, scanID, fmt.Errorf("load scan: %w", err))
	}

	mode := opts.Mode
	if mode == "" {
		if mode, err = ParseMode(scan.Mode); err != nil {
			out.Status = store.StatusFailed
			return out, c.fail(ctx, scanID, err)
		}
	}
	out.Mode = mode
	out.Kind = Classify(scan.Target)
	span.SetAttributes(
		attribute.String("target", scan.Target),
		attribute.String("mode", string(mode)),
		attribute.String("kind", out.Kind.String()),
	)

	if v := c.deps.Validator.Validate(ctx, scan.Target, scan.Consent); !v.Valid {
		out.Status = store.StatusFailed
		return out, c.reject(ctx, scanID, v.Reason)
	}
	if err := c.deps.Store.SetStatus(ctx, scanID, store.StatusRunning); err != nil {
		out.Status = store.StatusFailed
		return out, c.fail(ctx, scanID, fmt.Errorf("mark running: %w", err))
	}
	c.log(ctx, scanID,
		fmt.Sprintf("Target validated. Kind: %s | Mode: %s", out.Kind, mode.Label()),
		"Initiating analysis pipeline...",
	)

	runDynamic := out.Kind == TargetNetwork || mode.Dynamic()
	runStatic := out.Kind == TargetRepository && mode.Static() && !opts.NoStatic &&
		c.deps.Stager != nil && c.deps.Static != nil
	if out.Kind == TargetRepository && !runStatic {
		switch {
		case mode == ModeDynamic:
			c.log(ctx, scanID, "Static Analysis skipped (Dynamic-only mode).")
		case opts.NoStatic:
			c.log(ctx, scanID, "Static Analysis skipped (disabled).")
		default:
			c.log(ctx, scanID, "Static Analysis skipped (no analyzers wired).")
		}
	}

	var workdir string
	if runStatic {
		c.log(ctx, scanID, "Initiating Deep Static Analysis...", "Acquiring working copy of the repository...")
		workdir, err = c.deps.Stager.Acquire(ctx, scan.Target)
		if err != nil {
			out.Status = store.StatusFailed
			return out, c.fail(ctx, scanID, fmt.Errorf("acquire working copy: %w", err))
		}
	}

	var (
		wg                             sync.WaitGroup
		dynamicFindings, staticFindings []engine.Finding
	)
	if runDynamic {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dynamicFindings = c.branch(ctx, scanID, "dynamic", "Dynamic Analysis", func(ctx context.Context) ([]engine.Finding, error) {
				return c.dynamicBranch(ctx, scanID, scan.Target, out.Kind, opts)
			})
		}()
	}
	if runStatic {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer c.release(scanID, workdir)
			staticFindings = c.branch(ctx, scanID, "static", "Static Analysis", func(ctx context.Context) ([]engine.Finding, error) {
				return c.staticBranch(ctx, scanID, workdir)
			})
		}()
	}
	wg.Wait()

	// Once the branches settle the scan must reach a terminal status, even if
	// the caller gave up.
	ctx = context.WithoutCancel(ctx)

	findings := make([]engine.Finding, 0, len(dynamicFindings)+len(staticFindings))
	findings = append(findings, dynamicFindings...)
	findings = append(findings, staticFindings...)

	for _, f := range findings {
		if err := c.deps.Store.CreateFinding(ctx, scanID, f); err != nil {
			out.Status = store.StatusFailed
			return out, c.fail(ctx, scanID, fmt.Errorf("persist finding %s: %w", f.ID, err))
		}
		c.log(ctx, scanID, fmt.Sprintf("[Finding] Identified %s (%s) via %s.", f.Issue, f.Severity, via(f)))
	}
	if c.deps.Observer != nil {
		c.deps.Observer.ObserveFindings(findings)
	}

	c.log(ctx, scanID, fmt.Sprintf("Analysis complete. %d findings across %s analysis.", len(findings), mode))
	if err := c.deps.Store.SetStatus(ctx, scanID, store.StatusCompleted); err != nil {
		out.Status = store.StatusFailed
		return out, c.fail(ctx, scanID, fmt.Errorf("mark completed: %w", err))
	}
	if c.deps.Observer != nil {
		c.deps.Observer.ObserveScan(string(store.StatusCompleted))
	}
	span.SetAttributes(attribute.Int("findings", len(findings)))

	out.Status = store.StatusCompleted
	out.Findings = findings
	return out, nil
}

// branch runs fn inside its own span and converts errors and panics into a
// warning log line and zero findings.
func (c *Coordinator) branch(ctx context.Context, scanID, name, label string, fn func(context.Context) ([]engine.Finding, error)) (findings []engine.Finding) {
	ctx, span := telemetry.Tracer().Start(ctx, "branch."+name)
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			findings = nil
			c.warnBranch(ctx, scanID, label, span, fmt.Errorf("panic: %v", p))
		}
	}()

	findings, err := fn(ctx)
	if err != nil {
		c.warnBranch(ctx, scanID, label, span, err)
		return nil
	}
	span.SetAttributes(attribute.Int("findings", len(findings)))
	return findings
}

func (c *Coordinator) warnBranch(ctx context.Context, scanID, label string, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	logging.L().Warnw("branch failed", "scan_id", scanID, "branch", label, "error", err)
	c.log(ctx, scanID, fmt.Sprintf("%s Warning: %v. Continuing with other results.", label, err))
}

func (c *Coordinator) dynamicBranch(ctx context.Context, scanID, target string, kind TargetKind, opts Options) ([]engine.Finding, error) {
	var (
		data *engine.ReconData
		err  error
	)
	if kind == TargetRepository {
		c.log(ctx, scanID, "Detected repository. Mapping structure via raw content...")
		data, err = c.deps.Recon.Repo(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("repository recon: %w", err)
		}
		c.log(ctx, scanID,
			fmt.Sprintf("Recon complete: Found %d key configuration files.", len(data.Files)),
			"Launching heuristic analysis...",
		)
	} else {
		c.log(ctx, scanID, "Probing web infrastructure headers and services...")
		data, err = c.deps.Recon.Web(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("web recon: %w", err)
		}
		c.log(ctx, scanID,
			fmt.Sprintf("Infrastructure mapping complete. Analyzed %d headers.", len(data.Headers)),
			"Scanned HTML surface for leaked secrets.",
		)
	}

	if opts.Provider != "" {
		c.log(ctx, scanID, fmt.Sprintf("Engaging %s intelligence for context-aware reasoning...", opts.Provider))
	}
	return c.deps.Reasoner.Reason(ctx, data)
}

func (c *Coordinator) staticBranch(ctx context.Context, scanID, workdir string) ([]engine.Finding, error) {
	res, err := c.deps.Static.Run(ctx, workdir)
	if err != nil {
		return nil, err
	}
	if len(res.Excluded) > 0 {
		logging.L().Debugw("analyzers excluded", "scan_id", scanID, "analyzers", strings.Join(res.Excluded, ","))
	}
	c.log(ctx, scanID, fmt.Sprintf("Static Analysis complete. %d security issues identified.", len(res.Findings)))
	return res.Findings, nil
}

// release removes the working copy. It runs when the static branch returns,
// on every path.
func (c *Coordinator) release(scanID, workdir string) {
	if err := c.deps.Stager.Release(workdir); err != nil {
		logging.L().Warnw("failed to release working copy", "scan_id", scanID, "path", workdir, "error", err)
	}
}

// log appends lines to the scan log. Log write failures are not fatal.
func (c *Coordinator) log(ctx context.Context, scanID string, lines ...string) {
	if c.deps.Progress != nil {
		for _, l := range lines {
			c.deps.Progress(l)
		}
	}
	if err := c.deps.Store.AppendLogs(ctx, scanID, lines...); err != nil {
		logging.L().Warnw("failed to append scan log", "scan_id", scanID, "error", err)
	}
}

func (c *Coordinator) reject(ctx context.Context, scanID, reason string) error {
	ctx = context.WithoutCancel(ctx)
	c.log(ctx, scanID, "Target validation failed: "+reason)
	if err := c.deps.Store.SetStatus(ctx, scanID, store.StatusFailed); err != nil {
		logging.L().Warnw("failed to mark scan failed", "scan_id", scanID, "error", err)
	}
	if c.deps.Observer != nil {
		c.deps.Observer.ObserveScan(string(store.StatusFailed))
	}
	return fmt.Errorf("%w: %s", ErrInvalidTarget, reason)
}

func (c *Coordinator) fail(ctx context.Context, scanID string, err error) error {
	ctx = context.WithoutCancel(ctx)
	logging.L().Errorw("scan failed", "scan_id", scanID, "error", err)
	c.log(ctx, scanID, "Critical Error: "+err.Error())
	if serr := c.deps.Store.SetStatus(ctx, scanID, store.StatusFailed); serr != nil {
		logging.L().Warnw("failed to mark scan failed", "scan_id", scanID, "error", serr)
	}
	if c.deps.Observer != nil {
		c.deps.Observer.ObserveScan(string(store.StatusFailed))
	}
	return err
}

func via(f engine.Finding) string {
	switch {
	case strings.HasPrefix(f.ID, "LLM"):
		return "Intelligence"
	case strings.HasPrefix(f.ID, "HEUR"):
		return "Heuristics"
	case f.Source != "":
		return f.Source
	default:
		return "Static Analysis"
	}
}

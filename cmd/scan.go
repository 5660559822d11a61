package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/user/sentinel-adk/pkg/adk"
	"github.com/user/sentinel-adk/pkg/analyzers"
	"github.com/user/sentinel-adk/pkg/logging"
	"github.com/user/sentinel-adk/pkg/metrics"
	"github.com/user/sentinel-adk/pkg/orchestrator"
	"github.com/user/sentinel-adk/pkg/pipeline"
	"github.com/user/sentinel-adk/pkg/recon"
	"github.com/user/sentinel-adk/pkg/report"
	"github.com/user/sentinel-adk/pkg/runner"
	"github.com/user/sentinel-adk/pkg/telemetry"
	"github.com/user/sentinel-adk/pkg/workspace"
)

var scanCmd = &cobra.Command{
	Use:   "scan <target>",
	Short: "Run a security scan against a URL or repository",
	Long: `Scan a web target or a source repository. Repositories in full or
static mode are cloned and run through every available static analyzer.
Scanning requires explicit confirmation that you are authorized (--consent).`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	f := scanCmd.Flags()
	f.String("mode", "full", "Scan mode: full, static or dynamic")
	f.Bool("consent", false, "Confirm you are authorized to test the target")
	f.Bool("no-static", false, "Skip the static analysis branch")
	f.String("provider", "", "LLM provider (gemini, openai, anthropic, none)")
	f.String("format", "text", "Report format: text, json or markdown")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address during the scan")
	f.String("otlp-endpoint", "", "OTLP gRPC endpoint for traces")
	f.StringSlice("analyzers", nil, "Restrict static analysis to these analyzers")
	f.Duration("tool-timeout", 0, "Per-tool timeout (default from config)")
	f.Bool("allow-private", false, "Allow loopback and private network targets")

	for _, name := range []string{"mode", "consent", "no-static", "provider", "format", "metrics-addr", "otlp-endpoint", "analyzers", "tool-timeout", "allow-private"} {
		_ = viper.BindPFlag("scan."+name, f.Lookup(name))
	}
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	target := args[0]
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	mode, err := pipeline.ParseMode(viper.GetString("scan.mode"))
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(viper.GetString("scan.format"))
	if err != nil {
		return err
	}
	if v := viper.GetStringSlice("scan.analyzers"); len(v) > 0 {
		cfg.Scan.Analyzers = v
	}
	if v := viper.GetDuration("scan.tool-timeout"); v > 0 {
		cfg.Scan.ToolTimeout = v
	}
	if v := viper.GetString("scan.metrics-addr"); v != "" {
		cfg.Scan.MetricsAddr = v
	}
	if v := viper.GetString("scan.otlp-endpoint"); v != "" {
		cfg.Scan.OTLPEndpoint = v
	}
	if viper.GetBool("scan.allow-private") {
		cfg.Scan.AllowPrivateTargets = true
	}

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Scan.OTLPEndpoint, cfg.Scan.OTLPInsecure)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logging.L().Warnw("tracer shutdown failed", "error", err)
		}
	}()

	rec, err := metrics.New()
	if err != nil {
		return err
	}
	if cfg.Scan.MetricsAddr != "" {
		shutdownMetrics, err := rec.Serve(cfg.Scan.MetricsAddr)
		if err != nil {
			return err
		}
		defer func() { _ = shutdownMetrics(context.Background()) }()
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	scan, err := st.CreateScan(ctx, target, string(mode), viper.GetBool("scan.consent"))
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Scan %s created for %s\n", scan.ID, target)

	provider, providerName, err := newProvider(ctx, cfg, viper.GetString("scan.provider"))
	if err != nil {
		return err
	}
	if c, ok := provider.(interface{ Close() }); ok {
		defer c.Close()
	}

	run := runner.New(
		runner.WithDefaultTimeout(cfg.Scan.ToolTimeout),
		runner.WithObserver(rec),
	)
	stager, err := workspace.NewGitStager(run, cloneRoot(cfg))
	if err != nil {
		return err
	}

	progress := func(line string) { fmt.Fprintln(os.Stderr, "  "+line) }
	static := orchestrator.New(
		analyzers.Select(analyzers.Default(run), cfg.Scan.Analyzers),
		orchestrator.WithObserver(rec),
		orchestrator.WithProgress(func(line string) {
			progress(line)
			if err := st.AppendLogs(ctx, scan.ID, line); err != nil {
				logging.L().Warnw("failed to append scan log", "scan_id", scan.ID, "error", err)
			}
		}),
	)

	coord := pipeline.New(pipeline.Deps{
		Store:     st,
		Validator: pipeline.DefaultValidator{AllowPrivate: cfg.Scan.AllowPrivateTargets},
		Recon: recon.New(run,
			recon.WithPortScan(cfg.Scan.PortScan),
			recon.WithNikto(cfg.Scan.Nikto),
		),
		Reasoner: adk.NewReasoner(provider, providerName),
		Stager:   stager,
		Static:   static,
		Observer: rec,
		Progress: func(line string) { fmt.Fprintln(os.Stderr, "[*] "+line) },
	})

	_, runErr := coord.Run(ctx, scan.ID, pipeline.Options{
		Mode:     mode,
		NoStatic: viper.GetBool("scan.no-static"),
		Provider: providerName,
	})

	if err := printReport(ctx, cfg, st, scan.ID, format); err != nil {
		return err
	}
	return runErr
}

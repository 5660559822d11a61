package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/sentinel-adk/pkg/adk"
	"github.com/user/sentinel-adk/pkg/analyzers"
	"github.com/user/sentinel-adk/pkg/config"
)

const heuristicsOnly = "none"

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard for reasoning and scan defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfigFile()
		if err != nil {
			return err
		}
		w := &wizard{in: bufio.NewScanner(os.Stdin), out: os.Stdout, newProvider: adk.NewProvider}
		if err := w.run(cmd.Context(), cfg); err != nil {
			return err
		}
		if err := saveConfigFile(cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Println("---------------------------------")
		fmt.Println("Setup Complete!")
		fmt.Println("You can now run 'sentinel scan <target> --consent'")
		return nil
	},
}

type providerFactory func(ctx context.Context, name, apiKey, model string) (adk.LLMProvider, error)

// wizard walks through the reasoning provider and the scan defaults. It
// only edits cfg; saving is the caller's job.
type wizard struct {
	in          *bufio.Scanner
	out         io.Writer
	newProvider providerFactory
}

func (w *wizard) ask(prompt string) string {
	fmt.Fprint(w.out, prompt)
	if !w.in.Scan() {
		return ""
	}
	return strings.TrimSpace(w.in.Text())
}

func (w *wizard) run(ctx context.Context, cfg *config.Config) error {
	fmt.Fprintln(w.out, "Welcome to Sentinel-ADK Setup Wizard")
	fmt.Fprintln(w.out, "---------------------------------")

	if err := w.reasoning(ctx, cfg); err != nil {
		return err
	}
	return w.scanDefaults(cfg)
}

func (w *wizard) reasoning(ctx context.Context, cfg *config.Config) error {
	choices := append(slices.Clone(adk.Providers), heuristicsOnly)
	fmt.Fprintln(w.out, "Step 1: Choose the reasoning provider")
	for i, name := range choices {
		label := name
		if name == heuristicsOnly {
			label = "none (heuristics only, no LLM calls)"
		}
		fmt.Fprintf(w.out, "%d. %s\n", i+1, label)
	}
	provider := pick(choices, strings.ToLower(w.ask("Enter number or name > ")))
	if provider == "" {
		return fmt.Errorf("invalid provider choice")
	}
	cfg.SelectedProvider = provider
	if provider == heuristicsOnly {
		cfg.SelectedModel = ""
		return nil
	}

	fmt.Fprintf(w.out, "\nStep 2: Enter API key for %s\n", provider)
	if key := w.ask("(blank keeps the stored key) > "); key != "" {
		cfg.SetAPIKey(provider, key)
	}
	apiKey := cfg.GetAPIKey(provider)
	if apiKey == "" {
		return fmt.Errorf("no API key for %s", provider)
	}

	fmt.Fprintln(w.out, "\nStep 3: Validating key and fetching available models...")
	var models []string
	p, err := w.newProvider(ctx, provider, apiKey, "")
	if err == nil {
		models, err = p.ListModels(ctx)
		if c, ok := p.(interface{ Close() }); ok {
			c.Close()
		}
	}
	if err == nil && len(models) == 0 {
		err = fmt.Errorf("provider returned no models")
	}
	if err != nil {
		fmt.Fprintf(w.out, "Warning: could not fetch models: %v\n", err)
		cfg.SelectedModel = w.ask("Model name (blank for the provider default) > ")
		return nil
	}
	for i, m := range models {
		fmt.Fprintf(w.out, "%d. %s\n", i+1, m)
	}
	cfg.SelectedModel = pick(models, w.ask("Select model (number) > "))
	if cfg.SelectedModel == "" {
		fmt.Fprintln(w.out, "Invalid selection. Using first available model.")
		cfg.SelectedModel = models[0]
	}
	return nil
}

func (w *wizard) scanDefaults(cfg *config.Config) error {
	sc := &cfg.Scan
	fmt.Fprintln(w.out, "\nStep 4: Scan defaults (blank keeps the current value)")

	if v := w.ask(fmt.Sprintf("Per-tool timeout [%s] > ", sc.ToolTimeout)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid tool timeout %q", v)
		}
		sc.ToolTimeout = d
	}

	known := analyzers.Names()
	current := "all"
	if len(sc.Analyzers) > 0 {
		current = strings.Join(sc.Analyzers, ",")
	}
	fmt.Fprintf(w.out, "Available analyzers: %s\n", strings.Join(known, ", "))
	if v := w.ask(fmt.Sprintf("Analyzers to run [%s] > ", current)); v != "" {
		if strings.EqualFold(v, "all") {
			sc.Analyzers = nil
		} else {
			var names []string
			for _, n := range strings.Split(v, ",") {
				n = strings.ToLower(strings.TrimSpace(n))
				if n == "" {
					continue
				}
				if !slices.Contains(known, n) {
					return fmt.Errorf("unknown analyzer %q", n)
				}
				names = append(names, n)
			}
			sc.Analyzers = names
		}
	}

	sc.PortScan = w.yesNo("Run nmap port scan on web targets", sc.PortScan)
	sc.Nikto = w.yesNo("Run nikto on web targets", sc.Nikto)
	sc.AllowPrivateTargets = w.yesNo("Allow private and loopback targets", sc.AllowPrivateTargets)
	return nil
}

func (w *wizard) yesNo(question string, current bool) bool {
	def := "y/N"
	if current {
		def = "Y/n"
	}
	switch strings.ToLower(w.ask(fmt.Sprintf("%s? [%s] > ", question, def))) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	default:
		return current
	}
}

// pick resolves a 1-based index or an exact name against options. It
// returns "" when nothing matches.
func pick(options []string, choice string) string {
	if i, err := strconv.Atoi(choice); err == nil {
		if i >= 1 && i <= len(options) {
			return options[i-1]
		}
		return ""
	}
	if slices.Contains(options, choice) {
		return choice
	}
	return ""
}

func init() {
	configCmd.AddCommand(setupCmd)
}

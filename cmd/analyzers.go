package cmd

import (
	"fmt"
	"os"
	"sync"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/sentinel-adk/pkg/analyzers"
	"github.com/user/sentinel-adk/pkg/runner"
)

var analyzersCmd = &cobra.Command{
	Use:   "analyzers",
	Short: "List static analyzers and whether their tools are installed",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		all := analyzers.Default(runner.New())
		enabled := make(map[string]bool)
		for _, a := range analyzers.Select(all, cfg.Scan.Analyzers) {
			enabled[a.Name()] = true
		}

		avail := make([]bool, len(all))
		var wg sync.WaitGroup
		for i, a := range all {
			wg.Add(1)
			go func(i int, a analyzers.Analyzer) {
				defer wg.Done()
				avail[i] = a.Available(cmd.Context())
			}(i, a)
		}
		wg.Wait()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ANALYZER\tINSTALLED\tENABLED")
		for i, a := range all {
			fmt.Fprintf(w, "%s\t%s\t%s\n", a.Name(), yesNo(avail[i]), yesNo(enabled[a.Name()]))
		}
		return w.Flush()
	},
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func init() {
	rootCmd.AddCommand(analyzersCmd)
}

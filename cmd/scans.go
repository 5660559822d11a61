package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var scansCmd = &cobra.Command{
	Use:   "scans",
	Short: "Inspect stored scans",
}

var scansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scans, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		scans, err := st.ListScans(cmd.Context())
		if err != nil {
			return err
		}
		if len(scans) == 0 {
			fmt.Println("No scans recorded.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tMODE\tCREATED\tTARGET")
		for _, s := range scans {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.Status, s.Mode, s.CreatedAt.Local().Format(time.DateTime), s.Target)
		}
		return w.Flush()
	},
}

var scansShowCmd = &cobra.Command{
	Use:   "show <scan-id>",
	Short: "Show a scan's status and log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		s, err := st.GetScan(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		findings, err := st.ListFindings(cmd.Context(), s.ID)
		if err != nil {
			return err
		}

		fmt.Printf("Scan:     %s\n", s.ID)
		fmt.Printf("Target:   %s\n", s.Target)
		fmt.Printf("Status:   %s\n", s.Status)
		fmt.Printf("Mode:     %s\n", s.Mode)
		fmt.Printf("Consent:  %t\n", s.Consent)
		fmt.Printf("Findings: %d\n", len(findings))
		fmt.Println("\nLog:")
		for _, l := range s.Logs {
			fmt.Printf("  %4d  %s  %s\n", l.Seq, l.Time.Local().Format(time.TimeOnly), l.Text)
		}
		return nil
	},
}

func init() {
	scansCmd.AddCommand(scansListCmd)
	scansCmd.AddCommand(scansShowCmd)
	rootCmd.AddCommand(scansCmd)
}

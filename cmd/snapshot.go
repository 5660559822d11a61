package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/sentinel-adk/pkg/engine"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Save and compare finding baselines",
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save <scan-id> [file]",
	Short: "Save a scan's findings as the baseline",
	Args:  cobra.RangeArgs(1, 2),
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

		scan, err := st.GetScan(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		findings, err := st.ListFindings(cmd.Context(), scan.ID)
		if err != nil {
			return err
		}
		path := snapshotPath(args)
		if err := engine.SaveSnapshot(path, engine.Snapshot{ScanID: scan.ID, Target: scan.Target, Findings: findings}); err != nil {
			return err
		}
		fmt.Printf("Saved %d findings to %s\n", len(findings), path)
		return nil
	},
}

var snapshotDiffCmd = &cobra.Command{
	Use:   "diff <scan-id> [file]",
	Short: "Compare a scan's findings with a saved baseline",
	Args:  cobra.RangeArgs(1, 2),
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

		findings, err := st.ListFindings(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		base, err := engine.LoadSnapshot(snapshotPath(args))
		if err != nil {
			return fmt.Errorf("load baseline: %w", err)
		}

		diff := engine.CompareSnapshot(findings, base.Findings)
		fmt.Printf("Baseline: scan %s (%s)\n", base.ScanID, base.SavedAt.Local().Format("2006-01-02 15:04"))
		fmt.Printf("New: %d  Fixed: %d  Unchanged: %d\n", len(diff.New), len(diff.Fixed), len(diff.Unchanged))
		for _, f := range diff.New {
			fmt.Printf("  + [%s] %s\n", f.Severity, f.Issue)
		}
		for _, f := range diff.Fixed {
			fmt.Printf("  - [%s] %s\n", f.Severity, f.Issue)
		}
		return nil
	},
}

func snapshotPath(args []string) string {
	if len(args) > 1 {
		return args[1]
	}
	return engine.DefaultSnapshotPath
}

func init() {
	snapshotCmd.AddCommand(snapshotSaveCmd)
	snapshotCmd.AddCommand(snapshotDiffCmd)
	rootCmd.AddCommand(snapshotCmd)
}

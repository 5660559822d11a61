package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/user/sentinel-adk/pkg/config"
	"github.com/user/sentinel-adk/pkg/report"
	"github.com/user/sentinel-adk/pkg/store"
)

var reportCmd = &cobra.Command{
	Use:   "report <scan-id>",
	Short: "Render the risk report of a stored scan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := report.ParseFormat(viper.GetString("report.format"))
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		return printReport(cmd.Context(), cfg, st, args[0], format)
	},
}

func init() {
	reportCmd.Flags().StringP("format", "f", "text", "Report format: text, json or markdown")
	_ = viper.BindPFlag("report.format", reportCmd.Flags().Lookup("format"))
	rootCmd.AddCommand(reportCmd)
}

func printReport(ctx context.Context, cfg *config.Config, st store.Store, scanID string, format report.Format) error {
	scan, err := st.GetScan(ctx, scanID)
	if err != nil {
		return err
	}
	findings, err := st.ListFindings(ctx, scanID)
	if err != nil {
		return err
	}
	b, err := newReportBuilder(cfg)
	if err != nil {
		return err
	}
	return report.Write(os.Stdout, b.Build(scan, findings), format)
}

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/user/sentinel-adk/pkg/logging"
)

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Security scan orchestration for web targets and repositories",
	Long: `Sentinel-ADK runs authorized security assessments. Web targets get
reconnaissance and reasoning; repositories additionally get a shallow clone
scanned by every installed static analyzer in parallel. Scans, logs and
findings are persisted so reports can be produced later.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Init(viper.GetBool("debug"))
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.sentinel-adk/config.yaml)")
	rootCmd.PersistentFlags().String("store", "", "Scan database path, or :memory: for a throwaway store")
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("store", rootCmd.PersistentFlags().Lookup("store"))

	// SENTINEL_DEBUG, SENTINEL_STORE, SENTINEL_SCAN_MODE, ...
	viper.SetEnvPrefix("SENTINEL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

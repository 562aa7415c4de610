package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "megayield",
	Short: "Daily lottery with referral rewards and vested, yield-bearing jackpots",
	Long: `megayield runs a daily lottery. Tickets are paid in a stable unit, 30% of a
referred purchase goes to the referrer and the rest grows the jackpot. Once a day
the operator asks the randomness oracle for a winner; the jackpot is paid out as a
first installment plus 119 monthly installments held in a yield vault.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// config.Get reads the file path from the environment
		if configPath != "" {
			return os.Setenv("MEGAYIELD_CONFIG", configPath)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a TOML config file")
}

// Execute runs the CLI until ctx is cancelled
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

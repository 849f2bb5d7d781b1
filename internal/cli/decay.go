package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vorion/trustgate/internal/trust"
)

func init() {
	rootCmd.AddCommand(decayCmd)
	decayCmd.AddCommand(decayRunCmd)
}

var decayCmd = &cobra.Command{
	Use:   "decay",
	Short: "Inactivity decay operations",
}

var decayRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one decay batch over all agents",
	Long: "Erodes the score of every agent inactive past the grace period, bounded\n" +
		"per run and floored. Agents on probation are skipped. Per-agent failures\n" +
		"are reported in the summary, never abort the batch.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		svc := trust.NewService(st, logger, trust.WithDailyGainCap(cfg.Trust.DailyGainCap))
		report, err := svc.RunDecay(cmd.Context())
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

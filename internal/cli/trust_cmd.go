package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vorion/trustgate/internal/model"
	"github.com/vorion/trustgate/internal/trust"
)

var adjustFlags struct {
	changeType string
	delta      int
	reason     string
}

func init() {
	rootCmd.AddCommand(trustCmd)
	trustCmd.AddCommand(trustAdjustCmd)
	trustCmd.AddCommand(probationCmd)
	probationCmd.AddCommand(probationStartCmd)
	probationCmd.AddCommand(probationEndCmd)

	f := trustAdjustCmd.Flags()
	f.StringVar(&adjustFlags.changeType, "type", "manual", "Change type from the fixed table, or \"manual\"")
	f.IntVar(&adjustFlags.delta, "delta", 0, "Explicit delta (required for manual and decay types)")
	f.StringVar(&adjustFlags.reason, "reason", "", "Reason recorded in the history entry")
}

var trustCmd = &cobra.Command{
	Use:   "trust",
	Short: "Mutate agent trust scores",
}

var trustAdjustCmd = &cobra.Command{
	Use:   "adjust <agent-id>",
	Short: "Apply a trust change to an agent",
	Long: "Applies a named change from the fixed trust-change table, or an explicit\n" +
		"delta for manual adjustments. The score stays clamped to [0, 1000].",
	Args: cobra.ExactArgs(1),
	RunE: runTrustAdjust,
}

func runTrustAdjust(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	svc := trust.NewService(st, logger, trust.WithDailyGainCap(cfg.Trust.DailyGainCap))

	var opts *trust.ApplyOptions
	if cmd.Flags().Changed("delta") {
		delta := adjustFlags.delta
		opts = &trust.ApplyOptions{CustomDelta: &delta, CustomReason: adjustFlags.reason}
	} else if adjustFlags.reason != "" {
		opts = &trust.ApplyOptions{CustomReason: adjustFlags.reason}
	}

	result, err := svc.ApplyTrustChange(cmd.Context(), args[0], model.ChangeType(adjustFlags.changeType), opts)
	if err != nil {
		return err
	}
	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	return nil
}

var probationCmd = &cobra.Command{
	Use:   "probation",
	Short: "Manage agent probation",
}

var probationStartCmd = &cobra.Command{
	Use:   "start <agent-id>",
	Short: "Place an agent on probation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := trust.NewService(st, logger).StartProbation(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("agent %s placed on probation\n", args[0])
		return nil
	},
}

var probationEndCmd = &cobra.Command{
	Use:   "end <agent-id>",
	Short: "Lift an agent's probation early",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := trust.NewService(st, logger).EndProbation(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("probation lifted for agent %s\n", args[0])
		return nil
	},
}

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vorion/trustgate/internal/audit"
	"github.com/vorion/trustgate/internal/model"
)

var (
	verifyFrom int
	verifyTo   int

	replaySession string
	replayType    string
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditReplayCmd)
	auditCmd.AddCommand(auditStatsCmd)

	auditVerifyCmd.Flags().IntVar(&verifyFrom, "from", 0, "First chain index to verify")
	auditVerifyCmd.Flags().IntVar(&verifyTo, "to", 0, "Last chain index to verify (0 = end)")

	auditReplayCmd.Flags().StringVar(&replaySession, "session", "", "Filter by session id")
	auditReplayCmd.Flags().StringVar(&replayType, "type", "", "Filter by decision type")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Decision audit chain operations",
	Long:  "Commands for verifying and replaying the hash-chained decision log.",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify <agent-id>",
	Short: "Verify hash chain integrity for an agent",
	Long: "Walks the agent's decision chain and validates every entry's content hash\n" +
		"and prev-hash link. Exits 0 if valid, 1 if tampered.",
	Args: cobra.ExactArgs(1),
	RunE: runAuditVerify,
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	svc := audit.NewService(st, logger)
	result, err := svc.VerifyChain(cmd.Context(), args[0], verifyFrom, verifyTo)
	if err != nil {
		return err
	}
	if result.Valid {
		fmt.Printf("OK: %d entries verified\n", result.Length)
		return nil
	}
	fmt.Fprintf(os.Stderr, "FAILED at index %d: %s\n", result.BrokenAt, result.Reason)
	os.Exit(1)
	return nil
}

var auditReplayCmd = &cobra.Command{
	Use:   "replay <agent-id>",
	Short: "Replay an agent's decision history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		svc := audit.NewService(st, logger)
		result, err := svc.Replay(cmd.Context(), args[0], audit.ReplayFilter{
			SessionID:    replaySession,
			DecisionType: model.DecisionType(replayType),
		})
		if err != nil {
			return err
		}

		for _, e := range result.Entries {
			fmt.Printf("%s  %-14s %-9s %s\n",
				e.Timestamp.Format(time.RFC3339), e.DecisionType, e.Outcome, e.Rationale)
		}
		out, _ := json.MarshalIndent(result.Summary, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

var auditStatsCmd = &cobra.Command{
	Use:   "stats <agent-id>",
	Short: "Print chain statistics for an agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		svc := audit.NewService(st, logger)
		stats, err := svc.ChainStats(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

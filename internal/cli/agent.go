package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vorion/trustgate/internal/trust"
)

var historySince time.Duration

func init() {
	rootCmd.AddCommand(agentCmd)
	agentCmd.AddCommand(agentShowCmd)
	agentCmd.AddCommand(agentListCmd)
	agentCmd.AddCommand(agentHistoryCmd)
	agentHistoryCmd.Flags().DurationVar(&historySince, "since", 30*24*time.Hour, "History window")
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Inspect agent trust records",
}

var agentShowCmd = &cobra.Command{
	Use:   "show <agent-id>",
	Short: "Print an agent's current trust record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		svc := trust.NewService(st, logger)
		rec, err := svc.GetAgent(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(rec, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

var agentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all agents with score and tier",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		agents, err := st.ListAgents(cmd.Context())
		if err != nil {
			return err
		}
		for _, a := range agents {
			probation := ""
			if a.OnProbation {
				probation = " [probation]"
			}
			fmt.Printf("%-24s L%d  score=%-4d tier=%-10s autonomy=%s%s\n",
				a.AgentID, int(a.HierarchyLevel), int(a.Score), a.Tier, a.EffectiveAutonomy(), probation)
		}
		return nil
	},
}

var agentHistoryCmd = &cobra.Command{
	Use:   "history <agent-id>",
	Short: "Print an agent's trust history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		since := time.Now().UTC().Add(-historySince)
		entries, err := st.TrustHistory(cmd.Context(), args[0], since)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s  %+4d -> %-4d  %-28s %s\n",
				e.Timestamp.Format(time.RFC3339), e.Delta, int(e.NewScore), e.ChangeType, e.Reason)
		}
		return nil
	},
}

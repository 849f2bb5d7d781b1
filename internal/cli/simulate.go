package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vorion/trustgate/internal/audit"
	"github.com/vorion/trustgate/internal/guard"
	"github.com/vorion/trustgate/internal/model"
	"github.com/vorion/trustgate/internal/trust"
)

var simulateFlags struct {
	actionType  string
	description string
	risk        string
	scope       string
	authScope   string
	destination string
	targets     []string
	approval    bool
	yes         bool
	user        string
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	f := simulateCmd.Flags()
	f.StringVar(&simulateFlags.actionType, "type", "data:read", "Action type, e.g. data:write")
	f.StringVar(&simulateFlags.description, "description", "", "Action description")
	f.StringVar(&simulateFlags.risk, "risk", "low", "Risk level: low|medium|high|critical")
	f.StringVar(&simulateFlags.scope, "scope", "", "Action scope")
	f.StringVar(&simulateFlags.authScope, "authorized-scope", "", "Authorized scope for the session")
	f.StringVar(&simulateFlags.destination, "destination", "", "Action destination")
	f.StringSliceVar(&simulateFlags.targets, "target", nil, "Target system (repeatable)")
	f.BoolVar(&simulateFlags.approval, "approval", false, "Attach human approval")
	f.BoolVar(&simulateFlags.yes, "yes", false, "Answer confirmations with yes instead of prompting")
	f.StringVar(&simulateFlags.user, "user", "operator", "Session user id")
}

var simulateCmd = &cobra.Command{
	Use:   "simulate <agent-id>",
	Short: "Run one governed action through the full guard pipeline",
	Long: "Validates and executes a no-op action for an agent, driving the same\n" +
		"validation, confirmation, and audit path a real caller would.",
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

func runSimulate(cmd *cobra.Command, args []string) error {
	agentID := args[0]

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	trustSvc := trust.NewService(st, logger, trust.WithDailyGainCap(cfg.Trust.DailyGainCap))
	auditSvc := audit.NewService(st, logger)

	rec, err := trustSvc.GetAgent(cmd.Context(), agentID)
	if err != nil {
		return err
	}

	g := guard.New(agentID, rec.HierarchyLevel, guard.Config{
		DenyOnHardLimit:    cfg.Guard.DenyOnHardLimit,
		ConfirmOnSoftLimit: cfg.Guard.ConfirmOnSoftLimit,
		LogAllDecisions:    cfg.Guard.LogAllDecisions,
	}, trustSvc, auditSvc, logger, guard.WithPolicyHash(policyHash))

	action := &model.Action{
		Type:        simulateFlags.actionType,
		Description: simulateFlags.description,
		Risk:        model.ParseRiskLevel(simulateFlags.risk),
		Scope:       simulateFlags.scope,
		Targets:     simulateFlags.targets,
		Destination: simulateFlags.destination,
	}

	result, err := g.ValidateAndExecute(cmd.Context(), action, func(context.Context) (string, error) {
		return fmt.Sprintf("simulated %q", action.Type), nil
	}, &guard.ExecOptions{
		UserID:                simulateFlags.user,
		AuthorizedScope:       simulateFlags.authScope,
		HumanApprovalAttached: simulateFlags.approval,
		Confirm:               confirmFunc(),
	})
	if err != nil {
		return err
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	return nil
}

// confirmFunc answers from --yes or asks on the terminal.
func confirmFunc() guard.ConfirmFunc {
	if simulateFlags.yes {
		return func(context.Context, string) (bool, error) { return true, nil }
	}
	return func(_ context.Context, prompt string) (bool, error) {
		fmt.Printf("%s [y/N]: ", prompt)
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false, err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	}
}

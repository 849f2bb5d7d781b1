package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vorion/trustgate/internal/model"
	"github.com/vorion/trustgate/internal/override"
)

var overrideFlags struct {
	session   string
	user      string
	original  string
	directive string
}

func init() {
	rootCmd.AddCommand(overrideCmd)
	f := overrideCmd.Flags()
	f.StringVar(&overrideFlags.session, "session", "", "Session id")
	f.StringVar(&overrideFlags.user, "user", "operator", "Issuing user id")
	f.StringVar(&overrideFlags.original, "original", "", "The agent recommendation being overridden")
	f.StringVar(&overrideFlags.directive, "directive", "", "Replacement instruction, if any")
}

var overrideCmd = &cobra.Command{
	Use:   "override <agent-id> <command>",
	Short: "Issue a human override command",
	Long: "Executes a human override: pause, stop, redirect, explain, veto, escalate,\n" +
		"or rollback. The override always takes effect; only its logging can fail.",
	Args: cobra.ExactArgs(2),
	RunE: runOverride,
}

func runOverride(cmd *cobra.Command, args []string) error {
	command := model.OverrideCommand(args[1])
	if !model.KnownOverrideCommand(command) {
		return fmt.Errorf("unknown override command %q", args[1])
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	p := override.NewProtocol(st, logger)
	result, err := p.Process(cmd.Context(), &override.Request{
		AgentID:                args[0],
		SessionID:              overrideFlags.session,
		UserID:                 overrideFlags.user,
		Command:                command,
		OriginalRecommendation: overrideFlags.original,
		Directive:              overrideFlags.directive,
	})
	if err != nil {
		return err
	}

	fmt.Println(result.Event.Acknowledgment)
	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	return nil
}

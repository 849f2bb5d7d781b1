package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vorion/trustgate/internal/config"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configWatchCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the governance configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration and its hash",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := json.MarshalIndent(cfg, "", "  ")
		fmt.Println(string(out))
		fmt.Printf("policy hash: %s\n", policyHash)
		return nil
	},
}

var configWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the config file and report reloads",
	Long: "Watches the configuration file and prints the new policy hash on every\n" +
		"change. Runs until interrupted. A change that fails to parse is reported\n" +
		"and the previous configuration stays in force.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reloader, err := config.NewReloader(cfgPath, logger, func(c *config.Config, hash string) {
			fmt.Printf("config reloaded, policy hash %s\n", hash)
		})
		if err != nil {
			return err
		}
		fmt.Println("watching for configuration changes, ctrl-c to stop")
		return reloader.Run(cmd.Context())
	},
}

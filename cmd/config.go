package cmd

import (
	"fmt"

	"github.com/caedis/modengine/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or edit the local config.json",
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a config value",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(enginePaths())
		if err != nil {
			return err
		}
		switch args[0] {
		case "remote_config_url":
			fmt.Println(cfg.RemoteConfigURL)
		default:
			return wrapUsageError(fmt.Errorf("unknown config key %q", args[0]))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value",
	Args:  usageArgs(cobra.ExactArgs(2)),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := enginePaths()
		cfg, err := config.Load(p)
		if err != nil {
			return err
		}
		switch args[0] {
		case "remote_config_url":
			cfg.RemoteConfigURL = args[1]
		default:
			return wrapUsageError(fmt.Errorf("unknown config key %q", args[0]))
		}
		return config.Save(p, cfg)
	},
}

func init() {
	configCmd.AddCommand(configGetCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Fetch manifests and summarize pending changes without applying them",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		plan, m, applied, err := computePlan(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("applied version: %s\n", applied)
		fmt.Printf("target version:  %s\n", m.Remote.ModpackVersion)

		counts := map[string]int{}
		for _, a := range plan.Actions {
			counts[string(a.Kind)]++
		}
		for _, kind := range []string{"NEW_DOWNLOAD", "UPDATE", "RENAME", "DELETE", "SKIP", "NO_ACTION"} {
			if counts[kind] > 0 {
				fmt.Printf("  %-12s %d\n", kind, counts[kind])
			}
		}
		for _, w := range plan.Warnings {
			fmt.Println("warning:", w)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

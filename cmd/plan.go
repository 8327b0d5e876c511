package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the full plan of actions without applying it",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, _, _, err := computePlan(cmd.Context())
		if err != nil {
			return err
		}

		for _, a := range plan.Actions {
			switch a.Kind {
			case "RENAME":
				fmt.Printf("%-12s %s -> %s\n", a.Kind, a.Existing, a.Target)
			default:
				fmt.Printf("%-12s %s\n", a.Kind, a.Target)
			}
			if a.Reason != "" {
				fmt.Printf("             (%s)\n", a.Reason)
			}
		}
		for _, w := range plan.Warnings {
			fmt.Println("warning:", w)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
}

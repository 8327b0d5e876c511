package cmd

import (
	"fmt"

	"github.com/caedis/modengine/internal/pendingops"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay the pending-operations journal alone (spec startup hook replayPending)",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := enginePaths()
		journal, err := pendingops.Load(p)
		if err != nil {
			return err
		}
		before := len(journal.Ops())
		if err := journal.Replay(p); err != nil {
			return err
		}
		after := len(journal.Ops())
		fmt.Printf("replayed %d of %d pending operations; %d remain\n", before-after, before, after)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

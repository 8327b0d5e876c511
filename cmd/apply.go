package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/caedis/modengine/internal/appliedstate"
	"github.com/caedis/modengine/internal/downloader"
	"github.com/caedis/modengine/internal/executor"
	"github.com/caedis/modengine/internal/metadata"
	"github.com/caedis/modengine/internal/pendingops"
	"github.com/caedis/modengine/internal/progress"
	"github.com/spf13/cobra"
)

var applyYes bool

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Replay pending operations, compute the plan, and execute it",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p := enginePaths()
		if err := p.EnsureDirs(); err != nil {
			return err
		}

		journal, err := pendingops.Load(p)
		if err != nil {
			return err
		}
		if err := journal.Replay(p); err != nil {
			return err
		}

		plan, m, _, err := computePlan(ctx)
		if err != nil {
			return err
		}
		if len(plan.Actions) == 0 {
			fmt.Println("nothing to do")
			return nil
		}

		if !applyYes {
			fmt.Printf("%d actions planned. Apply? [y/N] ", len(plan.Actions))
			var answer string
			fmt.Scanln(&answer)
			if answer != "y" && answer != "Y" {
				fmt.Println("aborted")
				return nil
			}
		}

		store, err := metadata.Load(p)
		if err != nil {
			return err
		}

		sink := progress.NewCLI("apply", len(plan.Actions))
		defer sink.Close()

		authHook := func(req *http.Request) {
			if t := getToken(); t != "" {
				req.Header.Set("Authorization", "Bearer "+t)
			}
		}

		ex := executor.New(p, store, journal, sink, executor.Options{
			MaxRetries:       m.Remote.MaxRetries,
			BackupKeep:       m.Remote.BackupKeep,
			DownloadAuthHook: authHook,
			Concurrency:      concurrency,
		}, time.Now())

		result, runErr := ex.Run(ctx, plan)
		if runErr != nil {
			return runErr
		}

		if err := ex.Commit(result, m.Remote.ModpackVersion, appliedstate.Save); err != nil {
			return err
		}

		fmt.Printf("applied: now at version %s\n", m.Remote.ModpackVersion)
		return nil
	},
}

func init() {
	applyCmd.Flags().BoolVarP(&applyYes, "yes", "y", false, "Apply without an interactive confirmation")
	rootCmd.AddCommand(applyCmd)
}

package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caedis/modengine/internal/engerrors"
	"github.com/caedis/modengine/internal/logging"
	"github.com/caedis/modengine/internal/profile"
	"github.com/spf13/cobra"
)

var (
	instanceDir    string
	configDir      string
	githubToken    string
	curseForgeBase string
	profileName    string
	verbose        bool
	logFile        string
	concurrency    int
)

var rootCmd = &cobra.Command{
	Use:           "modengine",
	Short:         "Reconcile a modpack install against a remote manifest",
	Long:          "modengine fetches a remote modpack manifest, plans the minimal set of downloads, renames, and deletions needed to match it, and applies that plan with crash-safe staging and deferred retries for locked files.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Apply profile defaults for flags not explicitly set by the user.
		if profileName != "" {
			p, err := profile.Load(profileName)
			if err != nil {
				return err
			}
			if p.InstanceDir != nil && !cmd.Flags().Changed("instance-dir") {
				instanceDir = *p.InstanceDir
			}
			if p.ConfigDir != nil && !cmd.Flags().Changed("config-dir") {
				configDir = *p.ConfigDir
			}
			if p.GithubToken != nil && !cmd.Flags().Changed("github-token") {
				githubToken = *p.GithubToken
			}
			if p.CurseForgeBase != nil && !cmd.Flags().Changed("curseforge-base") {
				curseForgeBase = *p.CurseForgeBase
			}
			if p.Concurrency != nil && !cmd.Flags().Changed("concurrency") {
				concurrency = *p.Concurrency
			}
			if p.Verbose != nil && !cmd.Flags().Changed("verbose") {
				verbose = *p.Verbose
			}
			if p.LogFile != nil && !cmd.Flags().Changed("log-file") {
				logFile = *p.LogFile
			}
		}

		logging.SetVerbose(verbose)
		if err := logging.SetOutputFile(logFile); err != nil {
			return fmt.Errorf("opening log file %q: %w", logFile, err)
		}
		return nil
	},
}

// Execute runs the command tree and maps the returned error to the exit
// codes in spec §6: 0 success, 1 generic failure, 2 configuration
// incomplete, 3 cancelled.
func Execute() {
	err := rootCmd.Execute()
	closeErr := logging.Close()
	if closeErr != nil {
		fmt.Fprintf(os.Stderr, "Error closing log file: %v\n", closeErr)
		if err == nil {
			os.Exit(1)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if isUsageError(err) {
			if cmd, _, findErr := rootCmd.Find(os.Args[1:]); findErr == nil && cmd != nil {
				_ = cmd.Usage()
			} else {
				_ = rootCmd.Usage()
			}
			os.Exit(1)
		}
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	var cfgErr *engerrors.ConfigError
	if errors.As(err, &cfgErr) {
		return 2
	}
	var cancelErr *engerrors.CancelledError
	if errors.As(err, &cancelErr) {
		return 3
	}
	return 1
}

func init() {
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return wrapUsageError(err)
	})

	rootCmd.PersistentFlags().StringVarP(&instanceDir, "instance-dir", "d", ".", "Modpack instance root directory")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Override the config/ModUpdater directory (default: <instance-dir>/config/ModUpdater)")
	rootCmd.PersistentFlags().StringVar(&githubToken, "github-token", "", "Bearer token for the remote manifest and provider APIs (also reads MODENGINE_TOKEN env)")
	rootCmd.PersistentFlags().StringVar(&curseForgeBase, "curseforge-base", "", "Base URL of a CurseForge-compatible proxy API")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "Load a saved option profile by name")
	rootCmd.PersistentFlags().IntVarP(&concurrency, "concurrency", "c", 3, "Max concurrent downloads")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write command output to a log file")
}

func getToken() string {
	if githubToken != "" {
		return githubToken
	}
	return os.Getenv("MODENGINE_TOKEN")
}

type usageError struct {
	err error
}

func (e *usageError) Error() string {
	return e.err.Error()
}

func (e *usageError) Unwrap() error {
	return e.err
}

func wrapUsageError(err error) error {
	if err == nil {
		return nil
	}
	return &usageError{err: err}
}

func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if validate == nil {
			return nil
		}
		if err := validate(cmd, args); err != nil {
			return wrapUsageError(err)
		}
		return nil
	}
}

func isUsageError(err error) bool {
	var ue *usageError
	if errors.As(err, &ue) {
		return true
	}

	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command ")
}

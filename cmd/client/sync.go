package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	clientsync "github.com/shelf-sh/shelf/internal/client/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync PROJECT [DIR]",
	Short: "Sync a local directory to a project",
	Long: `Sync makes the remote project subtree mirror a local directory:
new and changed files are uploaded, remote files with no local
counterpart are deleted. Unchanged files cost nothing.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireToken(); err != nil {
			return err
		}
		cmd.SilenceUsage = true

		dir := "."
		if len(args) > 1 {
			dir = args[1]
		}
		prefix, _ := cmd.Flags().GetString("prefix")
		force, _ := cmd.Flags().GetBool("force")

		api, err := newSDK()
		if err != nil {
			return err
		}

		syncer := clientsync.NewSyncer(api, &clientsync.SyncerConfig{
			Dir:     dir,
			Project: args[0],
			Prefix:  prefix,
			Force:   force,
			Progress: func(format string, a ...any) {
				fmt.Printf(format+"\n", a...)
			},
		})

		outcome, err := syncer.Run(cmd.Context())
		if err != nil {
			if errors.Is(err, clientsync.ErrEmptyLocal) {
				return err
			}
			if outcome != nil && outcome.Failed > 0 {
				return fmt.Errorf("sync incomplete (%s): %w", outcome.Summary(), err)
			}
			return err
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().String("prefix", "", "Remote subtree prefix to sync into")
	syncCmd.Flags().Bool("force", false, "Allow an empty local directory to delete all remote files")
}

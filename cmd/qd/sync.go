package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quadrant-tasks/quadrant/internal/ui"
)

var (
	syncUpOnly    bool
	syncDownOnly  bool
	syncOverwrite bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a sync round against the remote server",
	Long: `Run one sync round: upload unsynced tasks, then download remote
updates. Use --up or --down for a single direction, or
--overwrite-server to wipe the remote and re-upload everything local.`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatalf("%v", err)
		}
		defer a.close()

		if !a.syncer.Configured() {
			fatalf("no remote endpoint configured (set remote.base_url in %s)", a.cfg.Path)
		}

		ctx := cmd.Context()
		switch {
		case syncOverwrite:
			if err := a.syncer.OverwriteServer(ctx); err != nil {
				fatalf("overwrite failed: %v", err)
			}
		case syncUpOnly:
			if err := a.syncer.Upload(ctx); err != nil {
				fatalf("upload failed: %v", err)
			}
		case syncDownOnly:
			if err := a.syncer.Download(ctx); err != nil {
				fatalf("download failed: %v", err)
			}
		default:
			a.syncer.Sync(ctx)
		}

		fmt.Println(ui.RenderDone("Sync round complete"))
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent sync rounds and pending upload count",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatalf("%v", err)
		}
		defer a.close()

		status, err := a.syncer.Status(cmd.Context())
		if err != nil {
			fatalf("failed to read sync status: %v", err)
		}

		if status.Configured {
			fmt.Printf("Remote: %s\n", ui.RenderAccent(a.cfg.Remote.BaseURL))
		} else {
			fmt.Println(ui.RenderWarn("Remote: not configured (local mode)"))
		}
		fmt.Printf("Pending upload: %d task(s)\n\n", status.PendingCount)

		if len(status.LastRounds) == 0 {
			fmt.Println("No sync rounds recorded.")
			return
		}
		for _, round := range status.LastRounds {
			fmt.Printf("%s  %-16s %-8s %s\n",
				ui.RenderDim(round.LastSyncAt), round.SyncType, round.Status, round.Message)
		}
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncUpOnly, "up", false, "upload only")
	syncCmd.Flags().BoolVar(&syncDownOnly, "down", false, "download only")
	syncCmd.Flags().BoolVar(&syncOverwrite, "overwrite-server", false,
		"delete all remote tasks and upload local state")

	syncCmd.AddCommand(syncStatusCmd)
	rootCmd.AddCommand(syncCmd)
}

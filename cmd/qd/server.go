package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quadrant-tasks/quadrant/internal/server"
)

var (
	serverAddr  string
	serverDB    string
	serverToken string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the reference remote task server",
	Long: `Run the HTTP service that qd clients sync against. Tasks are stored
in a standalone SQLite database, separate from the local tracker's.

Leave --token empty to disable authentication (local testing only).`,
	Run: func(cmd *cobra.Command, args []string) {
		srv, err := server.New(serverDB, serverToken)
		if err != nil {
			fatalf("%v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start(serverAddr)
		}()

		select {
		case err := <-errCh:
			if err != nil && err != http.ErrServerClosed {
				fatalf("server failed: %v", err)
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				fatalf("shutdown failed: %v", err)
			}
		}
	},
}

func init() {
	serverCmd.Flags().StringVar(&serverAddr, "addr", ":8787", "listen address")
	serverCmd.Flags().StringVar(&serverDB, "db", "server_tasks.db", "server database path")
	serverCmd.Flags().StringVar(&serverToken, "token", "", "bearer token clients must present")
	rootCmd.AddCommand(serverCmd)
}

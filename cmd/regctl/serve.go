package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/basepair/resourcereg/internal/store/remote"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the path's first store over the Remote RPC Store protocol",
	Long: `serve opens the first entry of --path (or --layer, if given) and
answers Remote RPC Store requests over websocket at --addr, the way a
federation peer would, so another process can add
"ws://host:port/rpc" to its own PYGRDATAPATH. The remote protocol is
read-only regardless of the local store's own write permissions.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		backend, err := openStoreAllowReadOnly(cmd.Context())
		if err != nil {
			return err
		}
		defer backend.Close()

		srv := &http.Server{
			Addr:              serveAddr,
			Handler:           remote.NewServer(backend, obs.Log),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()

		obs.Log.Info().Str("addr", serveAddr).Msg("regctl: serving")

		select {
		case <-cmd.Context().Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("regctl: serve: %w", err)
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8842", "listen address")
	rootCmd.AddCommand(serveCmd)
}

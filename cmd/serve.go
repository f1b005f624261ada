package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pilotguru/sensorlog/internal/server"
	"github.com/pilotguru/sensorlog/internal/service"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve session listings and verification over HTTP",
	Long: `Start the sensorlog status server without recording. It lists the recorded
sessions, verifies session directories on request and exposes Prometheus
metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.Metrics.ListenAddr
		}
		if addr == "" {
			return fmt.Errorf("no listen address, use --addr or metrics.listen_addr")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc := service.New(cfg, service.Options{})
		srv := server.New(svc, nil, addr)

		slog.Info("sensorlog server starting", "addr", addr, "output", cfg.Output.Directory)
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address host:port (default is metrics.listen_addr)")
}

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pilotguru/sensorlog/internal/metrics"
	"github.com/pilotguru/sensorlog/internal/server"
	"github.com/pilotguru/sensorlog/internal/service"
	"github.com/pilotguru/sensorlog/internal/session"

	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record [name]",
	Short: "Record a session from the simulated sensors",
	Long: `Record gyroscope, accelerometer, location and camera frame events into a new
session directory <output>/<prefix>[_<name>]_<YYYYMMDD_HHMMSS>.

Recording stops on Ctrl+C or after --duration. With --metrics-addr a status
server exposes /status, /api/sessions and Prometheus /metrics while recording.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var name string
		if len(args) == 1 {
			name = args[0]
		}

		if cmd.Flags().Changed("duration") {
			cfg.Simulation.Duration, _ = cmd.Flags().GetDuration("duration")
		}
		if cmd.Flags().Changed("output") {
			cfg.Output.Directory, _ = cmd.Flags().GetString("output")
		}
		if cmd.Flags().Changed("metrics-addr") {
			cfg.Metrics.ListenAddr, _ = cmd.Flags().GetString("metrics-addr")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		board := &server.StatusBoard{}
		svc := service.New(cfg, service.Options{
			FPSSink:    board.FPSSink(),
			CameraSink: board.CameraSink(),
			Fatal:      session.ExitReporter{},
			Metrics:    metrics.Prometheus{},
		})

		serverDone := make(chan error, 1)
		serverCtx, stopServer := context.WithCancel(context.Background())
		defer stopServer()
		if cfg.Metrics.ListenAddr != "" {
			srv := server.New(svc, board, cfg.Metrics.ListenAddr)
			go func() { serverDone <- srv.Start(serverCtx) }()
		} else {
			serverDone <- nil
		}

		if cfg.Simulation.Duration > 0 {
			slog.Info("Recording", "duration", cfg.Simulation.Duration)
		} else {
			slog.Info("Recording... Press Ctrl+C to stop")
		}

		result, err := svc.Record(ctx, name)
		stopServer()
		if serr := <-serverDone; serr != nil {
			slog.Warn("Status server failed", "error", serr)
		}
		if err != nil {
			return fmt.Errorf("failed to record: %w", err)
		}

		printResult(result)
		return nil
	},
}

func printResult(r *service.Result) {
	fmt.Printf("session_id: %s\n", r.SessionID)
	fmt.Printf("dir: %s\n", r.Dir)
	fmt.Printf("duration: %s\n", r.Duration.Round(time.Millisecond))
	fmt.Printf("clock_offset_ns: %d\n", r.ClockOffset)
	for _, stream := range session.Streams {
		fmt.Printf("%s: %d (produced %d)\n", stream, r.Records[stream], r.Produced[stream])
	}
}

func init() {
	recordCmd.Flags().Duration("duration", 0, "stop after this long (0 records until interrupted)")
	recordCmd.Flags().StringP("output", "o", "", "output directory (overrides config)")
	recordCmd.Flags().String("metrics-addr", "", "serve status and Prometheus metrics on host:port")
}

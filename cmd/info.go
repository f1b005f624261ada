package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/pilotguru/sensorlog/internal/jsonlog"
	"github.com/pilotguru/sensorlog/internal/service"
	"github.com/pilotguru/sensorlog/internal/session"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info [name]",
	Short: "Show resolved configuration and file paths for a recording",
	Long:  `Display the session directory and stream files a recording started now would use, followed by the resolved configuration.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var name string
		if len(args) == 1 {
			name = args[0]
		}

		dir := service.SessionDir(cfg.Output.Directory, cfg.Output.SessionPrefix, name, time.Now())

		fmt.Printf("=== FILE PATHS ===\n")
		fmt.Printf("session_dir: %s\n", dir)
		for _, stream := range session.Streams {
			fmt.Printf("%s: %s\n", stream, filepath.Join(dir, stream+jsonlog.Extension))
		}
		fmt.Printf("manifest: %s\n", filepath.Join(dir, service.ManifestFile))

		fmt.Printf("\n=== RESOLVED CONFIGURATION ===\n")

		fmt.Printf("\n[Clock]\n")
		fmt.Printf("frame_domain: %s\n", cfg.FrameDomain())
		fmt.Printf("sensor_domain: %s\n", cfg.SensorDomain())
		fmt.Printf("warmup_samples: %d\n", cfg.Clock.WarmupSamples)

		fmt.Printf("\n[Simulation]\n")
		fmt.Printf("gyro_hz: %g\n", cfg.Simulation.GyroHz)
		fmt.Printf("accel_hz: %g\n", cfg.Simulation.AccelHz)
		fmt.Printf("location_hz: %g\n", cfg.Simulation.LocationHz)
		fmt.Printf("frame_fps: %g\n", cfg.Simulation.FrameFPS)
		fmt.Printf("frame_id_start: %d\n", cfg.Simulation.FrameIDStart)
		if cfg.Simulation.Duration > 0 {
			fmt.Printf("duration: %s\n", cfg.Simulation.Duration)
		} else {
			fmt.Printf("duration: until interrupted\n")
		}

		fmt.Printf("\n[Status]\n")
		fmt.Printf("free_space_interval: %s\n", cfg.Status.FreeSpaceInterval)

		return nil
	},
}

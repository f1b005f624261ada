package cmd

import (
	"fmt"
	"time"

	"github.com/pilotguru/sensorlog/internal/clock"

	"github.com/spf13/cobra"
)

var clockCmd = &cobra.Command{
	Use:   "clock",
	Short: "Print always-on minus pausable clock offset readings",
	Long: `Sample the offset between the always-on and the pausable host clocks the
way a recording session does at start, printing every reading. The offset
grows by the time the host spent suspended since boot.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		samples, _ := cmd.Flags().GetInt("samples")
		if !cmd.Flags().Changed("samples") {
			samples = cfg.Clock.WarmupSamples
		}

		r := clock.Reconciler{
			AlwaysOn: clock.ForDomain(clock.AlwaysOn),
			Pausable: clock.ForDomain(clock.Pausable),
			Samples:  samples,
		}
		readings := r.Readings()
		for i, offset := range readings {
			fmt.Printf("%d: %d ns\n", i, offset)
		}

		last := readings[len(readings)-1]
		fmt.Printf("offset: %d ns (%s suspended)\n", last, time.Duration(last).Round(time.Millisecond))
		fmt.Printf("frame_domain: %s\n", cfg.Clock.FrameDomain)
		fmt.Printf("sensor_domain: %s\n", cfg.Clock.SensorDomain)
		return nil
	},
}

func init() {
	clockCmd.Flags().Int("samples", clock.MinSamples, "number of readings (at least 5)")
}

package cmd

import (
	"fmt"

	"github.com/pilotguru/sensorlog/internal/service"
	"github.com/pilotguru/sensorlog/internal/session"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <session-dir>",
	Short: "Check that a session directory holds well-formed stream logs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		counts, err := service.Verify(args[0])
		if err != nil {
			return fmt.Errorf("verification failed: %w", err)
		}

		for _, stream := range session.Streams {
			fmt.Printf("%s: %d\n", stream, counts[stream])
		}
		if m, err := service.ReadManifest(args[0]); err == nil {
			fmt.Printf("session_id: %s\n", m.SessionID)
		}
		return nil
	},
}

package cmd

import (
	"fmt"

	"github.com/pilotguru/sensorlog/internal/service"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded sessions",
	Long:  `List the session directories under the configured output directory, newest first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := service.New(cfg, service.Options{})

		sessions, err := svc.ListSessions()
		if err != nil {
			return err
		}

		fmt.Printf("Sessions in %s (%d found):\n", cfg.Output.Directory, len(sessions))
		for i, s := range sessions {
			id := s.SessionID
			if id == "" {
				id = "-"
			}
			fmt.Printf("  %d. %s  %s  %s  %s\n", i+1, s.Name, s.ModTime.Format("2006-01-02 15:04:05"), s.SizeHuman, id)
		}
		return nil
	},
}

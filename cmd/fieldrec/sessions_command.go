package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fieldrec/internal/catalog"
	"fieldrec/internal/sensor"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions, newest first",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := catalog.Open(cfg.Paths.CatalogPath)
			if err != nil {
				return fmt.Errorf("open session catalog: %w", err)
			}
			defer store.Close()

			sessions, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No sessions recorded")
				return nil
			}
			fmt.Fprintln(out, renderSessions(sessions, shouldColorize(out)))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum sessions to list (0 for all)")
	return cmd
}

func renderSessions(sessions []catalog.Session, colorize bool) string {
	headers := []string{"ID", "Sensor", "Started", "Duration", "Written", "Dropped", "Failures", "Stop"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft}

	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		sensorName := sensor.DisplayName(s.Sensor)
		if s.Debug {
			sensorName += " (debug)"
		}
		rows = append(rows, []string{
			shortID(s.ID),
			sensorName,
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			sessionDuration(s),
			fmt.Sprintf("%d", s.FramesWritten),
			fmt.Sprintf("%d", s.FramesDropped),
			fmt.Sprintf("%d", s.WriteFailures),
			stopLabel(s),
		})
	}
	return renderTable(headers, rows, aligns, colorize)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sessionDuration(s catalog.Session) string {
	if s.EndedAt.IsZero() {
		return "-"
	}
	return s.EndedAt.Sub(s.StartedAt).Round(time.Second).String()
}

func stopLabel(s catalog.Session) string {
	if s.Status == catalog.StatusRecording {
		return "recording"
	}
	if s.StopReason == "" {
		return "-"
	}
	return s.StopReason
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fieldrec/internal/recorder"
	"fieldrec/internal/sensor"
)

func newRecordCommand(ctx *commandContext) *cobra.Command {
	var (
		outDir     string
		debug      bool
		logLevel   string
		diagnostic bool
	)

	cmd := &cobra.Command{
		Use:       fmt.Sprintf("record <%s>", strings.Join(sensor.Names(), "|")),
		Short:     "Record one sensor until stdin closes or a signal arrives",
		Args:      usageArgs(cobra.ExactArgs(1)),
		ValidArgs: sensor.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rec := recorder.New(cfg, recorder.Options{
				Sensor:     args[0],
				OutputRoot: strings.TrimSpace(outDir),
				Debug:      debug,
				LogLevel:   logLevel,
				Diagnostic: diagnostic,
			}, visionMedia())

			summary, err := rec.Run(cmd.Context())
			if err != nil {
				return err
			}
			res := summary.Result
			fmt.Fprintf(cmd.ErrOrStderr(), "%s session %s: %d frames written, %d dropped, %d write failures (%s)\n",
				sensor.DisplayName(summary.Sensor),
				summary.SessionID,
				res.Persister.Written,
				res.Dropped,
				res.Persister.WriteFailures,
				res.Reason,
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Session root directory (defaults to paths.session_root)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Read the local capture device instead of the sensor stream")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level for this run")
	cmd.Flags().BoolVar(&diagnostic, "diagnostic", false, "Also write a debug-level JSON log")
	return cmd
}

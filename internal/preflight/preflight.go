package preflight

import (
	"context"

	"fieldrec/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Session root", cfg.Paths.SessionRoot),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckCalibration(cfg.Paths.CalibrationFile),
		CheckEndpoint(ctx, "Camera stream", cfg.Camera.StreamURL, cfg.ConnectTimeout()),
		CheckEndpoint(ctx, "Sonar stream", cfg.Sonar.StreamURL, cfg.ConnectTimeout()),
		CheckEndpoint(ctx, "Sonar control", cfg.Sonar.APIURL, cfg.ConnectTimeout()),
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

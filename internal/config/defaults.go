package config

const (
	defaultConfigPath       = "~/.config/fieldrec/config.toml"
	defaultSessionRoot      = "~/fieldrec/sessions"
	defaultLogDir           = "~/.local/share/fieldrec/logs"
	defaultCatalogPath      = "~/.local/share/fieldrec/catalog.db"
	defaultCalibrationFile  = "config/panasonic_calib.yml"
	defaultPreviewHost      = "127.0.0.1"
	defaultCameraStreamURL  = "rtsp://192.168.2.54:554/stream"
	defaultSonarAddress     = "192.168.2.42"
	defaultSonarRangeMeters = 3.0
	defaultConnectTimeoutMS = 2000
	defaultRequestTimeoutMS = 3000
	defaultDisableAttempts  = 3
	defaultRetryDelayMS     = 500
	defaultReadTimeoutMS    = 1000
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30

	sonarStreamPort = 8554
	sonarAPIPort    = 8000
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			SessionRoot:     defaultSessionRoot,
			LogDir:          defaultLogDir,
			CatalogPath:     defaultCatalogPath,
			CalibrationFile: defaultCalibrationFile,
		},
		Preview: Preview{
			Host: defaultPreviewHost,
		},
		Camera: Camera{
			StreamURL: defaultCameraStreamURL,
		},
		Sonar: Sonar{
			Address:     defaultSonarAddress,
			RangeMeters: defaultSonarRangeMeters,
		},
		Control: Control{
			ConnectTimeoutMS: defaultConnectTimeoutMS,
			RequestTimeoutMS: defaultRequestTimeoutMS,
			DisableAttempts:  defaultDisableAttempts,
			RetryDelayMS:     defaultRetryDelayMS,
		},
		Capture: Capture{
			ReadTimeoutMS: defaultReadTimeoutMS,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

package logging

import (
	"log/slog"
)

// SetupServeMode initializes logging for the `kfe serve` long-lived watcher
// process. It logs ONLY to file, never to stdout/stderr, so the process's
// stdout stays free for the output.Writer status lines `serve` prints as it
// starts watching each directory.
func SetupServeMode() (func(), error) {
	cfg := Config{
		Level:         "debug",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	slog.Info("serve mode logging initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level))

	return cleanup, nil
}

// SetupServeModeWithLevel is SetupServeMode with an explicit level instead
// of the always-debug default.
func SetupServeModeWithLevel(level string) (func(), error) {
	cfg := Config{
		Level:         level,
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	return cleanup, nil
}

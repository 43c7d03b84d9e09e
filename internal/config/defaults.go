package config

import (
	"os"
	"path/filepath"
)

const (
	defaultLockDir             = "~/.local/state/edaplot/locks"
	defaultEngineBinary        = "kicad-cli"
	defaultPostProcessBinary   = "svgcleaner"
	defaultSchematicBinary     = "plotgitsch"
	defaultJobs                = 1
	defaultStaleScratchMinutes = 60
	defaultServerBind          = "127.0.0.1:7488"
	defaultMaxBoardMiB         = 64
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ScratchDir: defaultScratchDir(),
			LockDir:    defaultLockDir,
		},
		Engine: Engine{
			Binary: defaultEngineBinary,
		},
		PostProcess: PostProcess{
			Binary:  defaultPostProcessBinary,
			Enabled: true,
		},
		Schematic: Schematic{
			Binary: defaultSchematicBinary,
		},
		Render: Render{
			Jobs:                defaultJobs,
			StaleScratchMinutes: defaultStaleScratchMinutes,
		},
		Cache: Cache{
			Path: defaultCachePath(),
		},
		Server: Server{
			Bind:        defaultServerBind,
			MaxBoardMiB: defaultMaxBoardMiB,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func defaultScratchDir() string {
	return filepath.Join(os.TempDir(), "edaplot")
}

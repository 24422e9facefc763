package main

import (
	"os"

	"github.com/nimbusdex/matcher/config"
)

// prepareDataDir creates cfg.DataDir and, for the local queue transport,
// its data directory, the way this codebase's own init command creates
// every storage subdirectory a fresh node needs before its first start.
func prepareDataDir(cfg config.Config) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}
	if cfg.EventsQueue.Type == "local" && cfg.EventsQueue.Local.Path != "" {
		if err := os.MkdirAll(cfg.EventsQueue.Local.Path, 0o755); err != nil {
			return err
		}
	}
	return nil
}

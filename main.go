package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"sudokuidle/sudokidle"
)

const configFile = "sudokidle.yml"

// noinspection GoUnusedExportedFunction
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	initStart := time.Now()

	logger.Info("Loading Sudokidle Nakama plugin...")

	config, err := sudokidle.ReadConfigFile(logger, nk, configFile)
	if err != nil {
		logger.Warn("Using embedded default config, could not load %s: %v", configFile, err)
		config = sudokidle.DefaultConfig()
	}

	game, err := sudokidle.Init(ctx, logger, nk, initializer, config)
	if err != nil {
		logger.Error("Failed to initialize sudokidle: %v", err)
		return err
	}
	game.SetScheduler(sudokidle.NewCronScheduler(logger))
	game.AddPublisher(sudokidle.NewNotificationPublisher(nk))
	game.AddPublisher(sudokidle.LoggerPublisher{})

	logger.Info("Sudokidle Nakama plugin loaded in '%d' msec.", time.Now().Sub(initStart).Milliseconds())
	return nil
}

// main is required for a standalone build; Nakama loads this package as a plugin via InitModule.
func main() {}

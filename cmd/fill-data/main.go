// Command fill-data resets the persisted score to empty measures of
// rests, operating directly on the database.
package main

import (
	"context"
	"os"

	"github.com/fivemin/harmony/internal/adapters/storage"
	"github.com/fivemin/harmony/internal/config"
	"github.com/fivemin/harmony/internal/seed"
	"github.com/fivemin/harmony/pkg/logger"
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get().Named("fill-data")

	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Error(ctx, "open database failed", logger.String("path", cfg.DBPath), logger.Error(err))
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	if err := seed.Fill(ctx, store, cfg.TotalMeasures, cfg.NotesPerMeasure); err != nil {
		log.Error(ctx, "seeding failed", logger.Error(err))
		os.Exit(1)
	}

	log.Info(ctx, "score reset",
		logger.String("db", cfg.DBPath),
		logger.Int("measures", cfg.TotalMeasures),
		logger.Int("notesPerMeasure", cfg.NotesPerMeasure),
	)
}

// Command sampledb creates the sample shop database and prints a summary.
package main

import (
	"context"
	"os"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/doubletabai/askdb/pkg/config"
	"github.com/doubletabai/askdb/pkg/executor"
	"github.com/doubletabai/askdb/pkg/sampledb"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info().Str("driver", cfg.TargetDriver).Str("dsn", cfg.TargetDSN).Msg("Connecting to target database")
	db, err := executor.Open(ctx, cfg.TargetDriver, cfg.TargetDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := sampledb.Setup(ctx, db, cfg.TargetDriver); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up sample database")
	}

	counts, err := sampledb.Summary(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to summarize sample database")
	}
	data := pterm.TableData{{"Table", "Records"}}
	for _, c := range counts {
		data = append(data, []string{c.Table, pterm.Sprint(c.Rows)})
	}
	pterm.DefaultSection.Println("Database summary")
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		log.Fatal().Err(err).Msg("Failed to render summary")
	}

	pterm.DefaultSection.Println("Sample questions you can ask")
	items := make([]pterm.BulletListItem, 0, len(sampledb.Questions))
	for _, q := range sampledb.Questions {
		items = append(items, pterm.BulletListItem{Level: 0, Text: q})
	}
	if err := pterm.DefaultBulletList.WithItems(items).Render(); err != nil {
		log.Fatal().Err(err).Msg("Failed to render sample questions")
	}
}

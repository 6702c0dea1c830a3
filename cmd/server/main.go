package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"runtime/debug"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/agencyhq/warroom/internal/extract"
	"github.com/agencyhq/warroom/internal/server"
	"github.com/agencyhq/warroom/internal/workspace"
	"github.com/agencyhq/warroom/pkg/configuration"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	logger := conf.Logger()

	if err := runMigrations(conf); err != nil {
		logger.WithError(err).Fatal("failed to run migrations")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	defer pool.Close()

	ws := workspace.NewRESTClient(conf.Workspace.APIURL, conf.Workspace.Token)
	extractor, err := extract.NewGeminiExtractor(context.Background(), conf.Gemini.APIKey, conf.Gemini.Model, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize extractor")
	}

	app := server.Default(&server.Options{
		Configuration: conf,
		Logger:        logger,
		Pool:          pool,
		Workspace:     ws,
		Extractor:     extractor,
	})

	go app.Wizard.Run(context.Background(), conf.WizardSweepInterval)

	logger.WithField("address", conf.SocketAddress).Info("listening")
	if err := app.HTTP.Start(conf.SocketAddress); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}

func runMigrations(conf *configuration.Configuration) error {
	db, err := sql.Open("postgres", conf.Database.Opts)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, conf.MigrationsDir)
}

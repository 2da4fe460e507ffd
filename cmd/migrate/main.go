package main

import (
	"errors"
	"flag"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	config "github.com/maheshrc27/brandpost/configs"
	"github.com/maheshrc27/brandpost/internal/logger"
)

func main() {
	dir := flag.String("dir", "migrations", "directory holding the migration files")
	down := flag.Bool("down", false, "roll back every migration")
	force := flag.Int("force", -1, "force the schema version and clear the dirty flag")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded", "error", err)
	}
	cfg := config.LoadConfig()
	slog.SetDefault(logger.New(cfg.LogLevel, cfg.LogFormat))

	m, err := migrate.New("file://"+*dir, cfg.PostgresURI)
	if err != nil {
		fatal("opening migrations", err)
	}
	defer m.Close()

	switch {
	case *force >= 0:
		err = m.Force(*force)
	case *down:
		err = m.Down()
	default:
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		fatal("running migrations", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		fatal("reading schema version", err)
	}
	slog.Info("migrations applied", "version", version, "dirty", dirty)
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

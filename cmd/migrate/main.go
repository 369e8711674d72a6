package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/updown-rounds-poc/internal/shared/config"
	"github.com/radieske/updown-rounds-poc/internal/shared/db"
	"github.com/radieske/updown-rounds-poc/internal/shared/logger"
	"github.com/radieske/updown-rounds-poc/migrations"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate [up|down]")
	}
	flag.Parse()
	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}

	cfg := config.Load()
	log, err := logger.New("migrate", cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	m := db.NewMigrator(pg, migrations.FS, log)
	switch cmd {
	case "up":
		n, err := m.Up(ctx)
		if err != nil {
			log.Fatal("migrate up", zap.Error(err))
		}
		log.Info("migrations applied", zap.Int("count", n))
	case "down":
		if err := m.Down(ctx); err != nil {
			log.Fatal("migrate down", zap.Error(err))
		}
		log.Info("last migration rolled back")
	default:
		flag.Usage()
		os.Exit(2)
	}
}

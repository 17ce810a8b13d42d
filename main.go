package main

import (
	"context"
	"flag"
	"time"

	"github.com/openforum/forum/config"
	"github.com/openforum/forum/middleware"
	"github.com/openforum/forum/migrations"
	"github.com/openforum/forum/routes"
	"github.com/openforum/forum/schema"
	"github.com/openforum/forum/store"
	"github.com/openforum/forum/utils"
)

func main() {
	configPath := flag.String("config", "config/config.json", "path to the JSON configuration file")
	migrateOnly := flag.Bool("migrate", false, "apply pending migrations and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer utils.Logger.Sync() //nolint:errcheck

	db, err := config.OpenDatabase(cfg, utils.GormWriter{})
	if err != nil {
		utils.Sugar.Fatalf("open database: %v", err)
	}

	forum := schema.Forum(cfg.IdentityTable)
	applied, err := migrations.Apply(context.Background(), db, forum)
	if err != nil {
		utils.Sugar.Fatalf("apply migrations: %v", err)
	}
	utils.Sugar.Infow("migrations applied", "driver", cfg.DBDriver, "versions", applied)
	if *migrateOnly {
		return
	}

	auth := &middleware.Authenticator{
		Issuer:    utils.NewTokenIssuer(cfg.JWTSecret, time.Duration(cfg.TokenTTLHours)*time.Hour),
		Blacklist: utils.NewTokenBlacklist(utils.NewRedis(cfg)),
		LoginURL:  cfg.LoginURL,
	}
	r := routes.SetupRouter(cfg, store.New(db, forum), auth)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}

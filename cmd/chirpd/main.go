package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"chirpd/internal/app"
	"chirpd/pkg/config"
	"chirpd/pkg/logger"
	"chirpd/pkg/shutdown"
)

func main() {
	_ = godotenv.Load(".env")
	addrVal, dbVal, cfgVal, setFlags := config.ParseCommandFlags()

	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])
	cfg, _, err := config.LoadEffective(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// explicit flags win over env and config file
	addr := cfg.Addr()
	if setFlags["addr"] {
		addr = addrVal
	}
	if setFlags["db"] || cfg.Server.DBPath == "" {
		cfg.Server.DBPath = dbVal
	}

	logger.InitWithLevel(cfg.Logging.Level)

	a, err := app.New(cfg, addr)
	if err != nil {
		log.Fatalf("failed to initialize: %v", err)
	}

	ctx, stop := shutdown.Notify(context.Background())
	defer stop()

	if err := a.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

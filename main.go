package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wfunc/zobbo/config"
	"github.com/wfunc/zobbo/logger"
	"github.com/wfunc/zobbo/monitor"
	"github.com/wfunc/zobbo/persistence"
	"github.com/wfunc/zobbo/server"
)

func main() {
	// Initialize logger
	logger.Init()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Database (可选, 未启用时对局不归档)
	var db persistence.Database
	if cfg.Database.Enabled {
		pg := cfg.Database.Postgres
		switch cfg.Database.Driver {
		case "pq":
			db, err = persistence.NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		default:
			db, err = persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		}
		if err != nil {
			logger.Log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		logger.Log.Info("Database connection successful.")
	} else {
		logger.Log.Info("Database disabled, match archival is off.")
	}

	// Initialize Monitoring
	mon := monitor.NewMonitor("zobbo")

	// Initialize Game Server
	gameServer := server.NewGameServer(cfg, db, mon)

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-stop
		logger.Log.Infof("Received signal %s, shutting down...", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := gameServer.Shutdown(ctx); err != nil {
			logger.Log.Errorf("Shutdown error: %v", err)
		}
	}()

	// Start Server
	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}

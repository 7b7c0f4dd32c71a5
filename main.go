package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wfunc/avalon/broadcast"
	"github.com/wfunc/avalon/config"
	"github.com/wfunc/avalon/logger"
	"github.com/wfunc/avalon/monitor"
	"github.com/wfunc/avalon/persistence"
	"github.com/wfunc/avalon/room"
	"github.com/wfunc/avalon/rpc"
	"github.com/wfunc/avalon/server"
	"github.com/wfunc/avalon/services"
	"github.com/wfunc/avalon/session"
	"github.com/wfunc/avalon/timer"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic(err)
	}

	// Initialize logger
	logger.Init(cfg.Log.Level, cfg.Log.Development)
	defer logger.Sync()

	rules, err := cfg.Game.Rules()
	if err != nil {
		logger.Log.Fatalf("Invalid game defaults: %v", err)
	}

	// Metrics
	metrics := monitor.NewMetrics("avalon", prometheus.DefaultRegisterer)
	mon := monitor.NewMonitor(metrics)
	mon.StartServer(cfg.Server.MetricsAddress)
	defer mon.Stop()

	// Archive
	store, err := persistence.Open(cfg.Database)
	if err != nil {
		logger.Log.Fatalf("Failed to open %s archive: %v", cfg.Database.Driver, err)
	}
	defer store.Close()
	logger.Log.Infow("archive ready", "driver", cfg.Database.Driver)
	stats := services.NewStatsService(store)

	rpcServer, err := rpc.NewServer(cfg.Server.RPCAddress, stats)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	go rpcServer.Start()
	defer rpcServer.Stop()

	timers := timer.NewTimerManager(cfg.Timing.Tick)
	defer timers.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions := session.NewManager()
	broadcaster := broadcast.NewSessionBroadcaster(sessions)
	rooms := room.NewManager(ctx, broadcaster, stats, timers, metrics, room.Options{
		Rules:  rules,
		Timing: cfg.Timing.Phases(),
		Tick:   cfg.Timing.Tick,
	})
	defer rooms.Close()

	gameServer := server.NewGameServer(cfg.Server.HTTPAddress, sessions, broadcaster, rooms, mon)
	go func() {
		<-ctx.Done()
		logger.Log.Info("Shutting down.")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		gameServer.Shutdown(shutdownCtx)
	}()

	if err := gameServer.Start(); err != nil {
		logger.Log.Errorf("Chat gateway stopped: %v", err)
	}
}

package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"waterops-backend/config"
	"waterops-backend/internal/client"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "fieldsync ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}

	if cfg.Client.BaseURL == "" {
		logger.Fatalf("client.base_url must be configured")
	}
	token := os.Getenv("FIELDSYNC_TOKEN")
	if token == "" {
		logger.Fatalf("FIELDSYNC_TOKEN must be set")
	}

	localStore, err := client.OpenLocalStore(cfg.Client.DatabasePath)
	if err != nil {
		logger.Fatalf("failed to open local store: %v", err)
	}
	defer localStore.Close()
	logger.Printf("local store opened at %s", cfg.Client.DatabasePath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor := client.NewProbeMonitor(cfg.Client.BaseURL, cfg.Client.ProbeInterval)
	go monitor.Run(ctx)

	syncClient := client.NewSyncClient(localStore, monitor, cfg.Client.BaseURL,
		func(context.Context) (string, error) { return token, nil })

	runSync := func(trigger string) {
		result, err := syncClient.SyncAll(ctx)
		switch {
		case errors.Is(err, client.ErrSyncInProgress):
			return
		case errors.Is(err, client.ErrNoConnectivity):
			logger.Printf("%s sync skipped: offline", trigger)
			return
		case err != nil:
			logger.Printf("%s sync failed: %v", trigger, err)
			return
		}
		logger.Printf("%s sync done: readings created=%d updated=%d errored=%d, faults created=%d updated=%d errored=%d",
			trigger,
			result.Readings.Created, result.Readings.Updated, result.Readings.Errored,
			result.Faults.Created, result.Faults.Updated, result.Faults.Errored)
		for _, e := range result.Errors {
			logger.Printf("record error: id=%s ref=%s: %s", e.ID, e.ClientRef, e.Error)
		}
		if err := syncClient.RefreshStations(ctx); err != nil {
			logger.Printf("station refresh failed: %v", err)
		}
	}

	// Sync whenever connectivity comes back, and on a steady interval
	// while it holds.
	unsubscribe := monitor.Subscribe(func(online bool) {
		if online {
			go runSync("reconnect")
		} else {
			logger.Println("connection lost, queueing local changes")
		}
	})
	defer unsubscribe()

	ticker := time.NewTicker(cfg.Client.SyncInterval)
	defer ticker.Stop()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			runSync("interval")
		case <-stop:
			logger.Println("Shutdown signal received, stopping sync")
			return
		}
	}
}

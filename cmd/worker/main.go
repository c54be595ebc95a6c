// Package main is the entry point for the outbox relay worker. It redelivers
// status-change events whose in-process delivery did not complete.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"factoryledger/internal/app"
	"factoryledger/internal/config"
	"factoryledger/internal/infrastructure/storage/postgres"
	"factoryledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Logger.Level,
		Development: cfg.App.Development(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer cancel()

	log.Infow("starting outbox worker", "poll_interval", cfg.Outbox.PollInterval, "batch_size", cfg.Outbox.BatchSize)

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to start application", "error", err)
	}
	defer a.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		run(ctx, a.Relay, cfg.Outbox.PollInterval)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// run drains the outbox on every tick. A full batch is followed immediately
// by another one.
func run(ctx context.Context, relay *postgres.OutboxRelay, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				n, err := relay.ProcessBatch(ctx)
				if err != nil {
					logger.Error(ctx, "outbox batch failed", "error", err)
					break
				}
				if n > 0 {
					logger.Info(ctx, "outbox batch relayed", "messages", n)
				}
				if n < relay.BatchSize() || ctx.Err() != nil {
					break
				}
			}
		}
	}
}

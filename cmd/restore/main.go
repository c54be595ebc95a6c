// Package main imports a JSON backup file and reconciles party balances.
//
// Usage:
//
//	restore -file backup.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"factoryledger/internal/app"
	"factoryledger/internal/config"
	"factoryledger/internal/domain/restore"
	"factoryledger/pkg/logger"
)

func main() {
	file := flag.String("file", "", "path to the JSON backup")
	flag.Parse()

	if *file == "" {
		fmt.Println("usage: restore -file backup.json")
		os.Exit(2)
	}

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
	ctx := logger.WithLogger(context.Background(), log)

	backup, err := readBackup(*file)
	if err != nil {
		log.Fatalw("failed to read backup", "file", *file, "error", err)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to start application", "error", err)
	}
	defer a.Close()

	res, err := a.Restore.Restore(ctx, backup)
	if err != nil {
		log.Fatalw("restore failed", "error", err)
	}

	out, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(out))

	if !res.Success {
		log.Errorw("restore exceeded error tolerance",
			"errors", res.ErrorCount(), "tolerance", cfg.Restore.ErrorTolerance)
		a.Close()
		os.Exit(1)
	}
}

func readBackup(path string) (map[string][]restore.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.UseNumber()

	var backup map[string][]restore.Row
	if err := dec.Decode(&backup); err != nil {
		return nil, fmt.Errorf("decode backup: %w", err)
	}
	return backup, nil
}

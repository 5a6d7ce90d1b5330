package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"fleettrack/internal/config"
	"fleettrack/internal/web"
)

func main() {
	var configPath string
	var summaryPath string
	flag.StringVar(&configPath, "config", "./dev.yaml", "Path to YAML config")
	flag.StringVar(&summaryPath, "summary", "", "Print a summary of a property file and exit")
	flag.Parse()

	if summaryPath != "" {
		if err := printPropsSummary(os.Stdout, summaryPath); err != nil {
			log.Fatalf("summary failed: %v", err)
		}
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logs := web.NewLogBuffer(cfg.HTTP.LogLines)
	log.SetOutput(io.MultiWriter(os.Stderr, logs))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Printf("fleettrack starting device_id=%s", cfg.DeviceID)
	rt, err := newRuntime(ctx, cfg, logs)
	if err != nil {
		log.Fatalf("runtime init failed: %v", err)
	}

	if err := rt.Run(ctx); err != nil {
		log.Printf("runtime stopped: %v", err)
	}
	rt.Close()
	log.Printf("fleettrack stopping")
}

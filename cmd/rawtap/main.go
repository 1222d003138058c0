package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"example.com/me/rawtap/config"
	"example.com/me/rawtap/internal/logger"
	"example.com/me/rawtap/internal/server"
)

func main() {
	var debug bool
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")

	// Load configuration (this will call flag.Parse())
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set debug level after flags are parsed
	if debug {
		logger.SetLevel(logger.LevelDebug)
		logger.Debug("main", "Debug logging enabled")
	}

	srv := server.NewServer(cfg)
	if err := srv.Initialize(); err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	for _, acfg := range cfg.Acceptors {
		if a, ok := srv.Acceptor(acfg.ID); ok {
			logger.Info("main", "Acceptor %s (%s, channel %s) listening on %s", acfg.ID, acfg.Type, acfg.Channel, a.Addr())
		}
	}
	if admin := srv.Admin(); admin != nil {
		logger.Info("main", "Admin API listening on %s", admin.Addr())
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("main", "Shutting down rawtap...")
	if err := srv.Stop(); err != nil {
		logger.Error("main", "Error stopping server: %v", err)
	}
}

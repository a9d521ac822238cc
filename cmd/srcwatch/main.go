package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/srcdstools/srcwatch/pkg/service"
)

var (
	// Version is set at build time via ldflags
	Version = "dev"
)

func main() {
	// Configure logger with microsecond precision
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	// Command line flags
	configPath := flag.String("config", "~/.srcwatch/config.toml", "Path to config file")
	host := flag.String("host", "", "Game server host (overrides config)")
	port := flag.Int("port", 0, "Game server RCON port (overrides config)")
	password := flag.String("password", "", "RCON password (overrides config)")
	logPort := flag.Int("log-port", -1, "UDP port to receive the log stream on (overrides config)")
	version := flag.Bool("version", false, "Show version information")
	flag.Parse()

	// Handle --version flag
	if *version {
		fmt.Printf("srcwatch %s\n", Version)
		os.Exit(0)
	}

	// Load configuration (creates default if not found)
	config, err := service.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Command-line flags override config file
	if *host != "" {
		config.RCON.Host = *host
	}
	if *port != 0 {
		config.RCON.Port = *port
	}
	if *password != "" {
		config.RCON.Password = *password
	}
	if *logPort >= 0 {
		config.Log.Port = *logPort
	}

	svc, err := service.New(config)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("srcwatch %s starting", Version)
	log.Printf("Config: %s", *configPath)
	log.Printf("Handlers: %v", config.Handlers.Enabled)

	// Shut down cleanly on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received %v, shutting down...", sig)
		cancel()
	}()

	if err := svc.Run(ctx); err != nil {
		if errors.Is(err, service.ErrAuthFailed) {
			log.Fatalf("Authentication failed: check rcon.password in %s", *configPath)
		}
		log.Fatalf("Service error: %v", err)
	}
	log.Println("Stopped")
}

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/srcdstools/srcwatch/pkg/rcon"
)

func main() {
	// Command line flags
	server := flag.String("server", "", "Server address (host:port)")
	timeout := flag.Int("timeout", 10, "Seconds to wait for each server response")
	flag.Parse()

	addr := *server
	if addr == "" && flag.NArg() > 0 {
		// Positional form: srcwatch-console host [port]
		addr = flag.Arg(0)
		port := strconv.Itoa(rcon.DefaultPort)
		if flag.NArg() > 1 {
			port = flag.Arg(1)
		}
		addr = addr + ":" + port
	}
	if addr == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -server host:port\n", os.Args[0])
		os.Exit(1)
	}

	client, err := rcon.Dial(addr, rcon.WithTimeout(time.Duration(*timeout)*time.Second))
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", addr, err)
	}
	defer client.Close()

	// Create bubbletea program
	model := newModel(client, addr)
	p := tea.NewProgram(model, tea.WithAltScreen())

	// Run the program
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}
}

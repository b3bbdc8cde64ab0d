package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"astropitography/internal/config"
	"astropitography/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	socketPath := flag.String("socket", "", "IPC socket path override")
	logLevel := flag.String("log-level", "", "log level override")
	flag.Parse()

	cfg, path, exists, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if !exists {
		fmt.Fprintf(os.Stderr, "No configuration found at %s; using defaults.\n", path)
		fmt.Fprintln(os.Stderr, "Run `astropitography config init` to create a sample file.")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{
		SocketPath: *socketPath,
		LogLevel:   *logLevel,
	}); err != nil {
		log.Fatalf("astropitographyd: %v", err)
	}
}

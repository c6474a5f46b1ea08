package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gymchat/internal"
	"gymchat/internal/app"
)

func main() {
	cfg, err := app.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	server := flag.String("server", cfg.ServerURL, "websocket base URL of the backend (ws:// or wss://)")
	apiURL := flag.String("api", cfg.APIURL, "REST base URL (derived from -server when empty)")
	dbPath := flag.String("db", cfg.DBPath, "path to the local database")
	logDir := flag.String("logs", cfg.LogDir, "directory for log files")
	debug := flag.Bool("debug", cfg.Debug, "enable debug logging")
	logout := flag.Bool("logout", false, "clear the saved login and exit")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("gymchat", internal.Version)
		return
	}

	cfg.ServerURL = *server
	cfg.APIURL = *apiURL
	cfg.DBPath = *dbPath
	cfg.LogDir = *logDir
	cfg.Debug = *debug

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *logout {
		if err := app.Logout(ctx, cfg); err != nil {
			fmt.Fprintln(os.Stderr, "logout:", err)
			os.Exit(1)
		}
		fmt.Println("Logged out.")
		return
	}

	if err := app.RunClient(ctx, cfg); err != nil {
		fmt.Fprintln(os.Stderr, "gymchat:", err)
		os.Exit(1)
	}
}

// Package main provides the entry point for ssht, the SSH T Project client.
// ssht drives a host that owns the tunnel (the Android app over its local
// bridge, or the built-in simulator) and adds automatic profile testing,
// the IP finder, plan purchases and a tray indicator on top of it.
//
// Usage:
//
//	ssht [command] [flags]
//
// Run 'ssht --help' for the list of commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yllada/ssht-client/cli"
	"github.com/yllada/ssht-client/common"
)

// Build-time variables injected via ldflags (-X main.appVersion=x.y.z)
var (
	appVersion = "dev"
	buildTime  = "unknown"
	commitSHA  = "unknown"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setupSignalHandler(cancel)

	app := cli.New(cli.VersionInfo{
		Version:   appVersion,
		BuildTime: buildTime,
		Commit:    commitSHA,
	})
	if err := app.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setupSignalHandler cancels the context on SIGINT/SIGTERM so running
// commands can stop the tunnel test or IP search cleanly.
func setupSignalHandler(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		common.LogInfo("Received signal %v, shutting down", sig)
		cancel()
	}()
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tphakala/eventrec/cmd"
	"github.com/tphakala/eventrec/internal/buildinfo"
	"github.com/tphakala/eventrec/internal/conf"
	"github.com/tphakala/eventrec/internal/telemetry"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=..."
var (
	version   = "dev"
	buildDate = ""
)

func main() {
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	hostname, _ := os.Hostname()
	info := buildinfo.NewContext(version, buildDate, hostname)

	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := cmd.RootCommand(settings, info)
	err = rootCmd.ExecuteContext(ctx)
	telemetry.Flush()
	if err != nil {
		return 1
	}
	return 0
}

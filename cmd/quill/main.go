package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

// Set with -ldflags at build time.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	serve := serveCommand()
	return &cli.App{
		Name:    "quill",
		Usage:   "Blogging service and its command line client",
		Version: version,
		// No command starts the server.
		Flags:  serve.Flags,
		Action: serve.Action,
		Commands: []*cli.Command{
			serve,
			registerCommand(),
			loginCommand(),
			postCommand(),
			listCommand(),
			showCommand(),
			searchCommand(),
			editCommand(),
			rmCommand(),
			commentCommand(),
			uncommentCommand(),
			statusCommand(),
		},
		EnableBashCompletion: true,
	}
}

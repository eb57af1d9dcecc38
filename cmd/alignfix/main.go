// Package main provides alignfix, an offline triage tool for the ARM64
// alignment fault fixup: it decodes faulting instruction words and replays
// fault scenarios against a synthetic trap context.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "alignfix"
	app.Usage = "ARM64 alignment fault fixup tool"
	app.Description = "Decode instruction words that raised an alignment fault and replay fault scenarios"
	app.Flags = []cli.Flag{
		ConfigFlag,
		LogLevelFlag,
	}
	app.Commands = []*cli.Command{
		DecodeCommand,
		RunCommand,
		ExampleCommand,
	}
	return app
}

func main() {
	app := newApp()
	ctx, cancel := context.WithCancel(context.Background())

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for {
			<-c
			cancel()
			fmt.Println("\r\nExiting...")
		}
	}()

	err := app.RunContext(ctx, os.Args)
	if err != nil {
		if errors.Is(err, ctx.Err()) {
			_, _ = fmt.Fprintf(os.Stderr, "command interrupted")
			os.Exit(130)
		} else {
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
}

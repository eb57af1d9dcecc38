package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/sarchlab/alignfix/emu"
)

var (
	ConfigFlag = &cli.PathFlag{
		Name:  "config",
		Usage: "path to a handler configuration JSON file",
	}
	LogLevelFlag = &cli.StringFlag{
		Name:  "log.level",
		Usage: "log level (overrides the configuration file)",
	}
	ScenarioFlag = &cli.PathFlag{
		Name:      "scenario",
		Usage:     "path to a fault scenario JSON file",
		TakesFile: true,
		Required:  true,
	}
	OutputFlag = &cli.PathFlag{
		Name:      "output",
		Usage:     "path to write the resulting state to; stdout if empty",
		TakesFile: true,
	}
	PProfCPUFlag = &cli.BoolFlag{
		Name:  "pprof.cpu",
		Usage: "enable pprof cpu profiling",
	}
)

// loadConfig reads the global configuration flags.
func loadConfig(ctx *cli.Context) (*emu.Config, error) {
	config := emu.DefaultConfig()
	if path := ctx.Path(ConfigFlag.Name); path != "" {
		var err error
		config, err = emu.LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}
	if ctx.IsSet(LogLevelFlag.Name) {
		config.LogLevel = ctx.String(LogLevelFlag.Name)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// newLogger logs to the app's error writer at the configured level.
func newLogger(ctx *cli.Context, config *emu.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if ctx.App.ErrWriter != nil {
		log.SetOutput(ctx.App.ErrWriter)
	}
	log.SetLevel(config.Level())
	return log
}

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/profile"
	"github.com/urfave/cli/v2"

	"github.com/sarchlab/alignfix/emu"
)

var OutFilePerm = os.FileMode(0o644)

func Run(ctx *cli.Context) error {
	if ctx.Bool(PProfCPUFlag.Name) {
		defer profile.Start(profile.NoShutdownHook, profile.ProfilePath("."), profile.CPUProfile).Stop()
	}

	config, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	scenario, err := LoadScenario(ctx.Path(ScenarioFlag.Name))
	if err != nil {
		return err
	}
	if scenario.DCZID != nil {
		config.DCZID = uint64(*scenario.DCZID)
	}

	frame, memory, err := scenario.Build()
	if err != nil {
		return fmt.Errorf("invalid scenario: %w", err)
	}

	log := newLogger(ctx, config)
	handler, err := emu.NewHandlerFromConfig(config, memory, log)
	if err != nil {
		return err
	}

	faultErr := handler.HandleAlignmentFault(uint64(scenario.FaultAddr), frame)

	result, err := scenario.snapshot(frame, faultErr)
	if err != nil {
		return fmt.Errorf("failed to capture result: %w", err)
	}

	return writeResult(ctx, result)
}

func writeResult(ctx *cli.Context, result *Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}
	data = append(data, '\n')

	if path := ctx.Path(OutputFlag.Name); path != "" {
		if err := os.WriteFile(path, data, OutFilePerm); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
		return nil
	}

	_, err = ctx.App.Writer.Write(data)
	return err
}

var RunCommand = &cli.Command{
	Name:        "run",
	Usage:       "Replay an alignment fault",
	Description: "Build a synthetic task from a scenario file, handle one alignment fault at its PC and print the resulting state as JSON.",
	Action:      Run,
	Flags: []cli.Flag{
		ScenarioFlag,
		OutputFlag,
		PProfCPUFlag,
	},
}

// exampleScenario is a misaligned STP X2, X3, [X0].
func exampleScenario() *Scenario {
	insn := hexutil.Uint64(0xA9000C02)
	return &Scenario{
		PC:          0x8000,
		FaultAddr:   0x1001,
		Instruction: &insn,
		X: map[uint8]hexutil.Uint64{
			0: 0x1001,
			2: 0x1111,
			3: 0x2222,
		},
		Regions: []Region{
			{Base: 0x1000, Size: 0x100},
			{Base: 0x8000, Size: 0x1000},
		},
	}
}

func PrintExample(ctx *cli.Context) error {
	data, err := json.MarshalIndent(exampleScenario(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize scenario: %w", err)
	}
	_, err = fmt.Fprintf(ctx.App.Writer, "%s\n", data)
	return err
}

var ExampleCommand = &cli.Command{
	Name:   "example",
	Usage:  "Print an example scenario file",
	Action: PrintExample,
}

package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/sarchlab/alignfix/insts"
)

func parseWord(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid instruction word %q: %w", s, err)
	}
	return uint32(v), nil
}

func Decode(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return errors.New("no instruction words given")
	}

	decoder := insts.NewDecoder()
	out := ctx.App.Writer

	rejected := 0
	for _, arg := range ctx.Args().Slice() {
		word, err := parseWord(arg)
		if err != nil {
			return err
		}

		desc, err := decoder.Decode(word)
		if err != nil {
			rejected++
			_, _ = fmt.Fprintf(out, "0x%08X  rejected: %v\n", word, err)
			continue
		}

		_, _ = fmt.Fprintf(out, "0x%08X  %-13s %s\n", word, desc.Class, desc)
	}

	if ctx.Bool(StrictFlag.Name) && rejected > 0 {
		return fmt.Errorf("%d of %d words rejected", rejected, ctx.NArg())
	}
	return nil
}

var StrictFlag = &cli.BoolFlag{
	Name:  "strict",
	Usage: "fail if any word is rejected",
}

var DecodeCommand = &cli.Command{
	Name:        "decode",
	Usage:       "Decode instruction words",
	ArgsUsage:   "<word>...",
	Description: "Decode instruction words (hex with 0x prefix, or decimal) and print the descriptor or the rejection with its raw classification fields.",
	Action:      Decode,
	Flags: []cli.Flag{
		StrictFlag,
	},
}

package emu

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Config holds the tunables of the alignment fixup handler.
type Config struct {
	// DCZID is the DCZID_EL0 value reported to DC ZVA emulation.
	// Default: 0x4 (64-byte blocks, zeroing permitted).
	DCZID uint64 `json:"dczid_el0"`

	// AlignZeroBlock makes DC ZVA zero the block containing the target
	// address instead of the block starting at it. Default: false.
	AlignZeroBlock bool `json:"align_zero_block"`

	// TraceNewInstructions logs each distinct faulting instruction word the
	// first time it is seen. Default: false.
	TraceNewInstructions bool `json:"trace_new_instructions"`

	// LogLevel is a logrus level name. Default: "info".
	LogLevel string `json:"log_level"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		DCZID:    uint64(DefaultDCZID),
		LogLevel: logrus.InfoLevel.String(),
	}
}

// LoadConfig loads a Config from a JSON file. Missing fields keep their
// defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that all values are usable.
func (c *Config) Validate() error {
	if DCZID(c.DCZID).BlockShift() > MaxDCZIDBlockShift {
		return fmt.Errorf("dczid_el0 block size field must be <= %d", MaxDCZIDBlockShift)
	}
	if c.DCZID>>5 != 0 {
		return fmt.Errorf("dczid_el0 has reserved bits set")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// Level returns the parsed log level, or info if it does not parse.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// NewHandlerFromConfig validates c and builds a Handler over memory. log
// may be nil to use the standard logger; its level is not changed.
func NewHandlerFromConfig(
	c *Config,
	memory UserMemory,
	log logrus.FieldLogger,
) (*Handler, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	e := NewEmulator(memory,
		WithSystemRegisters(StaticSystemRegisters{DCZID: DCZID(c.DCZID)}),
		WithAlignedZeroBlock(c.AlignZeroBlock),
		WithLogger(log),
	)

	var opts []HandlerOption
	if c.TraceNewInstructions {
		opts = append(opts, WithInstructionTrace(NewInstructionTrace(log)))
	}

	return NewHandler(e, opts...), nil
}

// Package config loads the YAML runtime-configuration document cmd/heyvm
// reads at startup (spec.md §4.11/SPEC_FULL.md §4.11): arena size,
// register capacity, VM-id assignment mode, and the scheduler's
// cooperative time-slice. Grounded on the teacher's config-file loading
// convention of a typed struct unmarshaled straight off gopkg.in/yaml.v3
// with documented defaults filled in after Unmarshal rather than via
// struct tags.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// VMIDMode selects how task handles are assigned to the allocator's
// VM-id tag (spec §4.1).
type VMIDMode string

const (
	// VMIDSequential assigns ids 0, 1, 2, ... in creation order.
	VMIDSequential VMIDMode = "sequential"
	// VMIDUUID assigns a fresh google/uuid-derived handle per task,
	// truncated to the allocator's int32 tag (spec §4.9).
	VMIDUUID VMIDMode = "uuid"
)

// Config is the top-level shape of config.yaml.
type Config struct {
	Arena struct {
		SizeBytes int  `yaml:"size_bytes"`
		Mapped    bool `yaml:"mapped"`
	} `yaml:"arena"`

	Registers struct {
		Count int `yaml:"count"`
	} `yaml:"registers"`

	Scheduler struct {
		TimeSliceInstructions int      `yaml:"time_slice_instructions"`
		VMIDMode              VMIDMode `yaml:"vm_id_mode"`
	} `yaml:"scheduler"`

	Debug struct {
		StreamAddr string `yaml:"stream_addr"`
	} `yaml:"debug"`
}

// Default returns a Config populated with the sizes spec.md's examples
// assume: a modest arena, the vm package's DefaultRegisterCount, and a
// time slice generous enough that one scheduler tick usually finishes a
// short method call.
func Default() Config {
	var c Config
	c.Arena.SizeBytes = 1 << 20
	c.Registers.Count = 4096
	c.Scheduler.TimeSliceInstructions = 2000
	c.Scheduler.VMIDMode = VMIDSequential
	return c
}

// Load reads and parses path, filling any zero-valued field from
// Default() so a config.yaml only needs to name the fields it overrides.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.Arena.SizeBytes <= 0 {
		cfg.Arena.SizeBytes = Default().Arena.SizeBytes
	}
	if cfg.Registers.Count <= 0 {
		cfg.Registers.Count = Default().Registers.Count
	}
	if cfg.Scheduler.TimeSliceInstructions <= 0 {
		cfg.Scheduler.TimeSliceInstructions = Default().Scheduler.TimeSliceInstructions
	}
	if cfg.Scheduler.VMIDMode == "" {
		cfg.Scheduler.VMIDMode = Default().Scheduler.VMIDMode
	}
	return cfg, nil
}

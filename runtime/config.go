package runtime

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config controls the VM's fixed resource bounds and the evaluator's GC
// poll threshold (spec §4.3/§5). Zero-value fields are filled in by
// DefaultConfig so a partial YAML document only needs to name the
// settings it wants to override.
type Config struct {
	ValueStackCapacity   int `yaml:"value_stack_capacity"`
	FrameStackCapacity   int `yaml:"frame_stack_capacity"`
	HandlerStackCapacity int `yaml:"handler_stack_capacity"`
	LocalStackBound      int `yaml:"local_stack_bound"`
	CallDepthMax         int `yaml:"call_depth_max"`
	GCPollThreshold      int `yaml:"gc_poll_threshold"`
}

// DefaultConfig matches the constants vm.go uses when no config file is
// present (vmMaxFrames, a 256-slot starting value stack, etc.).
func DefaultConfig() *Config {
	return &Config{
		ValueStackCapacity:   256,
		FrameStackCapacity:   vmMaxFrames,
		HandlerStackCapacity: 64,
		LocalStackBound:      1 << 16,
		CallDepthMax:         vmMaxFrames,
		GCPollThreshold:      1 << 20,
	}
}

// LoadConfig reads a YAML config file, starting from DefaultConfig and
// overlaying whatever fields the file sets (spec's ambient "Configuration"
// section).
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Package config holds the operator CLI's on-disk settings: where ROMs and
// project files live, how noisy logging should be, and how large the
// disassembly worker's seed queue is allowed to grow. Grounded on
// gones/internal/app.Config's load/save/defaults shape, trimmed to the
// fields a headless disassembler-and-emulator actually needs -- this tool
// has no window, no audio device, and no key-mapping surface to configure.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// PathsConfig is where the CLI looks for ROMs and writes project/save-state
// files by default, mirroring gones' PathsConfig but limited to what a
// headless tool touches.
type PathsConfig struct {
	ROMs       string `yaml:"roms"`
	Projects   string `yaml:"projects"`
	SaveStates string `yaml:"save_states"`
}

// DisassemblyConfig bounds the disassembly worker's seed queue: QueueSize
// is a sizing hint for callers that buffer seeds themselves before handing
// them to System.DisassembleFrom one at a time.
type DisassemblyConfig struct {
	QueueSize int `yaml:"queue_size"`
}

// Config is the complete on-disk settings file, one YAML document.
type Config struct {
	Paths       PathsConfig       `yaml:"paths"`
	LogLevel    string            `yaml:"log_level"` // "debug", "info", "warn", "error"
	Disassembly DisassemblyConfig `yaml:"disassembly"`

	configPath string
}

// New returns a Config populated with this tool's defaults.
func New() *Config {
	return &Config{
		Paths: PathsConfig{
			ROMs:       "./roms",
			Projects:   "./projects",
			SaveStates: "./saves",
		},
		LogLevel: "info",
		Disassembly: DisassemblyConfig{
			QueueSize: 4096,
		},
	}
}

// DefaultPath is where LoadFromFile looks when the operator doesn't name a
// config file explicitly.
func DefaultPath() string {
	return "./config/nesdis.yaml"
}

// LoadFromFile reads path as YAML, or -- if the file doesn't exist yet --
// writes out New()'s defaults at path and returns those, the same
// first-run behavior gones' own LoadFromFile has.
func LoadFromFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		c := New()
		if err := c.SaveToFile(path); err != nil {
			return nil, err
		}
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	c := New()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.configPath = path
	return c, nil
}

// SaveToFile writes c to path as YAML, creating path's parent directory if
// needed.
func (c *Config) SaveToFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create directory %s: %w", dir, err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	c.configPath = path
	return nil
}

// Path returns the file this Config was loaded from or last saved to, or ""
// for a Config built with New that has never touched disk.
func (c *Config) Path() string { return c.configPath }

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/devices"
)

const (
	minSamplingRate = 1
	maxSamplingRate = 6000
)

type Config struct {
	Devices     DevicesConfig     `yaml:"devices"`
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	Archive     ArchiveConfig     `yaml:"archive"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// DevicesConfig holds the instrument addresses. An empty address
// disables the device.
type DevicesConfig struct {
	IC256 string `yaml:"ic256"`
	TX2   string `yaml:"tx2"`
}

type AcquisitionConfig struct {
	SamplingRate int    `yaml:"sampling_rate"`
	SaveFolder   string `yaml:"save_folder"`
	Note         string `yaml:"note"`
}

// ArchiveConfig enables the Postgres row archive when conn_string is
// set.
type ArchiveConfig struct {
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Acquisition.SamplingRate == 0 {
		c.Acquisition.SamplingRate = 1000
	}
	if c.Acquisition.SaveFolder == "" {
		c.Acquisition.SaveFolder = "./data"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Archive.Table == "" {
		c.Archive.Table = "virtual_rows"
	}
}

func (c *Config) validate() error {
	if c.Devices.IC256 == "" && c.Devices.TX2 == "" {
		return fmt.Errorf("devices: at least one device address is required")
	}
	if c.Devices.IC256 != "" && !devices.IsValidIPv4(c.Devices.IC256) {
		return fmt.Errorf("devices.ic256: %q is not a valid IPv4 address", c.Devices.IC256)
	}
	if c.Devices.TX2 != "" && !devices.IsValidIPv4(c.Devices.TX2) {
		return fmt.Errorf("devices.tx2: %q is not a valid IPv4 address", c.Devices.TX2)
	}
	if c.Acquisition.SamplingRate < minSamplingRate || c.Acquisition.SamplingRate > maxSamplingRate {
		return fmt.Errorf("acquisition.sampling_rate must be between %d and %d", minSamplingRate, maxSamplingRate)
	}
	if c.Acquisition.SaveFolder == "" {
		return fmt.Errorf("acquisition.save_folder is required")
	}
	return nil
}

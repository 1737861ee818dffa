// Package config loads the daemon's YAML configuration file.
package config

import (
	"os"
	"time"

	"github.com/karloygard/acer-wmi-ext-go/pkg/acer"
	"github.com/karloygard/acer-wmi-ext-go/pkg/ec"
	"github.com/karloygard/acer-wmi-ext-go/pkg/quirks"
	"github.com/karloygard/acer-wmi-ext-go/pkg/wmi"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "/etc/acer-wmi-ext/config.yaml"

type Config struct {
	Transport    Transport      `yaml:"transport"`
	Startup      Startup        `yaml:"startup"`
	MQTT         MQTT           `yaml:"mqtt"`
	HTTP         HTTP           `yaml:"http"`
	PollInterval time.Duration  `yaml:"poll_interval"`
	DMIDir       string         `yaml:"dmi_dir"`
	Models       []quirks.Entry `yaml:"models"`
}

type Transport struct {
	CallPath   string `yaml:"call_path"`
	DevicesDir string `yaml:"devices_dir"`
	ECPath     string `yaml:"ec_path"`

	// ACPI method path per WMI interface GUID
	Methods map[string]string `yaml:"methods"`
}

// Startup values are applied once at start-up; -1 leaves the firmware alone
type Startup struct {
	HealthMode        int `yaml:"health_mode"`
	SystemControlMode int `yaml:"system_control_mode"`
}

func (s Startup) Options() acer.Options {
	return acer.Options{HealthMode: s.HealthMode, SystemControlMode: s.SystemControlMode}
}

type MQTT struct {
	Server                string `yaml:"server"`
	ClientID              string `yaml:"client_id"`
	HADiscovery           bool   `yaml:"ha_discovery"`
	HADiscoveryPrefix     string `yaml:"ha_discovery_prefix"`
	HADiscoveryAutoremove bool   `yaml:"ha_discovery_autoremove"`
}

type HTTP struct {
	Listen string `yaml:"listen"`
}

func Default() *Config {
	methods := make(map[string]string, len(wmi.DefaultMethods))
	for guid, method := range wmi.DefaultMethods {
		methods[guid] = method
	}

	return &Config{
		Transport: Transport{
			CallPath:   wmi.DefaultCallPath,
			DevicesDir: wmi.DefaultDevicesDir,
			ECPath:     ec.DefaultPath,
			Methods:    methods,
		},
		Startup: Startup{
			HealthMode:        acer.DefaultOptions.HealthMode,
			SystemControlMode: acer.DefaultOptions.SystemControlMode,
		},
		MQTT: MQTT{
			HADiscoveryPrefix: "homeassistant",
		},
		PollInterval: 30 * time.Second,
		DMIDir:       quirks.DefaultDMIDir,
	}
}

// Load reads the file at path over the defaults. A missing file is not an
// error when optional is set.
func Load(path string, optional bool) (*Config, error) {
	c := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return c, nil
		}
		return nil, errors.WithStack(err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}

	if err := c.validate(); err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return c, nil
}

func (c *Config) validate() error {
	if c.PollInterval < 0 {
		return errors.Errorf("poll_interval must not be negative")
	}
	if c.Startup.HealthMode > 1 {
		return errors.Errorf("startup.health_mode must be -1, 0 or 1")
	}
	if c.Startup.SystemControlMode > int(acer.Performance) || c.Startup.SystemControlMode == 0 {
		return errors.Errorf("startup.system_control_mode must be -1 or 1-3")
	}
	for _, m := range c.Models {
		if m.Key.Vendor == "" || m.Key.Product == "" {
			return errors.Errorf("model %q needs both vendor and product", m.Ident)
		}
	}
	return nil
}

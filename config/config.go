package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/mowbotai/fleetd/infra/credentials"
	"github.com/mowbotai/fleetd/infra/mqtt"
)

type Config struct {
	Broker      mqtt.Config        `json:"broker"`
	Credentials credentials.Config `json:"credentials"`
	Fleet       FleetConfig        `json:"fleet"`
	Health      HealthConfig       `json:"health"`
	Mission     MissionConfig      `json:"mission"`
	Metrics     MetricsConfig      `json:"metrics"`
	API         APIConfig          `json:"api"`
}

// Load reads the given file and applies FLEET_ environment overrides
// (FLEET_BROKER__HOST=...). Environment values win over file values and
// over anything persisted in the credential store.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	return finish(k)
}

// LoadDefaults builds a configuration from defaults and FLEET_ environment
// overrides only, for deployments that run without a config file.
func LoadDefaults() (*Config, error) {
	return finish(koanf.New("."))
}

func finish(k *koanf.Koanf) (*Config, error) {
	if err := k.Load(env.Provider("FLEET_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "fleet_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Broker.SetDefaults()
	cfg.Credentials.SetDefaults()
	cfg.Fleet.SetDefaults()
	cfg.Mission.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.API.SetDefaults()
	if err := cfg.Broker.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Fleet.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Mission.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Package config loads the kml2fgfp YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"kml2fgfp/internal/api"
	"kml2fgfp/internal/logging"
	"kml2fgfp/internal/notify"
	"kml2fgfp/internal/storage"
)

// Plan holds the flight plan settings written to every file.
type Plan struct {
	FlightRules string `yaml:"flight_rules"`
	FlightType  string `yaml:"flight_type"`
}

// Config is the complete configuration file.
type Config struct {
	Plan       Plan                     `yaml:"plan"`
	Log        logging.Config           `yaml:"log"`
	Catalog    storage.CatalogConfig    `yaml:"catalog"`
	ClickHouse storage.ClickHouseConfig `yaml:"clickhouse"`
	NATS       notify.Config            `yaml:"nats"`
	API        api.Config               `yaml:"api"`
}

// Default returns the configuration used when no file is given: a VFR
// plan of type X, info logging to stderr, and no catalog, analytics or
// notifications.
func Default() Config {
	return Config{
		Plan:    Plan{FlightRules: "V", FlightType: "X"},
		Log:     logging.Config{Level: "info"},
		Catalog: storage.DefaultCatalogConfig(),
		ClickHouse: storage.ClickHouseConfig{
			Port:     9000,
			Database: "default",
			User:     "default",
		},
		NATS: notify.Config{Subject: notify.DefaultSubject},
		API:  api.Config{Port: 8081, MaxUploadBytes: 8 << 20},
	}
}

// LoadConfig reads a YAML file over defaults. Keys missing from the file
// keep their default values; unknown keys are an error.
func LoadConfig[T any](path string, defaults T) (*T, error) {
	v := defaults
	if err := decodeFile(path, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Load reads path over Default and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := LoadConfig(path, Default())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func decodeFile(path string, into any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(into); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks values that cannot be caught while decoding.
func (c *Config) Validate() error {
	switch strings.ToUpper(c.Plan.FlightRules) {
	case "V", "I", "Y", "Z":
		c.Plan.FlightRules = strings.ToUpper(c.Plan.FlightRules)
	default:
		return fmt.Errorf("plan.flight_rules: %q is not one of V, I, Y, Z", c.Plan.FlightRules)
	}
	if len(c.Plan.FlightType) != 1 {
		return fmt.Errorf("plan.flight_type: %q is not a single letter", c.Plan.FlightType)
	}
	c.Plan.FlightType = strings.ToUpper(c.Plan.FlightType)

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	switch c.Catalog.Driver {
	case storage.DriverNone, storage.DriverPostgres:
	case storage.DriverSQLite:
		if c.Catalog.Path == "" {
			return errors.New("catalog.path: required for the sqlite driver")
		}
	default:
		return fmt.Errorf("catalog.driver: unknown driver %q", c.Catalog.Driver)
	}

	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port: %d out of range", c.API.Port)
	}
	if c.API.AuthEnabled && len(c.API.APIKeys) == 0 {
		return errors.New("api.api_keys: required when auth is enabled")
	}
	return nil
}

package config

import (
	"encoding/json"
	"errors"
	"os"
)

// ReadUmbraConfig reads the main config file on top of the defaults. A
// missing file is created with the defaults.
func ReadUmbraConfig(path string) (UmbraConfig, error) {
	cfg := DefaultUmbraConfig()
	bb, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, WriteUmbraConfig(path, cfg)
	}
	if err != nil {
		return UmbraConfig{}, err
	}
	if err := json.Unmarshal(bb, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func WriteUmbraConfig(path string, cfg UmbraConfig) error {
	bb, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, bb, 0o644)
}

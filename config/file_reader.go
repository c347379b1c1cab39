package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

var ErrNoConfigFiles = errors.New("no config files found")

func NewBackendConfigFileReader(path string, verifier VerifyFunc) backendConfigFileReader {
	return backendConfigFileReader{
		path:     path,
		verifier: verifier,
	}
}

type backendConfigFileReader struct {
	path     string
	verifier VerifyFunc
}

func (reader backendConfigFileReader) Read() ([]ServerConfig, error) {
	cfgs, err := ReadServerConfigs(reader.path)
	if err != nil {
		return nil, err
	}
	err = reader.verifier(cfgs)
	if err != nil {
		return cfgs, err
	}
	return cfgs, nil
}

// ReadServerConfigs loads every json file under path except the main
// config file.
func ReadServerConfigs(path string) ([]ServerConfig, error) {
	var cfgs []ServerConfig
	var filePaths []string
	err := filepath.Walk(path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".json" {
			return nil
		}
		if info.Name() == MainConfigFileName {
			return nil
		}
		filePaths = append(filePaths, path)
		return nil
	})
	if len(filePaths) == 0 {
		return cfgs, ErrNoConfigFiles
	}
	if err != nil {
		return cfgs, err
	}
	for _, filePath := range filePaths {
		cfg, err := LoadServerCfgFromPath(filePath)
		if err != nil {
			return nil, err
		}
		cfgs = append(cfgs, cfg)
	}
	return cfgs, nil
}

func LoadServerCfgFromPath(path string) (ServerConfig, error) {
	bb, err := os.ReadFile(path)
	if err != nil {
		return ServerConfig{}, err
	}
	cfg := DefaultServerConfig()
	if err := json.Unmarshal(bb, &cfg); err != nil {
		return cfg, err
	}
	cfg.FilePath = path
	return cfg, nil
}

func NewUmbraConfigFileReader(dir string) UmbraConfigReader {
	return umbraConfigFileReader{
		path: filepath.Join(dir, MainConfigFileName),
	}.Read
}

type umbraConfigFileReader struct {
	path string
}

func (reader umbraConfigFileReader) Read() (UmbraConfig, error) {
	return ReadUmbraConfig(reader.path)
}

func NewUmbraReader(cfg UmbraConfig) UmbraConfigReader {
	return func() (UmbraConfig, error) {
		return cfg, nil
	}
}

package config

import (
	"errors"
	"fmt"
	"strings"
)

type DuplicateDomain struct {
	Cfg1Path string
	Cfg2Path string
	Domain   string
}

func (err *DuplicateDomain) Error() string {
	return fmt.Sprintf("'%s' has been found in %s and %s", err.Domain, err.Cfg1Path, err.Cfg2Path)
}

type InvalidConfig struct {
	CfgPath string
	Err     error
}

func (err *InvalidConfig) Error() string {
	return fmt.Sprintf("%s: %v", err.CfgPath, err.Err)
}

func (err *InvalidConfig) Unwrap() error {
	return err.Err
}

var ErrNoProxyTo = errors.New("proxyTo is not set")

func VerifyConfigs(cfgs []ServerConfig) []error {
	errs := []error{}
	domains := make(map[string]int)
	for index, cfg := range cfgs {
		if cfg.ProxyTo == "" {
			errs = append(errs, &InvalidConfig{CfgPath: cfg.FilePath, Err: ErrNoProxyTo})
		}
		if _, err := ServerToBackendConfig(cfg); err != nil {
			errs = append(errs, &InvalidConfig{CfgPath: cfg.FilePath, Err: err})
		}
		for _, domain := range cfg.Domains {
			domain = strings.ToLower(domain)
			otherIndex, ok := domains[domain]
			if ok {
				errs = append(errs, &DuplicateDomain{
					Domain:   domain,
					Cfg1Path: cfg.FilePath,
					Cfg2Path: cfgs[otherIndex].FilePath,
				})
				continue
			}
			domains[domain] = index
		}
	}
	return errs
}

// Verify is VerifyConfigs as a VerifyFunc.
func Verify(cfgs []ServerConfig) error {
	return errors.Join(VerifyConfigs(cfgs)...)
}

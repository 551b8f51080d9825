package commands

import (
	"github.com/teranos/threatbrief/am"
	"github.com/teranos/threatbrief/errors"
)

// ConfigFile is the --config override; empty means the normal cascade
var ConfigFile string

// loadConfig loads and validates the configuration
func loadConfig() (*am.Config, error) {
	var (
		cfg *am.Config
		err error
	)
	if ConfigFile != "" {
		cfg, err = am.LoadFromFile(ConfigFile)
	} else {
		cfg, err = am.Load()
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithHint(errors.Wrap(err, "invalid configuration"),
			"run 'threatbrief am show' to inspect the merged configuration")
	}
	return cfg, nil
}

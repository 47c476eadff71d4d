// Package internal holds helpers shared by the api package.
package internal

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v2"

	"learn.admission/config"
)

// LoadConfig reads and unmarshals the YAML config at path. It expects a
// list of limiters under the 'limiters' key and an optional 'registry'
// section.
func LoadConfig(path string) (*config.File, error) {
	log.Debug().Str("config_path", path).Msg("API: Loading configuration")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	var cfg config.File
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config file %s: %w", path, err)
	}
	log.Debug().Str("config_path", path).Int("limiters", len(cfg.Limiters)).Msg("API: Configuration loaded")
	return &cfg, nil
}

// Copyright 2024 The Kubetail Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// CLIConfig holds cmd/correlator-demo's own settings, separate from the
// engine Config: which query to run, where to read seed events from, and
// how to log while doing it.
type CLIConfig struct {
	Query string `validate:"required"`

	SeedFiles map[string]string `mapstructure:"seed-files"` // source name -> JSONL path

	Logging struct {
		Enabled bool
		Level   string `validate:"oneof=debug info warn error disabled"`
		Format  string `validate:"oneof=json pretty cli"`
	}
}

func (cfg *CLIConfig) validate() error {
	return validator.New().Struct(cfg)
}

// DefaultCLIConfig returns the demo CLI's defaults.
func DefaultCLIConfig() *CLIConfig {
	cfg := &CLIConfig{}
	cfg.SeedFiles = map[string]string{}
	cfg.Logging.Enabled = true
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "cli"
	return cfg
}

// DefaultConfigPath returns the demo CLI's per-user config file path.
func DefaultConfigPath(format string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".correlator", fmt.Sprintf("config.%s", format)), nil
}

// NewCLIConfig loads a CLIConfig from configPath (or the default path, if
// empty and present), falling back to DefaultCLIConfig for anything
// unset.
func NewCLIConfig(configPath string, v *viper.Viper) (*CLIConfig, error) {
	if v == nil {
		v = viper.New()
	}

	hasCustomPath := configPath != ""
	if configPath == "" {
		f, err := DefaultConfigPath("yaml")
		if err != nil {
			return nil, err
		}
		configPath = f
	}

	configBytes, err := os.ReadFile(configPath)
	if err != nil && (hasCustomPath || !os.IsNotExist(err)) {
		return nil, err
	}
	if len(configBytes) > 0 {
		configBytes = []byte(os.ExpandEnv(string(configBytes)))
		if len(filepath.Ext(configPath)) <= 1 {
			return nil, fmt.Errorf("file %q must have a valid extension (e.g., .yaml, .json)", configPath)
		}
		v.SetConfigType(filepath.Ext(configPath)[1:])
		if err := v.ReadConfig(bytes.NewBuffer(configBytes)); err != nil {
			return nil, err
		}
	}

	cfg := DefaultCLIConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

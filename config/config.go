// Copyright 2024-2025 Andres Morey
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

// Package config loads the engine coordinator's tunables (§4.6) through
// viper, validated with go-playground/validator and decoded with
// mapstructure custom hooks for the engine's string-form duration options.
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/correlator/engine/query"
	"github.com/correlator/engine/timeutil"
)

// Config holds the engine coordinator's configurable options, per §4.6's
// table.
type Config struct {
	// DefaultTimeWindow is used for a stream reference with no `[d]`
	// suffix.
	DefaultTimeWindow time.Duration `mapstructure:"default-time-window"`

	// MaxEvents bounds each time window's keyed store.
	MaxEvents int `mapstructure:"max-events" validate:"gt=0"`

	// LateTolerance is the grace period during which an event older than
	// windowStart is still admitted.
	LateTolerance time.Duration `mapstructure:"late-tolerance"`

	// DefaultJoinType is used only when the parser did not provide one,
	// which in practice it always does — kept for parity with §4.6.
	DefaultJoinType query.JoinType `mapstructure:"default-join-type" validate:"oneof=and or unless"`

	// BufferSize is the back-pressure gate's high watermark.
	BufferSize int `mapstructure:"buffer-size" validate:"gt=0"`

	// ProcessingInterval paces the joiner's correlation sweep.
	ProcessingInterval time.Duration `mapstructure:"processing-interval"`

	// MaxMemoryMB triggers a memoryWarning event above this threshold.
	MaxMemoryMB int `mapstructure:"max-memory-mb" validate:"gt=0"`

	// GCInterval paces the periodic housekeeping task.
	GCInterval time.Duration `mapstructure:"gc-interval"`

	// DedupWindow enables the optional deduplicator (C12) when non-zero:
	// events with the same source+message seen again within this window
	// are suppressed before they reach a stream's time window store.
	DedupWindow time.Duration `mapstructure:"dedup-window"`
}

func (cfg *Config) validate() error {
	return validator.New().Struct(cfg)
}

// DefaultConfig returns §4.6's documented defaults.
func DefaultConfig() *Config {
	return &Config{
		DefaultTimeWindow:  5 * time.Minute,
		MaxEvents:          10000,
		LateTolerance:      30 * time.Second,
		DefaultJoinType:    query.JoinAnd,
		BufferSize:         1000,
		ProcessingInterval: 100 * time.Millisecond,
		MaxMemoryMB:        100,
		GCInterval:         30 * time.Second,
	}
}

// durationDecodeHook lets config files use compact duration strings
// ("30s", "5m") for every time.Duration field, reusing the query
// language's own duration grammar instead of time.ParseDuration's wider
// one — one format for "how long" across the whole engine.
func durationDecodeHook(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if t != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	if f.Kind() != reflect.String {
		return data, nil
	}
	return timeutil.ParseDuration(data.(string))
}

// NewConfig loads a Config from an optional file f, falling back to
// DefaultConfig values for anything the file doesn't set, and validates
// the result.
func NewConfig(v *viper.Viper, f string) (*Config, error) {
	if f != "" {
		configBytes, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		configBytes = []byte(os.ExpandEnv(string(configBytes)))

		v.SetConfigType(filepath.Ext(f)[1:])
		if err := v.ReadConfig(bytes.NewBuffer(configBytes)); err != nil {
			return nil, err
		}
	}

	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(durationDecodeHook))); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

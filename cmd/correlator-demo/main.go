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

// correlator-demo replays seeded JSONL event files through the
// correlation engine and prints every emitted CorrelatedEvent as it
// arrives — a small harness for exercising a query against fixture data
// without a real log backend behind it.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/correlator/engine/adapter"
	"github.com/correlator/engine/config"
	"github.com/correlator/engine/engine"
	"github.com/correlator/engine/event"
	"github.com/correlator/engine/logging"
	"github.com/correlator/engine/perf"
)

func main() {
	var cliConfigPath string

	cmd := cobra.Command{
		Use:   "correlator-demo",
		Short: "Replay seeded log streams through the correlation engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := config.NewCLIConfig(cliConfigPath, viper.New())
			if err != nil {
				return fmt.Errorf("load cli config: %w", err)
			}

			logging.Configure(logging.Options{
				Enabled: cli.Logging.Enabled,
				Level:   cli.Logging.Level,
				Format:  cli.Logging.Format,
			})
			log := logging.Component("cli")

			eng := engine.New(config.DefaultConfig())
			defer eng.Destroy()

			if err := registerSeedAdapters(eng, cli.SeedFiles); err != nil {
				return err
			}

			_ = eng.OnMemoryWarning(func(w engine.MemoryWarning) {
				log.Warn().Int("usedMB", w.UsedMB).Int("maxMB", w.MaxMB).Msg("heap usage over threshold")
			})
			_ = eng.OnPerformanceMetrics(func(m perf.Metrics) {
				log.Debug().Int64("eventsProcessed", m.EventsProcessed).Int64("correlationsFound", m.CorrelationsFound).Msg("performance snapshot")
			})

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer close(quit)

			ctx, cancel := context.WithCancel(context.Background())
			go func() {
				<-quit
				log.Info().Msg("shutting down")
				cancel()
			}()

			out, err := eng.Correlate(ctx, cli.Query)
			if err != nil {
				return fmt.Errorf("correlate: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			for ce := range out {
				if err := enc.Encode(ce); err != nil {
					log.Error().Err(err).Msg("encode correlated event")
				}
			}

			return nil
		},
	}

	flagset := cmd.Flags()
	flagset.SortFlags = false
	flagset.StringVarP(&cliConfigPath, "config", "c", "", "Path to configuration file (e.g. \"~/.correlator/config.yaml\")")

	if err := cmd.Execute(); err != nil {
		zlog.Fatal().Err(err).Send()
	}
}

// registerSeedAdapters builds one adapter.MemoryAdapter per configured
// seed file and registers it under the source name the query references.
func registerSeedAdapters(eng *engine.Engine, seedFiles map[string]string) error {
	for source, path := range seedFiles {
		events, err := loadSeedFile(path)
		if err != nil {
			return fmt.Errorf("load seed file %q for %q: %w", path, source, err)
		}
		if err := eng.AddAdapter(source, adapter.NewMemoryAdapter(source, events)); err != nil {
			return fmt.Errorf("register adapter %q: %w", source, err)
		}
	}
	return nil
}

// loadSeedFile reads one event.LogEvent per line of a JSONL fixture.
func loadSeedFile(path string) ([]event.LogEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []event.LogEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e event.LogEvent
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// Copyright © 2024 Meroxa, Inc.
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

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-errors/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/conduitio-labs/aqi-ingest/config"
	"github.com/conduitio-labs/aqi-ingest/pipeline"
)

// errJobFailed is returned by the action once the failure has been logged.
var errJobFailed = errors.New("job failed")

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:      "aqi-ingest",
		Usage:     "Load the data.gov.in air quality dataset into a Snowflake stage",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path of a .env file to read settings from, missing files are ignored",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Action: func(c *cli.Context) error {
			return ingest(c, stdout)
		},
	}

	if err := app.RunContext(ctx, args); err != nil {
		if !errors.Is(err, errJobFailed) {
			fmt.Fprintln(stderr, err)
		}
		return 1
	}

	return 0
}

func ingest(c *cli.Context, stdout io.Writer) error {
	level, err := zerolog.ParseLevel(c.String("log-level"))
	if err != nil {
		return errors.Errorf("invalid log level %q: %w", c.String("log-level"), err)
	}

	logger := zerolog.New(stdout).
		Level(level).
		With().
		Timestamp().
		Str("run_id", uuid.Must(uuid.NewV7()).String()).
		Logger()
	ctx := logger.WithContext(c.Context)

	cfg, err := config.Load(c.String("env-file"))
	if err != nil {
		logConfigError(&logger, err)
		return errJobFailed
	}
	logger.Info().
		Str("account", cfg.Account).
		Str("stage", cfg.Stage).
		Str("compression", cfg.Compression).
		Int("limit", cfg.APILimit).
		Msg("configuration loaded")

	if _, err := pipeline.New(cfg).Run(ctx); err != nil {
		// the pipeline has logged the cause
		return errJobFailed
	}

	return nil
}

func logConfigError(logger *zerolog.Logger, err error) {
	var cfgErr *config.ConfigurationError
	if !errors.As(err, &cfgErr) {
		logger.Error().Err(err).Msg("failed to load configuration")
		return
	}

	if cfgErr.IsMissing(config.KeyAPIKey) {
		logger.Error().Msg("API_KEY not found in environment variables.")
	}

	e := logger.Error()
	if len(cfgErr.Missing) > 0 {
		e = e.Strs("missing", cfgErr.Missing)
	}
	if cfgErr.Invalid != nil {
		e = e.AnErr("invalid", cfgErr.Invalid)
	}
	e.Msg("invalid configuration")
}

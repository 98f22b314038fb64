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

//go:generate mockgen -destination=mock/session.go -package=mock . Session

// Package pipeline runs one ingestion job: open a Snowflake session, fetch
// the dataset, stage it locally, PUT it into a dated stage folder and verify
// it is listed there. The scratch directory is removed on every exit path.
package pipeline

import (
	"context"
	"errors"
	"time"
	_ "time/tzdata" // Asia/Kolkata without a system zoneinfo

	"github.com/rs/zerolog"

	"github.com/conduitio-labs/aqi-ingest/config"
	"github.com/conduitio-labs/aqi-ingest/destination"
	"github.com/conduitio-labs/aqi-ingest/repository"
	"github.com/conduitio-labs/aqi-ingest/scratch"
	"github.com/conduitio-labs/aqi-ingest/source"
)

// Session is an open Snowflake session.
type Session interface {
	destination.Stage
	Close() error
}

// Opener opens a Session, repository.Create is the default.
type Opener func(ctx context.Context, cfg config.Config) (Session, error)

// Fetcher retrieves the dataset, *source.Source is the default.
type Fetcher interface {
	Fetch(ctx context.Context, limit int) (source.Payload, error)
}

// ist is the zone of every timestamp the job produces.
var ist = mustLoadLocation("Asia/Kolkata")

// Result is the outcome of a run.
type Result struct {
	State State
	// Payload is the fetched API response, kept for callers of Run.
	Payload source.Payload
	// ScratchFile is the path the response was staged at. It no longer
	// exists once Run returns.
	ScratchFile string
	Upload      destination.Upload
	Listing     []repository.StagedFile
}

// Pipeline runs the ingestion job once.
type Pipeline struct {
	cfg     config.Config
	open    Opener
	fetcher Fetcher
	scratch *scratch.Dir
	now     func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithOpener replaces repository.Create.
func WithOpener(open Opener) Option {
	return func(p *Pipeline) {
		p.open = open
	}
}

// WithFetcher replaces the data.gov.in source.
func WithFetcher(f Fetcher) Option {
	return func(p *Pipeline) {
		p.fetcher = f
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New creates a Pipeline for a loaded configuration.
func New(cfg config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg: cfg,
		open: func(ctx context.Context, cfg config.Config) (Session, error) {
			return repository.Create(ctx, cfg)
		},
		fetcher: source.New(cfg),
		scratch: scratch.New(cfg.ScratchDir),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Run executes the job. The returned Result carries the state the job
// stopped in, which is StateDone on success and StateFailed otherwise.
func (p *Pipeline) Run(ctx context.Context) (res Result, err error) {
	logger := zerolog.Ctx(ctx)
	res.State = StateConfigLoaded

	startedAt := p.now().In(ist)
	fileName := scratch.FileName(startedAt)

	defer p.scratch.Cleanup(ctx)
	defer func() {
		if err != nil {
			res.State = StateFailed
			logFailure(logger, err)
		}
	}()

	session, err := p.open(ctx, p.cfg)
	if err != nil {
		return res, err
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			logger.Warn().Err(closeErr).Msg("failed to close snowflake session")
		}
	}()
	res.State = p.advance(logger, StateSessionOpen)

	dest, err := destination.New(session, p.cfg)
	if err != nil {
		return res, err
	}

	res.Payload, err = p.fetcher.Fetch(ctx, p.cfg.APILimit)
	if err != nil {
		return res, err
	}

	res.ScratchFile, err = p.scratch.WriteJSON(fileName, res.Payload.Raw)
	if err != nil {
		return res, err
	}
	logger.Info().Str("file", res.ScratchFile).Msg("JSON data saved temporarily")
	res.State = p.advance(logger, StateFetched)

	res.Upload, err = dest.Put(ctx, res.ScratchFile, dest.StagePath(startedAt))
	if err != nil {
		return res, err
	}
	res.State = p.advance(logger, StateUploaded)

	res.Listing, err = dest.Verify(ctx, res.Upload)
	if err != nil {
		return res, err
	}
	res.State = p.advance(logger, StateVerified)
	res.State = p.advance(logger, StateDone)

	logger.Info().
		Str("stage", res.Upload.StagePath).
		Str("object", res.Upload.Object).
		Msg("ETL job completed successfully")

	return res, nil
}

func (p *Pipeline) advance(logger *zerolog.Logger, s State) State {
	logger.Debug().Stringer("state", s).Msg("state reached")
	return s
}

// logFailure logs err with the context its type carries.
func logFailure(logger *zerolog.Logger, err error) {
	var (
		apiErr    *source.APIError
		authErr   *repository.AuthenticationError
		ioErr     *scratch.IOError
		uploadErr *destination.UploadError
	)

	switch {
	case errors.As(err, &apiErr):
		logger.Error().
			Int("status", apiErr.StatusCode).
			Str("body", apiErr.Body).
			Msg("API request failed")
	case errors.As(err, &authErr):
		logger.Error().Err(authErr.Err).Str("account", authErr.Account).Msg("failed to create snowflake session")
	case errors.As(err, &ioErr):
		logger.Error().Err(ioErr).Msg("failed to write temporary file")
	case errors.As(err, &uploadErr):
		logger.Error().
			Err(uploadErr.Err).
			Str("stage", uploadErr.StagePath).
			Str("object", uploadErr.Object).
			Msg("failed to upload file to stage")
	default:
		logger.Error().Err(err).Msg("an error occurred during data ingestion")
	}
}

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

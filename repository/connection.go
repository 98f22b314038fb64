// Copyright © 2022 Meroxa, Inc.
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

package repository

import (
	"context"

	"github.com/go-errors/errors"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	sf "github.com/snowflakedb/gosnowflake"
	"go.uber.org/multierr"

	"github.com/conduitio-labs/aqi-ingest/config"
)

const (
	driverName  = "snowflake"
	application = "aqi-ingest"
)

// Snowflake repository. All statements run on one pinned connection so that
// RESULT_SCAN(LAST_QUERY_ID()) sees the previous statement of the session.
type Snowflake struct {
	db   *sqlx.DB
	conn *sqlx.Conn
}

// Create opens and verifies a session with the credentials of cfg. Every
// failure is reported as an *AuthenticationError.
func Create(ctx context.Context, cfg config.Config) (*Snowflake, error) {
	dsn, err := sf.DSN(connectionConfig(cfg))
	if err != nil {
		return nil, &AuthenticationError{Account: cfg.Account, Err: errors.Errorf("build dsn: %w", err)}
	}

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, &AuthenticationError{Account: cfg.Account, Err: errors.Errorf("open db: %w", err)}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()

		return nil, &AuthenticationError{Account: cfg.Account, Err: errors.Errorf("ping db: %w", err)}
	}

	s, err := newSnowflake(ctx, db)
	if err != nil {
		db.Close()

		return nil, &AuthenticationError{Account: cfg.Account, Err: err}
	}

	zerolog.Ctx(ctx).Info().
		Str("account", cfg.Account).
		Str("role", cfg.Role).
		Str("warehouse", cfg.Warehouse).
		Msg("snowflake session created")

	return s, nil
}

func newSnowflake(ctx context.Context, db *sqlx.DB) (*Snowflake, error) {
	conn, err := db.Connx(ctx)
	if err != nil {
		return nil, errors.Errorf("create conn: %w", err)
	}

	return &Snowflake{db: db, conn: conn}, nil
}

// Close releases the pinned connection and closes the pool.
func (s *Snowflake) Close() error {
	return multierr.Append(s.conn.Close(), s.db.Close())
}

func connectionConfig(cfg config.Config) *sf.Config {
	return &sf.Config{
		Account:     cfg.Account,
		Region:      cfg.Region,
		User:        cfg.User,
		Password:    cfg.Password,
		Role:        cfg.Role,
		Database:    cfg.Database,
		Schema:      cfg.Schema,
		Warehouse:   cfg.Warehouse,
		Application: application,
	}
}

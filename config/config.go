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

package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/go-errors/errors"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

const (
	// KeyAccount is the Snowflake account identifier.
	KeyAccount = "SNOWFLAKE_ACCOUNT"

	// KeyRegion is the Snowflake region of the account.
	KeyRegion = "SNOWFLAKE_REGION"

	// KeyUser is the Snowflake login name.
	KeyUser = "SNOWFLAKE_USER"

	// KeyPassword is the Snowflake password.
	KeyPassword = "SNOWFLAKE_PASSWORD"

	// KeyRole is the Snowflake role used by the session.
	KeyRole = "SNOWFLAKE_ROLE"

	// KeyDatabase is the default database of the session.
	KeyDatabase = "SNOWFLAKE_DATABASE"

	// KeySchema is the default schema of the session.
	KeySchema = "SNOWFLAKE_SCHEMA"

	// KeyWarehouse is the virtual warehouse of the session.
	KeyWarehouse = "SNOWFLAKE_WAREHOUSE"

	// KeyStage is the root of the internal stage files are uploaded to.
	KeyStage = "SNOWFLAKE_STAGE"

	// KeyCompression selects how files are compressed before landing in the stage.
	KeyCompression = "STAGE_COMPRESSION"

	// KeyAPIKey is the data.gov.in API key.
	KeyAPIKey = "API_KEY"

	// KeyAPILimit is the maximum number of records requested from the API.
	KeyAPILimit = "API_LIMIT"

	// KeyAPIURL is the resource endpoint of the air quality dataset.
	KeyAPIURL = "API_URL"

	// KeyScratchDir is the local directory the response is staged in.
	KeyScratchDir = "SCRATCH_DIR"
)

const (
	CompressionAuto = "auto"
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
)

const (
	defaultRole        = "SYSADMIN"
	defaultDatabase    = "AQI_PROJECT_DB"
	defaultSchema      = "STAGE_SCH"
	defaultWarehouse   = "LOAD_WH"
	defaultStage       = "@aqi_project_db.stage_sch.raw_stg"
	defaultCompression = CompressionAuto
	defaultAPILimit    = 4000
	defaultAPIURL      = "https://api.data.gov.in/resource/3b01bcb8-0b14-4abf-b6f2-c1bfd384ba69"
	defaultScratchDir  = "tmp_aqi_data"
)

// keys lists every environment variable read by Load.
var keys = []string{
	KeyAccount, KeyRegion, KeyUser, KeyPassword, KeyRole, KeyDatabase, KeySchema,
	KeyWarehouse, KeyStage, KeyCompression, KeyAPIKey, KeyAPILimit, KeyAPIURL,
	KeyScratchDir,
}

// Config represents the configuration of a single ingestion run.
type Config struct {
	Account   string `key:"SNOWFLAKE_ACCOUNT" validate:"required"`
	Region    string `key:"SNOWFLAKE_REGION" validate:"required"`
	User      string `key:"SNOWFLAKE_USER" validate:"required"`
	Password  string `key:"SNOWFLAKE_PASSWORD" validate:"required"`
	Role      string `key:"SNOWFLAKE_ROLE" validate:"required"`
	Database  string `key:"SNOWFLAKE_DATABASE" validate:"required"`
	Schema    string `key:"SNOWFLAKE_SCHEMA" validate:"required"`
	Warehouse string `key:"SNOWFLAKE_WAREHOUSE" validate:"required"`

	// Stage is the stage root, e.g. @db.schema.stage. Dated folders are
	// created below it.
	Stage string `key:"SNOWFLAKE_STAGE" validate:"required,startswith=@"`

	// Compression is one of auto, gzip or zstd. With auto the file is
	// compressed by the PUT command itself.
	Compression string `key:"STAGE_COMPRESSION" validate:"required,oneof=auto gzip zstd"`

	APIKey   string `key:"API_KEY" validate:"required"`
	APILimit int    `key:"API_LIMIT" validate:"gte=1"`
	APIURL   string `key:"API_URL" validate:"required,url"`

	// ScratchDir must be a relative path below the working directory.
	ScratchDir string `key:"SCRATCH_DIR" validate:"required,localdir"`
}

// Load reads envFile into the process environment, without overriding
// variables that are already set, and parses the result. A missing envFile is
// not an error.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return Config{}, &ConfigurationError{Invalid: errors.Errorf("load %s: %w", envFile, err)}
			}
		}
	}

	env := make(map[string]string, len(keys))
	for _, k := range keys {
		env[k] = os.Getenv(k)
	}

	return Parse(env)
}

// Parse attempts to parse env into a Config struct.
func Parse(env map[string]string) (Config, error) {
	config := Config{
		Account:     value(env, KeyAccount, ""),
		Region:      value(env, KeyRegion, ""),
		User:        value(env, KeyUser, ""),
		Password:    password(env[KeyPassword]),
		Role:        value(env, KeyRole, defaultRole),
		Database:    value(env, KeyDatabase, defaultDatabase),
		Schema:      value(env, KeySchema, defaultSchema),
		Warehouse:   value(env, KeyWarehouse, defaultWarehouse),
		Stage:       value(env, KeyStage, defaultStage),
		Compression: strings.ToLower(value(env, KeyCompression, defaultCompression)),
		APIKey:      value(env, KeyAPIKey, ""),
		APILimit:    defaultAPILimit,
		APIURL:      value(env, KeyAPIURL, defaultAPIURL),
		ScratchDir:  value(env, KeyScratchDir, defaultScratchDir),
	}

	var parseErr error
	if raw := value(env, KeyAPILimit, ""); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			parseErr = errors.Errorf("%q config value must be int", KeyAPILimit)
		} else {
			config.APILimit = limit
		}
	}

	if err := Validate(&config); err != nil {
		var cfgErr *ConfigurationError
		if !errors.As(err, &cfgErr) {
			return Config{}, errors.Errorf("validate config: %w", err)
		}
		cfgErr.Invalid = multierr.Append(parseErr, cfgErr.Invalid)

		return Config{}, cfgErr
	}

	if parseErr != nil {
		return Config{}, &ConfigurationError{Invalid: parseErr}
	}

	return config, nil
}

// password keeps surrounding spaces, which may be part of the password, but
// treats a value of spaces only as unset.
func password(v string) string {
	if strings.TrimSpace(v) == "" {
		return ""
	}

	return v
}

// value returns the trimmed value of key, or def when it is empty.
func value(env map[string]string, key, def string) string {
	if v := strings.TrimSpace(env[key]); v != "" {
		return v
	}

	return def
}

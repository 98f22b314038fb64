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
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduitio-labs/aqi-ingest/config"
)

var envKeys = []string{
	config.KeyAccount, config.KeyRegion, config.KeyUser, config.KeyPassword,
	config.KeyRole, config.KeyDatabase, config.KeySchema, config.KeyWarehouse,
	config.KeyStage, config.KeyCompression, config.KeyAPIKey, config.KeyAPILimit,
	config.KeyAPIURL, config.KeyScratchDir, "LOG_LEVEL",
}

// clearEnv unsets every setting for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()

	for _, k := range envKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func setSnowflakeEnv(t *testing.T) {
	t.Setenv(config.KeyAccount, "xy12345")
	t.Setenv(config.KeyRegion, "ap-south-1.aws")
	t.Setenv(config.KeyUser, "loader")
	t.Setenv(config.KeyPassword, "secret")
}

func logLines(t *testing.T, out *bytes.Buffer) []map[string]any {
	t.Helper()

	var lines []map[string]any
	sc := bufio.NewScanner(out)
	for sc.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line), sc.Text())
		lines = append(lines, line)
	}
	require.NoError(t, sc.Err())

	return lines
}

func TestRun_MissingAPIKey(t *testing.T) {
	clearEnv(t)
	setSnowflakeEnv(t)

	var stdout, stderr bytes.Buffer
	envFile := filepath.Join(t.TempDir(), "missing.env")

	code := run([]string{"aqi-ingest", "--env-file", envFile}, &stdout, &stderr)
	require.Equal(t, 1, code)
	assert.Empty(t, stderr.String())

	lines := logLines(t, &stdout)
	require.Len(t, lines, 2)

	assert.Equal(t, "error", lines[0]["level"])
	assert.Equal(t, "API_KEY not found in environment variables.", lines[0]["message"])
	assert.NotEmpty(t, lines[0]["run_id"])
	assert.NotEmpty(t, lines[0]["time"])

	assert.Equal(t, "invalid configuration", lines[1]["message"])
	assert.Equal(t, []any{config.KeyAPIKey}, lines[1]["missing"])
}

func TestRun_EnvFile(t *testing.T) {
	clearEnv(t)

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("SNOWFLAKE_ACCOUNT=xy12345\nAPI_LIMIT=ten\n"), 0o644))

	var stdout, stderr bytes.Buffer
	code := run([]string{"aqi-ingest", "--env-file", envFile}, &stdout, &stderr)
	require.Equal(t, 1, code)

	lines := logLines(t, &stdout)
	require.NotEmpty(t, lines)

	last := lines[len(lines)-1]
	assert.Equal(t, "invalid configuration", last["message"])
	assert.Equal(t, []any{
		config.KeyRegion, config.KeyUser, config.KeyPassword, config.KeyAPIKey,
	}, last["missing"])
	assert.Contains(t, last["invalid"], `"API_LIMIT" config value must be int`)
}

func TestRun_InvalidLogLevel(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "loud")

	var stdout, stderr bytes.Buffer
	code := run([]string{"aqi-ingest"}, &stdout, &stderr)
	require.Equal(t, 1, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), `invalid log level "loud"`)
}

func TestRun_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"aqi-ingest", "--help"}, &stdout, &stderr)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "--env-file")
	assert.Contains(t, stdout.String(), "--log-level")
}

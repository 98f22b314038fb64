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

// Package scratch manages the local directory a run stages its files in.
// The directory is created lazily. At the end of the run it is removed as a
// whole when the run created it, otherwise only the files the run wrote are.
package scratch

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/go-errors/errors"
	"github.com/rs/zerolog"
)

const (
	filePrefix    = "air_quality_data_"
	fileExt       = ".json"
	fileTimestamp = "2006_01_02_15_04_05"

	indent = "  "
)

// FileName returns the name of the file holding the response fetched at t.
func FileName(t time.Time) string {
	return filePrefix + t.Format(fileTimestamp) + fileExt
}

// Dir is a scratch directory used by a single run.
type Dir struct {
	path string

	// created is set when WriteJSON made the directory.
	created bool
	files   []string
}

// New returns a handle for path. Nothing is created until the first write.
func New(path string) *Dir {
	return &Dir{path: path}
}

// Path returns the directory path.
func (d *Dir) Path() string {
	return d.path
}

// WriteJSON writes raw, re-indented with two spaces, to a file called name
// and returns its path. Key order and number literals are kept as received.
func (d *Dir) WriteJSON(name string, raw []byte) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", indent); err != nil {
		return "", &IOError{Op: "indent", Path: name, Err: err}
	}

	info, err := os.Stat(d.path)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(d.path, 0o755); err != nil {
			return "", &IOError{Op: "mkdir", Path: d.path, Err: err}
		}
		d.created = true
	case err != nil:
		return "", &IOError{Op: "mkdir", Path: d.path, Err: err}
	case !info.IsDir():
		return "", &IOError{Op: "mkdir", Path: d.path, Err: errors.New("not a directory")}
	}

	path := filepath.Join(d.path, name)
	d.files = append(d.files, path)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", &IOError{Op: "write", Path: path, Err: err}
	}

	return path, nil
}

// Cleanup removes what the run left behind: the whole directory if WriteJSON
// created it, otherwise the files written into it. A directory the run never
// wrote to is left untouched. Failures are logged as warnings only.
func (d *Dir) Cleanup(ctx context.Context) {
	logger := zerolog.Ctx(ctx)

	if !d.created {
		for _, f := range d.files {
			err := os.Remove(f)
			if os.IsNotExist(err) {
				continue
			}
			if err != nil {
				logger.Warn().
					Err(&IOError{Op: "remove", Path: f, Err: err}).
					Msg("failed to clean up temporary files")
				continue
			}
			logger.Info().Str("file", f).Msg("temporary file deleted")
		}
		d.files = nil

		return
	}

	if err := os.RemoveAll(d.path); err != nil {
		logger.Warn().
			Err(&IOError{Op: "remove", Path: d.path, Err: err}).
			Msg("failed to clean up temporary files")
		return
	}

	d.created, d.files = false, nil
	logger.Info().Str("dir", d.path).Msg("temporary folder deleted")
}

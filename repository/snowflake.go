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
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-errors/errors"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/rs/zerolog"
	sf "github.com/snowflakedb/gosnowflake"
)

// PutRequest describes a single file transfer into a stage.
type PutRequest struct {
	// LocalPath is the file to upload. When Stream is set only its base name
	// is used, as the name of the object in the stage.
	LocalPath string
	// Stream supplies the file content, already compressed with SourceCompression.
	Stream io.Reader
	// SourceCompression is the Snowflake name of the Stream compression, e.g. GZIP.
	SourceCompression string
	// StagePath is the target location, e.g. @db.schema.stage/some/folder/.
	StagePath string
	// Overwrite replaces an object of the same name.
	Overwrite bool
}

// PutResult is one row of the PUT command output.
type PutResult struct {
	Source            string `db:"source"`
	Target            string `db:"target"`
	SourceSize        int64  `db:"source_size"`
	TargetSize        int64  `db:"target_size"`
	SourceCompression string `db:"source_compression"`
	TargetCompression string `db:"target_compression"`
	Status            string `db:"status"`
	Message           string `db:"message"`
}

// StagedFile is one row of the LIST command output.
type StagedFile struct {
	Name         string `db:"name"`
	Size         int64  `db:"size"`
	MD5          string `db:"md5"`
	LastModified string `db:"last_modified"`
}

// Put uploads a local file, or the stream of req, into a stage.
func (s *Snowflake) Put(ctx context.Context, req PutRequest) ([]PutResult, error) {
	start := time.Now()

	query, err := buildPutQuery(req)
	if err != nil {
		return nil, err
	}

	ctx, logger := withRequestID(ctx)
	if req.Stream != nil {
		ctx = sf.WithFileStream(ctx, req.Stream)
	}
	ctx = sf.WithFileTransferOptions(ctx, &sf.SnowflakeFileTransferOptions{
		RaisePutGetError: true,
	})

	logger.Debug().Str("query", "put").Msg(query)

	rows, err := s.conn.QueryxContext(ctx, query)
	if err != nil {
		return nil, errors.Errorf("put %q to %q: %w", req.LocalPath, req.StagePath, err)
	}
	defer rows.Close()

	var results []PutResult
	for rows.Next() {
		var r PutResult
		if err := rows.StructScan(&r); err != nil {
			return nil, errors.Errorf("scan put result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Errorf("iterate put results: %w", err)
	}

	logger.Debug().
		Dur("duration", time.Since(start)).
		Msgf("finished uploading file %s", req.LocalPath)

	return results, nil
}

// List returns the stage objects matching location, which is a stage path
// optionally ending with an object name.
func (s *Snowflake) List(ctx context.Context, location string) ([]StagedFile, error) {
	ctx, logger := withRequestID(ctx)

	listQuery := fmt.Sprintf(queryList, location)
	logger.Debug().Str("query", "list").Msg(listQuery)
	if _, err := s.conn.ExecContext(ctx, listQuery); err != nil {
		return nil, errors.Errorf("list %q: %w", location, err)
	}

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(listColumns...)
	sb.From(resultScanLastQuery)
	query, args := sb.Build()

	ctx, logger = withRequestID(ctx)
	logger.Debug().Str("query", "result scan").Msg(query)

	var files []StagedFile
	if err := s.conn.SelectContext(ctx, &files, query, args...); err != nil {
		return nil, errors.Errorf("select list result: %w", err)
	}

	return files, nil
}

func buildPutQuery(req PutRequest) (string, error) {
	if req.LocalPath == "" {
		return "", errors.New("put: local path is empty")
	}
	if req.StagePath == "" {
		return "", errors.New("put: stage path is empty")
	}

	var (
		source  string
		options []string
	)

	if req.Stream != nil {
		if req.SourceCompression == "" {
			return "", errors.New("put: stream requires a source compression")
		}
		source = filepath.Base(req.LocalPath)
		options = append(options,
			fmt.Sprintf(optionSourceCompression, strings.ToUpper(req.SourceCompression)),
			optionNoAutoCompress,
		)
	} else {
		abs, err := filepath.Abs(req.LocalPath)
		if err != nil {
			return "", errors.Errorf("resolve %q: %w", req.LocalPath, err)
		}
		source = filepath.ToSlash(abs)
		options = append(options, optionAutoCompress)
	}

	if req.Overwrite {
		options = append(options, optionOverwrite)
	}

	return fmt.Sprintf(queryPut, source, req.StagePath, strings.Join(options, " ")), nil
}

// withRequestID tags the next statement with a fresh request id, Snowflake
// deduplicates statements sharing one.
func withRequestID(ctx context.Context) (context.Context, zerolog.Logger) {
	requestID := uuid.Must(uuid.NewV7()).String()
	logger := zerolog.Ctx(ctx).With().Str("request_id", requestID).Logger()

	return sf.WithRequestID(ctx, sf.ParseUUID(requestID)), logger
}

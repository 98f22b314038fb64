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

package destination

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-errors/errors"
	"github.com/rs/zerolog"

	"github.com/conduitio-labs/aqi-ingest/config"
	"github.com/conduitio-labs/aqi-ingest/destination/compress"
	"github.com/conduitio-labs/aqi-ingest/repository"
)

const (
	stageFolder = "india"
	stageDate   = "2006_01_02"

	// autoCompressExt is the extension PUT gives files it compresses itself.
	autoCompressExt = ".gz"
)

// Stage is the part of a Snowflake session the destination needs.
type Stage interface {
	Put(ctx context.Context, req repository.PutRequest) ([]repository.PutResult, error)
	List(ctx context.Context, location string) ([]repository.StagedFile, error)
}

// Destination uploads local files into dated folders of a Snowflake stage.
type Destination struct {
	stage Stage
	root  string

	// compressor is nil when PUT compresses the file itself.
	compressor compress.Compressor
}

// Upload describes a file transferred into the stage.
type Upload struct {
	StagePath string
	// Object is the name of the file in the stage, including the compression extension.
	Object  string
	Results []repository.PutResult
}

// New creates a Destination writing below cfg.Stage.
func New(stage Stage, cfg config.Config) (*Destination, error) {
	d := &Destination{
		stage: stage,
		root:  cfg.Stage,
	}

	if cfg.Compression != config.CompressionAuto {
		c, err := compress.New(cfg.Compression)
		if err != nil {
			return nil, err
		}
		d.compressor = c
	}

	return d, nil
}

// StagePath returns the folder of the stage files fetched at t are uploaded to.
func (d *Destination) StagePath(t time.Time) string {
	return StagePath(d.root, t)
}

// StagePath returns <root>/india/<YYYY_MM_DD>/.
func StagePath(root string, t time.Time) string {
	return strings.TrimSuffix(root, "/") + "/" + stageFolder + "/" + t.Format(stageDate) + "/"
}

// Put transfers localPath into stagePath, replacing an object of the same
// name. Results other than UPLOADED or SKIPPED fail the upload.
func (d *Destination) Put(ctx context.Context, localPath, stagePath string) (Upload, error) {
	logger := zerolog.Ctx(ctx)

	req := repository.PutRequest{
		LocalPath: localPath,
		StagePath: stagePath,
		Overwrite: true,
	}
	object := filepath.Base(localPath) + autoCompressExt

	if d.compressor != nil {
		f, err := os.Open(localPath)
		if err != nil {
			return Upload{}, &UploadError{StagePath: stagePath, Object: filepath.Base(localPath), Err: err}
		}
		defer f.Close()

		stream := d.compressor.Compress(f)
		if c, ok := stream.(io.Closer); ok {
			// unblocks the compressing goroutine when PUT stops reading early
			defer c.Close()
		}

		req.LocalPath = localPath + d.compressor.Ext()
		req.Stream = stream
		req.SourceCompression = d.compressor.Name()
		object = filepath.Base(req.LocalPath)
	}

	upload := Upload{StagePath: stagePath, Object: object}

	logger.Info().
		Str("file", filepath.Base(localPath)).
		Str("stage", stagePath).
		Msg("uploading file to stage")

	results, err := d.stage.Put(ctx, req)
	if err != nil {
		return Upload{}, &UploadError{StagePath: stagePath, Object: object, Err: err}
	}
	if len(results) == 0 {
		return Upload{}, &UploadError{StagePath: stagePath, Object: object, Err: errors.New("put returned no result")}
	}

	for _, r := range results {
		logger.Info().
			Str("source", r.Source).
			Str("target", r.Target).
			Int64("source_size", r.SourceSize).
			Int64("target_size", r.TargetSize).
			Str("target_compression", r.TargetCompression).
			Str("status", r.Status).
			Msg("PUT result")

		if r.Status != repository.StatusUploaded && r.Status != repository.StatusSkipped {
			return Upload{}, &UploadError{
				StagePath: stagePath,
				Object:    object,
				Err:       errors.Errorf("status %s: %s", r.Status, r.Message),
			}
		}
	}

	upload.Results = results

	return upload, nil
}

// Verify lists the uploaded object and fails when the stage doesn't have it.
func (d *Destination) Verify(ctx context.Context, upload Upload) ([]repository.StagedFile, error) {
	files, err := d.stage.List(ctx, upload.StagePath+upload.Object)
	if err != nil {
		return nil, &UploadError{StagePath: upload.StagePath, Object: upload.Object, Err: err}
	}

	for _, f := range files {
		if f.Name == upload.Object || strings.HasSuffix(f.Name, "/"+upload.Object) {
			zerolog.Ctx(ctx).Info().
				Str("name", f.Name).
				Int64("size", f.Size).
				Str("md5", f.MD5).
				Str("last_modified", f.LastModified).
				Msg("file successfully listed in stage")

			return files, nil
		}
	}

	return nil, &UploadError{
		StagePath: upload.StagePath,
		Object:    upload.Object,
		Err:       errors.Errorf("object not found in stage listing (%d entries)", len(files)),
	}
}

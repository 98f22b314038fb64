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

package compress

import (
	"io"

	"github.com/go-errors/errors"
)

const (
	TypeGzip = "gzip"
	TypeZstd = "zstd"
)

// Compressor compresses a file before it is streamed into a stage.
type Compressor interface {
	// Compress returns a reader yielding the compressed content of in.
	// Compression errors surface from the returned reader.
	Compress(in io.Reader) io.Reader
	// Name is the compression as named by the PUT SOURCE_COMPRESSION option.
	Name() string
	// Ext is appended to the file name of the staged object.
	Ext() string
}

// New returns the Compressor for typ.
func New(typ string) (Compressor, error) {
	switch typ {
	case TypeGzip:
		return Gzip{}, nil
	case TypeZstd:
		return Zstd{}, nil
	default:
		return nil, errors.Errorf("unrecognized compression type %q", typ)
	}
}

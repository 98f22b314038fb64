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

	"github.com/klauspost/compress/gzip"
)

var _ Compressor = (*Gzip)(nil)

type Gzip struct{}

func (Gzip) Compress(in io.Reader) io.Reader {
	pr, pw := io.Pipe()

	go func() {
		w := gzip.NewWriter(pw)
		_, err := io.Copy(w, in)
		// Close flushes the footer, it has to happen before the pipe closes.
		if closeErr := w.Close(); err == nil {
			err = closeErr
		}
		pw.CloseWithError(err)
	}()

	return pr
}

func (Gzip) Name() string {
	return "GZIP"
}

func (Gzip) Ext() string {
	return ".gz"
}

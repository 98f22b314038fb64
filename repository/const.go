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

package repository

const (
	queryPut  = `PUT 'file://%s' %s %s`
	queryList = `LIST %s`

	// resultScanLastQuery reads the result set of the previous statement of the session.
	resultScanLastQuery = `TABLE(RESULT_SCAN(LAST_QUERY_ID()))`

	optionAutoCompress      = `AUTO_COMPRESS=TRUE`
	optionNoAutoCompress    = `AUTO_COMPRESS=FALSE`
	optionSourceCompression = `SOURCE_COMPRESSION=%s`
	optionOverwrite         = `OVERWRITE=TRUE`

	StatusUploaded = "UPLOADED"
	StatusSkipped  = "SKIPPED"
)

// listColumns are the columns of a LIST result, as named by Snowflake.
var listColumns = []string{`"name"`, `"size"`, `"md5"`, `"last_modified"`}

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

package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/conduitio-labs/aqi-ingest/config"
	"github.com/conduitio-labs/aqi-ingest/destination"
	"github.com/conduitio-labs/aqi-ingest/pipeline/mock"
	"github.com/conduitio-labs/aqi-ingest/repository"
	"github.com/conduitio-labs/aqi-ingest/scratch"
	"github.com/conduitio-labs/aqi-ingest/source"
)

const (
	testStage     = "@aqi_project_db.stage_sch.raw_stg"
	testStagePath = testStage + "/india/2024_01_02/"
	// 2024-01-01 20:00 UTC is already 2024-01-02 in IST.
	testFile = "air_quality_data_2024_01_02_01_30_00.json"
)

var testNow = time.Date(2024, time.January, 1, 20, 0, 0, 0, time.UTC)

type apiServer struct {
	*httptest.Server
	calls atomic.Int32
}

func newAPIServer(t *testing.T, status int, body string) *apiServer {
	t.Helper()

	s := &apiServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(s.Close)

	return s
}

func recordsBody(n int) string {
	records := make([]string, n)
	for i := range records {
		records[i] = fmt.Sprintf(`{"station": "station-%d", "pollutant_id": "PM2.5", "avg_value": "%d"}`, i, 40+i)
	}
	return `{"total": ` + fmt.Sprint(n) + `, "records": [` + strings.Join(records, ", ") + `]}`
}

func testConfig(t *testing.T, apiURL string) config.Config {
	return config.Config{
		Account:     "xy12345",
		Region:      "ap-south-1.aws",
		User:        "loader",
		Password:    "secret",
		Role:        "SYSADMIN",
		Database:    "AQI_PROJECT_DB",
		Schema:      "STAGE_SCH",
		Warehouse:   "LOAD_WH",
		Stage:       testStage,
		Compression: config.CompressionAuto,
		APIKey:      "api-key",
		APILimit:    10,
		APIURL:      apiURL,
		ScratchDir:  filepath.Join(t.TempDir(), "tmp_aqi_data"),
	}
}

func newTestPipeline(cfg config.Config, session Session, openErr error) *Pipeline {
	return New(cfg,
		WithClock(func() time.Time { return testNow }),
		WithOpener(func(context.Context, config.Config) (Session, error) {
			if openErr != nil {
				return nil, openErr
			}
			return session, nil
		}),
	)
}

func logContext() (context.Context, *bytes.Buffer) {
	var logs bytes.Buffer
	logger := zerolog.New(&logs).Level(zerolog.DebugLevel)
	return logger.WithContext(context.Background()), &logs
}

func requireNoScratch(t *testing.T, cfg config.Config) {
	t.Helper()

	if _, err := os.Stat(cfg.ScratchDir); !os.IsNotExist(err) {
		t.Fatalf("scratch directory %s still exists (stat err: %v)", cfg.ScratchDir, err)
	}
}

func expectPut(session *mock.MockSession, status string) *gomock.Call {
	return session.EXPECT().
		Put(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req repository.PutRequest) ([]repository.PutResult, error) {
			if _, err := os.Stat(req.LocalPath); err != nil {
				return nil, fmt.Errorf("scratch file not present during PUT: %w", err)
			}
			return []repository.PutResult{{
				Source: filepath.Base(req.LocalPath),
				Target: filepath.Base(req.LocalPath) + ".gz",
				Status: status,
			}}, nil
		})
}

func TestPipeline_Run_Success(t *testing.T) {
	is := is.New(t)
	ctrl := gomock.NewController(t)
	ctx, logs := logContext()

	body := recordsBody(10)
	api := newAPIServer(t, http.StatusOK, body)
	cfg := testConfig(t, api.URL)

	session := mock.NewMockSession(ctrl)
	gomock.InOrder(
		session.EXPECT().
			Put(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req repository.PutRequest) ([]repository.PutResult, error) {
				is.Equal(req.StagePath, testStagePath)
				is.Equal(req.LocalPath, filepath.Join(cfg.ScratchDir, testFile))
				is.True(req.Overwrite)

				written, err := os.ReadFile(req.LocalPath)
				is.NoErr(err)

				var want, got any
				is.NoErr(json.Unmarshal([]byte(body), &want))
				is.NoErr(json.Unmarshal(written, &got))
				if diff := cmp.Diff(want, got); diff != "" {
					t.Errorf("scratch file mismatch (-want +got):\n%s", diff)
				}

				return []repository.PutResult{{Source: testFile, Target: testFile + ".gz", Status: repository.StatusUploaded}}, nil
			}),
		session.EXPECT().
			List(gomock.Any(), testStagePath+testFile+".gz").
			Return([]repository.StagedFile{{Name: "raw_stg/india/2024_01_02/" + testFile + ".gz", Size: 420}}, nil),
		session.EXPECT().Close().Return(nil),
	)

	res, err := newTestPipeline(cfg, session, nil).Run(ctx)
	is.NoErr(err)
	is.Equal(res.State, StateDone)
	is.Equal(res.Upload.StagePath, testStagePath)
	is.Equal(res.Upload.Object, testFile+".gz")
	is.Equal(len(res.Listing), 1)
	is.Equal(api.calls.Load(), int32(1))

	records := res.Payload.Data.(map[string]any)["records"].([]any)
	is.Equal(len(records), 10)

	requireNoScratch(t, cfg)
	is.True(strings.Contains(logs.String(), "ETL job completed successfully"))
}

func TestPipeline_Run_APIError(t *testing.T) {
	is := is.New(t)
	ctrl := gomock.NewController(t)
	ctx, logs := logContext()

	api := newAPIServer(t, http.StatusServiceUnavailable, "Service Temporarily Unavailable")
	cfg := testConfig(t, api.URL)

	session := mock.NewMockSession(ctrl)
	session.EXPECT().Close().Return(nil)

	res, err := newTestPipeline(cfg, session, nil).Run(ctx)

	var apiErr *source.APIError
	is.True(errors.As(err, &apiErr))
	is.Equal(apiErr.StatusCode, http.StatusServiceUnavailable)
	is.Equal(res.State, StateFailed)
	is.Equal(res.ScratchFile, "")

	requireNoScratch(t, cfg)
	is.True(strings.Contains(logs.String(), `"status":503`))
	is.True(strings.Contains(logs.String(), `"body":"Service Temporarily Unavailable"`))
}

func TestPipeline_Run_SessionError(t *testing.T) {
	is := is.New(t)
	ctx, logs := logContext()

	api := newAPIServer(t, http.StatusOK, recordsBody(1))
	cfg := testConfig(t, api.URL)

	openErr := &repository.AuthenticationError{Account: cfg.Account, Err: errors.New("incorrect username or password")}
	res, err := newTestPipeline(cfg, nil, openErr).Run(ctx)

	var authErr *repository.AuthenticationError
	is.True(errors.As(err, &authErr))
	is.Equal(res.State, StateFailed)
	is.Equal(api.calls.Load(), int32(0)) // no fetch without a session

	requireNoScratch(t, cfg)
	is.True(strings.Contains(logs.String(), "incorrect username or password"))
}

func TestPipeline_Run_KeepsExistingScratchDir(t *testing.T) {
	is := is.New(t)
	ctx, _ := logContext()

	api := newAPIServer(t, http.StatusOK, recordsBody(1))
	cfg := testConfig(t, api.URL)
	cfg.ScratchDir = t.TempDir()

	unrelated := filepath.Join(cfg.ScratchDir, "unrelated.txt")
	is.NoErr(os.WriteFile(unrelated, []byte("not ours"), 0o644))

	openErr := &repository.AuthenticationError{Account: cfg.Account, Err: errors.New("incorrect username or password")}
	res, err := newTestPipeline(cfg, nil, openErr).Run(ctx)
	is.True(err != nil)
	is.Equal(res.State, StateFailed)

	_, err = os.Stat(unrelated)
	is.NoErr(err)
}

func TestPipeline_Run_UploadErrors(t *testing.T) {
	testCases := []struct {
		desc        string
		expect      func(session *mock.MockSession)
		expectedErr string
	}{
		{
			desc: "put fails",
			expect: func(session *mock.MockSession) {
				session.EXPECT().
					Put(gomock.Any(), gomock.Any()).
					Return(nil, errors.New("stage RAW_STG does not exist"))
			},
			expectedErr: "stage RAW_STG does not exist",
		},
		{
			desc: "put reports an error status",
			expect: func(session *mock.MockSession) {
				expectPut(session, "ERROR")
			},
			expectedErr: "status ERROR",
		},
		{
			desc: "file not listed",
			expect: func(session *mock.MockSession) {
				expectPut(session, repository.StatusUploaded)
				session.EXPECT().
					List(gomock.Any(), testStagePath+testFile+".gz").
					Return(nil, nil)
			},
			expectedErr: "object not found in stage listing",
		},
		{
			desc: "list fails",
			expect: func(session *mock.MockSession) {
				expectPut(session, repository.StatusUploaded)
				session.EXPECT().
					List(gomock.Any(), gomock.Any()).
					Return(nil, errors.New("warehouse suspended"))
			},
			expectedErr: "warehouse suspended",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			is := is.New(t)
			ctrl := gomock.NewController(t)
			ctx, _ := logContext()

			api := newAPIServer(t, http.StatusOK, recordsBody(3))
			cfg := testConfig(t, api.URL)

			session := mock.NewMockSession(ctrl)
			tc.expect(session)
			session.EXPECT().Close().Return(nil)

			res, err := newTestPipeline(cfg, session, nil).Run(ctx)

			var uploadErr *destination.UploadError
			is.True(errors.As(err, &uploadErr))
			is.True(strings.Contains(err.Error(), tc.expectedErr))
			is.Equal(res.State, StateFailed)

			requireNoScratch(t, cfg)
		})
	}
}

func TestPipeline_Run_ScratchError(t *testing.T) {
	is := is.New(t)
	ctrl := gomock.NewController(t)
	ctx, _ := logContext()

	api := newAPIServer(t, http.StatusOK, recordsBody(1))
	cfg := testConfig(t, api.URL)
	// a regular file where the directory should go
	is.NoErr(os.WriteFile(cfg.ScratchDir, []byte("in the way"), 0o644))

	session := mock.NewMockSession(ctrl)
	session.EXPECT().Close().Return(nil)

	res, err := newTestPipeline(cfg, session, nil).Run(ctx)

	var ioErr *scratch.IOError
	is.True(errors.As(err, &ioErr))
	is.Equal(res.State, StateFailed)
}

func TestPipeline_Run_CloseErrorIsOnlyLogged(t *testing.T) {
	is := is.New(t)
	ctrl := gomock.NewController(t)
	ctx, logs := logContext()

	api := newAPIServer(t, http.StatusOK, recordsBody(2))
	cfg := testConfig(t, api.URL)

	session := mock.NewMockSession(ctrl)
	expectPut(session, repository.StatusUploaded)
	session.EXPECT().
		List(gomock.Any(), gomock.Any()).
		Return([]repository.StagedFile{{Name: testFile + ".gz"}}, nil)
	session.EXPECT().Close().Return(errors.New("connection reset"))

	res, err := newTestPipeline(cfg, session, nil).Run(ctx)
	is.NoErr(err)
	is.Equal(res.State, StateDone)
	is.True(strings.Contains(logs.String(), "failed to close snowflake session"))
}

func TestState_String(t *testing.T) {
	is := is.New(t)

	is.Equal(StateStart.String(), "START")
	is.Equal(StateSessionOpen.String(), "SESSION_OPEN")
	is.Equal(StateFailed.String(), "FAILED")
	is.Equal(State(42).String(), "UNKNOWN")
}

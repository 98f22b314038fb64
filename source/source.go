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

package source

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-errors/errors"
	"github.com/rs/zerolog"

	"github.com/conduitio-labs/aqi-ingest/config"
)

// Source fetches the air quality dataset from the data.gov.in API.
type Source struct {
	client *http.Client
	url    string
	apiKey string
}

// Option configures a Source.
type Option func(*Source)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Source) {
		s.client = c
	}
}

// New initialises a new source.
func New(cfg config.Config, opts ...Option) *Source {
	s := &Source{
		client: http.DefaultClient,
		url:    cfg.APIURL,
		apiKey: cfg.APIKey,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Payload is a successful API response.
type Payload struct {
	// Raw is the response body as received.
	Raw json.RawMessage
	// Data is Raw decoded, with numbers kept as json.Number.
	Data any
}

// Fetch requests up to limit records. A response other than 200 OK is
// returned as an *APIError carrying the status and the body.
func (s *Source) Fetch(ctx context.Context, limit int) (Payload, error) {
	if limit <= 0 {
		return Payload{}, errors.Errorf("limit must be positive, got %d", limit)
	}

	req, err := s.newRequest(ctx, limit)
	if err != nil {
		return Payload{}, err
	}

	zerolog.Ctx(ctx).Info().
		Str("url", s.url).
		Int("limit", limit).
		Msg("sending request to API")

	resp, err := s.client.Do(req)
	if err != nil {
		// url.Error repeats the request URL, which carries the API key.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}

		return Payload{}, errors.Errorf("request %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Payload{}, errors.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Payload{}, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	data, err := decode(body)
	if err != nil {
		return Payload{}, errors.Errorf("decode response body: %w", err)
	}

	zerolog.Ctx(ctx).Debug().
		Int("bytes", len(body)).
		Msg("received API response")

	return Payload{Raw: body, Data: data}, nil
}

func (s *Source) newRequest(ctx context.Context, limit int) (*http.Request, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return nil, errors.Errorf("parse API url: %w", err)
	}

	q := u.Query()
	q.Set("api-key", s.apiKey)
	q.Set("format", "json")
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Errorf("create request: %w", err)
	}
	req.Header.Set("accept", "application/json")

	return req, nil
}

// decode parses a single JSON document.
func decode(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var data any
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON document")
	}

	return data, nil
}

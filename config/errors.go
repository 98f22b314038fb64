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
	"slices"
	"strings"
)

// ConfigurationError is returned when the environment does not describe a
// usable configuration.
type ConfigurationError struct {
	// Missing holds the keys of every required setting that was absent or empty.
	Missing []string
	// Invalid combines the errors of settings that were present but unusable.
	Invalid error
}

func (e *ConfigurationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing environment variables: "+strings.Join(e.Missing, ", "))
	}
	if e.Invalid != nil {
		parts = append(parts, "invalid configuration: "+e.Invalid.Error())
	}

	return strings.Join(parts, "; ")
}

func (e *ConfigurationError) Unwrap() error {
	return e.Invalid
}

// IsMissing reports whether key is among the missing settings.
func (e *ConfigurationError) IsMissing(key string) bool {
	return slices.Contains(e.Missing, key)
}

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
	"path/filepath"
	"reflect"

	"github.com/go-errors/errors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"
)

// keyStructTag is a tag which contains a field's key.
const keyStructTag = "key"

// validate is a singleton instance of the validator.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("localdir", isLocalDir); err != nil {
		panic(err)
	}

	return v
}

// isLocalDir accepts relative paths that stay below the working directory
// without being the working directory itself.
func isLocalDir(fl validator.FieldLevel) bool {
	p := fl.Field().String()

	return filepath.IsLocal(p) && filepath.Clean(p) != "."
}

// Validate validates a struct. Fields failing their "required" rule are
// collected in the Missing list of the returned *ConfigurationError, in
// declaration order, every other failure in its Invalid error.
func Validate(data any) error {
	validationErr := validate.Struct(data)
	if validationErr == nil {
		return nil
	}

	validationErrs, ok := validationErr.(validator.ValidationErrors)
	if !ok {
		return errors.Errorf("validate struct: %w", validationErr)
	}

	cfgErr := &ConfigurationError{}
	for _, e := range validationErrs {
		fieldName := getFieldKey(data, e.StructField())

		switch e.Tag() {
		case "required":
			cfgErr.Missing = append(cfgErr.Missing, fieldName)
		case "gte":
			cfgErr.Invalid = multierr.Append(cfgErr.Invalid, gteErr(fieldName, e.Param()))
		case "oneof":
			cfgErr.Invalid = multierr.Append(cfgErr.Invalid, oneofErr(fieldName, e.Param()))
		case "startswith":
			cfgErr.Invalid = multierr.Append(cfgErr.Invalid, startsWithErr(fieldName, e.Param()))
		case "url":
			cfgErr.Invalid = multierr.Append(cfgErr.Invalid, urlErr(fieldName))
		case "localdir":
			cfgErr.Invalid = multierr.Append(cfgErr.Invalid, localDirErr(fieldName))
		default:
			cfgErr.Invalid = multierr.Append(cfgErr.Invalid, errors.Errorf("%q value failed %q rule", fieldName, e.Tag()))
		}
	}

	return cfgErr
}

// getFieldKey returns a key ("key" tag) for the provided fieldName. If the "key" tag is not present,
// the function will return a fieldName.
func getFieldKey(data any, fieldName string) string {
	// if the data is not pointer or it's nil, return a fieldName.
	val := reflect.ValueOf(data)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fieldName
	}

	structField, ok := reflect.TypeOf(data).Elem().FieldByName(fieldName)
	if !ok {
		return fieldName
	}

	fieldKey := structField.Tag.Get(keyStructTag)
	if fieldKey == "" {
		return fieldName
	}

	return fieldKey
}

// gteErr returns the formatted gte error.
func gteErr(name, gte string) error {
	return errors.Errorf("%q value must be greater than or equal to %s", name, gte)
}

// oneofErr returns the formatted oneof error.
func oneofErr(name, values string) error {
	return errors.Errorf("%q value must be one of: %s", name, values)
}

func startsWithErr(name, prefix string) error {
	return errors.Errorf("%q value must start with %q", name, prefix)
}

func urlErr(name string) error {
	return errors.Errorf("%q value must be a valid URL", name)
}

func localDirErr(name string) error {
	return errors.Errorf("%q value must be a subdirectory of the working directory", name)
}

// Copyright 2026 The LGT Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/pkg/errors"
)

// ParseSettings parses settings of the form "param1=value1;param2=value2;..." (typically the value of the
// flag created with CreateSettingsFlag) and sets the corresponding parameters in ctx.
//
// Every parameter must have a default value in the root scope of ctx: its type is used to parse the value.
// A scope can be given with an absolute path, e.g. "/chain_0/beta=5.8".
// Integer values may use "_" as a digit separator (1_000), and slices are given as comma separated values.
//
// A setting "file:<path>" reads settings from the file, one or more per line, ignoring empty lines and lines
// starting with "#".
//
// It returns the list of parameters set, in order.
func ParseSettings(ctx *context.Context, settings string) (paramsSet []string, err error) {
	for _, setting := range strings.Split(settings, ";") {
		paramsSet, err = parseSetting(ctx, strings.TrimSpace(setting), paramsSet)
		if err != nil {
			return
		}
	}
	return
}

func parseSetting(ctx *context.Context, setting string, paramsSet []string) ([]string, error) {
	if setting == "" {
		return paramsSet, nil
	}
	if filePath, found := strings.CutPrefix(setting, "file:"); found {
		return parseSettingsFile(ctx, filePath, paramsSet)
	}

	paramPath, valueStr, found := strings.Cut(setting, "=")
	if !found || strings.Contains(valueStr, "=") {
		return paramsSet, errors.Errorf("invalid setting %q: the format is \"<param>=<value>\"", setting)
	}
	paramScope, paramName := context.SplitScope(paramPath)
	if strings.Contains(paramName, context.ScopeSeparator) {
		return paramsSet, errors.Errorf("invalid setting %q: scopes must be absolute (start with %q)",
			setting, context.ScopeSeparator)
	}
	defaultValue, found := ctx.GetParam(paramName)
	if !found {
		return paramsSet, errors.Errorf("unknown parameter %q in setting %q", paramName, setting)
	}
	value, err := parseValue(defaultValue, valueStr)
	if err != nil {
		return paramsSet, errors.WithMessagef(err, "setting %q (default value %#v)", setting, defaultValue)
	}
	if paramScope != "" {
		ctx = ctx.InAbsPath(paramScope)
	}
	ctx.SetParam(paramName, value)
	return append(paramsSet, paramPath), nil
}

func parseSettingsFile(ctx *context.Context, filePath string, paramsSet []string) ([]string, error) {
	filePath, err := fsutil.ReplaceTildeInDir(filePath)
	if err != nil {
		return paramsSet, err
	}
	contents, err := os.ReadFile(filePath)
	if err != nil {
		return paramsSet, errors.Wrapf(err, "reading settings from %q", filePath)
	}
	for _, line := range strings.Split(string(contents), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, setting := range strings.Split(line, ";") {
			paramsSet, err = parseSetting(ctx, strings.TrimSpace(setting), paramsSet)
			if err != nil {
				return paramsSet, errors.WithMessagef(err, "in settings file %q", filePath)
			}
		}
	}
	return paramsSet, nil
}

// parseValue parses valueStr to the type of defaultValue.
func parseValue(defaultValue any, valueStr string) (any, error) {
	switch defaultValue.(type) {
	case int:
		return unmarshalValue[int](valueStr, true)
	case int32:
		return unmarshalValue[int32](valueStr, true)
	case int64:
		return unmarshalValue[int64](valueStr, true)
	case uint:
		return unmarshalValue[uint](valueStr, true)
	case uint64:
		return unmarshalValue[uint64](valueStr, true)
	case float32:
		return unmarshalValue[float32](valueStr, false)
	case float64:
		return unmarshalValue[float64](valueStr, false)
	case bool:
		return unmarshalValue[bool](valueStr, false)
	case string:
		return valueStr, nil
	case []string:
		return strings.Split(valueStr, ","), nil
	case []int:
		return unmarshalList[int](valueStr, true)
	case []float64:
		return unmarshalList[float64](valueStr, false)
	default:
		return nil, errors.Errorf("parameters of type %T can't be set from the command line", defaultValue)
	}
}

func unmarshalValue[T any](valueStr string, isInteger bool) (value T, err error) {
	if isInteger {
		valueStr = strings.ReplaceAll(valueStr, "_", "")
	}
	if err = json.Unmarshal([]byte(valueStr), &value); err != nil {
		err = errors.Wrapf(err, "parsing %q as %T", valueStr, value)
	}
	return
}

func unmarshalList[T any](valueStr string, isInteger bool) ([]T, error) {
	if valueStr == "" {
		return []T{}, nil
	}
	parts := strings.Split(valueStr, ",")
	values := make([]T, len(parts))
	for i, part := range parts {
		var err error
		values[i], err = unmarshalValue[T](strings.TrimSpace(part), isInteger)
		if err != nil {
			return nil, err
		}
	}
	return values, nil
}

// CreateSettingsFlag creates a string flag named flagName (or "set" if empty) whose usage lists the parameters
// of ctx and their defaults. Pass its value to ParseSettings after flag.Parse.
func CreateSettingsFlag(ctx *context.Context, flagName string) *string {
	if flagName == "" {
		flagName = "set"
	}
	var usage strings.Builder
	usage.WriteString(`Parameters of the run, as a list of "param=value" separated by ";". ` +
		`A "file:<path>" entry reads settings from a file, one or more per line ("#" starts a comment). ` +
		`Available parameters:`)
	ctx.EnumerateParams(func(scope, key string, value any) {
		if scope != context.RootScope {
			return
		}
		_, _ = fmt.Fprintf(&usage, "\n\t%q: default value is %v", key, value)
	})
	return flag.String(flagName, "", usage.String())
}

// SprintSettings returns one line per parameter of ctx, with its scope, type and value.
func SprintSettings(ctx *context.Context) string {
	var lines []string
	ctx.EnumerateParams(func(scope, key string, value any) {
		if scope == context.RootScope {
			scope = ""
		}
		lines = append(lines, fmt.Sprintf("\t%q: (%T) %v", scope+context.ScopeSeparator+key, value, value))
	})
	return strings.Join(lines, "\n")
}

// SprintModifiedSettings is like SprintSettings, but only for the parameters in paramsSet, as returned by
// ParseSettings.
func SprintModifiedSettings(ctx *context.Context, paramsSet []string) string {
	paramsSet = slices.Clone(paramsSet)
	slices.Sort(paramsSet)
	paramsSet = slices.Compact(paramsSet)
	var lines []string
	for _, paramPath := range paramsSet {
		scope, name := context.SplitScope(paramPath)
		if scope == "" {
			scope = context.RootScope
		}
		value, found := ctx.InAbsPath(scope).GetParam(name)
		if !found {
			continue
		}
		lines = append(lines, fmt.Sprintf("\t%q: (%T) %v", paramPath, value, value))
	}
	return strings.Join(lines, "\n")
}

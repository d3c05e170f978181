// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package shuttle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

// Func is the in-process tool function shape: decoded arguments in,
// string result out.
type Func func(ctx context.Context, req *Request, args map[string]any) (string, error)

// funcExecutor validates arguments against the declared schema and
// invokes the tool function.
type funcExecutor struct {
	reg    Registration
	fn     Func
	schema *gojsonschema.Schema
	logger *zap.Logger
}

// NewFuncExecutor wraps an in-process tool function. The registration's
// parameter schema is compiled once; malformed schemas fail fast.
func NewFuncExecutor(reg Registration, fn Func, logger *zap.Logger) (Executor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var schema *gojsonschema.Schema
	if reg.ParametersSchema != "" {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(reg.ParametersSchema))
		if err != nil {
			return nil, fmt.Errorf("tool %s has invalid parameter schema: %w", reg.Name, err)
		}
		schema = compiled
	}
	return &funcExecutor{reg: reg, fn: fn, schema: schema, logger: logger}, nil
}

// MustFuncExecutor is NewFuncExecutor for statically known schemas.
func MustFuncExecutor(reg Registration, fn Func, logger *zap.Logger) Executor {
	executor, err := NewFuncExecutor(reg, fn, logger)
	if err != nil {
		panic(err)
	}
	return executor
}

func (e *funcExecutor) Execute(ctx context.Context, req *Request) (*Response, error) {
	args, err := decodeArguments(req.Arguments)
	if err != nil {
		return ErrorResponse(req, fmt.Sprintf("invalid arguments: %v (expected a JSON object)", err)), nil
	}

	if e.schema != nil {
		result, err := e.schema.Validate(gojsonschema.NewGoLoader(args))
		if err != nil {
			return ErrorResponse(req, fmt.Sprintf("argument validation failed: %v", err)), nil
		}
		if !result.Valid() {
			return ErrorResponse(req, formatValidationErrors(result)), nil
		}
	}

	start := time.Now()
	content, err := e.fn(ctx, req, args)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Warn("Tool execution failed",
			zap.String("tool", req.ToolName),
			zap.Error(err))
		return ErrorResponse(req, err.Error()), nil
	}

	e.logger.Debug("Tool executed",
		zap.String("tool", req.ToolName),
		zap.Duration("elapsed", time.Since(start)))
	return TextResponse(req, content), nil
}

// decodeArguments parses the argument JSON. Empty arguments decode as
// an empty object.
func decodeArguments(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func formatValidationErrors(result *gojsonschema.Result) string {
	msg := "invalid arguments:"
	for _, desc := range result.Errors() {
		msg += fmt.Sprintf(" %s;", desc.String())
	}
	return msg
}

// StringArg extracts a required string argument.
func StringArg(args map[string]any, name string) (string, error) {
	v, ok := args[name]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", name)
	}
	return s, nil
}

// OptionalStringArg extracts an optional string argument.
func OptionalStringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

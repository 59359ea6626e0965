// Copyright 2025 Tom Barlow
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

package errors

import "fmt"

// ValidationError represents a malformed graph definition.
// It is surfaced at registration time and describes the first violation found.
type ValidationError struct {
	// Field identifies which part of the definition failed validation
	// (e.g., "start_at", "nodes", "next")
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// NotFoundError represents a resource not found error.
// Use this when a requested graph, run, tool, or subscription does not exist.
type NotFoundError struct {
	// Resource is the type of resource (e.g., "graph", "run", "tool")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ConfigError represents a node configuration problem discovered during
// dispatch: a missing required config field, an unsupported node type, or an
// unsupported comparison operator. It is treated as programmer error and
// terminates the run; it is never retried.
type ConfigError struct {
	// Key is the config key that has the problem (e.g., "tool", "key", "op")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error, if any
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// ToolError represents a failure raised by an invoked tool. The engine never
// inspects, retries, or suppresses the underlying cause; the wrapper only adds
// the tool name for log and event readability.
type ToolError struct {
	// Tool is the registered name of the tool that failed
	Tool string

	// Cause is the error the tool returned
	Cause error
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %q failed: %v", e.Tool, e.Cause)
}

// Unwrap returns the tool's own error for errors.Is/As support.
func (e *ToolError) Unwrap() error {
	return e.Cause
}

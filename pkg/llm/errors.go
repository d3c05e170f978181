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
package llm

import (
	"context"
	"errors"
	"strings"
)

// ErrorKind classifies a provider failure.
type ErrorKind int

const (
	ErrorUnknown ErrorKind = iota
	ErrorRateLimited
	ErrorProvider
	ErrorTimeout
	ErrorContextTooLong
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrorRateLimited:
		return "rate_limited"
	case ErrorProvider:
		return "provider_error"
	case ErrorTimeout:
		return "timeout"
	case ErrorContextTooLong:
		return "context_too_long"
	default:
		return "unknown"
	}
}

// Error is a classified provider failure. LLM errors abort the turn;
// the orchestrator surfaces them as a final apology reply.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds a classified error.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Classify maps an arbitrary chat-client failure to an error kind.
// Providers that already return *Error pass through unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: ErrorTimeout, Cause: err}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		return &Error{Kind: ErrorRateLimited, Cause: err}
	case strings.Contains(msg, "context length") || strings.Contains(msg, "too many tokens") ||
		strings.Contains(msg, "context_length_exceeded"):
		return &Error{Kind: ErrorContextTooLong, Cause: err}
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return &Error{Kind: ErrorTimeout, Cause: err}
	case strings.Contains(msg, "500") || strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") || strings.Contains(msg, "overloaded"):
		return &Error{Kind: ErrorProvider, Cause: err}
	default:
		return &Error{Kind: ErrorUnknown, Cause: err}
	}
}

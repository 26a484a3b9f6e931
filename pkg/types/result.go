// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// Status is the outcome tag carried by every stage Result.
type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Result is the uniform return value of a stage tool. Data holds the
// stage-specific payload and is meaningful for success and warning.
type Result[T any] struct {
	Status  Status `json:"status" yaml:"status"`
	Message string `json:"message" yaml:"message"`
	Data    T      `json:"data,omitempty" yaml:"data,omitempty"`
}

// Success builds a success Result.
func Success[T any](data T, format string, args ...any) Result[T] {
	return Result[T]{Status: StatusSuccess, Message: fmt.Sprintf(format, args...), Data: data}
}

// Warning builds a Result for a completed but degraded stage.
func Warning[T any](data T, format string, args ...any) Result[T] {
	return Result[T]{Status: StatusWarning, Message: fmt.Sprintf(format, args...), Data: data}
}

// Failure builds an error Result with a zero payload.
func Failure[T any](format string, args ...any) Result[T] {
	return Result[T]{Status: StatusError, Message: fmt.Sprintf(format, args...)}
}

// Failed reports whether the stage ended in error.
func (r Result[T]) Failed() bool {
	return r.Status == StatusError
}

// Guard runs fn and converts a panic inside it into an error Result naming
// stage. Stage tools wrap their bodies with Guard so that callers only
// ever see a Result.
func Guard[T any](stage string, fn func() Result[T]) (res Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			res = Failure[T]("%s: unexpected failure: %v", stage, r)
		}
	}()
	res = fn()
	if res.Status == "" {
		res = Failure[T]("%s: stage returned no status", stage)
	}
	return res
}

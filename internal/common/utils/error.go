package utils

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrPanic はpanicから復帰したことを表します
var ErrPanic = errors.New("recovered from panic")

// GetStackWithError は、エラーとスタックトレースを組み合わせて返します
func GetStackWithError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w\nStack trace:\n%s", err, debug.Stack())
}

// errorFromPanic はrecoverした値をErrPanicとしてラップします
func errorFromPanic(r any) error {
	if err, ok := r.(error); ok {
		return GetStackWithError(fmt.Errorf("%w: %w", ErrPanic, err))
	}
	return GetStackWithError(fmt.Errorf("%w: %v", ErrPanic, r))
}

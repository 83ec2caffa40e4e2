// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package interval

import (
	"errors"
	"fmt"
)

// Both of these are programmer errors in the allocator.  Precondition
// violations panic, Validate returns invariant violations.

var (
	ErrPreconditionViolation = errors.New("precondition violation")
	ErrInvariantViolation    = errors.New("invariant violation")
)

func preconditionPanic(format string, args ...any) {
	panic(fmt.Errorf("%w: %s", ErrPreconditionViolation, fmt.Sprintf(format, args...)))
}

func invariantError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariantViolation, fmt.Sprintf(format, args...))
}

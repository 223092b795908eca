package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInput marks an upload that cannot be processed: empty, unparseable,
	// too large or without columns. The run aborts with no output.
	ErrInput = errors.New("input error")

	// ErrTooLarge is the ErrInput for uploads over the size limit.
	ErrTooLarge = fmt.Errorf("%w: file too large", ErrInput)

	// ErrRunNotFound is returned for unknown or expired run IDs.
	ErrRunNotFound = errors.New("run not found")
)

func inputErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInput}, args...)...)
}

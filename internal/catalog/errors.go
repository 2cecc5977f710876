package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidKey is returned when a category or order contains
	// characters that cannot form a safe file name.
	ErrInvalidKey = errors.New("invalid catalog key")
)

// DecodeError means a catalog or model-map file had an unexpected shape:
// data corruption or schema drift between the fetch pipeline and this
// reader. It is never silently coerced to a default value.
type DecodeError struct {
	Key   string // "category/order" or "model-map"
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode catalog data for %s: %v", e.Key, e.Cause)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// IsDecodeError reports whether err is a catalog DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

package vault

import "fmt"

// ErrorKind discriminates the failure modes of the vault client. Callers
// match on the kind rather than on error strings.
type ErrorKind int

const (
	// KindPath means a userID or provider failed local validation. No
	// backend call was made.
	KindPath ErrorKind = iota

	// KindWrite means the backend rejected or failed a secret write.
	KindWrite

	// KindRead means the backend call failed or returned a malformed
	// payload while reading a secret.
	KindRead

	// KindDelete means the backend failed to delete a secret.
	KindDelete
)

func (k ErrorKind) String() string {
	switch k {
	case KindPath:
		return "path"
	case KindWrite:
		return "write"
	case KindRead:
		return "read"
	case KindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by the vault client. Kind carries
// the discriminant, Cause the underlying failure when one exists.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("vault %s: %s: %v", e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("vault %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsKind reports whether err is a vault Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	ve, ok := err.(*Error)
	return ok && ve.Kind == kind
}

func newPathError(op, message string) *Error {
	return &Error{Kind: KindPath, Op: op, Message: message}
}

func newWriteError(op, message string, cause error) *Error {
	return &Error{Kind: KindWrite, Op: op, Message: message, Cause: cause}
}

func newReadError(op, message string, cause error) *Error {
	return &Error{Kind: KindRead, Op: op, Message: message, Cause: cause}
}

func newDeleteError(op, message string, cause error) *Error {
	return &Error{Kind: KindDelete, Op: op, Message: message, Cause: cause}
}

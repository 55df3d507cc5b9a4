package pickup

import "errors"

// Kind classifies failures into the four classes handlers report.
type Kind int

const (
	KindValidation Kind = iota + 1 // client sent a bad request, nothing written
	KindConflict                   // duplicate uniqueness key
	KindAuth                       // unknown email or wrong password, indistinguishable
	KindInternal                   // store or hasher failure
)

// Error carries a kind and a client-safe message. The wrapped cause is for
// server-side logs only and is never echoed to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation builds a KindValidation error.
func Validation(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

// Conflict builds a KindConflict error.
func Conflict(msg string) error {
	return &Error{Kind: KindConflict, Message: msg}
}

// Internal wraps a cause with a generic client message.
func Internal(err error) error {
	return &Error{Kind: KindInternal, Message: "server error", Err: err}
}

// ErrInvalidCredentials is the single auth failure value. Unknown email and
// wrong password both return it so the caller cannot tell which part was wrong.
var ErrInvalidCredentials = &Error{Kind: KindAuth, Message: "Invalid email or password"}

// KindOf extracts the kind from an error chain, defaulting to internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the client-safe message for an error chain.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "server error"
}

// Sentinels returned by the repository for the service layer to translate.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrDuplicate    = errors.New("email or phone already exists")
)

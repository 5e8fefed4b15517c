package fault

import (
	stderrors "errors"
	"fmt"

	"github.com/cockroachdb/errors"
)

// --------------------------------------------------------------------------
// Kinds
// --------------------------------------------------------------------------

// Kind classifies an error
type Kind uint8

const (
	KindUnknown Kind = iota
	KindResourceExhaustion
	KindSystemFailure
	KindSynchronizationFailure
	KindTimeout
	KindLogicFailure
)

// Sentinels, one per kind. Use them with errors.Is.
var (
	ErrResourceExhaustion     = stderrors.New("resource exhaustion")
	ErrSystemFailure          = stderrors.New("system failure")
	ErrSynchronizationFailure = stderrors.New("synchronization failure")
	ErrTimeout                = stderrors.New("timeout")
	ErrLogicFailure           = stderrors.New("logic failure")
)

func (k Kind) String() string {
	switch k {
	case KindResourceExhaustion:
		return "ResourceExhaustion"
	case KindSystemFailure:
		return "SystemFailure"
	case KindSynchronizationFailure:
		return "SynchronizationFailure"
	case KindTimeout:
		return "Timeout"
	case KindLogicFailure:
		return "LogicFailure"
	default:
		return "Unknown"
	}
}

// Sentinel returns the sentinel error of the kind (nil for KindUnknown)
func (k Kind) Sentinel() error {
	switch k {
	case KindResourceExhaustion:
		return ErrResourceExhaustion
	case KindSystemFailure:
		return ErrSystemFailure
	case KindSynchronizationFailure:
		return ErrSynchronizationFailure
	case KindTimeout:
		return ErrTimeout
	case KindLogicFailure:
		return ErrLogicFailure
	default:
		return nil
	}
}

// IsA reports whether k is the same as parent or a specialization of it.
// A timeout is a synchronization failure.
func (k Kind) IsA(parent Kind) bool {
	if k == parent {
		return true
	}
	return k == KindTimeout && parent == KindSynchronizationFailure
}

// --------------------------------------------------------------------------
// Error type
// --------------------------------------------------------------------------

// Error is a kind-tagged error with an optional cause
type Error struct {
	Kind Kind
	// Op names the operation that failed (e.g. "mempool.Lease")
	Op string
	// Err is the cause, never nil for errors built by this package
	Err error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind and of every kind it specializes
func (e *Error) Is(target error) bool {
	for _, k := range []Kind{KindResourceExhaustion, KindSystemFailure, KindSynchronizationFailure, KindTimeout, KindLogicFailure} {
		if target == k.Sentinel() {
			return e.Kind.IsA(k)
		}
	}
	return false
}

// Format prints the stack of the cause with %+v
func (e *Error) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		_, _ = fmt.Fprintf(s, "%s: %s: %+v", e.Op, e.Kind, e.Err)
		return
	}
	_, _ = fmt.Fprint(s, e.Error())
}

// --------------------------------------------------------------------------
// Constructors
// --------------------------------------------------------------------------

// New creates an error of the given kind with a message
func New(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Err: errors.NewWithDepth(1, msg)}
}

// Newf creates an error of the given kind with a formatted message
func Newf(kind Kind, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: errors.NewWithDepthf(1, format, args...)}
}

// Wrap tags err with a kind. It returns nil if err is nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: errors.WithStackDepth(err, 1)}
}

// Wrapf tags err with a kind and prefixes the message. It returns nil if err is nil.
func Wrapf(kind Kind, op string, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: errors.WrapWithDepthf(1, err, format, args...)}
}

// --------------------------------------------------------------------------
// Inspection
// --------------------------------------------------------------------------

// KindOf returns the kind of the outermost fault.Error in the chain
func KindOf(err error) Kind {
	var fe *Error
	if stderrors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Is reports whether err is (or wraps) an error of the given kind
func Is(err error, kind Kind) bool {
	sentinel := kind.Sentinel()
	if err == nil || sentinel == nil {
		return false
	}
	return stderrors.Is(err, sentinel)
}

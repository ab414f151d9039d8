package pipeline

import (
	"github.com/pkg/errors"
)

// Construction-time validation errors. Returned by the New*Operation
// constructors, never later.
var (
	ErrPayloadMustBeSet          = errors.New("payload must be set")
	ErrBlobNameMustBeSet         = errors.New("blob name must be set")
	ErrRequestIDMustBeSet        = errors.New("request id must be set")
	ErrTopicMustBeSet            = errors.New("topic must be set")
	ErrCredentialSourceMustBeSet = errors.New("credential source must be set")
	ErrHostMustBeSet             = errors.New("host must be set")
	ErrRegistrationIDMustBeSet   = errors.New("registration id must be set")
	ErrScopeMustBeSet            = errors.New("scope must be set")
	ErrTokenMustBeSet            = errors.New("token must be set")
	ErrCertificateMustBeSet      = errors.New("certificate must be set")
	ErrCredentialMustBeSet       = errors.New("either token or certificate must be set")
	ErrAmbiguousCredential       = errors.New("token and certificate are mutually exclusive")
)

// Pipeline lifecycle and configuration errors.
var (
	ErrPipelineMustBeSet    = errors.New("pipeline must be set")
	ErrOperationMustBeSet   = errors.New("operation must be set")
	ErrTransportMustBeSet   = errors.New("transport must be set")
	ErrOperationCompleted   = errors.New("operation already completed")
	ErrShuttingDown         = errors.New("pipeline shutting down")
	ErrNoStageForOperation  = errors.New("pipeline misconfigured: no stage handles operation")
	ErrInvalidChain         = errors.New("stage chain must be acyclic with exactly one head and one tail")
	ErrConnectionArgsNotSet = errors.New("connection arguments not set")
	ErrConnectionLost       = errors.New("connection lost")
	ErrMaxAttemptsExceeded  = errors.New("maximum retry attempts exceeded")
)

// transientError marks an error as retryable without changing its message.
type transientError struct {
	err error
}

func (t *transientError) Error() string { return t.err.Error() }
func (t *transientError) Unwrap() error { return t.err }

// Transient wraps err so that IsTransient reports true for it. Transports
// use it to flag failures worth reissuing (timeouts, dropped connections).
func Transient(err error) error {
	if err == nil {
		return nil
	}

	return &transientError{err: err}
}

// IsTransient reports whether err was flagged as retryable, directly or
// anywhere in its chain.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var t *transientError
	if errors.As(err, &t) {
		return true
	}

	return errors.Is(err, ErrConnectionLost)
}

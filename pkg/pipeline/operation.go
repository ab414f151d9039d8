package pipeline

import (
	"sync"
	"sync/atomic"
)

// Kind discriminates the closed set of operations the pipeline understands.
// The set is versioned with the package: adding a kind is additive, stages
// that do not recognise it pass it through unchanged.
type Kind string

const (
	// Client-facing kinds, submitted through Pipeline.Submit.
	KindConnect             Kind = "connect"
	KindDisconnect          Kind = "disconnect"
	KindSendTelemetry       Kind = "send-telemetry"
	KindUploadBlob          Kind = "upload-blob"
	KindMethodResponse      Kind = "method-response"
	KindUseSymmetricKeyCred Kind = "use-symmetric-key-credential"
	KindUseCertificateCred  Kind = "use-certificate-credential"

	// Wire-level kinds, consumed by the transport boundary.
	KindSend                 Kind = "send"
	KindSetConnectionArgs    Kind = "set-connection-args"
	KindSetCredentialToken   Kind = "set-credential-token"
	KindSetClientCertificate Kind = "set-client-certificate"
)

// CompletionFunc is invoked exactly once when the operation finishes,
// with a nil error on success.
type CompletionFunc func(op Operation, err error)

// Operation is one requested unit of work flowing down the stage chain.
// Concrete operations are constructed through the New*Operation functions,
// which validate mandatory fields up front.
type Operation interface {
	Kind() Kind
	ID() uint64
	Err() error
	Completed() bool

	core() *operationCore
}

var opSeq atomic.Uint64

type operationCore struct {
	id   uint64
	kind Kind

	mu         sync.Mutex
	done       bool
	err        error
	onComplete CompletionFunc
	invoke     func(func()) error
	finalize   func(Operation)
}

func newCore(kind Kind, onComplete CompletionFunc) operationCore {
	return operationCore{
		id:         opSeq.Add(1),
		kind:       kind,
		onComplete: onComplete,
	}
}

func (c *operationCore) Kind() Kind { return c.kind }
func (c *operationCore) ID() uint64 { return c.id }

func (c *operationCore) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.err
}

func (c *operationCore) Completed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.done
}

// tryComplete marks the operation done and returns false if it already was.
func (c *operationCore) tryComplete(err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return false
	}
	c.done = true
	c.err = err

	return true
}

// bind attaches the operation to a pipeline's serialization loop. Completion
// callbacks re-enter the loop through invoke rather than running inline.
func (c *operationCore) bind(invoke func(func()) error, finalize func(Operation)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invoke = invoke
	c.finalize = finalize
}

// inheritBinding propagates the loop binding from an original operation to a
// replacement constructed during delegation.
func (c *operationCore) inheritBinding(from *operationCore) {
	from.mu.Lock()
	invoke := from.invoke
	from.mu.Unlock()

	c.mu.Lock()
	c.invoke = invoke
	c.mu.Unlock()
}

func (c *operationCore) setCallback(fn CompletionFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onComplete = fn
}

func (c *operationCore) callback() CompletionFunc {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.onComplete
}

// ConnectOperation asks the transport to establish a connection using the
// arguments previously applied with SetConnectionArgsOperation.
type ConnectOperation struct {
	operationCore
}

func NewConnectOperation(onComplete CompletionFunc) *ConnectOperation {
	return &ConnectOperation{operationCore: newCore(KindConnect, onComplete)}
}

func (o *ConnectOperation) core() *operationCore { return &o.operationCore }

// DisconnectOperation asks the transport to tear the connection down.
type DisconnectOperation struct {
	operationCore
}

func NewDisconnectOperation(onComplete CompletionFunc) *DisconnectOperation {
	return &DisconnectOperation{operationCore: newCore(KindDisconnect, onComplete)}
}

func (o *DisconnectOperation) core() *operationCore { return &o.operationCore }

// SendTelemetryOperation carries one telemetry message to the cloud endpoint.
type SendTelemetryOperation struct {
	operationCore
	Payload    []byte
	Properties map[string]string
}

func NewSendTelemetryOperation(payload []byte, properties map[string]string, onComplete CompletionFunc) (*SendTelemetryOperation, error) {
	if len(payload) == 0 {
		return nil, ErrPayloadMustBeSet
	}

	return &SendTelemetryOperation{
		operationCore: newCore(KindSendTelemetry, onComplete),
		Payload:       payload,
		Properties:    properties,
	}, nil
}

func (o *SendTelemetryOperation) core() *operationCore { return &o.operationCore }

// UploadBlobOperation carries an opaque blob to the cloud endpoint.
type UploadBlobOperation struct {
	operationCore
	BlobName string
	Data     []byte
}

func NewUploadBlobOperation(blobName string, data []byte, onComplete CompletionFunc) (*UploadBlobOperation, error) {
	if blobName == "" {
		return nil, ErrBlobNameMustBeSet
	}
	if len(data) == 0 {
		return nil, ErrPayloadMustBeSet
	}

	return &UploadBlobOperation{
		operationCore: newCore(KindUploadBlob, onComplete),
		BlobName:      blobName,
		Data:          data,
	}, nil
}

func (o *UploadBlobOperation) core() *operationCore { return &o.operationCore }

// MethodResponseOperation answers a direct method request received as a
// MessageReceivedEvent.
type MethodResponseOperation struct {
	operationCore
	RequestID string
	Status    int
	Payload   []byte
}

func NewMethodResponseOperation(requestID string, status int, payload []byte, onComplete CompletionFunc) (*MethodResponseOperation, error) {
	if requestID == "" {
		return nil, ErrRequestIDMustBeSet
	}

	return &MethodResponseOperation{
		operationCore: newCore(KindMethodResponse, onComplete),
		RequestID:     requestID,
		Status:        status,
		Payload:       payload,
	}, nil
}

func (o *MethodResponseOperation) core() *operationCore { return &o.operationCore }

// UseSymmetricKeyCredentialOperation hands the pipeline a shared-key
// credential source. The credential stage resolves it into connection
// arguments; the caller never sees the translation.
type UseSymmetricKeyCredentialOperation struct {
	operationCore
	Source TokenCredentialSource
}

func NewUseSymmetricKeyCredentialOperation(source TokenCredentialSource, onComplete CompletionFunc) (*UseSymmetricKeyCredentialOperation, error) {
	if source == nil {
		return nil, ErrCredentialSourceMustBeSet
	}

	return &UseSymmetricKeyCredentialOperation{
		operationCore: newCore(KindUseSymmetricKeyCred, onComplete),
		Source:        source,
	}, nil
}

func (o *UseSymmetricKeyCredentialOperation) core() *operationCore { return &o.operationCore }

// UseCertificateCredentialOperation hands the pipeline an X.509 credential
// source.
type UseCertificateCredentialOperation struct {
	operationCore
	Source CertificateCredentialSource
}

func NewUseCertificateCredentialOperation(source CertificateCredentialSource, onComplete CompletionFunc) (*UseCertificateCredentialOperation, error) {
	if source == nil {
		return nil, ErrCredentialSourceMustBeSet
	}

	return &UseCertificateCredentialOperation{
		operationCore: newCore(KindUseCertificateCred, onComplete),
		Source:        source,
	}, nil
}

func (o *UseCertificateCredentialOperation) core() *operationCore { return &o.operationCore }

// SendOperation is the wire-level send consumed by the transport boundary.
type SendOperation struct {
	operationCore
	Topic   string
	Payload []byte
}

func NewSendOperation(topic string, payload []byte, onComplete CompletionFunc) (*SendOperation, error) {
	if topic == "" {
		return nil, ErrTopicMustBeSet
	}
	if len(payload) == 0 {
		return nil, ErrPayloadMustBeSet
	}

	return &SendOperation{
		operationCore: newCore(KindSend, onComplete),
		Topic:         topic,
		Payload:       payload,
	}, nil
}

func (o *SendOperation) core() *operationCore { return &o.operationCore }

// SetConnectionArgsOperation applies resolved connection arguments to the
// transport boundary. Exactly one of Token and Certificate must be set.
type SetConnectionArgsOperation struct {
	operationCore
	Host           string
	RegistrationID string
	Scope          string
	Token          string
	Certificate    *Certificate
}

func NewSetConnectionArgsOperation(host, registrationID, scope, token string, cert *Certificate, onComplete CompletionFunc) (*SetConnectionArgsOperation, error) {
	switch {
	case host == "":
		return nil, ErrHostMustBeSet
	case registrationID == "":
		return nil, ErrRegistrationIDMustBeSet
	case scope == "":
		return nil, ErrScopeMustBeSet
	case token == "" && cert == nil:
		return nil, ErrCredentialMustBeSet
	case token != "" && cert != nil:
		return nil, ErrAmbiguousCredential
	}

	return &SetConnectionArgsOperation{
		operationCore:  newCore(KindSetConnectionArgs, onComplete),
		Host:           host,
		RegistrationID: registrationID,
		Scope:          scope,
		Token:          token,
		Certificate:    cert,
	}, nil
}

func (o *SetConnectionArgsOperation) core() *operationCore { return &o.operationCore }

// SetCredentialTokenOperation replaces the transport's current token,
// typically when a shared-key token is renewed mid-connection.
type SetCredentialTokenOperation struct {
	operationCore
	Token string
}

func NewSetCredentialTokenOperation(token string, onComplete CompletionFunc) (*SetCredentialTokenOperation, error) {
	if token == "" {
		return nil, ErrTokenMustBeSet
	}

	return &SetCredentialTokenOperation{
		operationCore: newCore(KindSetCredentialToken, onComplete),
		Token:         token,
	}, nil
}

func (o *SetCredentialTokenOperation) core() *operationCore { return &o.operationCore }

// SetClientCertificateOperation replaces the transport's client certificate.
type SetClientCertificateOperation struct {
	operationCore
	Certificate *Certificate
}

func NewSetClientCertificateOperation(cert *Certificate, onComplete CompletionFunc) (*SetClientCertificateOperation, error) {
	if cert == nil {
		return nil, ErrCertificateMustBeSet
	}

	return &SetClientCertificateOperation{
		operationCore: newCore(KindSetClientCertificate, onComplete),
		Certificate:   cert,
	}, nil
}

func (o *SetClientCertificateOperation) core() *operationCore { return &o.operationCore }

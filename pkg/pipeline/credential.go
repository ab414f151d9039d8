package pipeline

// Certificate is opaque client certificate material. The pipeline never
// inspects it, it only carries it to the transport boundary.
type Certificate struct {
	CertPEM    []byte
	KeyPEM     []byte
	Passphrase string
}

// CredentialSource describes where a device credential comes from. The
// pipeline reads the identity fields once, when the credential operation
// reaches the credential stage.
type CredentialSource interface {
	Host() string
	RegistrationID() string
	Scope() string
}

// TokenCredentialSource is a shared-key credential source. CurrentToken
// returns the token valid at call time; renewal is the source's business.
type TokenCredentialSource interface {
	CredentialSource
	CurrentToken() (string, error)
}

// CertificateCredentialSource is an X.509 credential source.
type CertificateCredentialSource interface {
	CredentialSource
	Certificate() (*Certificate, error)
}

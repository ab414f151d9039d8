package pipeline

import "github.com/pkg/errors"

// UseCredentialStage resolves credential operations into transport
// connection arguments. It reads the credential source exactly once, when
// the operation passes through, and delegates a SetConnectionArgsOperation
// carrying the resolved host, registration id, scope and credential. The
// original operation completes with the delegated operation's outcome.
//
// The stage holds no state of its own: it is a pure per-operation
// transformer. All other operation kinds pass through unchanged.
type UseCredentialStage struct {
	ChainStage
}

func NewUseCredentialStage() *UseCredentialStage {
	return &UseCredentialStage{ChainStage: newChainStage("use-credential")}
}

func (s *UseCredentialStage) Run(op Operation) {
	s.checkAffinity()

	switch op := op.(type) {
	case *UseSymmetricKeyCredentialOperation:
		source := op.Source
		token, err := source.CurrentToken()
		if err != nil {
			Complete(op, errors.Wrap(err, "unable to read current token"))

			return
		}
		args, err := NewSetConnectionArgsOperation(source.Host(), source.RegistrationID(), source.Scope(), token, nil, nil)
		if err != nil {
			Complete(op, errors.Wrap(err, "unable to build connection args"))

			return
		}
		Delegate(s, op, args)

	case *UseCertificateCredentialOperation:
		source := op.Source
		cert, err := source.Certificate()
		if err != nil {
			Complete(op, errors.Wrap(err, "unable to read certificate"))

			return
		}
		args, err := NewSetConnectionArgsOperation(source.Host(), source.RegistrationID(), source.Scope(), "", cert, nil)
		if err != nil {
			Complete(op, errors.Wrap(err, "unable to build connection args"))

			return
		}
		Delegate(s, op, args)

	default:
		s.ChainStage.Run(op)
	}
}

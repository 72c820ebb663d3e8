package orchestrator

import (
	"errors"
	"fmt"
	"time"

	"github.com/SUNET/go-esign/pkg/certificate"
)

// Status tags a sign outcome.
type Status string

const (
	StatusSuccess                       Status = "Success"
	StatusPluginNotFound                Status = "PluginNotFound"
	StatusCertificateNotFound           Status = "CertificateNotFound"
	StatusUnsupportedSignatureAlgorithm Status = "UnsupportedSignatureAlgorithm"
	StatusSignOperationFailed           Status = "SignOperationFailed"
)

// Failure details shown to the user.
const (
	DetailPluginNotFound       = "CryptoPro browser plug-in and an installed signing certificate are required"
	DetailUnsupportedAlgorithm = "only GOST R 34.10-2012 and GOST R 34.10-2001 certificates are supported for XML signing"
	DetailTimeout              = "provider call timed out"
	DetailCancelled            = "sign request cancelled"
)

var (
	// ErrEmptyDocument is returned when Sign is called without a document.
	ErrEmptyDocument = errors.New("empty document")

	// ErrBusy is returned when a sign request is already in flight.
	ErrBusy = errors.New("a sign request is already in progress")

	// ErrUnknownCertificate is returned when selecting a certificate that is
	// not in the catalog.
	ErrUnknownCertificate = errors.New("unknown certificate")

	// ErrNoDefaultCertificate is returned by SelectDefault when no listed
	// certificate is valid.
	ErrNoDefaultCertificate = errors.New("no valid certificate available")
)

// Outcome is the terminal result of one sign request. Payload holds the
// signed document on success and a human readable detail otherwise.
type Outcome struct {
	RequestID  string        `json:"request_id"`
	Status     Status        `json:"status"`
	Payload    string        `json:"payload"`
	Thumbprint string        `json:"thumbprint,omitempty"`
	Duration   time.Duration `json:"duration"`
	Diagnostic string        `json:"diagnostic,omitempty"`
	Time       time.Time     `json:"time"`
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool {
	return o.Status == StatusSuccess
}

// Request is the input of one sign session.
type Request struct {
	Certificate *certificate.Certificate
	Body        string
}

// SignError is a failed detached signature.
type SignError struct {
	Status Status
	Detail string
}

func (e *SignError) Error() string {
	return fmt.Sprintf("%s: %s", e.Status, e.Detail)
}

// State of the orchestrator.
type State int

const (
	StateIdle State = iota
	StateCheckingCapability
	StateNoCapability
	StateReady
	StateSigning
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCheckingCapability:
		return "checking_capability"
	case StateNoCapability:
		return "no_capability"
	case StateReady:
		return "ready"
	case StateSigning:
		return "signing"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

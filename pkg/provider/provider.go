// Package provider defines the contract between the sign orchestrator and a
// signing capability: a certificate store plus the ability to sign a prepared
// XML-DSig template or a detached payload with one of its keys.
package provider

import (
	"context"
	"crypto/x509"
	"errors"

	"github.com/SUNET/go-esign/pkg/certificate"
)

var (
	// ErrCertificateNotFound is returned by FindCertificate when the store
	// has no certificate with the requested thumbprint.
	ErrCertificateNotFound = errors.New("certificate not found")

	// ErrUnavailable is returned by every operation of a provider without a
	// signing capability.
	ErrUnavailable = errors.New("signing capability unavailable")
)

// Handle refers to a certificate located in the provider store.
type Handle struct {
	Thumbprint  string
	Certificate *x509.Certificate
}

// Provider is a signing capability.
//
// FindCertificate opens the store, looks the certificate up and closes the
// store again before returning. Every other operation receives the handle it
// produced.
type Provider interface {
	// Available reports whether the capability is present. It never fails.
	Available(ctx context.Context) bool

	EnumerateCertificates(ctx context.Context) ([]certificate.Record, error)
	FindCertificate(ctx context.Context, thumbprint string) (*Handle, error)

	// PublicKeyAlgorithm returns the dotted OID of the certificate key.
	PublicKeyAlgorithm(ctx context.Context, h *Handle) (string, error)

	// ExportCertificateBase64 returns the DER certificate, base64 encoded.
	// The result may contain line breaks.
	ExportCertificateBase64(ctx context.Context, h *Handle) (string, error)

	// SignPreparedDocument fills DigestValue and SignatureValue of an
	// unsigned envelope and returns the signed document.
	SignPreparedDocument(ctx context.Context, unsigned string, h *Handle) (string, error)

	// HashAndDetachedSign hashes data with the digest matching the
	// certificate key and returns the raw signature.
	HashAndDetachedSign(ctx context.Context, data []byte, h *Handle) ([]byte, error)
}

// Info describes the provider software.
type Info struct {
	Name          string `json:"name"`
	PluginVersion string `json:"plugin_version"`
	CSPVersion    string `json:"csp_version"`
	CSPName       string `json:"csp_name"`
}

// Informer is implemented by providers able to describe themselves.
type Informer interface {
	Info(ctx context.Context) (Info, error)
}

// Closer is implemented by providers holding resources.
type Closer interface {
	Close() error
}

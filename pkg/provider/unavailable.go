package provider

import (
	"context"

	"github.com/SUNET/go-esign/pkg/certificate"
)

// Unavailable is the provider used when no signing capability is configured.
type Unavailable struct{}

var _ Provider = Unavailable{}

func (Unavailable) Available(context.Context) bool { return false }

func (Unavailable) EnumerateCertificates(context.Context) ([]certificate.Record, error) {
	return nil, ErrUnavailable
}

func (Unavailable) FindCertificate(context.Context, string) (*Handle, error) {
	return nil, ErrUnavailable
}

func (Unavailable) PublicKeyAlgorithm(context.Context, *Handle) (string, error) {
	return "", ErrUnavailable
}

func (Unavailable) ExportCertificateBase64(context.Context, *Handle) (string, error) {
	return "", ErrUnavailable
}

func (Unavailable) SignPreparedDocument(context.Context, string, *Handle) (string, error) {
	return "", ErrUnavailable
}

func (Unavailable) HashAndDetachedSign(context.Context, []byte, *Handle) ([]byte, error) {
	return nil, ErrUnavailable
}

func (Unavailable) Info(context.Context) (Info, error) {
	return Info{Name: "none"}, nil
}

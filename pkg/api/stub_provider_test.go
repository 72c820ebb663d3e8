package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/SUNET/go-esign/pkg/algorithm"
	"github.com/SUNET/go-esign/pkg/certificate"
	"github.com/SUNET/go-esign/pkg/provider"
)

const (
	stubThumbprint = "0A1B2C3D"
	stubSignature  = "<SignatureValue>c2lnbmVk</SignatureValue>"
)

var errStubSign = errors.New("token removed")

// stubProvider offers one GOST R 34.10-2012 certificate.
type stubProvider struct {
	mu        sync.Mutex
	available bool
	oid       string
	signErr   error
	release   chan struct{}
}

func newStubProvider() *stubProvider {
	return &stubProvider{available: true, oid: algorithm.OIDGostR34102012256}
}

func (p *stubProvider) Available(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available
}

func (p *stubProvider) setAvailable(on bool) {
	p.mu.Lock()
	p.available = on
	p.mu.Unlock()
}

func (p *stubProvider) EnumerateCertificates(context.Context) ([]certificate.Record, error) {
	return []certificate.Record{{
		Thumbprint:  stubThumbprint,
		SubjectName: "Ivanov Ivan",
		IssuerName:  "CN=Test CA,O=Acme",
		ValidFrom:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ValidTo:     time.Date(2034, 1, 1, 0, 0, 0, 0, time.UTC),
	}}, nil
}

func (p *stubProvider) FindCertificate(_ context.Context, thumbprint string) (*provider.Handle, error) {
	if thumbprint != stubThumbprint {
		return nil, provider.ErrCertificateNotFound
	}
	return &provider.Handle{Thumbprint: thumbprint}, nil
}

func (p *stubProvider) PublicKeyAlgorithm(context.Context, *provider.Handle) (string, error) {
	return p.oid, nil
}

func (p *stubProvider) ExportCertificateBase64(context.Context, *provider.Handle) (string, error) {
	return "TUlJQ2VydA==", nil
}

func (p *stubProvider) SignPreparedDocument(ctx context.Context, unsigned string, _ *provider.Handle) (string, error) {
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if p.signErr != nil {
		return "", p.signErr
	}
	return unsigned + stubSignature, nil
}

func (p *stubProvider) HashAndDetachedSign(_ context.Context, data []byte, _ *provider.Handle) ([]byte, error) {
	if p.signErr != nil {
		return nil, p.signErr
	}
	return append([]byte("sig:"), data...), nil
}

func (p *stubProvider) Info(context.Context) (provider.Info, error) {
	return provider.Info{Name: "stub", PluginVersion: "1.0"}, nil
}

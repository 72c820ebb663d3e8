package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SUNET/go-esign/pkg/certificate"
	"github.com/SUNET/go-esign/pkg/provider"
)

type fakeProvider struct {
	mu        sync.Mutex
	available bool
	records   []certificate.Record
	enumErr   error
	enumDelay time.Duration
	oids      map[string]string
	export    string
	exportErr error
	signErr   error
	block     chan struct{}
	hang      bool

	calls    []string
	unsigned string
}

var _ provider.Provider = (*fakeProvider)(nil)

func newFakeProvider(records ...certificate.Record) *fakeProvider {
	return &fakeProvider{
		available: true,
		records:   records,
		oids:      map[string]string{},
		export:    "MIIB\r\nCERT\r\n",
	}
}

func (f *fakeProvider) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeProvider) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeProvider) ResetCalls() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

func (f *fakeProvider) SetAvailable(v bool) {
	f.mu.Lock()
	f.available = v
	f.mu.Unlock()
}

func (f *fakeProvider) Available(ctx context.Context) bool {
	f.record("Available")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available
}

func (f *fakeProvider) EnumerateCertificates(ctx context.Context) ([]certificate.Record, error) {
	f.record("EnumerateCertificates")
	if f.enumDelay > 0 {
		time.Sleep(f.enumDelay)
	}
	if f.enumErr != nil {
		return nil, f.enumErr
	}
	return f.records, nil
}

func (f *fakeProvider) FindCertificate(ctx context.Context, thumbprint string) (*provider.Handle, error) {
	f.record("FindCertificate")
	for _, r := range f.records {
		if r.Thumbprint == thumbprint {
			return &provider.Handle{Thumbprint: thumbprint}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", provider.ErrCertificateNotFound, thumbprint)
}

func (f *fakeProvider) PublicKeyAlgorithm(ctx context.Context, h *provider.Handle) (string, error) {
	f.record("PublicKeyAlgorithm")
	if oid, ok := f.oids[h.Thumbprint]; ok {
		return oid, nil
	}
	return "1.2.643.7.1.1.1.1", nil
}

func (f *fakeProvider) ExportCertificateBase64(ctx context.Context, h *provider.Handle) (string, error) {
	f.record("ExportCertificateBase64")
	return f.export, f.exportErr
}

func (f *fakeProvider) SignPreparedDocument(ctx context.Context, unsigned string, h *provider.Handle) (string, error) {
	f.record("SignPreparedDocument")
	f.mu.Lock()
	f.unsigned = unsigned
	block, hang := f.block, f.hang
	f.mu.Unlock()

	if hang {
		select {}
	}
	if block != nil {
		<-block
	}
	if f.signErr != nil {
		return "", f.signErr
	}
	return "signed:" + h.Thumbprint, nil
}

func (f *fakeProvider) HashAndDetachedSign(ctx context.Context, data []byte, h *provider.Handle) ([]byte, error) {
	f.record("HashAndDetachedSign")
	if f.signErr != nil {
		return nil, f.signErr
	}
	return append([]byte("sig:"), data...), nil
}

func (f *fakeProvider) Info(ctx context.Context) (provider.Info, error) {
	return provider.Info{Name: "fake", PluginVersion: "2.0.0"}, nil
}

var errSignRejected = errors.New("0x8010006E: The action was cancelled by the user")

type recordingDelivery struct {
	mu    sync.Mutex
	names []string
	data  [][]byte
}

func (r *recordingDelivery) Deliver(ctx context.Context, name string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	r.data = append(r.data, data)
	return nil
}

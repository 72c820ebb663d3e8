package dsig

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/SUNET/go-esign/pkg/algorithm"
	"github.com/SUNET/go-esign/pkg/certificate"
	"github.com/SUNET/go-esign/pkg/logging"
	"github.com/SUNET/go-esign/pkg/provider"
)

// KeyPair names a certificate file and its private key file.
type KeyPair struct {
	CertFile string `yaml:"cert" json:"cert"`
	KeyFile  string `yaml:"key" json:"key"`
}

// FileProvider is a software certificate store backed by PEM files. The
// files are read each time the store is opened, so replaced certificates are
// picked up without a restart.
type FileProvider struct {
	pairs  []KeyPair
	logger logging.Logger
}

var (
	_ provider.Provider = (*FileProvider)(nil)
	_ provider.Informer = (*FileProvider)(nil)
)

// NewFileProvider creates a FileProvider from certificate and key file paths
func NewFileProvider(pairs []KeyPair, logger logging.Logger) *FileProvider {
	return &FileProvider{
		pairs:  append([]KeyPair(nil), pairs...),
		logger: logging.OrDefault(logger),
	}
}

type fileEntry struct {
	pair KeyPair
	cert *x509.Certificate
}

// open reads every readable certificate. Unreadable entries are logged and
// skipped.
func (fp *FileProvider) open() []fileEntry {
	entries := make([]fileEntry, 0, len(fp.pairs))
	for _, pair := range fp.pairs {
		cert, err := loadCertificate(pair.CertFile)
		if err != nil {
			fp.logger.Warn("Skipping certificate",
				logging.F("file", pair.CertFile),
				logging.F("error", err.Error()))
			continue
		}
		entries = append(entries, fileEntry{pair: pair, cert: cert})
	}
	return entries
}

func loadCertificate(path string) (*x509.Certificate, error) {
	certData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate file: %w", err)
	}
	der := certData
	if block, _ := pem.Decode(certData); block != nil {
		der = block.Bytes
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return cert, nil
}

// Available reports whether at least one certificate can be read.
func (fp *FileProvider) Available(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	return len(fp.open()) > 0
}

func (fp *FileProvider) EnumerateCertificates(ctx context.Context) ([]certificate.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries := fp.open()
	records := make([]certificate.Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, provider.RecordFromX509(e.cert))
	}
	return records, nil
}

func (fp *FileProvider) FindCertificate(ctx context.Context, thumbprint string) (*provider.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, e := range fp.open() {
		if tp := provider.Thumbprint(e.cert.Raw); tp == thumbprint {
			return &provider.Handle{Thumbprint: tp, Certificate: e.cert}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", provider.ErrCertificateNotFound, thumbprint)
}

func (fp *FileProvider) PublicKeyAlgorithm(ctx context.Context, h *provider.Handle) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return provider.PublicKeyOID(h.Certificate)
}

func (fp *FileProvider) ExportCertificateBase64(ctx context.Context, h *provider.Handle) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return provider.ExportBase64(h.Certificate), nil
}

// SignPreparedDocument signs the template with the key paired with the
// handle's certificate.
func (fp *FileProvider) SignPreparedDocument(ctx context.Context, unsigned string, h *provider.Handle) (string, error) {
	signer, err := fp.signer(ctx, h)
	if err != nil {
		return "", err
	}
	return SignTemplate(unsigned, signer)
}

func (fp *FileProvider) HashAndDetachedSign(ctx context.Context, data []byte, h *provider.Handle) ([]byte, error) {
	signer, err := fp.signer(ctx, h)
	if err != nil {
		return nil, err
	}
	digestURI, err := detachedDigest(h)
	if err != nil {
		return nil, err
	}
	digest, err := Digest(digestURI, data)
	if err != nil {
		return nil, err
	}
	return signer.SignDigest(digest, digestURI)
}

func (fp *FileProvider) Info(ctx context.Context) (provider.Info, error) {
	return provider.Info{Name: "file", CSPName: "gogost"}, nil
}

func (fp *FileProvider) signer(ctx context.Context, h *provider.Handle) (DigestSigner, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fmt.Errorf("no certificate handle")
	}
	for _, e := range fp.open() {
		if provider.Thumbprint(e.cert.Raw) != h.Thumbprint {
			continue
		}
		keyData, err := os.ReadFile(e.pair.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read key file: %w", err)
		}
		return ParsePrivateKey(keyData)
	}
	return nil, fmt.Errorf("%w: %s", provider.ErrCertificateNotFound, h.Thumbprint)
}

// detachedDigest picks the digest for a detached signature from the
// certificate key: the GOST digest of the key family, SHA-256 otherwise.
func detachedDigest(h *provider.Handle) (string, error) {
	oid, err := provider.PublicKeyOID(h.Certificate)
	if err != nil {
		return "", err
	}
	if m, ok := algorithm.Resolve(oid); ok {
		return m.DigestMethodURI, nil
	}
	return DigestSHA256, nil
}

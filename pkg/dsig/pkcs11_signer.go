package dsig

import (
	"context"
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/SUNET/go-esign/pkg/certificate"
	"github.com/SUNET/go-esign/pkg/logging"
	"github.com/SUNET/go-esign/pkg/provider"
	"github.com/ThalesGroup/crypto11"
)

// PKCS11Provider is a certificate store on a PKCS#11 token. Certificates are
// offered when the token holds a private key paired with them.
type PKCS11Provider struct {
	Config  *crypto11.Config
	mu      sync.Mutex
	context *crypto11.Context
	logger  logging.Logger
}

var (
	_ provider.Provider = (*PKCS11Provider)(nil)
	_ provider.Closer   = (*PKCS11Provider)(nil)
)

// NewPKCS11Provider creates a provider for the token described by config.
func NewPKCS11Provider(config *crypto11.Config, logger logging.Logger) *PKCS11Provider {
	return &PKCS11Provider{
		Config: config,
		logger: logging.OrDefault(logger),
	}
}

// NewPKCS11ProviderFromURI creates a provider from a PKCS#11 URI
func NewPKCS11ProviderFromURI(pkcs11URI string, logger logging.Logger) (*PKCS11Provider, error) {
	config := ExtractPKCS11Config(pkcs11URI)
	if config == nil {
		return nil, fmt.Errorf("invalid PKCS#11 URI: %s", pkcs11URI)
	}
	return NewPKCS11Provider(config, logger), nil
}

// initialize ensures the PKCS#11 context is created
func (pp *PKCS11Provider) initialize() (*crypto11.Context, error) {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	if pp.context != nil {
		return pp.context, nil
	}

	ctx, err := crypto11.Configure(pp.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to configure PKCS#11 context: %w", err)
	}
	pp.context = ctx
	return ctx, nil
}

// Close releases the token session.
func (pp *PKCS11Provider) Close() error {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	if pp.context == nil {
		return nil
	}
	err := pp.context.Close()
	pp.context = nil
	return err
}

func (pp *PKCS11Provider) Available(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if _, err := pp.initialize(); err != nil {
		pp.logger.Debug("PKCS#11 token unavailable", logging.F("error", err.Error()))
		return false
	}
	return true
}

func (pp *PKCS11Provider) pairs(ctx context.Context) ([]tls.Certificate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p11, err := pp.initialize()
	if err != nil {
		return nil, err
	}
	pairs, err := p11.FindAllPairedCertificates()
	if err != nil {
		return nil, fmt.Errorf("failed to list token certificates: %w", err)
	}
	return pairs, nil
}

func leaf(pair tls.Certificate) (*x509.Certificate, error) {
	if pair.Leaf != nil {
		return pair.Leaf, nil
	}
	if len(pair.Certificate) == 0 {
		return nil, fmt.Errorf("empty certificate chain")
	}
	return x509.ParseCertificate(pair.Certificate[0])
}

func (pp *PKCS11Provider) EnumerateCertificates(ctx context.Context) ([]certificate.Record, error) {
	pairs, err := pp.pairs(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]certificate.Record, 0, len(pairs))
	for _, pair := range pairs {
		cert, err := leaf(pair)
		if err != nil {
			pp.logger.Warn("Skipping unreadable token certificate", logging.F("error", err.Error()))
			continue
		}
		records = append(records, provider.RecordFromX509(cert))
	}
	return records, nil
}

func (pp *PKCS11Provider) find(ctx context.Context, thumbprint string) (*x509.Certificate, crypto.Signer, error) {
	pairs, err := pp.pairs(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, pair := range pairs {
		cert, err := leaf(pair)
		if err != nil || provider.Thumbprint(cert.Raw) != thumbprint {
			continue
		}
		signer, ok := pair.PrivateKey.(crypto.Signer)
		if !ok {
			return nil, nil, fmt.Errorf("%w: token key is not a signer", ErrUnsupportedKey)
		}
		return cert, signer, nil
	}
	return nil, nil, fmt.Errorf("%w: %s", provider.ErrCertificateNotFound, thumbprint)
}

func (pp *PKCS11Provider) FindCertificate(ctx context.Context, thumbprint string) (*provider.Handle, error) {
	cert, _, err := pp.find(ctx, thumbprint)
	if err != nil {
		return nil, err
	}
	return &provider.Handle{Thumbprint: thumbprint, Certificate: cert}, nil
}

func (pp *PKCS11Provider) PublicKeyAlgorithm(ctx context.Context, h *provider.Handle) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return provider.PublicKeyOID(h.Certificate)
}

func (pp *PKCS11Provider) ExportCertificateBase64(ctx context.Context, h *provider.Handle) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return provider.ExportBase64(h.Certificate), nil
}

// SignPreparedDocument signs the template on the token. The digest is
// computed on the host and the token performs a raw signature.
func (pp *PKCS11Provider) SignPreparedDocument(ctx context.Context, unsigned string, h *provider.Handle) (string, error) {
	_, signer, err := pp.find(ctx, h.Thumbprint)
	if err != nil {
		return "", err
	}
	return SignTemplate(unsigned, &CryptoSigner{Signer: signer})
}

func (pp *PKCS11Provider) HashAndDetachedSign(ctx context.Context, data []byte, h *provider.Handle) ([]byte, error) {
	_, signer, err := pp.find(ctx, h.Thumbprint)
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
	return (&CryptoSigner{Signer: signer}).SignDigest(digest, digestURI)
}

func (pp *PKCS11Provider) Info(ctx context.Context) (provider.Info, error) {
	info := provider.Info{Name: "pkcs11", CSPName: pp.Config.Path}
	if pp.Config.TokenLabel != "" {
		info.CSPName = pp.Config.TokenLabel + " (" + pp.Config.Path + ")"
	}
	return info, nil
}

// ExtractPKCS11Config extracts a PKCS#11 configuration from a URI
func ExtractPKCS11Config(pkcs11URI string) *crypto11.Config {
	// Parse the PKCS#11 URI
	u, err := url.Parse(pkcs11URI)
	if err != nil || u.Scheme != "pkcs11" {
		return nil
	}

	// Parse according to RFC 7512 PKCS#11 URI scheme
	// Format is pkcs11:module=/path/to/module;pin=1234;...
	if u.Opaque == "" {
		return nil
	}

	config := &crypto11.Config{}
	for _, param := range strings.Split(u.Opaque, ";") {
		kv := strings.SplitN(param, "=", 2)
		if len(kv) != 2 {
			continue
		}

		key, value := kv[0], kv[1]
		switch key {
		case "module":
			config.Path = value
		case "pin":
			config.Pin = value
		case "token":
			config.TokenLabel = value
		case "slot-id":
			slotID, err := strconv.Atoi(value)
			if err == nil {
				config.SlotNumber = &slotID
			}
		}
	}

	// Module path is required
	if config.Path == "" {
		return nil
	}

	return config
}

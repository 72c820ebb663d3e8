package dsig

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"

	"github.com/SUNET/go-esign/pkg/algorithm"
	"github.com/ddulesov/gogost/gost3410"
)

// ErrUnsupportedKey is returned for private keys the software store cannot use.
var ErrUnsupportedKey = errors.New("unsupported private key")

type gostCurve struct {
	curve *gost3410.Curve
	mode  gost3410.Mode
}

// Public key parameter sets, RFC 4357 and RFC 7836.
var gostCurves = map[string]gostCurve{
	"1.2.643.2.2.35.1":    {gost3410.CurveIdGostR34102001CryptoProAParamSet(), gost3410.Mode2001},
	"1.2.643.2.2.35.2":    {gost3410.CurveIdGostR34102001CryptoProBParamSet(), gost3410.Mode2001},
	"1.2.643.2.2.35.3":    {gost3410.CurveIdGostR34102001CryptoProCParamSet(), gost3410.Mode2001},
	"1.2.643.2.2.36.0":    {gost3410.CurveIdGostR34102001CryptoProXchAParamSet(), gost3410.Mode2001},
	"1.2.643.2.2.36.1":    {gost3410.CurveIdGostR34102001CryptoProXchBParamSet(), gost3410.Mode2001},
	"1.2.643.7.1.2.1.1.1": {gost3410.CurveIdtc26gost34102012256paramSetA(), gost3410.Mode2001},
	"1.2.643.7.1.2.1.2.1": {gost3410.CurveIdtc26gost341012512paramSetA(), gost3410.Mode2012},
	"1.2.643.7.1.2.1.2.2": {gost3410.CurveIdtc26gost341012512paramSetB(), gost3410.Mode2012},
}

type pkcs8 struct {
	Version    int
	Algo       pkix.AlgorithmIdentifier
	PrivateKey []byte
}

type gostKeyParams struct {
	PublicKeyParamSet asn1.ObjectIdentifier
	DigestParamSet    asn1.ObjectIdentifier `asn1:"optional"`
}

// ParsePrivateKey parses a PEM encoded private key. GOST R 34.10 keys in
// PKCS#8 are returned as GOST signers; RSA and ECDSA keys fall back to the
// standard library parsers.
func ParsePrivateKey(pemData []byte) (DigestSigner, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("failed to decode key PEM")
	}

	var info pkcs8
	if _, err := asn1.Unmarshal(block.Bytes, &info); err == nil {
		switch info.Algo.Algorithm.String() {
		case algorithm.OIDGostR34102012256, algorithm.OIDGostR34102012512, algorithm.OIDGostR34102001:
			return parseGOSTKey(info)
		}
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return &CryptoSigner{Signer: key}, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		if key, ecErr := x509.ParseECPrivateKey(block.Bytes); ecErr == nil {
			return &CryptoSigner{Signer: key}, nil
		}
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
	}
	return &CryptoSigner{Signer: signer}, nil
}

func parseGOSTKey(info pkcs8) (DigestSigner, error) {
	var params gostKeyParams
	if _, err := asn1.Unmarshal(info.Algo.Parameters.FullBytes, &params); err != nil {
		return nil, fmt.Errorf("failed to parse GOST key parameters: %w", err)
	}
	c, ok := gostCurves[params.PublicKeyParamSet.String()]
	if !ok {
		return nil, fmt.Errorf("%w: parameter set %s", ErrUnsupportedKey, params.PublicKeyParamSet)
	}

	raw, err := gostKeyBytes(info.PrivateKey, int(c.mode))
	if err != nil {
		return nil, err
	}
	key, err := gost3410.NewPrivateKey(c.curve, c.mode, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to load GOST private key: %w", err)
	}
	return &GOSTSigner{Key: key}, nil
}

// gostKeyBytes returns the little-endian private scalar. Keys are found
// either as an inner OCTET STRING (already little-endian) or as an INTEGER.
func gostKeyBytes(data []byte, size int) ([]byte, error) {
	var octets []byte
	if _, err := asn1.Unmarshal(data, &octets); err == nil && len(octets) == size {
		return octets, nil
	}
	var n *big.Int
	if _, err := asn1.Unmarshal(data, &n); err == nil && n != nil {
		be := n.FillBytes(make([]byte, size))
		return reverse(be), nil
	}
	if len(data) == size {
		return data, nil
	}
	return nil, fmt.Errorf("%w: unexpected private key encoding", ErrUnsupportedKey)
}

// GOSTSigner signs with a GOST R 34.10 private key.
type GOSTSigner struct {
	Key *gost3410.PrivateKey
}

// SignDigest signs a GOST digest. The digest is reversed first, as the
// GOST engines expect it in big-endian order.
func (s *GOSTSigner) SignDigest(digest []byte, digestURI string) ([]byte, error) {
	sig, err := s.Key.SignDigest(reverse(digest), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("GOST signature failed: %w", err)
	}
	return sig, nil
}

// CryptoSigner signs with any crypto.Signer. SHA-256 digests are passed with
// their hash identifier; GOST digests are passed raw.
type CryptoSigner struct {
	Signer crypto.Signer
}

// SignDigest implements DigestSigner.
func (s *CryptoSigner) SignDigest(digest []byte, digestURI string) ([]byte, error) {
	opts := crypto.Hash(0)
	if digestURI == DigestSHA256 {
		opts = crypto.SHA256
	}
	sig, err := s.Signer.Sign(rand.Reader, digest, opts)
	if err != nil {
		return nil, fmt.Errorf("signature failed: %w", err)
	}
	return sig, nil
}

func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}

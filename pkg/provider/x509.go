package provider

import (
	"crypto/sha1" // #nosec G505 -- thumbprints are SHA-1 by convention
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/SUNET/go-esign/pkg/certificate"
)

// Thumbprint returns the upper case hex SHA-1 of a DER certificate.
func Thumbprint(der []byte) string {
	sum := sha1.Sum(der) // #nosec G401
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

type subjectPublicKeyInfo struct {
	Algorithm pkix.AlgorithmIdentifier
	PublicKey asn1.BitString
}

// PublicKeyOID returns the dotted public key algorithm OID of cert. GOST keys
// are not understood by crypto/x509, so the SubjectPublicKeyInfo is read
// directly.
func PublicKeyOID(cert *x509.Certificate) (string, error) {
	if cert == nil {
		return "", fmt.Errorf("no certificate")
	}
	var spki subjectPublicKeyInfo
	if _, err := asn1.Unmarshal(cert.RawSubjectPublicKeyInfo, &spki); err != nil {
		return "", fmt.Errorf("failed to parse subject public key info: %w", err)
	}
	return spki.Algorithm.Algorithm.String(), nil
}

// RecordFromX509 builds the catalog record for cert.
func RecordFromX509(cert *x509.Certificate) certificate.Record {
	subject := cert.Subject.CommonName
	if subject == "" {
		subject = cert.Subject.String()
	}
	return certificate.Record{
		Thumbprint:  Thumbprint(cert.Raw),
		SubjectName: subject,
		IssuerName:  cert.Issuer.String(),
		ValidFrom:   cert.NotBefore,
		ValidTo:     cert.NotAfter,
	}
}

// ExportBase64 encodes the DER certificate wrapped at 64 columns, the way
// certificate stores export it.
func ExportBase64(cert *x509.Certificate) string {
	enc := base64.StdEncoding.EncodeToString(cert.Raw)
	var b strings.Builder
	for len(enc) > 64 {
		b.WriteString(enc[:64])
		b.WriteString("\r\n")
		enc = enc[64:]
	}
	b.WriteString(enc)
	return b.String()
}

// StripLineBreaks removes CR and LF characters.
func StripLineBreaks(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}

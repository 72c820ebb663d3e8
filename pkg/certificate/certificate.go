// Package certificate normalizes the certificate records reported by a signing
// provider and keeps the catalog of certificates offered to the user.
package certificate

import (
	"regexp"
	"time"
)

// Record is a certificate as reported by a signing provider. Providers fill
// every field they know about and leave the rest at their zero values.
type Record struct {
	Thumbprint  string    `json:"thumbprint" yaml:"thumbprint"`
	SubjectName string    `json:"subject_name" yaml:"subject_name"`
	IssuerName  string    `json:"issuer_name" yaml:"issuer_name"`
	ValidFrom   time.Time `json:"valid_from" yaml:"valid_from"`
	ValidTo     time.Time `json:"valid_to" yaml:"valid_to"`
}

// Certificate is a signing identity offered to the user.
type Certificate struct {
	Thumbprint  string    `json:"thumbprint"`
	SubjectName string    `json:"subject_name"`
	IssuerLabel string    `json:"issuer_label"`
	ValidFrom   time.Time `json:"valid_from"`
	ValidTo     time.Time `json:"valid_to"`

	// IsValid is cleared after a failed signing attempt with this certificate.
	// It is a hint for the user interface, not a cryptographic check.
	IsValid bool `json:"is_valid"`
}

// PlaceholderThumbprint identifies the certificate offered in test mode when
// no signing capability is present.
const PlaceholderThumbprint = "00000000"

// Placeholder returns the test mode certificate.
func Placeholder() *Certificate {
	return &Certificate{
		Thumbprint:  PlaceholderThumbprint,
		SubjectName: "Test certificate",
		IssuerLabel: "Test certificate",
		IsValid:     true,
	}
}

// IsPlaceholder reports whether c is nil or the test mode certificate.
func IsPlaceholder(c *Certificate) bool {
	return c == nil || c.Thumbprint == PlaceholderThumbprint
}

var commonName = regexp.MustCompile(`CN=([^,+]*)`)

// IssuerLabel returns the first CN component of an issuer distinguished
// name, or the name itself when it has none.
func IssuerLabel(issuer string) string {
	if m := commonName.FindStringSubmatch(issuer); m != nil {
		return m[1]
	}
	return issuer
}

// Normalize converts a provider record. A nil record yields nil.
func Normalize(r *Record) *Certificate {
	if r == nil {
		return nil
	}
	return &Certificate{
		Thumbprint:  r.Thumbprint,
		SubjectName: r.SubjectName,
		IssuerLabel: IssuerLabel(r.IssuerName),
		ValidFrom:   r.ValidFrom,
		ValidTo:     r.ValidTo,
		IsValid:     true,
	}
}

// NormalizeAll converts records, preserving their order.
func NormalizeAll(records []Record) []*Certificate {
	out := make([]*Certificate, 0, len(records))
	for i := range records {
		out = append(out, Normalize(&records[i]))
	}
	return out
}

// Package algorithm maps certificate public-key algorithm OIDs to the XML-DSig
// signature and digest method URIs used when signing with that certificate.
package algorithm

// Namespace is the URI prefix of the CryptoPro XML security algorithm identifiers.
const Namespace = "urn:ietf:params:xml:ns:cpxmlsec:algorithms:"

// Public key algorithm OIDs understood by the registry.
const (
	OIDGostR34102012256 = "1.2.643.7.1.1.1.1"
	OIDGostR34102012512 = "1.2.643.7.1.1.1.2"
	OIDGostR34102001    = "1.2.643.2.2.19"
)

// Signature and digest method URIs.
const (
	SignatureGostR34102012256 = Namespace + "gostr34102012-gostr34112012-256"
	SignatureGostR34102012512 = Namespace + "gostr34102012-gostr34112012-512"
	SignatureGostR34102001    = Namespace + "gostr34102001-gostr3411"

	DigestGostR34112012256 = Namespace + "gostr34112012-256"
	DigestGostR34112012512 = Namespace + "gostr34112012-512"
	DigestGostR341194      = Namespace + "gostr3411"
)

// Mapping binds a public key algorithm to its signature and digest methods.
type Mapping struct {
	PublicKeyOID       string `json:"public_key_oid" yaml:"public_key_oid"`
	Name               string `json:"name" yaml:"name"`
	SignatureMethodURI string `json:"signature_method" yaml:"signature_method"`
	DigestMethodURI    string `json:"digest_method" yaml:"digest_method"`
}

var table = []Mapping{
	{
		PublicKeyOID:       OIDGostR34102012256,
		Name:               "GOST R 34.10-2012 (256 bit)",
		SignatureMethodURI: SignatureGostR34102012256,
		DigestMethodURI:    DigestGostR34112012256,
	},
	{
		PublicKeyOID:       OIDGostR34102012512,
		Name:               "GOST R 34.10-2012 (512 bit)",
		SignatureMethodURI: SignatureGostR34102012512,
		DigestMethodURI:    DigestGostR34112012512,
	},
	{
		PublicKeyOID:       OIDGostR34102001,
		Name:               "GOST R 34.10-2001",
		SignatureMethodURI: SignatureGostR34102001,
		DigestMethodURI:    DigestGostR341194,
	},
}

// Resolve returns the mapping for a public key algorithm OID. The boolean is
// false when the algorithm cannot be used for XML signing.
func Resolve(publicKeyOID string) (Mapping, bool) {
	for _, m := range table {
		if m.PublicKeyOID == publicKeyOID {
			return m, true
		}
	}
	return Mapping{}, false
}

// All returns a copy of the registry table in declaration order.
func All() []Mapping {
	out := make([]Mapping, len(table))
	copy(out, table)
	return out
}

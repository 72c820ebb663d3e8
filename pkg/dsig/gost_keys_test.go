package dsig

import (
	"context"
	"crypto/rand"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/base64"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/SUNET/go-esign/pkg/algorithm"
	"github.com/SUNET/go-esign/pkg/envelope"
	"github.com/SUNET/go-esign/pkg/logging"
	"github.com/SUNET/go-esign/pkg/provider"
	"github.com/beevik/etree"
	"github.com/ddulesov/gogost/gost3410"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustOID(t *testing.T, dotted string) asn1.ObjectIdentifier {
	t.Helper()
	var oid asn1.ObjectIdentifier
	for _, part := range strings.Split(dotted, ".") {
		n, err := strconv.Atoi(part)
		require.NoError(t, err)
		oid = append(oid, n)
	}
	return oid
}

type gostKeySpec struct {
	name      string
	keyOID    string
	paramSet  string
	digestSet string // empty leaves the optional digest parameter set out
	sigOID    string
	curve     *gost3410.Curve
	mode      gost3410.Mode
	asInteger bool
}

func (s gostKeySpec) algorithmIdentifier(t *testing.T) pkix.AlgorithmIdentifier {
	t.Helper()
	params := gostKeyParams{PublicKeyParamSet: mustOID(t, s.paramSet)}
	if s.digestSet != "" {
		params.DigestParamSet = mustOID(t, s.digestSet)
	}
	der, err := asn1.Marshal(params)
	require.NoError(t, err)
	return pkix.AlgorithmIdentifier{Algorithm: mustOID(t, s.keyOID), Parameters: asn1.RawValue{FullBytes: der}}
}

// testRawKey returns a little-endian private scalar below every curve order.
func testRawKey(size int) []byte {
	raw := make([]byte, size)
	for i := 0; i < size-1; i++ {
		raw[i] = byte(7*i + 3)
	}
	return raw
}

// encodeGOSTKey wraps raw in PKCS#8, either as an inner OCTET STRING or as an INTEGER.
func encodeGOSTKey(t *testing.T, spec gostKeySpec, raw []byte) []byte {
	t.Helper()
	var inner []byte
	var err error
	if spec.asInteger {
		inner, err = asn1.Marshal(new(big.Int).SetBytes(reverse(raw)))
	} else {
		inner, err = asn1.Marshal(raw)
	}
	require.NoError(t, err)

	der, err := asn1.Marshal(pkcs8{Version: 0, Algo: spec.algorithmIdentifier(t), PrivateKey: inner})
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

type testValidity struct {
	NotBefore, NotAfter time.Time
}

type testSPKI struct {
	Algorithm pkix.AlgorithmIdentifier
	PublicKey asn1.BitString
}

type testTBSCertificate struct {
	Version      int `asn1:"optional,explicit,default:0,tag:0"`
	SerialNumber *big.Int
	Signature    pkix.AlgorithmIdentifier
	Issuer       asn1.RawValue
	Validity     testValidity
	Subject      asn1.RawValue
	PublicKey    testSPKI
}

type testCertificate struct {
	TBSCertificate     asn1.RawValue
	SignatureAlgorithm pkix.AlgorithmIdentifier
	Signature          asn1.BitString
}

// encodeGOSTCertificate builds a self-issued certificate for pub. The
// signature is filler; nothing in the store verifies certificate chains.
func encodeGOSTCertificate(t *testing.T, spec gostKeySpec, cn string, pub *gost3410.PublicKey) []byte {
	t.Helper()
	name, err := asn1.Marshal(pkix.Name{CommonName: cn}.ToRDNSequence())
	require.NoError(t, err)
	point, err := asn1.Marshal(pub.Raw())
	require.NoError(t, err)

	sigAlg := pkix.AlgorithmIdentifier{Algorithm: mustOID(t, spec.sigOID)}
	now := time.Now().UTC().Truncate(time.Second)
	tbs, err := asn1.Marshal(testTBSCertificate{
		Version:      2,
		SerialNumber: big.NewInt(now.UnixNano()),
		Signature:    sigAlg,
		Issuer:       asn1.RawValue{FullBytes: name},
		Validity:     testValidity{NotBefore: now.Add(-time.Hour), NotAfter: now.Add(24 * time.Hour)},
		Subject:      asn1.RawValue{FullBytes: name},
		PublicKey: testSPKI{
			Algorithm: spec.algorithmIdentifier(t),
			PublicKey: asn1.BitString{Bytes: point, BitLength: 8 * len(point)},
		},
	})
	require.NoError(t, err)

	filler := make([]byte, 2*int(spec.mode))
	_, err = rand.Read(filler)
	require.NoError(t, err)
	der, err := asn1.Marshal(testCertificate{
		TBSCertificate:     asn1.RawValue{FullBytes: tbs},
		SignatureAlgorithm: sigAlg,
		Signature:          asn1.BitString{Bytes: filler, BitLength: 8 * len(filler)},
	})
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func TestFileProviderGOSTKeys(t *testing.T) {
	specs := []gostKeySpec{
		{
			name:      "2012-256 octet string",
			keyOID:    algorithm.OIDGostR34102012256,
			paramSet:  "1.2.643.7.1.2.1.1.1",
			digestSet: "1.2.643.7.1.1.2.2",
			sigOID:    "1.2.643.7.1.1.3.2",
			curve:     gost3410.CurveIdtc26gost34102012256paramSetA(),
			mode:      gost3410.Mode2001,
		},
		{
			name:      "2012-256 integer",
			keyOID:    algorithm.OIDGostR34102012256,
			paramSet:  "1.2.643.7.1.2.1.1.1",
			digestSet: "1.2.643.7.1.1.2.2",
			sigOID:    "1.2.643.7.1.1.3.2",
			curve:     gost3410.CurveIdtc26gost34102012256paramSetA(),
			mode:      gost3410.Mode2001,
			asInteger: true,
		},
		{
			name:     "2012-512 octet string",
			keyOID:   algorithm.OIDGostR34102012512,
			paramSet: "1.2.643.7.1.2.1.2.1",
			sigOID:   "1.2.643.7.1.1.3.3",
			curve:    gost3410.CurveIdtc26gost341012512paramSetA(),
			mode:     gost3410.Mode2012,
		},
		{
			name:      "2012-512 integer",
			keyOID:    algorithm.OIDGostR34102012512,
			paramSet:  "1.2.643.7.1.2.1.2.2",
			sigOID:    "1.2.643.7.1.1.3.3",
			curve:     gost3410.CurveIdtc26gost341012512paramSetB(),
			mode:      gost3410.Mode2012,
			asInteger: true,
		},
		{
			name:      "2001 CryptoPro-A",
			keyOID:    algorithm.OIDGostR34102001,
			paramSet:  "1.2.643.2.2.35.1",
			digestSet: "1.2.643.2.2.30.1",
			sigOID:    "1.2.643.2.2.3",
			curve:     gost3410.CurveIdGostR34102001CryptoProAParamSet(),
			mode:      gost3410.Mode2001,
		},
	}

	for _, spec := range specs {
		t.Run(spec.name, func(t *testing.T) {
			raw := testRawKey(int(spec.mode))
			key, err := gost3410.NewPrivateKey(spec.curve, spec.mode, raw)
			require.NoError(t, err)
			pub, err := key.PublicKey()
			require.NoError(t, err)

			dir := t.TempDir()
			pair := KeyPair{CertFile: filepath.Join(dir, "signer.crt"), KeyFile: filepath.Join(dir, "signer.key")}
			require.NoError(t, os.WriteFile(pair.CertFile, encodeGOSTCertificate(t, spec, "GOST signer", pub), 0600))
			keyPEM := encodeGOSTKey(t, spec, raw)
			require.NoError(t, os.WriteFile(pair.KeyFile, keyPEM, 0600))

			signer, err := ParsePrivateKey(keyPEM)
			require.NoError(t, err)
			require.IsType(t, &GOSTSigner{}, signer)

			fp := NewFileProvider([]KeyPair{pair}, logging.Discard())
			ctx := context.Background()
			records, err := fp.EnumerateCertificates(ctx)
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, "GOST signer", records[0].SubjectName)

			h, err := fp.FindCertificate(ctx, records[0].Thumbprint)
			require.NoError(t, err)
			oid, err := fp.PublicKeyAlgorithm(ctx, h)
			require.NoError(t, err)
			assert.Equal(t, spec.keyOID, oid)
			m, ok := algorithm.Resolve(oid)
			require.True(t, ok)

			exported, err := fp.ExportCertificateBase64(ctx, h)
			require.NoError(t, err)
			unsigned := envelope.Build(testBody, provider.StripLineBreaks(exported), m.SignatureMethodURI, m.DigestMethodURI)
			signed, err := fp.SignPreparedDocument(ctx, unsigned, h)
			require.NoError(t, err)
			assert.Equal(t, unsigned, blankValues(signed))

			d := etree.NewDocument()
			require.NoError(t, d.ReadFromString(signed))
			bodyDigest, err := Digest(m.DigestMethodURI, canonicalByPath(t, signed, "//s:Body"))
			require.NoError(t, err)
			assert.Equal(t, base64.StdEncoding.EncodeToString(bodyDigest), d.FindElement("//DigestValue").Text())

			infoDigest, err := Digest(m.DigestMethodURI, canonicalByPath(t, signed, "//SignedInfo"))
			require.NoError(t, err)
			sig, err := base64.StdEncoding.DecodeString(d.FindElement("//SignatureValue").Text())
			require.NoError(t, err)
			assert.Len(t, sig, 2*int(spec.mode))
			valid, err := pub.VerifyDigest(reverse(infoDigest), sig)
			require.NoError(t, err)
			assert.True(t, valid, "SignatureValue verifies against the certificate key")

			detached, err := fp.HashAndDetachedSign(ctx, []byte("payload"), h)
			require.NoError(t, err)
			payloadDigest, err := Digest(m.DigestMethodURI, []byte("payload"))
			require.NoError(t, err)
			valid, err = pub.VerifyDigest(reverse(payloadDigest), detached)
			require.NoError(t, err)
			assert.True(t, valid, "detached signature verifies")
		})
	}
}

func TestParsePrivateKeyUnknownGOSTParamSet(t *testing.T) {
	spec := gostKeySpec{
		keyOID:   algorithm.OIDGostR34102012256,
		paramSet: "1.2.643.7.1.2.1.1.9",
		mode:     gost3410.Mode2001,
	}
	_, err := ParsePrivateKey(encodeGOSTKey(t, spec, testRawKey(32)))
	assert.ErrorIs(t, err, ErrUnsupportedKey)
}

func TestGOSTKeyBytes(t *testing.T) {
	raw := testRawKey(32)

	octets, err := asn1.Marshal(raw)
	require.NoError(t, err)
	got, err := gostKeyBytes(octets, 32)
	require.NoError(t, err)
	assert.Equal(t, raw, got, "OCTET STRING keys are already little-endian")

	integer, err := asn1.Marshal(new(big.Int).SetBytes(reverse(raw)))
	require.NoError(t, err)
	got, err = gostKeyBytes(integer, 32)
	require.NoError(t, err)
	assert.Equal(t, raw, got, "INTEGER keys are converted to little-endian")

	got, err = gostKeyBytes(raw, 32)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	_, err = gostKeyBytes([]byte{1, 2, 3}, 32)
	assert.ErrorIs(t, err, ErrUnsupportedKey)
}

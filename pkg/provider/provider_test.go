package provider

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selfSigned(t *testing.T, cn string) *x509.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(42),
		Subject:      pkix.Name{CommonName: cn, Organization: []string{"Acme"}},
		NotBefore:    time.Now().Add(-time.Hour).UTC().Truncate(time.Second),
		NotAfter:     time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func TestThumbprint(t *testing.T) {
	tp := Thumbprint([]byte("abc"))
	assert.Equal(t, "A9993E364706816ABA3E25717850C26C9CD0D89D", tp)
}

func TestPublicKeyOID(t *testing.T) {
	cert := selfSigned(t, "Test")
	oid, err := PublicKeyOID(cert)
	require.NoError(t, err)
	assert.Equal(t, "1.2.840.10045.2.1", oid)

	_, err = PublicKeyOID(nil)
	assert.Error(t, err)

	_, err = PublicKeyOID(&x509.Certificate{RawSubjectPublicKeyInfo: []byte{0x01}})
	assert.Error(t, err)
}

func TestRecordFromX509(t *testing.T) {
	cert := selfSigned(t, "Ivanov Ivan")
	rec := RecordFromX509(cert)

	assert.Equal(t, Thumbprint(cert.Raw), rec.Thumbprint)
	assert.Equal(t, "Ivanov Ivan", rec.SubjectName)
	assert.Contains(t, rec.IssuerName, "CN=Ivanov Ivan")
	assert.Equal(t, cert.NotBefore, rec.ValidFrom)
	assert.Equal(t, cert.NotAfter, rec.ValidTo)
}

func TestExportBase64RoundTrip(t *testing.T) {
	cert := selfSigned(t, "Test")
	exported := ExportBase64(cert)

	for _, line := range strings.Split(exported, "\r\n") {
		assert.LessOrEqual(t, len(line), 64)
	}
	single := StripLineBreaks(exported)
	assert.NotContains(t, single, "\n")

	der, err := base64.StdEncoding.DecodeString(single)
	require.NoError(t, err)
	assert.Equal(t, cert.Raw, der)
}

func TestStripLineBreaks(t *testing.T) {
	assert.Equal(t, "abcd", StripLineBreaks("ab\r\ncd"))
	assert.Equal(t, "abcd", StripLineBreaks("a\nb\rc\r\nd\n"))
	assert.Equal(t, "", StripLineBreaks(""))
}

func TestUnavailable(t *testing.T) {
	ctx := context.Background()
	var p Provider = Unavailable{}

	assert.False(t, p.Available(ctx))
	_, err := p.EnumerateCertificates(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = p.FindCertificate(ctx, "AB")
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = p.SignPreparedDocument(ctx, "<x/>", &Handle{})
	assert.ErrorIs(t, err, ErrUnavailable)

	info, err := Unavailable{}.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, "none", info.Name)
}

package dsig

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPKCS11Config(t *testing.T) {
	t.Run("full uri", func(t *testing.T) {
		c := ExtractPKCS11Config("pkcs11:module=/usr/lib/softhsm/libsofthsm2.so;pin=1234;token=esign;slot-id=2")
		require.NotNil(t, c)
		assert.Equal(t, "/usr/lib/softhsm/libsofthsm2.so", c.Path)
		assert.Equal(t, "1234", c.Pin)
		assert.Equal(t, "esign", c.TokenLabel)
		require.NotNil(t, c.SlotNumber)
		assert.Equal(t, 2, *c.SlotNumber)
	})

	t.Run("bad slot ignored", func(t *testing.T) {
		c := ExtractPKCS11Config("pkcs11:module=/lib/p11.so;slot-id=x")
		require.NotNil(t, c)
		assert.Nil(t, c.SlotNumber)
	})

	for _, uri := range []string{
		"",
		"http://example.com",
		"pkcs11:",
		"pkcs11:pin=1234",
	} {
		assert.Nil(t, ExtractPKCS11Config(uri), uri)
	}
}

func TestNewPKCS11ProviderFromURI(t *testing.T) {
	_, err := NewPKCS11ProviderFromURI("pkcs11:pin=1", nil)
	assert.Error(t, err)

	p, err := NewPKCS11ProviderFromURI("pkcs11:module=/nonexistent/p11.so;token=t", nil)
	require.NoError(t, err)
	info, err := p.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pkcs11", info.Name)
	assert.Equal(t, "t (/nonexistent/p11.so)", info.CSPName)
	assert.NoError(t, p.Close())
}

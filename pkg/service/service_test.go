package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/SUNET/go-esign/pkg/config"
	"github.com/SUNET/go-esign/pkg/dsig"
	"github.com/SUNET/go-esign/pkg/logging"
	"github.com/SUNET/go-esign/pkg/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(config.ProviderConfig{Type: config.ProviderNone}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, provider.Unavailable{}, p)

	p, err = NewProvider(config.ProviderConfig{
		Type:         config.ProviderFile,
		Certificates: []config.CertificateConfig{{Cert: "c.pem", Key: "k.pem"}},
	}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &dsig.FileProvider{}, p)

	p, err = NewProvider(config.ProviderConfig{
		Type:      config.ProviderPKCS11,
		PKCS11URI: "pkcs11:module=/usr/lib/softhsm/libsofthsm2.so;token=esign;pin=1234",
	}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &dsig.PKCS11Provider{}, p)

	_, err = NewProvider(config.ProviderConfig{Type: config.ProviderPKCS11, PKCS11URI: "http://example.com"}, logging.Discard())
	assert.Error(t, err)

	_, err = NewProvider(config.ProviderConfig{Type: "capi"}, logging.Discard())
	assert.Error(t, err)
}

func TestNewWithoutStateFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Signing.TestMode = true

	svc, err := New(cfg, logging.Discard())
	require.NoError(t, err)
	defer svc.Close()

	assert.Nil(t, svc.Settings)
	assert.True(t, svc.Orchestrator.TestMode())
	assert.NoError(t, svc.Watch())

	require.NoError(t, svc.SetTestMode(false))
	assert.False(t, svc.Orchestrator.TestMode())
	assert.False(t, svc.Orchestrator.CheckCapability(context.Background()))
}

func TestNewPersistedTestModeWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte("SIGN_XML_TESTING_MODE: true\n"), 0600))

	cfg := config.DefaultConfig()
	cfg.Signing.StateFile = path

	svc, err := New(cfg, logging.Discard())
	require.NoError(t, err)
	defer svc.Close()

	require.NotNil(t, svc.Settings)
	assert.True(t, svc.Orchestrator.TestMode())
}

func TestSetTestModePersistsAndNotifies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	cfg := config.DefaultConfig()
	cfg.Signing.StateFile = path

	svc, err := New(cfg, logging.Discard())
	require.NoError(t, err)
	defer svc.Close()

	require.NoError(t, svc.SetTestMode(true))
	assert.True(t, svc.Orchestrator.TestMode())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "SIGN_XML_TESTING_MODE")

	// Changes made through the store reach the orchestrator
	require.NoError(t, svc.Settings.SetTestMode(false))
	assert.False(t, svc.Orchestrator.TestMode())
}

func TestWatchFollowsStateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	cfg := config.DefaultConfig()
	cfg.Signing.StateFile = path

	svc, err := New(cfg, logging.Discard())
	require.NoError(t, err)
	defer svc.Close()
	require.NoError(t, svc.Watch())

	require.NoError(t, os.WriteFile(path, []byte("SIGN_XML_TESTING_MODE: true\n"), 0600))
	assert.Eventually(t, svc.Orchestrator.TestMode, 2*time.Second, 20*time.Millisecond)
}

func TestNewInvalidProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Provider.Type = "capi"
	_, err := New(cfg, logging.Discard())
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger, closer, err := NewLogger(config.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	assert.Equal(t, logging.DebugLevel, logger.GetLevel())
	assert.NoError(t, closer.Close())

	logger, closer, err = NewLogger(config.LoggingConfig{Level: "bogus", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	assert.Equal(t, logging.InfoLevel, logger.GetLevel())
	assert.NoError(t, closer.Close())
}

func TestNewLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "esign.log")

	logger, closer, err := NewLogger(config.LoggingConfig{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)
	logger.Info("hello", logging.F("k", "v"))
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"k":"v"`)
}

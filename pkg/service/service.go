// Package service assembles a signing service from a configuration: the
// logger, the signing provider, the persisted settings, the delivery sink and
// the orchestrator tying them together.
package service

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/SUNET/go-esign/pkg/config"
	"github.com/SUNET/go-esign/pkg/delivery"
	"github.com/SUNET/go-esign/pkg/dsig"
	"github.com/SUNET/go-esign/pkg/logging"
	"github.com/SUNET/go-esign/pkg/orchestrator"
	"github.com/SUNET/go-esign/pkg/provider"
	"github.com/SUNET/go-esign/pkg/settings"
)

// NewLogger builds the logger described by cfg. The returned closer releases
// a log file and is a no-op for stdout and stderr.
func NewLogger(cfg config.LoggingConfig) (logging.Logger, io.Closer, error) {
	level, ok := logging.ParseLevel(cfg.Level)
	if !ok {
		fmt.Fprintf(os.Stderr, "Warning: unknown log level '%s', using 'info'\n", cfg.Level)
	}

	var logger logging.Logger
	if strings.ToLower(cfg.Format) == "json" {
		logger = logging.JSONLogger(level)
	} else {
		logger = logging.NewLogger(level)
	}

	out, ok := logger.(logging.OutputConfigurable)
	if !ok {
		return logger, nopCloser{}, nil
	}
	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		return logger, nopCloser{}, nil
	case "stderr":
		out.SetOutput(os.Stderr)
		return logger, nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Output), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	out.SetOutput(file)
	return logger, file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewProvider creates the signing provider selected by cfg. The none
// provider yields provider.Unavailable.
func NewProvider(cfg config.ProviderConfig, logger logging.Logger) (provider.Provider, error) {
	switch cfg.Type {
	case config.ProviderNone, "":
		return provider.Unavailable{}, nil
	case config.ProviderFile:
		pairs := make([]dsig.KeyPair, 0, len(cfg.Certificates))
		for _, c := range cfg.Certificates {
			pairs = append(pairs, dsig.KeyPair{CertFile: c.Cert, KeyFile: c.Key})
		}
		return dsig.NewFileProvider(pairs, logger), nil
	case config.ProviderPKCS11:
		p, err := dsig.NewPKCS11ProviderFromURI(cfg.PKCS11URI, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to configure PKCS#11 provider: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("invalid provider type: %s", cfg.Type)
	}
}

// Service is an assembled signing service.
type Service struct {
	Orchestrator *orchestrator.Orchestrator
	Settings     *settings.Store // nil without a state file
	Delivery     *delivery.Directory
	Logger       logging.Logger
}

// New assembles the service described by cfg. The test mode persisted in the
// state file takes precedence over cfg.Signing.TestMode, and every later
// change of the file is pushed to the orchestrator.
func New(cfg *config.Config, logger logging.Logger) (*Service, error) {
	logger = logging.OrDefault(logger)

	p, err := NewProvider(cfg.Provider, logger.With(logging.F("component", "provider")))
	if err != nil {
		return nil, err
	}

	testMode := cfg.Signing.TestMode
	var store *settings.Store
	if cfg.Signing.StateFile != "" {
		store, err = settings.Open(cfg.Signing.StateFile, cfg.Signing.TestMode, logger.With(logging.F("component", "settings")))
		if err != nil {
			return nil, fmt.Errorf("failed to open state file: %w", err)
		}
		testMode = store.TestMode()
	}

	sink := delivery.NewDirectory(cfg.Signing.DownloadDir, logger.With(logging.F("component", "delivery")))
	o := orchestrator.New(p, orchestrator.Config{
		TestMode:            testMode,
		DownloadOnSuccess:   cfg.Signing.DownloadOnSuccess,
		Timeout:             cfg.Signing.Timeout,
		CertificateCacheTTL: cfg.Signing.CertificateCacheTTL,
		Delivery:            sink,
	}, logger.With(logging.F("component", "orchestrator")))

	if store != nil {
		store.OnChange(o.SetTestMode)
	}

	return &Service{
		Orchestrator: o,
		Settings:     store,
		Delivery:     sink,
		Logger:       logger,
	}, nil
}

// Watch follows external edits of the state file. It is a no-op without one.
func (s *Service) Watch() error {
	if s.Settings == nil {
		return nil
	}
	return s.Settings.Watch()
}

// SetTestMode changes test mode, persisting it when a state file is configured.
func (s *Service) SetTestMode(on bool) error {
	if s.Settings != nil {
		if err := s.Settings.SetTestMode(on); err != nil {
			return err
		}
	}
	s.Orchestrator.SetTestMode(on)
	return nil
}

// Close stops the settings watcher and releases the provider.
func (s *Service) Close() error {
	var firstErr error
	if s.Settings != nil {
		firstErr = s.Settings.Close()
	}
	if err := s.Orchestrator.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

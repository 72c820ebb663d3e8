// Package orchestrator drives a sign request from certificate selection to a
// signed WS-Security envelope and reports every request as exactly one
// Outcome.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/SUNET/go-esign/pkg/algorithm"
	"github.com/SUNET/go-esign/pkg/certificate"
	"github.com/SUNET/go-esign/pkg/envelope"
	"github.com/SUNET/go-esign/pkg/events"
	"github.com/SUNET/go-esign/pkg/logging"
	"github.com/SUNET/go-esign/pkg/provider"
	"github.com/google/uuid"
)

// DefaultTimeout bounds each provider call when Config.Timeout is unset.
const DefaultTimeout = 60 * time.Second

// SignedFileName is the name under which signed documents are delivered.
const SignedFileName = "signed.xml"

// Deliverer receives signed documents when delivery on success is enabled.
type Deliverer interface {
	Deliver(ctx context.Context, name string, data []byte) error
}

// Config holds the orchestrator settings.
type Config struct {
	TestMode            bool
	DownloadOnSuccess   bool
	Timeout             time.Duration
	CertificateCacheTTL time.Duration
	Delivery            Deliverer
}

// Orchestrator runs sign requests against a signing provider. At most one
// request is in flight; a concurrent Sign is rejected with ErrBusy.
type Orchestrator struct {
	provider provider.Provider
	catalog  *certificate.Catalog
	events   *events.Broadcaster[Outcome]
	delivery Deliverer
	logger   logging.Logger
	timeout  time.Duration
	download bool

	mu        sync.Mutex
	state     State
	testMode  bool
	available bool
	checked   bool
	selected  string
	busy      bool
}

// New creates an orchestrator. A nil provider means no signing capability.
func New(p provider.Provider, cfg Config, logger logging.Logger) *Orchestrator {
	if p == nil {
		p = provider.Unavailable{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	logger = logging.OrDefault(logger)
	return &Orchestrator{
		provider: p,
		catalog:  certificate.NewCatalog(cfg.CertificateCacheTTL, logger),
		events:   events.NewBroadcaster[Outcome](),
		delivery: cfg.Delivery,
		logger:   logger,
		timeout:  cfg.Timeout,
		download: cfg.DownloadOnSuccess,
		testMode: cfg.TestMode,
	}
}

// Events returns the broadcaster carrying every published outcome.
func (o *Orchestrator) Events() *events.Broadcaster[Outcome] {
	return o.events
}

// Catalog returns the certificate catalog.
func (o *Orchestrator) Catalog() *certificate.Catalog {
	return o.catalog
}

// Close ends every event subscription and releases the provider.
func (o *Orchestrator) Close() error {
	o.events.Close()
	if c, ok := o.provider.(provider.Closer); ok {
		return c.Close()
	}
	return nil
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) TestMode() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.testMode
}

// SetTestMode switches test mode. Leaving test mode drops a placeholder
// selection.
func (o *Orchestrator) SetTestMode(on bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.testMode == on {
		return
	}
	o.testMode = on
	if !on && o.selected == certificate.PlaceholderThumbprint {
		o.selected = ""
	}
	o.logger.Info("Test mode changed", logging.F("test_mode", on))
}

// CheckCapability asks the provider whether signing is possible and
// remembers the answer for later requests.
func (o *Orchestrator) CheckCapability(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	available, err := call(ctx, func(ctx context.Context) (bool, error) {
		return o.provider.Available(ctx), nil
	})
	if err != nil {
		available = false
	}

	o.mu.Lock()
	o.available = available
	o.checked = true
	o.mu.Unlock()

	o.logger.Debug("Signing capability checked", logging.F("available", available))
	return available
}

func (o *Orchestrator) capability(ctx context.Context) bool {
	o.mu.Lock()
	checked, available := o.checked, o.available
	o.mu.Unlock()
	if checked {
		return available
	}
	return o.CheckCapability(ctx)
}

// Info describes the provider.
func (o *Orchestrator) Info(ctx context.Context) (provider.Info, error) {
	informer, ok := o.provider.(provider.Informer)
	if !ok {
		return provider.Info{Name: "unknown"}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	return call(ctx, informer.Info)
}

// ListCertificates returns the certificates offered for signing. Without a
// signing capability the list is empty, or holds only the placeholder in
// test mode. A failed enumeration yields an empty list and publishes a
// PluginNotFound outcome.
func (o *Orchestrator) ListCertificates(ctx context.Context) []certificate.Certificate {
	if !o.capability(ctx) {
		o.catalog.Reset()
		if o.TestMode() {
			return []certificate.Certificate{*certificate.Placeholder()}
		}
		return []certificate.Certificate{}
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	certs, err := o.catalog.Refresh(ctx, func(ctx context.Context) ([]certificate.Record, error) {
		return call(ctx, o.provider.EnumerateCertificates)
	})
	if err != nil {
		o.events.Publish(Outcome{
			RequestID: uuid.NewString(),
			Status:    StatusPluginNotFound,
			Payload:   DetailPluginNotFound,
			Time:      time.Now(),
		})
	}
	return certs
}

// SelectCertificate selects the certificate used by the next Sign. An empty
// thumbprint clears the selection.
func (o *Orchestrator) SelectCertificate(thumbprint string) error {
	if thumbprint != "" && thumbprint != certificate.PlaceholderThumbprint {
		if _, ok := o.catalog.Find(thumbprint); !ok {
			return ErrUnknownCertificate
		}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if thumbprint == certificate.PlaceholderThumbprint && !o.testMode {
		return ErrUnknownCertificate
	}
	o.selected = thumbprint
	return nil
}

// SelectDefault selects the first listed certificate still marked valid.
func (o *Orchestrator) SelectDefault() (certificate.Certificate, error) {
	c, ok := o.catalog.Default()
	if !ok {
		return certificate.Certificate{}, ErrNoDefaultCertificate
	}
	o.mu.Lock()
	o.selected = c.Thumbprint
	o.mu.Unlock()
	return c, nil
}

// Selected returns the selected certificate.
func (o *Orchestrator) Selected() (certificate.Certificate, bool) {
	o.mu.Lock()
	thumbprint := o.selected
	o.mu.Unlock()

	if thumbprint == "" {
		return certificate.Certificate{}, false
	}
	if thumbprint == certificate.PlaceholderThumbprint {
		return *certificate.Placeholder(), true
	}
	return o.catalog.Find(thumbprint)
}

// acquire marks a request in flight and snapshots the selection.
func (o *Orchestrator) acquire() (Request, bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy {
		return Request{}, false, ErrBusy
	}
	o.busy = true
	o.state = StateCheckingCapability

	var req Request
	switch o.selected {
	case "":
	case certificate.PlaceholderThumbprint:
		req.Certificate = certificate.Placeholder()
	default:
		if c, ok := o.catalog.Find(o.selected); ok {
			req.Certificate = &c
		} else {
			req.Certificate = &certificate.Certificate{Thumbprint: o.selected}
		}
	}
	return req, o.testMode, nil
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	o.busy = false
	o.state = StateIdle
	o.mu.Unlock()
}

// Sign starts signing body with the selected certificate. The returned
// channel receives exactly one Outcome, which is also published on Events.
//
// An empty body is a programming error and returns ErrEmptyDocument; a
// request while another is in flight returns ErrBusy. Neither produces an
// outcome.
func (o *Orchestrator) Sign(ctx context.Context, body string) (<-chan Outcome, error) {
	if body == "" {
		return nil, ErrEmptyDocument
	}
	req, testMode, err := o.acquire()
	if err != nil {
		return nil, err
	}
	req.Body = body

	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		start := time.Now()
		outcome := o.run(ctx, req, testMode)
		outcome.RequestID = uuid.NewString()
		outcome.Duration = time.Since(start)
		outcome.Time = time.Now()
		o.finish(ctx, req, outcome)
		out <- outcome
	}()
	return out, nil
}

// SignSync is Sign followed by waiting for the outcome.
func (o *Orchestrator) SignSync(ctx context.Context, body string) (Outcome, error) {
	ch, err := o.Sign(ctx, body)
	if err != nil {
		return Outcome{}, err
	}
	return <-ch, nil
}

func (o *Orchestrator) run(ctx context.Context, req Request, testMode bool) Outcome {
	if certificate.IsPlaceholder(req.Certificate) {
		if testMode {
			return Outcome{Status: StatusSuccess, Payload: envelope.Build(req.Body, "", "", "")}
		}
		return failure(StatusPluginNotFound, DetailPluginNotFound)
	}
	thumbprint := req.Certificate.Thumbprint

	if !o.capability(ctx) && !testMode {
		o.setState(StateNoCapability)
		return withThumbprint(failure(StatusPluginNotFound, DetailPluginNotFound), thumbprint)
	}
	o.setState(StateReady)

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	o.setState(StateSigning)
	h, err := call(ctx, func(ctx context.Context) (*provider.Handle, error) {
		return o.provider.FindCertificate(ctx, thumbprint)
	})
	if err != nil {
		if errors.Is(err, provider.ErrCertificateNotFound) {
			return withThumbprint(failure(StatusCertificateNotFound, thumbprint), thumbprint)
		}
		return withThumbprint(providerFailure(err), thumbprint)
	}

	oid, err := call(ctx, func(ctx context.Context) (string, error) {
		return o.provider.PublicKeyAlgorithm(ctx, h)
	})
	if err != nil {
		return withThumbprint(providerFailure(err), thumbprint)
	}
	mapping, supported := algorithm.Resolve(oid)

	b64cert, exportErr := call(ctx, func(ctx context.Context) (string, error) {
		return o.provider.ExportCertificateBase64(ctx, h)
	})
	b64cert = provider.StripLineBreaks(b64cert)

	if !supported {
		o.logger.Warn("Unsupported public key algorithm",
			logging.F("thumbprint", thumbprint),
			logging.F("oid", oid))
		outcome := withThumbprint(failure(StatusUnsupportedSignatureAlgorithm, DetailUnsupportedAlgorithm), thumbprint)
		if exportErr == nil {
			outcome.Diagnostic = envelope.Build(req.Body, b64cert, "", "")
		}
		return outcome
	}
	if exportErr != nil {
		return withThumbprint(providerFailure(exportErr), thumbprint)
	}

	unsigned := envelope.Build(req.Body, b64cert, mapping.SignatureMethodURI, mapping.DigestMethodURI)
	signed, err := call(ctx, func(ctx context.Context) (string, error) {
		return o.provider.SignPreparedDocument(ctx, unsigned, h)
	})
	if err != nil {
		return withThumbprint(providerFailure(err), thumbprint)
	}
	return Outcome{Status: StatusSuccess, Payload: signed, Thumbprint: thumbprint}
}

// finish applies the side effects of an outcome, publishes it and returns
// the orchestrator to idle.
func (o *Orchestrator) finish(ctx context.Context, req Request, outcome Outcome) {
	if outcome.OK() {
		o.setState(StateSuccess)
		o.mu.Lock()
		o.selected = ""
		o.mu.Unlock()
		if o.download && o.delivery != nil {
			if err := o.delivery.Deliver(ctx, SignedFileName, []byte(outcome.Payload)); err != nil {
				o.logger.Error("Failed to deliver signed document", logging.F("error", err.Error()))
			}
		}
	} else {
		o.setState(StateFailed)
		if req.Certificate != nil && outcome.Payload != DetailCancelled {
			o.catalog.Invalidate(req.Certificate.Thumbprint)
		}
	}

	o.logger.Info("Sign request finished",
		logging.F("request_id", outcome.RequestID),
		logging.F("status", string(outcome.Status)),
		logging.F("thumbprint", outcome.Thumbprint),
		logging.F("duration", outcome.Duration.String()))

	o.events.Publish(outcome)
	o.release()
}

// SignFile produces a detached signature of data with the selected
// certificate. Failures are returned as *SignError.
func (o *Orchestrator) SignFile(ctx context.Context, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}
	req, _, err := o.acquire()
	if err != nil {
		return nil, err
	}
	defer o.release()

	sig, serr := o.signFile(ctx, req, data)
	if serr != nil {
		if req.Certificate != nil && serr.Detail != DetailCancelled {
			o.catalog.Invalidate(req.Certificate.Thumbprint)
		}
		return nil, serr
	}
	return sig, nil
}

func (o *Orchestrator) signFile(ctx context.Context, req Request, data []byte) ([]byte, *SignError) {
	if certificate.IsPlaceholder(req.Certificate) || !o.capability(ctx) {
		return nil, &SignError{Status: StatusPluginNotFound, Detail: DetailPluginNotFound}
	}
	thumbprint := req.Certificate.Thumbprint

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	h, err := call(ctx, func(ctx context.Context) (*provider.Handle, error) {
		return o.provider.FindCertificate(ctx, thumbprint)
	})
	if err != nil {
		if errors.Is(err, provider.ErrCertificateNotFound) {
			return nil, &SignError{Status: StatusCertificateNotFound, Detail: thumbprint}
		}
		return nil, &SignError{Status: StatusSignOperationFailed, Detail: providerDetail(err)}
	}
	sig, err := call(ctx, func(ctx context.Context) ([]byte, error) {
		return o.provider.HashAndDetachedSign(ctx, data, h)
	})
	if err != nil {
		return nil, &SignError{Status: StatusSignOperationFailed, Detail: providerDetail(err)}
	}
	return sig, nil
}

func failure(status Status, detail string) Outcome {
	return Outcome{Status: status, Payload: detail}
}

func withThumbprint(o Outcome, thumbprint string) Outcome {
	o.Thumbprint = thumbprint
	return o
}

func providerFailure(err error) Outcome {
	return failure(StatusSignOperationFailed, providerDetail(err))
}

func providerDetail(err error) string {
	switch {
	case errors.Is(err, errTimeout), errors.Is(err, context.DeadlineExceeded):
		return DetailTimeout
	case errors.Is(err, errCancelled), errors.Is(err, context.Canceled):
		return DetailCancelled
	default:
		return err.Error()
	}
}

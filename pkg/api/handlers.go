package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/SUNET/go-esign/pkg/algorithm"
	"github.com/SUNET/go-esign/pkg/certificate"
	"github.com/SUNET/go-esign/pkg/logging"
	"github.com/SUNET/go-esign/pkg/orchestrator"
	"github.com/SUNET/go-esign/pkg/xmlconv"
	"github.com/gin-gonic/gin"
)

// DefaultRootElement names the root element of converted documents when a
// sign request does not name one.
const DefaultRootElement = "html"

// CapabilityResponse reports whether signing is possible.
type CapabilityResponse struct {
	Available bool `json:"available"`
	TestMode  bool `json:"test_mode"`
}

// CertificatesResponse lists the certificates offered for signing.
type CertificatesResponse struct {
	Certificates []certificate.Certificate `json:"certificates"`
}

// SelectionRequest selects a certificate. An empty thumbprint clears the selection.
type SelectionRequest struct {
	Thumbprint string `json:"thumbprint"`
}

// SignRequest carries a JSON document to convert to XML and sign.
type SignRequest struct {
	Root     string          `json:"root" example:"html"`
	Document json.RawMessage `json:"document" swaggertype:"object"`
}

// DetachedSignatureResponse carries a base64 detached signature.
type DetachedSignatureResponse struct {
	Signature string `json:"signature"`
}

// TestModeResponse reports the test mode flag.
type TestModeResponse struct {
	TestMode bool `json:"test_mode"`
}

// ErrorResponse is returned by every failing endpoint.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status string `json:"status,omitempty"`
}

// statusCode maps an outcome status to an HTTP status code.
func statusCode(s orchestrator.Status) int {
	switch s {
	case orchestrator.StatusSuccess:
		return http.StatusOK
	case orchestrator.StatusPluginNotFound:
		return http.StatusServiceUnavailable
	case orchestrator.StatusCertificateNotFound:
		return http.StatusNotFound
	case orchestrator.StatusUnsupportedSignatureAlgorithm:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

// requestError maps the errors returned by the orchestrator before a request
// is accepted.
func requestError(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, orchestrator.ErrEmptyDocument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *ServerContext) recordError(errorType, operation string) {
	if s.Metrics != nil {
		s.Metrics.RecordError(errorType, operation)
	}
}

// CapabilityHandler godoc
// @Summary Check signing capability
// @Description Asks the signing provider whether signing is possible
// @Tags Signing
// @Produce json
// @Success 200 {object} CapabilityResponse
// @Router /capability [get]
func CapabilityHandler(serverCtx *ServerContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		o := serverCtx.Orchestrator
		available := o.CheckCapability(c.Request.Context())

		serverCtx.Logger.Debug("Capability checked",
			logging.F("remote_ip", c.ClientIP()),
			logging.F("available", available))

		c.JSON(http.StatusOK, CapabilityResponse{Available: available, TestMode: o.TestMode()})
	}
}

// ProviderHandler godoc
// @Summary Describe the signing provider
// @Description Returns the provider name and the versions it reports
// @Tags Signing
// @Produce json
// @Success 200 {object} provider.Info
// @Failure 503 {object} ErrorResponse
// @Router /provider [get]
func ProviderHandler(serverCtx *ServerContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		info, err := serverCtx.Orchestrator.Info(c.Request.Context())
		if err != nil {
			serverCtx.Logger.Warn("Provider info unavailable",
				logging.F("remote_ip", c.ClientIP()),
				logging.F("error", err.Error()))
			serverCtx.recordError("provider_unavailable", "provider_info")
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

// AlgorithmsHandler godoc
// @Summary List supported signature algorithms
// @Description Returns the public key algorithms usable for XML signing and their signature and digest method URIs
// @Tags Signing
// @Produce json
// @Success 200 {array} algorithm.Mapping
// @Router /algorithms [get]
func AlgorithmsHandler(serverCtx *ServerContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, algorithm.All())
	}
}

// CertificatesHandler godoc
// @Summary List signing certificates
// @Description Enumerates the certificates of the signing provider.
// @Description Without a signing capability the list is empty, or holds a single test certificate in test mode.
// @Tags Certificates
// @Produce json
// @Success 200 {object} CertificatesResponse
// @Router /certificates [get]
func CertificatesHandler(serverCtx *ServerContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		certs := serverCtx.Orchestrator.ListCertificates(c.Request.Context())

		serverCtx.Logger.Info("API certificates request",
			logging.F("remote_ip", c.ClientIP()),
			logging.F("count", len(certs)))
		if serverCtx.Metrics != nil {
			serverCtx.Metrics.RecordCertificates(len(certs))
		}

		c.JSON(http.StatusOK, CertificatesResponse{Certificates: certs})
	}
}

// GetSelectionHandler godoc
// @Summary Get the selected certificate
// @Tags Certificates
// @Produce json
// @Success 200 {object} certificate.Certificate
// @Failure 404 {object} ErrorResponse "No certificate selected"
// @Router /selection [get]
func GetSelectionHandler(serverCtx *ServerContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		cert, ok := serverCtx.Orchestrator.Selected()
		if !ok {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "no certificate selected"})
			return
		}
		c.JSON(http.StatusOK, cert)
	}
}

// PutSelectionHandler godoc
// @Summary Select a certificate
// @Description Selects the certificate used by the next sign request. An empty thumbprint clears the selection.
// @Tags Certificates
// @Accept json
// @Produce json
// @Param request body SelectionRequest true "Certificate thumbprint"
// @Success 200 {object} SelectionRequest
// @Failure 400 {object} ErrorResponse "Invalid request format"
// @Failure 404 {object} ErrorResponse "Unknown certificate"
// @Router /selection [put]
func PutSelectionHandler(serverCtx *ServerContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SelectionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request"})
			return
		}
		if err := serverCtx.Orchestrator.SelectCertificate(req.Thumbprint); err != nil {
			serverCtx.Logger.Info("Certificate selection rejected",
				logging.F("remote_ip", c.ClientIP()),
				logging.F("thumbprint", req.Thumbprint))
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusOK, req)
	}
}

// DefaultSelectionHandler godoc
// @Summary Select the default certificate
// @Description Selects the first listed certificate that has not failed a signing attempt
// @Tags Certificates
// @Produce json
// @Success 200 {object} certificate.Certificate
// @Failure 404 {object} ErrorResponse "No valid certificate"
// @Router /selection/default [post]
func DefaultSelectionHandler(serverCtx *ServerContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		cert, err := serverCtx.Orchestrator.SelectDefault()
		if err != nil {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusOK, cert)
	}
}

// SignHandler godoc
// @Summary Sign a document
// @Description Converts the JSON document to XML under the given root element, wraps it in a
// @Description WS-Security SOAP envelope and signs it with the selected certificate.
// @Description
// @Description The response is the sign outcome. Failed outcomes use a matching HTTP status:
// @Description 503 when no signing capability is present, 404 when the certificate is gone,
// @Description 422 for an unsupported key algorithm and 502 when the provider fails.
// @Tags Signing
// @Accept json
// @Produce json
// @Param request body SignRequest true "Document to sign"
// @Success 200 {object} orchestrator.Outcome
// @Failure 400 {object} ErrorResponse "Invalid document"
// @Failure 404 {object} orchestrator.Outcome
// @Failure 409 {object} ErrorResponse "Another sign request is in progress"
// @Failure 413 {object} ErrorResponse "Request body too large"
// @Failure 422 {object} orchestrator.Outcome
// @Failure 502 {object} orchestrator.Outcome
// @Failure 503 {object} orchestrator.Outcome
// @Router /sign [post]
func SignHandler(serverCtx *ServerContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, serverCtx.bodyLimit())

		var req SignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				serverCtx.recordError("too_large", "sign")
				c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: err.Error()})
				return
			}
			serverCtx.recordError("invalid_request", "sign")
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request"})
			return
		}
		if req.Root == "" {
			req.Root = DefaultRootElement
		}
		body, err := xmlconv.ToXML(req.Root, req.Document)
		if err != nil {
			serverCtx.Logger.Info("Document conversion failed",
				logging.F("remote_ip", c.ClientIP()),
				logging.F("error", err.Error()))
			serverCtx.recordError("invalid_document", "sign")
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}

		// A client hanging up does not abort the session; the signing timeout still applies.
		outcome, err := serverCtx.Orchestrator.SignSync(context.WithoutCancel(c.Request.Context()), body)
		if err != nil {
			serverCtx.recordError("rejected", "sign")
			c.JSON(requestError(err), ErrorResponse{Error: err.Error()})
			return
		}
		if outcome.OK() {
			serverCtx.markSigned(outcome.Time)
		}

		serverCtx.Logger.Info("API sign request",
			logging.F("remote_ip", c.ClientIP()),
			logging.F("request_id", outcome.RequestID),
			logging.F("status", string(outcome.Status)))

		c.JSON(statusCode(outcome.Status), outcome)
	}
}

// SignFileHandler godoc
// @Summary Create a detached signature
// @Description Hashes the raw request body with the digest of the selected certificate's
// @Description algorithm and returns the base64 encoded detached signature.
// @Tags Signing
// @Accept octet-stream
// @Produce json
// @Success 200 {object} DetachedSignatureResponse
// @Failure 400 {object} ErrorResponse "Empty body"
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Another sign request is in progress"
// @Failure 502 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /sign/file [post]
func SignFileHandler(serverCtx *ServerContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, serverCtx.bodyLimit()))
		if err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: err.Error()})
			return
		}

		sig, err := serverCtx.Orchestrator.SignFile(c.Request.Context(), data)
		if err != nil {
			var serr *orchestrator.SignError
			if errors.As(err, &serr) {
				serverCtx.recordError(string(serr.Status), "sign_file")
				c.JSON(statusCode(serr.Status), ErrorResponse{Error: serr.Detail, Status: string(serr.Status)})
				return
			}
			c.JSON(requestError(err), ErrorResponse{Error: err.Error()})
			return
		}

		serverCtx.Logger.Info("API detached sign request",
			logging.F("remote_ip", c.ClientIP()),
			logging.F("size", len(data)))

		c.JSON(http.StatusOK, DetachedSignatureResponse{Signature: base64.StdEncoding.EncodeToString(sig)})
	}
}

// LatestOutcomeHandler godoc
// @Summary Get the latest sign outcome
// @Tags Signing
// @Produce json
// @Success 200 {object} orchestrator.Outcome
// @Success 204 "No outcome yet"
// @Router /events/latest [get]
func LatestOutcomeHandler(serverCtx *ServerContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		outcome, ok := serverCtx.Orchestrator.Events().Latest()
		if !ok {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusOK, outcome)
	}
}

// TestModeHandler godoc
// @Summary Get test mode
// @Tags Settings
// @Produce json
// @Success 200 {object} TestModeResponse
// @Router /test-mode [get]
func TestModeHandler(serverCtx *ServerContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, TestModeResponse{TestMode: serverCtx.Orchestrator.TestMode()})
	}
}

// ToggleTestModeHandler godoc
// @Summary Toggle test mode
// @Description Flips test mode and persists the new value when a settings file is configured
// @Tags Settings
// @Produce json
// @Success 200 {object} TestModeResponse
// @Failure 500 {object} ErrorResponse "Settings could not be saved"
// @Router /test-mode/toggle [post]
func ToggleTestModeHandler(serverCtx *ServerContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		o := serverCtx.Orchestrator
		on := !o.TestMode()
		if serverCtx.Settings != nil {
			var err error
			if on, err = serverCtx.Settings.Toggle(); err != nil {
				serverCtx.Logger.Error("Failed to persist test mode",
					logging.F("error", err.Error()))
				serverCtx.recordError("settings_write", "toggle_test_mode")
				c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
				return
			}
		}
		o.SetTestMode(on)
		if serverCtx.Metrics != nil {
			serverCtx.Metrics.RecordTestMode(on)
		}

		serverCtx.Logger.Info("Test mode toggled",
			logging.F("remote_ip", c.ClientIP()),
			logging.F("test_mode", on))

		c.JSON(http.StatusOK, TestModeResponse{TestMode: on})
	}
}

// StatusHandler godoc
// @Summary Get server status
// @Description Returns the orchestrator state, test mode, uptime and the time of the last successful signature
// @Tags Status
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /status [get]
func StatusHandler(serverCtx *ServerContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		serverCtx.RLock()
		started, lastSigned := serverCtx.StartedAt, serverCtx.LastSigned
		serverCtx.RUnlock()

		resp := gin.H{
			"state":     serverCtx.Orchestrator.State().String(),
			"test_mode": serverCtx.Orchestrator.TestMode(),
			"uptime":    time.Since(started).Round(time.Second).String(),
		}
		if !lastSigned.IsZero() {
			resp["last_signed"] = lastSigned.Format(time.RFC3339)
		}
		c.JSON(http.StatusOK, resp)
	}
}

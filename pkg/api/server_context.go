package api

import (
	"sync"
	"time"

	"github.com/SUNET/go-esign/pkg/logging"
	"github.com/SUNET/go-esign/pkg/orchestrator"
	"github.com/SUNET/go-esign/pkg/settings"
)

// DefaultMaxRequestSize bounds request bodies when ServerContext.MaxRequestSize is unset.
const DefaultMaxRequestSize int64 = 10 << 20

// ServerContext holds the shared state for the API server.
// Handlers reach the sign orchestrator and the persisted settings through it.
//
// The ServerContext always has a configured Logger for API operations. If none is provided
// during initialization, a default logger is used.
type ServerContext struct {
	mu             sync.RWMutex               // Mutex for thread-safe access
	Orchestrator   *orchestrator.Orchestrator // Sign workflow (never nil once serving)
	Settings       *settings.Store            // Persisted test mode (optional)
	StartedAt      time.Time                  // Server start time
	LastSigned     time.Time                  // Time of the last successful sign request
	Logger         logging.Logger             // Logger for API operations (never nil)
	RateLimiter    *RateLimiter               // Rate limiter for API endpoints (optional)
	Metrics        *Metrics                   // Prometheus metrics (optional)
	MaxRequestSize int64                      // Request body limit in bytes
}

// NewServerContext creates a ServerContext around an orchestrator.
func NewServerContext(o *orchestrator.Orchestrator, logger logging.Logger) *ServerContext {
	return &ServerContext{
		Orchestrator:   o,
		StartedAt:      time.Now(),
		Logger:         logging.OrDefault(logger),
		MaxRequestSize: DefaultMaxRequestSize,
	}
}

// Lock locks the ServerContext for writing.
func (s *ServerContext) Lock() {
	s.mu.Lock()
}

// Unlock unlocks the ServerContext after writing.
func (s *ServerContext) Unlock() {
	s.mu.Unlock()
}

// RLock locks the ServerContext for reading.
func (s *ServerContext) RLock() {
	s.mu.RLock()
}

// RUnlock unlocks the ServerContext after reading.
func (s *ServerContext) RUnlock() {
	s.mu.RUnlock()
}

func (s *ServerContext) markSigned(t time.Time) {
	s.Lock()
	s.LastSigned = t
	s.Unlock()
}

func (s *ServerContext) bodyLimit() int64 {
	if s.MaxRequestSize > 0 {
		return s.MaxRequestSize
	}
	return DefaultMaxRequestSize
}

// WithLogger returns a copy of the ServerContext with the specified logger.
//
// Parameters:
//   - logger: The new logger to use for the ServerContext
//
// Returns:
//   - A new ServerContext instance with the same state but using the specified logger
func (s *ServerContext) WithLogger(logger logging.Logger) *ServerContext {
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	s.RLock()
	defer s.RUnlock()

	return &ServerContext{
		Orchestrator:   s.Orchestrator,
		Settings:       s.Settings,
		StartedAt:      s.StartedAt,
		LastSigned:     s.LastSigned,
		Logger:         logger,
		RateLimiter:    s.RateLimiter,
		Metrics:        s.Metrics,
		MaxRequestSize: s.MaxRequestSize,
	}
}

package certificate

import (
	"context"
	"sync"
	"time"

	"github.com/SUNET/go-esign/pkg/logging"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

const recordsKey = "records"

// EnumerateFunc lists the certificates available from a signing provider.
type EnumerateFunc func(ctx context.Context) ([]Record, error)

// Catalog holds the certificates from the most recent enumeration.
//
// Enumeration results are cached for a configurable time so that repeated
// listings do not hit the provider, and concurrent refreshes share a single
// provider call. The IsValid flag of a listed certificate survives cached
// refreshes and is reset only by a real enumeration.
type Catalog struct {
	mu     sync.RWMutex
	certs  []*Certificate
	cache  *gocache.Cache
	sf     singleflight.Group
	logger logging.Logger
}

// NewCatalog creates an empty catalog. A ttl of zero disables caching.
func NewCatalog(ttl time.Duration, logger logging.Logger) *Catalog {
	c := &Catalog{logger: logging.OrDefault(logger)}
	if ttl > 0 {
		c.cache = gocache.New(ttl, time.Minute)
	}
	return c
}

// Refresh enumerates certificates through enumerate unless a cached
// enumeration is still fresh. A failed enumeration leaves the catalog empty;
// the error is returned so the caller can report it.
func (c *Catalog) Refresh(ctx context.Context, enumerate EnumerateFunc) ([]Certificate, error) {
	if c.cache != nil {
		if _, ok := c.cache.Get(recordsKey); ok {
			return c.List(), nil
		}
	}

	// The leader stores the enumeration; callers sharing it read the catalog.
	_, err, _ := c.sf.Do(recordsKey, func() (any, error) {
		records, err := enumerate(ctx)
		if err != nil {
			c.Replace(nil)
			return nil, err
		}
		if c.cache != nil {
			c.cache.SetDefault(recordsKey, records)
		}
		c.Replace(NormalizeAll(records))
		c.logger.Debug("Certificates enumerated", logging.F("count", len(records)))
		return records, nil
	})
	if err != nil {
		c.logger.Warn("Certificate enumeration failed",
			logging.F("error", err.Error()))
		return []Certificate{}, err
	}
	return c.List(), nil
}

// Replace sets the catalog contents, discarding the previous certificates.
func (c *Catalog) Replace(certs []*Certificate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.certs = make([]*Certificate, 0, len(certs))
	for _, cert := range certs {
		if cert != nil {
			c.certs = append(c.certs, cert)
		}
	}
}

// Reset empties the catalog and drops any cached enumeration.
func (c *Catalog) Reset() {
	if c.cache != nil {
		c.cache.Delete(recordsKey)
	}
	c.Replace(nil)
}

// List returns copies of the catalog certificates in enumeration order.
func (c *Catalog) List() []Certificate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Certificate, 0, len(c.certs))
	for _, cert := range c.certs {
		out = append(out, *cert)
	}
	return out
}

// Find returns a copy of the certificate with the given thumbprint.
func (c *Catalog) Find(thumbprint string) (Certificate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, cert := range c.certs {
		if cert.Thumbprint == thumbprint {
			return *cert, true
		}
	}
	return Certificate{}, false
}

// Default returns the first certificate still flagged valid. Certificates
// invalidated by a failed signing attempt are never returned.
func (c *Catalog) Default() (Certificate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, cert := range c.certs {
		if cert.IsValid {
			return *cert, true
		}
	}
	return Certificate{}, false
}

// Invalidate clears the IsValid flag of a certificate. It reports whether
// the certificate is in the catalog.
func (c *Catalog) Invalidate(thumbprint string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cert := range c.certs {
		if cert.Thumbprint == thumbprint {
			cert.IsValid = false
			return true
		}
	}
	return false
}

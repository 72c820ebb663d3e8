// Package delivery hands signed documents to the user by saving them in a
// download directory.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/SUNET/go-esign/pkg/logging"
)

const maxCopies = 1000

// Directory saves delivered files into a directory. A name already taken is
// numbered the way browsers number repeated downloads: "signed (1).xml".
type Directory struct {
	dir    string
	logger logging.Logger

	mu   sync.Mutex
	last string
}

// NewDirectory creates a sink writing into dir.
func NewDirectory(dir string, logger logging.Logger) *Directory {
	return &Directory{dir: dir, logger: logging.OrDefault(logger)}
}

// Deliver writes data under name and returns once the file is complete.
func (d *Directory) Deliver(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) {
		return fmt.Errorf("invalid file name %q", name)
	}
	if err := os.MkdirAll(d.dir, 0750); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 0; i < maxCopies; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		path := filepath.Join(d.dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", candidate, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(path)
			return fmt.Errorf("failed to write %s: %w", candidate, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to write %s: %w", candidate, err)
		}
		d.last = path
		d.logger.Info("Document delivered", logging.F("path", path), logging.F("bytes", len(data)))
		return nil
	}
	return fmt.Errorf("too many copies of %s in %s", name, d.dir)
}

// Last returns the path of the most recently delivered file.
func (d *Directory) Last() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

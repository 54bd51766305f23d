// Package scratch provides uniquely named transient files that are removed
// when the caller is done with them.
package scratch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const filePrefix = "pdbstat-"

// Dir creates scratch files under a root directory. It holds no per-file
// state and is safe for concurrent use.
type Dir struct {
	root   string
	logger *zap.Logger
}

// Option configures a Dir.
type Option func(*Dir)

// WithLogger sets the logger used to report cleanup failures.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dir) {
		if l != nil {
			d.logger = l
		}
	}
}

// New returns a Dir rooted at root. An empty root means the OS temp dir.
func New(root string, opts ...Option) *Dir {
	if root == "" {
		root = os.TempDir()
	}
	d := &Dir{root: root, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Root returns the directory scratch files are created in.
func (d *Dir) Root() string { return d.root }

// WithFile writes data to a new file named pdbstat-<uuid><suffix>, calls fn
// with its path and removes the file before returning, whether fn succeeds,
// fails or panics. Failing to remove the file is logged and never replaces
// the result of fn.
func (d *Dir) WithFile(data []byte, suffix string, fn func(path string) error) error {
	if err := os.MkdirAll(d.root, 0o700); err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	path := filepath.Join(d.root, filePrefix+uuid.NewString()+suffix)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create scratch file: %w", err)
	}
	defer d.remove(path)

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write scratch file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close scratch file: %w", err)
	}
	return fn(path)
}

func (d *Dir) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		d.logger.Warn("Failed to remove scratch file", zap.String("path", path), zap.Error(err))
	}
}

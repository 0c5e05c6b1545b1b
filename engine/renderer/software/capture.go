package software

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/image/bmp"

	"github.com/spaghettifunk/novus/engine/core"
)

// capturer writes every Nth presented frame to a BMP file.
type capturer struct {
	dir    string
	every  uint64
	logger *core.Logger
}

func newCapturer(dir string, every uint64, logger *core.Logger) (*capturer, error) {
	if dir == "" {
		return nil, nil
	}
	if every == 0 {
		every = 1
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &capturer{dir: dir, every: every, logger: logger}, nil
}

func (c *capturer) maybeSave(frame uint64, t *texture) {
	if frame%c.every != 0 || t.color == nil {
		return
	}
	path := filepath.Join(c.dir, fmt.Sprintf("frame_%06d.bmp", frame))
	if err := c.save(path, t); err != nil {
		c.logger.Warn("frame capture failed", "path", path, "err", err)
		return
	}
	c.logger.Debug("frame captured", "path", path)
}

func (c *capturer) save(path string, t *texture) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := bmp.Encode(f, t.color); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

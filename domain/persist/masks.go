// Package persist writes finished masks and the metadata table.
package persist

import (
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/soocke/maskbot-go/domain/mask"
)

// Encoder writes one mask file and reports the bytes written.
type Encoder interface {
	Encode(path string, m *mask.Mask, level int) (int64, error)
}

// PNGEncoder writes 8-bit single-channel PNGs (255 inside, 0 outside).
type PNGEncoder struct{}

// Encode creates the parent directory if needed and writes m to path.
func (PNGEncoder) Encode(path string, m *mask.Mask, level int) (n int64, err error) {
	if m == nil {
		return 0, errors.New("nil mask")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, errors.Wrap(err, "create mask dir")
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()
	cw := &countingWriter{w: f}
	if err := imaging.Encode(cw, m.Gray(), imaging.PNG, imaging.PNGCompressionLevel(PNGLevel(level))); err != nil {
		return cw.n, errors.Wrapf(err, "encode %s", filepath.Base(path))
	}
	return cw.n, nil
}

// PNGLevel maps a 0-9 zlib-style level onto the levels image/png supports.
func PNGLevel(level int) png.CompressionLevel {
	switch {
	case level <= 0:
		return png.NoCompression
	case level <= 3:
		return png.BestSpeed
	case level <= 6:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

//go:build gocv

package persist

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/soocke/maskbot-go/domain/mask"
)

// DefaultEncoder returns the mask encoder compiled into this build.
func DefaultEncoder() Encoder { return OpenCVEncoder{} }

// OpenCVEncoder writes masks through OpenCV's imwrite, keeping the exact zlib
// level instead of the coarse image/png buckets.
type OpenCVEncoder struct{}

func (OpenCVEncoder) Encode(path string, m *mask.Mask, level int) (int64, error) {
	if m == nil {
		return 0, errors.New("nil mask")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, errors.Wrap(err, "create mask dir")
	}
	mat, err := gocv.NewMatFromBytes(m.H, m.W, gocv.MatTypeCV8UC1, m.Gray().Pix)
	if err != nil {
		return 0, errors.Wrap(err, "mask to mat")
	}
	defer mat.Close()
	if !gocv.IMWriteWithParams(path, mat, []int{int(gocv.IMWritePngCompression), level}) {
		return 0, errors.Errorf("imwrite %s failed", filepath.Base(path))
	}
	st, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

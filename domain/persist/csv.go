package persist

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/soocke/maskbot-go/domain/annotate"
)

// CSVHeader is the metadata table's column order.
var CSVHeader = []string{"image", "mask", "click_x", "click_y", "area", "bbox", "score"}

// WriteCSV replaces path with one row per record. The file is written next to
// path and renamed into place, so a failed save leaves the previous table intact.
func WriteCSV(path string, rows []annotate.Metadata) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create metadata dir")
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	w := csv.NewWriter(tmp)
	werr := w.Write(CSVHeader)
	for _, r := range rows {
		if werr != nil {
			break
		}
		werr = w.Write(FormatRow(r))
	}
	if werr == nil {
		w.Flush()
		werr = w.Error()
	}
	if err = multierr.Append(werr, tmp.Close()); err != nil {
		return errors.Wrap(err, "write metadata")
	}
	return os.Rename(tmp.Name(), path)
}

// FormatRow renders one record: click lists as "[1, 2]", the box as
// "(x, y, w, h)".
func FormatRow(r annotate.Metadata) []string {
	return []string{
		r.Image,
		r.Mask,
		formatInts(r.ClickX),
		formatInts(r.ClickY),
		strconv.Itoa(r.Area),
		FormatBBox(r),
		formatFloat(r.Score),
	}
}

// FormatBBox renders the bounding box in x/y/w/h form.
func FormatBBox(r annotate.Metadata) string {
	b := r.BBox
	return fmt.Sprintf("(%d, %d, %d, %d)", b.Min.X, b.Min.Y, b.Dx(), b.Dy())
}

func formatInts(v []int) string {
	return "[" + strings.Join(lo.Map(v, func(x int, _ int) string { return strconv.Itoa(x) }), ", ") + "]"
}

// formatFloat prints the shortest round-tripping form, always with a decimal point.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

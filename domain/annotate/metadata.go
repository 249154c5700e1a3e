package annotate

import (
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"github.com/soocke/maskbot-go/domain/mask"
)

// MaskName derives "<basename>_mask.<ext>" from an image filename.
func MaskName(imageName, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "png"
	}
	base := filepath.Base(imageName)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_mask." + ext
}

// Summarize combines the entries of one image into its queued record and metadata row.
// entries must be non-empty and share the w x h shape.
func Summarize(imageName, maskDir, ext string, w, h int, entries []Entry) (QueuedMask, Metadata, error) {
	combined, err := mask.Union(w, h, lo.Map(entries, func(e Entry, _ int) *mask.Mask { return e.Mask })...)
	if err != nil {
		return QueuedMask{}, Metadata{}, err
	}
	name := MaskName(imageName, ext)
	meta := Metadata{
		Image:  imageName,
		Mask:   name,
		ClickX: lo.Map(entries, func(e Entry, _ int) int { return e.X }),
		ClickY: lo.Map(entries, func(e Entry, _ int) int { return e.Y }),
		Area:   combined.Area(),
		BBox:   combined.BBox(),
		Score:  lo.MeanBy(entries, func(e Entry) float64 { return e.Score }),
	}
	return QueuedMask{Path: filepath.Join(maskDir, name), Mask: combined}, meta, nil
}

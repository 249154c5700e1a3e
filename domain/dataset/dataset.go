// Package dataset lists the images of an annotation session and decodes them on demand.
package dataset

import (
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

// DefaultExtensions are the image suffixes picked up when none are configured.
var DefaultExtensions = []string{".jpg", ".png"}

// Dir is an ordered, immutable listing of one image directory. Decoded images
// are kept in a small LRU so Retry does not hit the disk again.
type Dir struct {
	root   string
	names  []string
	cache  *lru.Cache[int, image.Image]
	logger *slog.Logger
}

// Open lists dir, keeping regular files whose lower-cased extension is in exts,
// sorted by name. cacheSize <= 0 disables the cache.
func Open(dir string, exts []string, cacheSize int, logger *slog.Logger) (*Dir, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "list images in %s", dir)
	}
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	allowed := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		allowed[e] = struct{}{}
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if _, ok := allowed[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	d := &Dir{root: dir, names: names, logger: logger}
	if cacheSize > 0 {
		c, err := lru.New[int, image.Image](cacheSize)
		if err != nil {
			return nil, errors.Wrap(err, "image cache")
		}
		d.cache = c
	}
	if logger != nil {
		logger.Info("image directory listed", "dir", dir, "images", len(names), "skipped", len(entries)-len(names))
	}
	return d, nil
}

// Len returns the number of images.
func (d *Dir) Len() int { return len(d.names) }

// Name returns the file name of image i.
func (d *Dir) Name(i int) string { return d.names[i] }

// Names returns a copy of every file name in session order.
func (d *Dir) Names() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// Path returns the full path of image i.
func (d *Dir) Path(i int) string { return filepath.Join(d.root, d.names[i]) }

// Load decodes image i, applying EXIF orientation.
func (d *Dir) Load(i int) (image.Image, error) {
	if i < 0 || i >= len(d.names) {
		return nil, errors.Errorf("image index %d out of range [0,%d)", i, len(d.names))
	}
	if d.cache != nil {
		if img, ok := d.cache.Get(i); ok {
			return img, nil
		}
	}
	img, err := imaging.Open(d.Path(i), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", d.names[i])
	}
	if d.cache != nil {
		d.cache.Add(i, img)
	}
	return img, nil
}

// Purge drops cached decodes.
func (d *Dir) Purge() {
	if d.cache != nil {
		d.cache.Purge()
	}
}

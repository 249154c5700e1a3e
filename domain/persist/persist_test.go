package persist

import (
	"bytes"
	"encoding/csv"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/maskbot-go/domain/annotate"
	"github.com/soocke/maskbot-go/domain/mask"
)

func sampleRows() []annotate.Metadata {
	return []annotate.Metadata{
		{Image: "a.png", Mask: "a_mask.png", ClickX: []int{1, 2}, ClickY: []int{3, 4}, Area: 12, BBox: image.Rect(1, 2, 5, 6), Score: 0.7},
		{Image: "c.jpg", Mask: "c_mask.png", ClickX: []int{9}, ClickY: []int{0}, Area: 1, BBox: image.Rect(9, 0, 10, 1), Score: 1},
	}
}

func TestPNGEncoderWritesBinaryMask(t *testing.T) {
	m := mask.New(4, 3)
	m.Set(1, 1, true)
	m.Set(3, 2, true)
	path := filepath.Join(t.TempDir(), "nested", "a_mask.png")

	n, err := PNGEncoder{}.Encode(path, m, 3)
	require.NoError(t, err)
	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, st.Size(), n)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.True(t, mask.FromImage(img).Equal(m))
}

func TestPNGLevel(t *testing.T) {
	assert.Equal(t, png.NoCompression, PNGLevel(0))
	assert.Equal(t, png.BestSpeed, PNGLevel(3))
	assert.Equal(t, png.DefaultCompression, PNGLevel(5))
	assert.Equal(t, png.BestCompression, PNGLevel(9))
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.csv")
	require.NoError(t, WriteCSV(path, sampleRows()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, CSVHeader, records[0])
	assert.Equal(t, []string{"a.png", "a_mask.png", "[1, 2]", "[3, 4]", "12", "(1, 2, 4, 4)", "0.7"}, records[1])
	assert.Equal(t, "1.0", records[2][6])
}

func TestWriteCSVEmptyTableHasHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.csv")
	require.NoError(t, WriteCSV(path, nil))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "image,mask,click_x,click_y,area,bbox,score\n", string(raw))
}

func TestWriteCSVLeavesNoTempOnFailure(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "metadata.csv")
	require.NoError(t, os.Mkdir(target, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "keep"), nil, 0o644))

	assert.Error(t, WriteCSV(target, sampleRows()))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStoreReplace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.db")
	s, err := OpenStore(path, "sess")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Replace(sampleRows()))
	require.NoError(t, s.Replace(sampleRows()))
	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	names, err := s.Images()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png", "c.jpg"}, names)

	other, err := OpenStore(path, "other")
	require.NoError(t, err)
	defer other.Close()
	n, err = other.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

type failingEncoder struct{}

func (failingEncoder) Encode(string, *mask.Mask, int) (int64, error) {
	return 0, os.ErrPermission
}

func TestStoreWrapsFailures(t *testing.T) {
	_, err := OpenStore(filepath.Join(t.TempDir(), "missing", "m.db"), "sess")
	assert.ErrorContains(t, err, "migrate database")

	s, err := OpenStore(filepath.Join(t.TempDir(), "m.db"), "sess")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.ErrorContains(t, s.Replace(sampleRows()), "begin transaction")
}

func TestSinkWrapsFailures(t *testing.T) {
	dir := t.TempDir()
	s := NewSink(Options{Encoder: failingEncoder{}, CSVPath: filepath.Join(dir, "m.csv")})
	err := s.WriteMask(filepath.Join(dir, "x_mask.png"), mask.New(1, 1))
	var pe *annotate.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Equal(t, 0, s.Stats().Masks)
}

func TestSinkWritesEverything(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStore(filepath.Join(dir, "m.db"), "s1")
	require.NoError(t, err)
	s := NewSink(Options{CSVPath: filepath.Join(dir, "m.csv"), Store: store, Compression: 3})
	defer s.Close()

	m := mask.New(2, 2)
	m.Set(0, 0, true)
	require.NoError(t, s.WriteMask(filepath.Join(dir, "masks", "a_mask.png"), m))
	require.NoError(t, s.WriteMetadata(sampleRows()))

	st := s.Stats()
	assert.Equal(t, 1, st.Masks)
	assert.Positive(t, st.Bytes)
	assert.Equal(t, 2, st.Rows)
	assert.FileExists(t, filepath.Join(dir, "m.csv"))
	n, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	out := WriteSummary(&buf, sampleRows(), Stats{Masks: 2, Bytes: 2048, Rows: 2})
	assert.Contains(t, out, "a_mask.png")
	assert.Contains(t, out, "(1, 2, 4, 4)")
	assert.Contains(t, strings.ToUpper(out), "2 IMAGES")
	assert.Contains(t, buf.String(), "c.jpg")
}

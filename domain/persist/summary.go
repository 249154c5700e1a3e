package persist

import (
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"

	"github.com/soocke/maskbot-go/domain/annotate"
)

// WriteSummary prints the saved metadata as a table followed by totals.
func WriteSummary(w io.Writer, rows []annotate.Metadata, st Stats) string {
	t := table.NewWriter()
	if w != nil {
		t.SetOutputMirror(w)
	}
	t.SetStyle(table.StyleLight)
	t.SetTitle("Saved masks")
	t.AppendHeader(table.Row{"#", "Image", "Mask", "Clicks", "Area", "BBox", "Score"})
	for i, r := range rows {
		t.AppendRow(table.Row{i + 1, r.Image, r.Mask, len(r.ClickX), humanize.Comma(int64(r.Area)), FormatBBox(r), formatScore(r.Score)})
	}
	totalArea := lo.SumBy(rows, func(r annotate.Metadata) int { return r.Area })
	mean := 0.0
	if len(rows) > 0 {
		mean = lo.MeanBy(rows, func(r annotate.Metadata) float64 { return r.Score })
	}
	t.AppendFooter(table.Row{"", humanize.Comma(int64(len(rows))) + " images", humanize.Bytes(uint64(st.Bytes)), "", humanize.Comma(int64(totalArea)), "", formatScore(mean)})
	return t.Render()
}

func formatScore(s float64) string { return humanize.FtoaWithDigits(s, 3) }

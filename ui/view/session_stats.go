package view

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/soocke/maskbot-go/ui/theme"

	//lint:ignore ST1001 Dot import for concise Tk widget DSL.
	. "modernc.org/tk9.0"
)

// SessionStats shows time on the current image, total annotating time,
// throughput and oracle round-trip statistics.
type SessionStats interface {
	SetSession(image, total time.Duration, perMinute float64)
	SetOracle(queries, failed int, last, mean time.Duration)
}

type sessionStats struct {
	imageLbl  *LabelWidget
	totalLbl  *LabelWidget
	rateLbl   *LabelWidget
	oracleLbl *LabelWidget
}

// NewSessionStats grids four labels into parent starting at (row, startCol).
func NewSessionStats(parent *FrameWidget, row, startCol int) SessionStats {
	s := &sessionStats{
		imageLbl:  Label(Width(14)),
		totalLbl:  Label(Width(14)),
		rateLbl:   Label(Width(16)),
		oracleLbl: Label(Width(34), Foreground(theme.CurrentPalette().TextMuted)),
	}
	for i, l := range []*LabelWidget{s.imageLbl, s.totalLbl, s.rateLbl, s.oracleLbl} {
		if parent != nil {
			Grid(l, In(parent), Row(row), Column(startCol+i), Sticky("w"), Padx("0.2m"))
		} else {
			Grid(l, Row(row), Column(startCol+i), Sticky("w"), Padx("0.2m"))
		}
	}
	s.SetSession(0, 0, 0)
	s.SetOracle(0, 0, 0, 0)
	return s
}

func (s *sessionStats) SetSession(image, total time.Duration, perMinute float64) {
	if s == nil || s.imageLbl == nil {
		return
	}
	s.imageLbl.Configure(Txt("Image: " + clock(image)))
	s.totalLbl.Configure(Txt("Total: " + clock(total)))
	s.rateLbl.Configure(Txt(humanize.FtoaWithDigits(perMinute, 1) + " img/min"))
}

func (s *sessionStats) SetOracle(queries, failed int, last, mean time.Duration) {
	if s == nil || s.oracleLbl == nil {
		return
	}
	s.oracleLbl.Configure(Txt(oracleText(queries, failed, last, mean)))
}

func oracleText(queries, failed int, last, mean time.Duration) string {
	if queries == 0 {
		return "Oracle: no queries"
	}
	text := fmt.Sprintf("Oracle: %d queries, avg %v, last %v", queries,
		mean.Round(time.Millisecond), last.Round(time.Millisecond))
	if failed > 0 {
		text += fmt.Sprintf(", %d failed", failed)
	}
	return text
}

func clock(d time.Duration) string {
	seconds := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

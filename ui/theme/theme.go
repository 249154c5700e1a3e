package theme

// Palette and ttk styles for the annotation window.

import (
	"log/slog"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

const (
	ColorBg        = "#f7f9fb"
	ColorSurface   = "#ffffff"
	ColorBorder    = "#d0d7de"
	ColorPrimary   = "#2563eb"
	ColorDanger    = "#dc2626"
	ColorWarn      = "#d97706"
	ColorAccent    = "#10b981"
	ColorText      = "#1e293b"
	ColorTextMuted = "#64748b"
)

// PaletteSnapshot represents the resolved window colors.
type PaletteSnapshot struct {
	AppBg     string
	Surface   string
	Primary   string
	Danger    string
	Warn      string
	Accent    string
	Text      string
	TextMuted string
}

// CurrentPalette returns the window colors.
func CurrentPalette() PaletteSnapshot {
	return PaletteSnapshot{
		AppBg:     ColorBg,
		Surface:   ColorSurface,
		Primary:   ColorPrimary,
		Danger:    ColorDanger,
		Warn:      ColorWarn,
		Accent:    ColorAccent,
		Text:      ColorText,
		TextMuted: ColorTextMuted,
	}
}

const (
	StylePrimaryButton = "primary.TButton"
	StyleDangerButton  = "danger.TButton"
	StyleStateLabel    = "state.TLabel"
	StyleStatusInfo    = "info.TLabel"
	StyleStatusWarn    = "warn.TLabel"
	StyleStatusError   = "error.TLabel"
)

// InitStyles applies the window styles.
func InitStyles() { applyStyles() }

// StatusStyle picks the status line style for a message level.
func StatusStyle(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return StyleStatusError
	case level >= slog.LevelWarn:
		return StyleStatusWarn
	default:
		return StyleStatusInfo
	}
}

func applyStyles() {
	p := CurrentPalette()
	_ = ActivateTheme("azure light")
	App.Configure(Background(p.AppBg))

	StyleConfigure(StylePrimaryButton,
		Background(p.Primary), Foreground("white"),
		Padding("4p 3p"), Borderwidth(1), Relief("ridge"))
	StyleConfigure(StyleDangerButton,
		Background(p.Danger), Foreground("white"),
		Padding("4p 3p"), Borderwidth(1), Relief("ridge"))
	StyleConfigure(StyleStateLabel,
		Foreground("white"), Background(p.Accent),
		Padding("4p 2p"), Borderwidth(1), Relief("groove"))

	StyleConfigure(StyleStatusInfo, Foreground(p.Text), Background(p.Surface), Padding("2p 1p"))
	StyleConfigure(StyleStatusWarn, Foreground(p.Warn), Background(p.Surface), Padding("2p 1p"))
	StyleConfigure(StyleStatusError, Foreground(p.Danger), Background(p.Surface), Padding("2p 1p"))
}

package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bamsammich/blockshot/internal/config"
)

// Catppuccin Mocha palette, mutable so config can override.
var (
	ColorGreen  = lipgloss.Color("#a6e3a1")
	ColorRed    = lipgloss.Color("#f38ba8")
	ColorYellow = lipgloss.Color("#f9e2af")
	ColorMauve  = lipgloss.Color("#cba6f7")
	ColorMuted  = lipgloss.Color("#5a6278")
	ColorBright = lipgloss.Color("#cdd6f4")
)

// Pre-built styles, rebuilt by rebuildStyles() after color changes.
var (
	styleHeader lipgloss.Style
	styleLabel  lipgloss.Style
	styleOK     lipgloss.Style
	styleFailed lipgloss.Style
	styleWarn   lipgloss.Style
	styleMuted  lipgloss.Style
)

func init() {
	rebuildStyles()
}

func rebuildStyles() {
	styleHeader = lipgloss.NewStyle().Bold(true).Foreground(ColorBright)
	styleLabel = lipgloss.NewStyle().Bold(true).Foreground(ColorMauve)
	styleOK = lipgloss.NewStyle().Foreground(ColorGreen)
	styleFailed = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
	styleWarn = lipgloss.NewStyle().Foreground(ColorYellow)
	styleMuted = lipgloss.NewStyle().Foreground(ColorMuted)
}

// ApplyTheme overrides colors from a config ThemeConfig and rebuilds all styles.
func ApplyTheme(tc config.ThemeConfig) {
	if tc.Green != nil {
		ColorGreen = lipgloss.Color(*tc.Green)
	}
	if tc.Red != nil {
		ColorRed = lipgloss.Color(*tc.Red)
	}
	if tc.Yellow != nil {
		ColorYellow = lipgloss.Color(*tc.Yellow)
	}
	if tc.Mauve != nil {
		ColorMauve = lipgloss.Color(*tc.Mauve)
	}
	if tc.Muted != nil {
		ColorMuted = lipgloss.Color(*tc.Muted)
	}
	if tc.Bright != nil {
		ColorBright = lipgloss.Color(*tc.Bright)
	}
	rebuildStyles()
}

// Styled text for the status, verify and history reports. Colors are
// dropped automatically when stdout is not a terminal.

func Header(s string) string { return styleHeader.Render(s) }
func Label(s string) string  { return styleLabel.Render(s) }
func OK(s string) string     { return styleOK.Render(s) }
func Failed(s string) string { return styleFailed.Render(s) }
func Warn(s string) string   { return styleWarn.Render(s) }
func Muted(s string) string  { return styleMuted.Render(s) }

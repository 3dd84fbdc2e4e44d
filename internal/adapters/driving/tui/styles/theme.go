// Package styles holds the colour palettes and lipgloss styles of the TUI.
package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme is a colour palette.
type Theme struct {
	Name       string
	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Background lipgloss.Color
	Foreground lipgloss.Color
	Muted      lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
	Border     lipgloss.Color
	Bar        lipgloss.Color
}

// DarkTheme is the default palette: amber ink on a dark page.
func DarkTheme() *Theme {
	return &Theme{
		Name:       "dark",
		Primary:    "#B45309",
		Secondary:  "#0EA5E9",
		Background: "#1E1E2E",
		Foreground: "#CDD6F4",
		Muted:      "#6C7086",
		Success:    "#A6E3A1",
		Warning:    "#F9E2AF",
		Error:      "#F38BA8",
		Border:     "#45475A",
		Bar:        "#181825",
	}
}

// LightTheme suits terminals with a light background.
func LightTheme() *Theme {
	return &Theme{
		Name:       "light",
		Primary:    "#92400E",
		Secondary:  "#0369A1",
		Background: "#FDFBF7",
		Foreground: "#1F2937",
		Muted:      "#6B7280",
		Success:    "#15803D",
		Warning:    "#A16207",
		Error:      "#B91C1C",
		Border:     "#D6D3D1",
		Bar:        "#F5F5F4",
	}
}

// DefaultTheme returns the dark palette.
func DefaultTheme() *Theme { return DarkTheme() }

// ThemeByName returns the named palette, falling back to the default.
func ThemeByName(name string) *Theme {
	if strings.EqualFold(name, "light") {
		return LightTheme()
	}
	return DefaultTheme()
}

// Styles are the lipgloss styles derived from a theme.
type Styles struct {
	theme *Theme

	Title      lipgloss.Style
	Subtitle   lipgloss.Style
	Normal     lipgloss.Style
	Muted      lipgloss.Style
	Selected   lipgloss.Style
	Error      lipgloss.Style
	Success    lipgloss.Style
	Warning    lipgloss.Style
	InputField lipgloss.Style
	StatusBar  lipgloss.Style
	Help       lipgloss.Style
	Border     lipgloss.Style

	// Answer sets a generated answer apart with a left rule.
	Answer lipgloss.Style

	// Citation colours the numbered source list.
	Citation lipgloss.Style
}

// NewStyles derives styles from theme, or from the default theme when nil.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }
	rounded := lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(theme.Border)

	return &Styles{
		theme:      theme,
		Title:      fg(theme.Primary).Bold(true),
		Subtitle:   fg(theme.Secondary).Bold(true),
		Normal:     fg(theme.Foreground),
		Muted:      fg(theme.Muted),
		Selected:   fg(theme.Foreground).Background(theme.Primary).Bold(true),
		Error:      fg(theme.Error),
		Success:    fg(theme.Success),
		Warning:    fg(theme.Warning),
		InputField: rounded.Padding(0, 1),
		StatusBar:  fg(theme.Muted).Background(theme.Bar).Padding(0, 1),
		Help:       fg(theme.Muted),
		Border:     rounded,
		Answer: fg(theme.Foreground).
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(theme.Primary).
			PaddingLeft(1),
		Citation: fg(theme.Secondary),
	}
}

// DefaultStyles returns styles for the default theme.
func DefaultStyles() *Styles { return NewStyles(DefaultTheme()) }

// Theme returns the palette the styles were built from.
func (s *Styles) Theme() *Theme { return s.theme }

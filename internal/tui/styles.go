package tui

import "github.com/charmbracelet/lipgloss"

// Catppuccin Mocha
var (
	colorSurface1  = lipgloss.Color("#45475A")
	colorText      = lipgloss.Color("#CDD6F4")
	colorSubtext   = lipgloss.Color("#A6ADC8")
	colorDim       = lipgloss.Color("#585B70")
	colorAccent    = lipgloss.Color("#CBA6F7")
	colorBlue      = lipgloss.Color("#89B4FA")
	colorSapphire  = lipgloss.Color("#74C7EC")
	colorGreen     = lipgloss.Color("#A6E3A1")
	colorPeach     = lipgloss.Color("#FAB387")
	colorTeal      = lipgloss.Color("#94E2D5")
	colorRosewater = lipgloss.Color("#F5E0DC")
	colorLavender  = lipgloss.Color("#B4BEFE")
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorLavender)

	headerBrandStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorAccent)

	sectionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorBlue)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(colorSapphire).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorSubtext)

	valueStyle = lipgloss.NewStyle().
			Foreground(colorText)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	modelStyle = lipgloss.NewStyle().
			Foreground(colorTeal)

	inputStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	outputStyle = lipgloss.NewStyle().
			Foreground(colorPeach)

	metricValueStyle = lipgloss.NewStyle().
				Foreground(colorRosewater).
				Bold(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorSurface1).
			Padding(0, 1)
)

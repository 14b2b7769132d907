package ui

import "github.com/charmbracelet/lipgloss"

// Colors.
var (
	normalDim     = lipgloss.AdaptiveColor{Light: "#A49FA5", Dark: "#777777"}
	gray          = lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}
	darkGray      = lipgloss.AdaptiveColor{Light: "#DDDADA", Dark: "#3C3C3C"}
	cream         = lipgloss.AdaptiveColor{Light: "#FFFDF5", Dark: "#FFFDF5"}
	yellowGreen   = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#ECFD65"}
	fuchsia       = lipgloss.AdaptiveColor{Light: "#EE6FF8", Dark: "#EE6FF8"}
	green         = lipgloss.Color("#04B575")
	red           = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}
	mintGreen     = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen     = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}
	statusBarBg   = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}
	statusBarNote = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
)

var (
	grayFg      = lipgloss.NewStyle().Foreground(gray).Render
	fuchsiaFg   = lipgloss.NewStyle().Foreground(fuchsia).Render
	dimNormalFg = lipgloss.NewStyle().Foreground(normalDim).Render

	logoStyle = lipgloss.NewStyle().
			Foreground(cream).
			Background(green).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(statusBarNote).
			Background(statusBarBg)

	statusBarPageStyle = lipgloss.NewStyle().
				Foreground(yellowGreen).
				Background(darkGray).
				Padding(0, 1)

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen)

	statusBarWarningStyle = lipgloss.NewStyle().
				Foreground(cream).
				Background(red).
				Padding(0, 1)
)

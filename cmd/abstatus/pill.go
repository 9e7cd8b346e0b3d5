package main

import (
	"github.com/charmbracelet/lipgloss"

	"abstatus/overlay"
)

var pillBase = lipgloss.NewStyle().Padding(0, 1).Bold(true)

// pillStyles mirror the widget's colours in the terminal.
var pillStyles = map[overlay.State]lipgloss.Style{
	overlay.StateLoading:  pillBase.Foreground(lipgloss.Color("#666666")).Background(lipgloss.Color("#e8e8e8")),
	overlay.StateActive:   pillBase.Foreground(lipgloss.Color("#047857")).Background(lipgloss.Color("#d1fae5")),
	overlay.StateInactive: pillBase.Foreground(lipgloss.Color("#b91c1c")).Background(lipgloss.Color("#fee2e2")),
	overlay.StateError:    pillBase.Foreground(lipgloss.Color("#b91c1c")).Background(lipgloss.Color("#fee2e2")).Italic(true),
}

var idStyle = lipgloss.NewStyle().Width(40)

func renderPill(id string, s overlay.State) string {
	return lipgloss.JoinHorizontal(lipgloss.Center, idStyle.Render(id), pillStyles[s].Render(s.Label()))
}

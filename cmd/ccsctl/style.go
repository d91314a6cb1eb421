package main

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/danielpatrickdp/ccs-cadence/internal/mode"
)

var (
	colorQuiet     = lipgloss.Color("#008F11")
	colorUncertain = lipgloss.Color("#FFAA00")
	colorActive    = lipgloss.Color("#00FF41")
	colorFallback  = lipgloss.Color("#FF3300")
	colorDim       = lipgloss.Color("#666666")
)

var (
	styleHeader = lipgloss.NewStyle().Bold(true)
	stylePass   = lipgloss.NewStyle().Foreground(colorActive)
	styleFail   = lipgloss.NewStyle().Foreground(colorFallback).Bold(true)
	styleDim    = lipgloss.NewStyle().Foreground(colorDim)
)

func modeStyle(m mode.Mode) lipgloss.Style {
	switch m {
	case mode.Quiet:
		return lipgloss.NewStyle().Foreground(colorQuiet)
	case mode.Uncertain:
		return lipgloss.NewStyle().Foreground(colorUncertain)
	case mode.Active:
		return lipgloss.NewStyle().Foreground(colorActive).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(colorFallback).Bold(true)
	}
}

// renderMode pads before styling so ANSI codes do not break alignment.
func renderMode(m mode.Mode, width int) string {
	return modeStyle(m).Width(width).Render(m.String())
}

// renderModeName styles a stored mode name; unknown names render dim.
func renderModeName(name string, width int) string {
	if m, ok := mode.Parse(name); ok {
		return renderMode(m, width)
	}
	return styleDim.Width(width).Render(name)
}

func renderVerdict(ok bool) string {
	if ok {
		return stylePass.Render("ok")
	}
	return styleFail.Render("FAIL")
}

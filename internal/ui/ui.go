// Package ui holds the CLI output styles.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// RenderAccent highlights a primary value (task text, IDs).
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderDim renders secondary metadata (timestamps, notes).
func RenderDim(s string) string { return dimStyle.Render(s) }

// RenderDone renders completed-state markers.
func RenderDone(s string) string { return doneStyle.Render(s) }

// RenderWarn renders warnings and tombstone markers.
func RenderWarn(s string) string { return warnStyle.Render(s) }

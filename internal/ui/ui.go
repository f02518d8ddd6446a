// Package ui holds the terminal styles shared by all commands.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// RenderPass renders a success marker or message.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn renders a warning.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderErr renders an error message.
func RenderErr(s string) string { return errStyle.Render(s) }

// RenderAccent renders identifiers like tags and room numbers.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderFaint renders secondary detail.
func RenderFaint(s string) string { return faintStyle.Render(s) }

// RenderHeader renders a section heading.
func RenderHeader(s string) string { return headerStyle.Render(s) }

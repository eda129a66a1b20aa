// Package ui holds the terminal styling shared by the CLI commands.
package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Semantic colors for status indication, kept to plain ANSI codes so the
// output degrades gracefully on basic terminals.
const (
	ColorSuccess lipgloss.Color = "2" // Green
	ColorError   lipgloss.Color = "1" // Red
	ColorWarning lipgloss.Color = "3" // Yellow
	ColorInfo    lipgloss.Color = "6" // Cyan
	ColorMuted   lipgloss.Color = "8" // Gray (bright black)
)

var (
	successStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	errorStyle   = lipgloss.NewStyle().Foreground(ColorError)
	warningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	infoStyle    = lipgloss.NewStyle().Foreground(ColorInfo)
	mutedStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
	commandStyle = lipgloss.NewStyle().Bold(true)
)

// Success renders s in the success color with a leading check mark.
func Success(s string) string {
	return successStyle.Render("✓ " + s)
}

// Failure renders s in the error color with a leading cross.
func Failure(s string) string {
	return errorStyle.Render("✗ " + s)
}

// Warning renders s in the warning color.
func Warning(s string) string {
	return warningStyle.Render("⚠ " + s)
}

// Info renders s in the info color.
func Info(s string) string {
	return infoStyle.Render(s)
}

// Muted renders s dimmed, for secondary detail.
func Muted(s string) string {
	return mutedStyle.Render(s)
}

// Command renders a shell command for display.
func Command(s string) string {
	return commandStyle.Render("$ " + s)
}

// StepLabel renders the step counter shown before each proposed command.
func StepLabel(step int) string {
	return mutedStyle.Render(fmt.Sprintf("[step %d]", step))
}

// TargetLabel renders a target name prefix for batch output lines.
func TargetLabel(name string) string {
	return infoStyle.Render("[" + name + "]")
}

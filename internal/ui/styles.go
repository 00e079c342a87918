package ui

import (
	"fmt"

	"github.com/alfredjeanlab/journeys/internal/model"
)

// ANSI256 color codes.
const (
	colorAccent  = 74  // blue
	colorMuted   = 245 // medium gray
	colorOK      = 114 // green
	colorWarn    = 179 // amber
	colorFailure = 167 // red
)

// Styler renders text with ANSI colors when enabled.
type Styler struct {
	Color bool
}

// NewStyler returns a Styler; pass ShouldUseColor(os.Stdout) for CLI output.
func NewStyler(color bool) Styler {
	return Styler{Color: color}
}

func (s Styler) paint(code int, text string) string {
	if !s.Color {
		return text
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, text)
}

// Accent renders headers and ids.
func (s Styler) Accent(text string) string { return s.paint(colorAccent, text) }

// Muted renders secondary detail.
func (s Styler) Muted(text string) string { return s.paint(colorMuted, text) }

// StepType colors the well-known step types; other tags are left plain.
func (s Styler) StepType(t model.StepType) string {
	switch t {
	case model.StepEntrance:
		return s.paint(colorAccent, t.String())
	case model.StepExit:
		return s.paint(colorMuted, t.String())
	default:
		return t.String()
	}
}

// Status colors a progression status tag.
func (s Styler) Status(t model.UserStepType) string {
	switch t {
	case model.UserStepCompleted:
		return s.paint(colorOK, string(t))
	case model.UserStepPending, model.UserStepDelay:
		return s.paint(colorWarn, string(t))
	case model.UserStepError:
		return s.paint(colorFailure, string(t))
	default:
		return string(t)
	}
}

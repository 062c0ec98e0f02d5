// Package tui holds the interactive and styled terminal surfaces of xgrab.
package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/1broseidon/xgrab/internal/config"
	"github.com/1broseidon/xgrab/internal/display"
)

// ErrCancelled is returned when the picker is closed without a selection.
var ErrCancelled = errors.New("target selection cancelled")

const (
	choiceFull          = "full"
	choiceWindow        = "window"
	choiceMonitorPrefix = "monitor:"
)

// PickTarget asks the user which region to capture and stores the answer in c.
func PickTarget(c *config.CaptureConfig, monitors []display.Monitor) error {
	choice := currentChoice(*c)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("target").
				Title("Capture target").
				Options(targetOptions(monitors)...).
				Value(&choice),
		),
	).WithShowHelp(true)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrCancelled
		}
		return fmt.Errorf("target picker: %w", err)
	}
	return applyChoice(c, choice)
}

func targetOptions(monitors []display.Monitor) []huh.Option[string] {
	opts := make([]huh.Option[string], 0, len(monitors)+2)
	opts = append(opts, huh.NewOption("Full screen", choiceFull))
	for _, m := range monitors {
		opts = append(opts, huh.NewOption(monitorLabel(m), choiceMonitorPrefix+m.Name))
	}
	opts = append(opts, huh.NewOption("Focused window", choiceWindow))
	return opts
}

func monitorLabel(m display.Monitor) string {
	label := fmt.Sprintf("%s  %dx%d+%d+%d", m.Name, m.Width, m.Height, m.X, m.Y)
	if m.Primary {
		label += "  (primary)"
	}
	return label
}

func currentChoice(c config.CaptureConfig) string {
	switch c.Mode {
	case config.CaptureModeWindow:
		return choiceWindow
	case config.CaptureModeMonitor:
		if c.Monitor != "" {
			return choiceMonitorPrefix + c.Monitor
		}
	}
	return choiceFull
}

func applyChoice(c *config.CaptureConfig, choice string) error {
	switch {
	case choice == choiceFull:
		c.Mode = config.CaptureModeFull
		c.Monitor = ""
	case choice == choiceWindow:
		c.Mode = config.CaptureModeWindow
		c.Monitor = ""
	case strings.HasPrefix(choice, choiceMonitorPrefix):
		c.Mode = config.CaptureModeMonitor
		c.Monitor = strings.TrimPrefix(choice, choiceMonitorPrefix)
	default:
		return fmt.Errorf("unknown capture target %q", choice)
	}
	return nil
}

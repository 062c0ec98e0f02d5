package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/xgrab/internal/display"
)

var (
	nameStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	geomStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	primaryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// RenderMonitors writes one line per monitor. styled adds terminal colors.
func RenderMonitors(w io.Writer, monitors []display.Monitor, styled bool) error {
	if len(monitors) == 0 {
		_, err := fmt.Fprintln(w, "no monitors")
		return err
	}
	for _, m := range monitors {
		name := fmt.Sprintf("%-12s", m.Name)
		geom := fmt.Sprintf("%dx%d+%d+%d", m.Width, m.Height, m.X, m.Y)
		primary := ""
		if m.Primary {
			primary = " primary"
		}
		if styled {
			name = nameStyle.Render(name)
			geom = geomStyle.Render(geom)
			if primary != "" {
				primary = " " + primaryStyle.Render("● primary")
			}
		}
		if _, err := fmt.Fprintf(w, "%s %s%s\n", name, geom, primary); err != nil {
			return err
		}
	}
	return nil
}

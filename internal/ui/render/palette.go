// Package render paints text in the app's light or dark palette, degrading to the colors the
// terminal supports.
package render

import (
	"strings"

	"github.com/muesli/termenv"

	"github.com/Overland-East-Bay/car-rental-client/internal/domain"
)

// Palette is the set of named colors the screens use, as #rrggbb.
type Palette struct {
	Background      string
	Surface         string
	Card            string
	Text            string
	TextSecondary   string
	Border          string
	Primary         string
	Error           string
	Success         string
	InputBackground string
	ButtonPrimary   string
	ButtonText      string
}

var (
	Light = Palette{
		Background:      "#f5f5f5",
		Surface:         "#ffffff",
		Card:            "#ffffff",
		Text:            "#222222",
		TextSecondary:   "#666666",
		Border:          "#e0e0e0",
		Primary:         "#007AFF",
		Error:           "#FF3B30",
		Success:         "#34C759",
		InputBackground: "#fafafa",
		ButtonPrimary:   "#007AFF",
		ButtonText:      "#ffffff",
	}
	Dark = Palette{
		Background:      "#000000",
		Surface:         "#1c1c1e",
		Card:            "#2c2c2e",
		Text:            "#ffffff",
		TextSecondary:   "#98989d",
		Border:          "#38383a",
		Primary:         "#0a84ff",
		Error:           "#ff453a",
		Success:         "#32d74b",
		InputBackground: "#1c1c1e",
		ButtonPrimary:   "#0a84ff",
		ButtonText:      "#ffffff",
	}
)

// PaletteFor returns Dark for the dark scheme and Light otherwise.
func PaletteFor(s domain.ColorScheme) Palette {
	if s == domain.SchemeDark {
		return Dark
	}
	return Light
}

// Painter wraps text in escapes for a palette at a termenv color profile. The Ascii profile
// returns text unchanged.
type Painter struct {
	Palette Palette
	Profile termenv.Profile
}

func NewPainter(s domain.ColorScheme, profile termenv.Profile) Painter {
	return Painter{Palette: PaletteFor(s), Profile: profile}
}

// ColorOutput returns out when it should receive escapes, or nil when NO_COLOR is set or out
// cannot show color (not a terminal, dumb terminal).
func ColorOutput(out *termenv.Output, getenv func(string) string) *termenv.Output {
	if out == nil || out.Profile == termenv.Ascii {
		return nil
	}
	if getenv != nil && getenv("NO_COLOR") != "" {
		return nil
	}
	return out
}

// Fg paints s in the hex color.
func (p Painter) Fg(hex, s string) string {
	if p.Profile == termenv.Ascii {
		return s
	}
	c := p.Profile.Color(hex)
	if c == nil {
		return s
	}
	return p.Profile.String(s).Foreground(c).String()
}

// Button paints s as a filled button.
func (p Painter) Button(s string) string {
	if p.Profile == termenv.Ascii {
		return "[" + s + "]"
	}
	return p.Profile.String(" " + s + " ").
		Foreground(p.Profile.Color(p.Palette.ButtonText)).
		Background(p.Profile.Color(p.Palette.ButtonPrimary)).
		String()
}

func (p Painter) Text(s string) string      { return p.Fg(p.Palette.Text, s) }
func (p Painter) Secondary(s string) string { return p.Fg(p.Palette.TextSecondary, s) }
func (p Painter) Primary(s string) string   { return p.Fg(p.Palette.Primary, s) }
func (p Painter) Error(s string) string     { return p.Fg(p.Palette.Error, s) }
func (p Painter) Success(s string) string   { return p.Fg(p.Palette.Success, s) }

// Rule is a horizontal border of width n.
func (p Painter) Rule(n int) string {
	if n <= 0 {
		return ""
	}
	return p.Fg(p.Palette.Border, strings.Repeat("─", n))
}

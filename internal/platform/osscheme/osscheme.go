// Package osscheme reports the color scheme of the surrounding terminal, standing in for
// the OS appearance setting a mobile platform would expose.
package osscheme

import (
	"strconv"
	"strings"

	"github.com/muesli/termenv"

	"github.com/Overland-East-Bay/car-rental-client/internal/domain"
)

// Terminal answers background-color queries; *termenv.Output satisfies it.
type Terminal interface {
	BackgroundColor() termenv.Color
	HasDarkBackground() bool
}

// Detect returns the terminal's scheme, or "" when it cannot tell.
//
// override (OS_COLOR_SCHEME) wins when set. Then COLORFGBG ("fg;bg" or "fg;x;bg", as set by
// rxvt, Konsole and iTerm2) is consulted: background colors 0-6 and 8 are dark. Last, term
// is asked for its background color (OSC 11); a terminal that does not answer yields "".
func Detect(override string, getenv func(string) string, term Terminal) domain.ColorScheme {
	switch domain.ColorScheme(strings.ToLower(strings.TrimSpace(override))) {
	case domain.SchemeDark:
		return domain.SchemeDark
	case domain.SchemeLight:
		return domain.SchemeLight
	}
	if getenv != nil {
		if s := fromColorFGBG(getenv("COLORFGBG")); s != "" {
			return s
		}
	}
	return fromTerminal(term)
}

func fromColorFGBG(v string) domain.ColorScheme {
	if v == "" {
		return ""
	}
	parts := strings.Split(v, ";")
	bg, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return ""
	}
	switch {
	case bg >= 0 && bg <= 6, bg == 8:
		return domain.SchemeDark
	case bg == 7, bg >= 9 && bg <= 15:
		return domain.SchemeLight
	}
	return ""
}

func fromTerminal(term Terminal) domain.ColorScheme {
	if term == nil {
		return ""
	}
	switch term.BackgroundColor().(type) {
	case nil, termenv.NoColor:
		return ""
	}
	if term.HasDarkBackground() {
		return domain.SchemeDark
	}
	return domain.SchemeLight
}

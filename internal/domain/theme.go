package domain

// ThemePreference is the user's stored appearance choice.
type ThemePreference string

const (
	ThemeLight  ThemePreference = "light"
	ThemeDark   ThemePreference = "dark"
	ThemeSystem ThemePreference = "system"
)

// DefaultThemePreference applies when no valid preference is stored.
const DefaultThemePreference = ThemeLight

// ParseThemePreference accepts exactly "light", "dark" and "system".
func ParseThemePreference(s string) (ThemePreference, bool) {
	switch p := ThemePreference(s); p {
	case ThemeLight, ThemeDark, ThemeSystem:
		return p, true
	}
	return "", false
}

// ColorScheme is the effective scheme a screen renders with.
type ColorScheme string

const (
	SchemeLight ColorScheme = "light"
	SchemeDark  ColorScheme = "dark"
)

// ResolveColorScheme maps a preference and the OS-reported scheme to the effective scheme.
// "system" follows the OS (light when it reports nothing usable). An invalid preference
// resolves as DefaultThemePreference does. The result is always light or dark.
func ResolveColorScheme(p ThemePreference, osScheme ColorScheme) ColorScheme {
	if _, ok := ParseThemePreference(string(p)); !ok {
		p = DefaultThemePreference
	}
	switch p {
	case ThemeDark:
		return SchemeDark
	case ThemeSystem:
		if osScheme == SchemeDark {
			return SchemeDark
		}
		return SchemeLight
	default:
		return SchemeLight
	}
}

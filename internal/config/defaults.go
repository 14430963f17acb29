package config

import "strings"

// Lint levels.
const (
	LevelIgnore  = "ignore"
	LevelWarning = "warning"
	LevelError   = "error"
)

func stylesheetDefaults() map[string]any {
	return map[string]any{
		"validate": true,
		"lint": map[string]any{
			"unknownAtRules":    LevelWarning,
			"unknownProperties": LevelWarning,
			"emptyRules":        LevelWarning,
		},
		"format": map[string]any{
			"enable": true,
		},
		"customData": []any{},
	}
}

func markupDefaults() map[string]any {
	return map[string]any{
		"validate": true,
		"format": map[string]any{
			"enable": true,
		},
		"customData": []any{},
	}
}

// Defaults is the settings tree in effect before the client sends one.
func Defaults() map[string]any {
	return map[string]any{
		"css":     stylesheetDefaults(),
		"scss":    stylesheetDefaults(),
		"less":    stylesheetDefaults(),
		"postcss": stylesheetDefaults(),
		"html":    markupDefaults(),
		"tmpl":    markupDefaults(),
	}
}

// FormatDefaults are the formatting options used when neither the request
// nor the settings name one.
func FormatDefaults() map[string]any {
	return map[string]any{
		"tabSize":      4,
		"insertSpaces": true,
	}
}

// IndentUnit is one level of indentation under the given formatting
// options.
func IndentUnit(opts map[string]any) string {
	if !Bool(opts, "insertSpaces", true) {
		return "\t"
	}
	return strings.Repeat(" ", max(Int(opts, "tabSize", 4), 0))
}

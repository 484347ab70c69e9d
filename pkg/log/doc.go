// Package log builds [slog.Handler] values from user-facing level and format
// strings.
//
// The text and logfmt formats are rendered by charmbracelet/log; the json
// format uses [slog.NewJSONHandler].
package log

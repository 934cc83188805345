package initializer

import (
	"io"
	"log/slog"

	"github.com/amirasaad/tenantledger/pkg/config"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

type levelStyle struct {
	level log.Level
	icon  string
	color lipgloss.AdaptiveColor
}

var levelStyles = []levelStyle{
	{log.DebugLevel, "🐛", lipgloss.AdaptiveColor{Light: "#7E57C2", Dark: "#7E57C2"}},
	{log.InfoLevel, "ℹ️", lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"}},
	{log.WarnLevel, "⚠️", lipgloss.AdaptiveColor{Light: "#EE6FF8", Dark: "#EE6FF8"}},
	{log.ErrorLevel, "❌", lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF6B6B"}},
}

var formatters = map[string]log.Formatter{
	"json":   log.JSONFormatter,
	"text":   log.TextFormatter,
	"logfmt": log.LogfmtFormatter,
}

// SetupLogger builds the process logger on a charmbracelet handler and
// installs it as the slog default.
func SetupLogger(w io.Writer, cfg *config.Log) *slog.Logger {
	styles := log.DefaultStyles()
	debugColor := levelStyles[0].color
	for _, ls := range levelStyles {
		styles.Levels[ls.level] = lipgloss.NewStyle().
			SetString(ls.icon).
			Bold(true).
			Padding(0, 1).
			Foreground(ls.color)
	}
	// ledger keys worth spotting in a wall of text
	for _, key := range []string{"error", "business_id", "idempotency_key", "event_id"} {
		styles.Keys[key] = lipgloss.NewStyle().Foreground(levelStyles[3].color)
		styles.Values[key] = lipgloss.NewStyle().Bold(true)
	}
	for _, key := range []string{"component", "prefix", "caller", "time"} {
		styles.Keys[key] = lipgloss.NewStyle().Foreground(debugColor)
	}

	formatter := log.TextFormatter
	if f, ok := formatters[cfg.Format]; ok {
		formatter = f
	}

	handler := log.NewWithOptions(w, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		Level:           log.Level(cfg.Level),
		Prefix:          cfg.Prefix,
		Formatter:       formatter,
	})
	handler.SetStyles(styles)

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

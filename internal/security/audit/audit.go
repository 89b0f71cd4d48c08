package audit

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mssola/useragent"
)

// Entry describes one administrative action.
type Entry struct {
	Actor      string
	Action     string
	Resource   string
	ResourceID string
	Outcome    string
	Details    string
	RequestID  string
	ClientIP   string
	UserAgent  string
}

// Logger writes audit entries as structured log records.
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger.With(slog.String("log_type", "audit"))}
}

// Log records e, expanding the user agent into browser, os and device class.
func (al *Logger) Log(ctx context.Context, e Entry) {
	attrs := []slog.Attr{
		slog.String("actor", e.Actor),
		slog.String("action", e.Action),
		slog.String("resource", e.Resource),
		slog.String("resource_id", e.ResourceID),
		slog.String("outcome", e.Outcome),
		slog.String("request_id", e.RequestID),
		slog.String("client_ip", e.ClientIP),
		slog.Time("timestamp", time.Now().UTC()),
	}
	if e.Details != "" {
		attrs = append(attrs, slog.String("details", e.Details))
	}
	if e.UserAgent != "" {
		attrs = append(attrs, slog.Group("client", clientAttrs(e.UserAgent)...))
	}
	al.logger.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
}

// Outcome maps an HTTP status to success, denied or failure.
func Outcome(status int) string {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "denied"
	case status >= 400:
		return "failure"
	default:
		return "success"
	}
}

func clientAttrs(raw string) []any {
	ua := useragent.New(raw)
	browser, version := ua.Browser()
	device := "desktop"
	switch {
	case ua.Bot():
		device = "bot"
	case ua.Mobile():
		device = "mobile"
	}
	return []any{
		slog.String("browser", browser),
		slog.String("browser_version", version),
		slog.String("os", ua.OS()),
		slog.String("device", device),
	}
}

package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent is one security-relevant occurrence: a login attempt, a
// password change, a lock transition. Every event lands on the message
// "audit" so log pipelines can route on it.
type AuditEvent struct {
	EventType     string
	AccountID     string
	LoginInput    string // the identifier as typed, e.g. "a12345"
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger}
}

// emit writes the event, WARN for failures so lockout probing stands out in
// log filters, INFO otherwise. Empty fields are omitted rather than logged
// blank.
func (al *AuditLogger) emit(auditType string, event AuditEvent) {
	attrs := make([]slog.Attr, 0, 10)
	attrs = append(attrs,
		slog.String("audit_type", auditType),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	)

	optional := []struct{ key, val string }{
		{"account_id", event.AccountID},
		{"login_input", event.LoginInput},
		{"ip_address", event.IPAddress},
		{"user_agent", event.UserAgent},
		{"failure_reason", event.FailureReason},
	}
	for _, attr := range optional {
		if attr.val != "" {
			attrs = append(attrs, slog.String(attr.key, attr.val))
		}
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}

// LogAuthAttempt records a login attempt, successful or not.
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	al.emit("auth", event)
}

// LogPasswordChange records password change and reset outcomes.
func (al *AuditLogger) LogPasswordChange(eventType, accountID, ipAddress string, success bool) {
	al.emit("password", AuditEvent{
		EventType: eventType,
		AccountID: accountID,
		IPAddress: ipAddress,
		Success:   success,
	})
}

// LogAccountAction records administrative account events such as lockouts,
// force-unlocks, and bootstrap provisioning. These are always "successes";
// failed admin calls surface as request errors, not audit events.
func (al *AuditLogger) LogAccountAction(eventType, accountID, ipAddress string, metadata map[string]string) {
	al.emit("account", AuditEvent{
		EventType: eventType,
		AccountID: accountID,
		IPAddress: ipAddress,
		Success:   true,
		Metadata:  metadata,
	})
}

// Package audit provides security audit logging for SIEM consumption.
// Events are logged in structured JSON under the "security_audit" logger name.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/auth"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventInjectionAttempt is logged when libinjection flags a search or filter value.
	EventInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventCallbackRejected is logged when a worker callback fails authentication or validation.
	EventCallbackRejected SecurityEventType = "callback_rejected"
	// EventCleanupRun is logged for every cleanup execution, dry runs included.
	EventCleanupRun SecurityEventType = "cleanup_run"
	// EventWebhookConfigChange is logged when a webhook target is added, toggled or removed.
	EventWebhookConfigChange SecurityEventType = "webhook_config_change"
)

// SecurityEvent represents an auditable security event.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// InjectionDetails contains specifics of a detected injection attempt.
type InjectionDetails struct {
	ParamName   string `json:"param_name"`
	ParamValue  string `json:"param_value"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
	Endpoint    string `json:"endpoint"`
}

// CleanupDetails summarizes a cleanup run.
type CleanupDetails struct {
	OlderThanDays int    `json:"older_than_days"`
	BatchSize     int    `json:"batch_size"`
	DryRun        bool   `json:"dry_run"`
	TotalCleaned  int    `json:"total_cleaned"`
	Source        string `json:"source"`
	Error         string `json:"error,omitempty"`
}

// WebhookChangeDetails describes a change to a webhook configuration.
type WebhookChangeDetails struct {
	Action      string `json:"action"` // create, activate, deactivate, delete
	WebhookID   string `json:"webhook_id"`
	WebhookType string `json:"webhook_type"`
	WebhookURL  string `json:"webhook_url"` // sanitized
}

// SecurityAuditor logs security events for SIEM consumption.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger namespace.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

func (a *SecurityAuditor) event(ctx context.Context, t SecurityEventType, severity, clientIP string, details any) (SecurityEvent, string) {
	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: t,
		UserID:    auth.GetUserIDFromContext(ctx),
		ClientIP:  clientIP,
		Details:   details,
		Severity:  severity,
	}
	// Marshaling known types cannot fail.
	eventJSON, _ := json.Marshal(event)
	return event, string(eventJSON)
}

// LogInjectionAttempt records a detected injection attempt at ERROR level with "critical" severity.
func (a *SecurityAuditor) LogInjectionAttempt(ctx context.Context, details InjectionDetails, clientIP string) {
	event, eventJSON := a.event(ctx, EventInjectionAttempt, "critical", clientIP, details)
	a.logger.Error("SQL injection attempt detected",
		zap.String("event_json", eventJSON),
		zap.String("param_name", details.ParamName),
		zap.String("fingerprint", details.Fingerprint),
		zap.String("endpoint", details.Endpoint),
		zap.String("client_ip", clientIP),
		zap.String("user_id", event.UserID),
		zap.String("severity", event.Severity),
	)
}

// LogCallbackRejected records a rejected worker callback at WARN level.
func (a *SecurityAuditor) LogCallbackRejected(ctx context.Context, kind, reason, clientIP string) {
	details := map[string]string{"kind": kind, "reason": reason}
	event, eventJSON := a.event(ctx, EventCallbackRejected, "warning", clientIP, details)
	a.logger.Warn("Callback rejected",
		zap.String("event_json", eventJSON),
		zap.String("kind", kind),
		zap.String("reason", reason),
		zap.String("client_ip", clientIP),
		zap.String("severity", event.Severity),
	)
}

// LogCleanupRun records a cleanup execution. Failed runs are logged at WARN level.
func (a *SecurityAuditor) LogCleanupRun(ctx context.Context, details CleanupDetails) {
	severity := "info"
	if details.Error != "" {
		severity = "warning"
	}
	event, eventJSON := a.event(ctx, EventCleanupRun, severity, "", details)

	fields := []zap.Field{
		zap.String("event_json", eventJSON),
		zap.Int("older_than_days", details.OlderThanDays),
		zap.Bool("dry_run", details.DryRun),
		zap.Int("total_cleaned", details.TotalCleaned),
		zap.String("source", details.Source),
		zap.String("user_id", event.UserID),
		zap.String("severity", severity),
	}
	if details.Error != "" {
		a.logger.Warn("Cleanup run failed", fields...)
		return
	}
	a.logger.Info("Cleanup run", fields...)
}

// LogWebhookConfigChange records a webhook configuration change at INFO level.
func (a *SecurityAuditor) LogWebhookConfigChange(ctx context.Context, details WebhookChangeDetails) {
	event, eventJSON := a.event(ctx, EventWebhookConfigChange, "info", "", details)
	a.logger.Info("Webhook configuration changed",
		zap.String("event_json", eventJSON),
		zap.String("action", details.Action),
		zap.String("webhook_id", details.WebhookID),
		zap.String("webhook_type", details.WebhookType),
		zap.String("user_id", event.UserID),
		zap.String("severity", event.Severity),
	)
}

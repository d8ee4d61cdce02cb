package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"alma.org.ar/internal/obs"
)

type ctxKey string

const (
	runIDKey    ctxKey = "audit_run_id"
	operatorKey ctxKey = "audit_operator"
)

// WithRunID attaches the run identifier to the context for audit logging.
func WithRunID(ctx context.Context, runID string) context.Context {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, runID)
}

// WithOperator records who confirmed the destructive action (database user).
func WithOperator(ctx context.Context, operator string) context.Context {
	operator = strings.TrimSpace(operator)
	if operator == "" {
		return ctx
	}
	return context.WithValue(ctx, operatorKey, operator)
}

// RunIDFromContext returns the run identifier, if any.
func RunIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, runIDKey)
}

func stringFromContext(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit entry for a destructive or state-changing action.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	l := obs.Logger()
	e := l.Log().
		Str("type", "audit").
		Str("event", event).
		Str("ts", time.Now().UTC().Format(time.RFC3339Nano))
	if rid := RunIDFromContext(ctx); rid != "" {
		e = e.Str("run_id", rid)
	}
	if op := stringFromContext(ctx, operatorKey); op != "" {
		e = e.Str("operator", op)
	}
	copyFields := make(map[string]any, len(fields))
	for k, v := range fields {
		copyFields[k] = v
	}
	e.Interface("fields", copyFields).Send()
	return nil
}

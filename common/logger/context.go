package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields carries structured fields that are automatically attached to
// every log record emitted within the context. Set them once at the edge
// (webhook handler, worker claim) and every downstream slog call picks
// them up.
type LogFields struct {
	JobID     *int64  // job_queue row being processed
	EventID   *int64  // event row that triggered the work
	RepoID    *int64  // repository the work belongs to
	UserID    *int64  // owning user
	JobKind   *string // e.g. "summarize-pr"
	Component string  // e.g. "pipeline.worker.dispatcher"
}

// WithLogFields enriches ctx with log fields. Repeated calls merge, with
// newer non-nil/non-empty values winning.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	merged := mergeFields(GetLogFields(ctx), fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from ctx, or an empty LogFields.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, updates LogFields) LogFields {
	result := existing

	if updates.JobID != nil {
		result.JobID = updates.JobID
	}
	if updates.EventID != nil {
		result.EventID = updates.EventID
	}
	if updates.RepoID != nil {
		result.RepoID = updates.RepoID
	}
	if updates.UserID != nil {
		result.UserID = updates.UserID
	}
	if updates.JobKind != nil {
		result.JobKind = updates.JobKind
	}
	if updates.Component != "" {
		result.Component = updates.Component
	}

	return result
}

// Ptr builds a pointer from a value, for inline LogFields literals.
func Ptr[T any](v T) *T {
	return &v
}

// Truncate shortens s to maxLen characters, appending "..." when cut.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

package logging

import (
	"context"
	"log/slog"

	"dropindex/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldListingID is the standardized key for supplier listing identifiers.
	FieldListingID = "listing_id"
	// FieldClusterID is the standardized key for identity cluster identifiers.
	FieldClusterID = "cluster_id"
	// FieldStage is the standardized key for the step inside a pass.
	FieldStage = "stage"
	// FieldPassID is the standardized key for the running pass identifier.
	FieldPassID = "pass_id"
	// FieldCorrelationID is the standardized key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldReason is the standardized key for skip reasons.
	FieldReason = "reason"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 5)
	if id, ok := services.ListingIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldListingID, id))
	}
	if id, ok := services.ClusterIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldClusterID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if pass, ok := services.PassIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPassID, pass))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}

package services

import "context"

type contextKey string

const (
	listingIDKey contextKey = "listing_id"
	clusterIDKey contextKey = "cluster_id"
	stageKey     contextKey = "stage"
	passKey      contextKey = "pass_id"
	requestIDKey contextKey = "request_id"
)

// WithListingID annotates context with the listing identifier being processed.
func WithListingID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, listingIDKey, id)
}

// ListingIDFromContext extracts the listing identifier if present.
func ListingIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(listingIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithClusterID annotates context with the identity cluster being processed.
func WithClusterID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, clusterIDKey, id)
}

// ClusterIDFromContext returns the cluster identifier if present.
func ClusterIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(clusterIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pass stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithPassID annotates context with the identifier of the running pass.
func WithPassID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, passKey, id)
}

// PassIDFromContext returns the pass identifier if present.
func PassIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(passKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

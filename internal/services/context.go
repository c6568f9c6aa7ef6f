package services

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	tierKey   contextKey = "tier"
)

// WithUserContext stores the authenticated caller on the context.
func WithUserContext(ctx context.Context, userID uuid.UUID, tier string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, tierKey, tier)
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}

// TierFromContext returns the caller's subscription tier, defaulting to free.
func TierFromContext(ctx context.Context) string {
	if tier, ok := ctx.Value(tierKey).(string); ok && tier != "" {
		return tier
	}
	return "free"
}

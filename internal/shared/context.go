package shared

import "context"

type contextKey int

const (
	tenantContextKey contextKey = iota
	actorContextKey
)

// ContextWithTenant attaches the resolved tenant id to the context.
func ContextWithTenant(ctx context.Context, tenantID int64) context.Context {
	return context.WithValue(ctx, tenantContextKey, tenantID)
}

// TenantFromContext returns the tenant id, or zero when unresolved.
func TenantFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(tenantContextKey).(int64)
	return id
}

// ContextWithActor attaches the acting user id to the context.
func ContextWithActor(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, actorContextKey, actorID)
}

// ActorFromContext returns the actor id, or zero when unknown.
func ActorFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(actorContextKey).(int64)
	return id
}

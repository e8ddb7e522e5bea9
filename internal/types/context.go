package types

import "context"

type ContextKey string

const (
	CtxRequestID ContextKey = "ctx_request_id"
	CtxAgencyID  ContextKey = "ctx_agency_id"
	CtxUserID    ContextKey = "ctx_user_id"
)

func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(CtxRequestID).(string); ok {
		return id
	}
	return ""
}

func GetAgencyID(ctx context.Context) string {
	if id, ok := ctx.Value(CtxAgencyID).(string); ok {
		return id
	}
	return ""
}

func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(CtxUserID).(string); ok {
		return id
	}
	return ""
}

func SetRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CtxRequestID, id)
}

func SetAgencyID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CtxAgencyID, id)
}

func SetUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CtxUserID, id)
}

// DefaultActor is recorded on events raised by scheduled jobs.
const DefaultActor = "system"

// GetActor returns the actor from the context, DefaultActor when unset.
func GetActor(ctx context.Context) string {
	if actor := GetUserID(ctx); actor != "" {
		return actor
	}
	return DefaultActor
}

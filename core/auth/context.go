package auth

import (
	"context"

	"cityfix/core/roles"
	"cityfix/core/store"
)

type ctxKey string

const (
	SessionContextKey ctxKey = "session"
	ActorContextKey   ctxKey = "actor"
)

func WithSession(ctx context.Context, sess *store.SessionRecord, actor *roles.Actor) context.Context {
	ctx = context.WithValue(ctx, SessionContextKey, sess)
	return context.WithValue(ctx, ActorContextKey, actor)
}

func SessionFrom(ctx context.Context) (*store.SessionRecord, bool) {
	sess, ok := ctx.Value(SessionContextKey).(*store.SessionRecord)
	return sess, ok && sess != nil
}

func ActorFrom(ctx context.Context) (*roles.Actor, bool) {
	actor, ok := ctx.Value(ActorContextKey).(*roles.Actor)
	return actor, ok && actor != nil
}

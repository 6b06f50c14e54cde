package actor

import (
	"context"
)

// Actor identifies who initiated a request, together with the
// provenance the ingestion pipeline records on created leads.
// Authentication itself happens upstream; the API trusts the identity
// headers forwarded by the gateway.
type Actor struct {
	ID        string
	Name      string
	Channel   string
	RequestID string
	UTM       map[string]string
}

type contextKey string

const actorContextKey contextKey = "actorContext"

// SystemActor is used by background jobs and the dispatch worker.
func SystemActor() *Actor {
	return &Actor{ID: "system", Name: "System", Channel: "system"}
}

// WithActor adds the actor to the context
func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, a)
}

// FromContext extracts the actor from the context
func FromContext(ctx context.Context) (*Actor, bool) {
	a, ok := ctx.Value(actorContextKey).(*Actor)
	return a, ok
}

// FromContextOrSystem extracts the actor, falling back to the system
// actor when none is set.
func FromContextOrSystem(ctx context.Context) *Actor {
	if a, ok := FromContext(ctx); ok && a != nil {
		return a
	}
	return SystemActor()
}

// Provenance returns the metadata recorded on leads created by this
// actor.
func (a *Actor) Provenance() map[string]any {
	meta := map[string]any{
		"channel": a.Channel,
	}
	if a.RequestID != "" {
		meta["requestId"] = a.RequestID
	}
	if len(a.UTM) > 0 {
		utm := make(map[string]any, len(a.UTM))
		for k, v := range a.UTM {
			utm[k] = v
		}
		meta["utm"] = utm
	}
	return meta
}

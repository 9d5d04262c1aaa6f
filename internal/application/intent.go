package application

import (
	"context"

	"home-dispatch/internal/domain"
)

// IntentResolver maps user text plus the operation catalog to an ordered
// list of actions. Implementations perform one network round trip.
type IntentResolver interface {
	Resolve(ctx context.Context, req domain.ResolveRequest) (*domain.Resolution, error)
}

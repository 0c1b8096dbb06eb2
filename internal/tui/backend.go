package tui

import (
	"context"

	"github.com/Mr-Dark-debug/freightview/internal/api"
	"github.com/Mr-Dark-debug/freightview/internal/client"
	"github.com/Mr-Dark-debug/freightview/internal/promotions"
)

// Backend is what the dashboard reads from.
type Backend interface {
	ListStages(ctx context.Context, project string) ([]api.Stage, error)
	ListPromotions(ctx context.Context, project, stage string) ([]api.Promotion, error)
	WatchPromotions(ctx context.Context, project, stage string) (promotions.Stream, error)
}

// NewClientBackend adapts an API client to Backend.
func NewClientBackend(c *client.Client) Backend {
	return clientBackend{c}
}

type clientBackend struct {
	*client.Client
}

func (b clientBackend) WatchPromotions(ctx context.Context, project, stage string) (promotions.Stream, error) {
	w, err := b.Client.WatchPromotions(ctx, project, stage)
	if err != nil {
		return nil, err
	}
	return w, nil
}

package packer

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// errgroupWithLimit returns an errgroup bounded to at most limit concurrent
// goroutines: the errgroup fan-out manifest.Walk uses for directory
// traversal, with a ceiling added.
func errgroupWithLimit(ctx context.Context, limit int) (*errgroup.Group, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	return g, gctx
}

package config

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/larder/internal/adapters/source"
	"go.trai.ch/larder/internal/core/ports"
)

// NodeID is the unique identifier for the specfile loader Graft node.
const NodeID graft.ID = "adapter.config_loader"

func init() {
	graft.Register(graft.Node[ports.SpecLoader]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{source.NodeID},
		Run: func(ctx context.Context) (ports.SpecLoader, error) {
			factory, err := graft.Dep[ports.SourceFactory](ctx)
			if err != nil {
				return nil, err
			}
			return NewLoader(factory), nil
		},
	})
}

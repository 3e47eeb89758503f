package lockfile

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/larder/internal/adapters/source" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/larder/internal/core/ports"
)

// NodeID is the unique identifier for the lockfile Graft node.
const NodeID graft.ID = "engine.lockfile"

func init() {
	graft.Register(graft.Node[*Lockfile]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{source.NodeID},
		Run: func(ctx context.Context) (*Lockfile, error) {
			factory, err := graft.Dep[ports.SourceFactory](ctx)
			if err != nil {
				return nil, err
			}
			return New(factory.Types()), nil
		},
	})
}

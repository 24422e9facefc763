package actor

import (
	"context"
	"sync"

	"github.com/nimbusdex/matcher/blockchain"
	"github.com/nimbusdex/matcher/logging"
	"github.com/nimbusdex/matcher/types"
)

// AddressRegistry lazily creates one AddressActor per owner and spawns
// its goroutine on first creation (spec.md §4.5: addresses are
// partitioned lazily, not provisioned up front, since the set of
// addresses that ever place an order is unbounded and mostly unknown at
// startup). The map is guarded by a mutex held only around the
// lazy-create check; each AddressActor's own state is never touched
// outside its own goroutine.
type AddressRegistry struct {
	ctx   context.Context
	chain blockchain.Context
	log   *logging.Logger

	mu     sync.Mutex
	actors map[types.PublicKey]*AddressActor
}

func NewAddressRegistry(ctx context.Context, chain blockchain.Context, log *logging.Logger) *AddressRegistry {
	return &AddressRegistry{
		ctx:    ctx,
		chain:  chain,
		log:    log,
		actors: make(map[types.PublicKey]*AddressActor),
	}
}

// GetOrCreate returns owner's AddressActor, creating and starting it if
// this is the first time owner is seen.
func (r *AddressRegistry) GetOrCreate(owner types.PublicKey) *AddressActor {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.actors[owner]; ok {
		return a
	}
	a := NewAddressActor(owner, r.chain, r.log)
	r.actors[owner] = a
	go a.Run(r.ctx)
	return a
}

// Len reports how many distinct addresses have been seen so far.
func (r *AddressRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.actors)
}

package store

import (
	"github.com/nimbusdex/matcher/types"
)

const registryPrefix = "pair/"

func registryKey(pair types.AssetPair) []byte {
	return []byte(registryPrefix + pair.Key())
}

// AssetPairRegistry is the persistent set of known pairs (spec.md §2),
// recovered on startup so MatcherActor knows which OrderBookActors to
// resurrect before the first event for a pair has replayed.
type AssetPairRegistry struct {
	kv *KVStore
}

func NewAssetPairRegistry(kv *KVStore) *AssetPairRegistry {
	return &AssetPairRegistry{kv: kv}
}

func (r *AssetPairRegistry) Add(pair types.AssetPair) error {
	return r.kv.Put(registryKey(pair), []byte{1})
}

func (r *AssetPairRegistry) Remove(pair types.AssetPair) error {
	return r.kv.Delete(registryKey(pair))
}

// List returns every registered pair in no particular order.
func (r *AssetPairRegistry) List() ([]types.AssetPair, error) {
	var out []types.AssetPair
	err := r.kv.IteratePrefix([]byte(registryPrefix), func(key, _ []byte) bool {
		name := string(key[len(registryPrefix):])
		pair, ok := types.ParsePairKey(name)
		if ok {
			out = append(out, pair)
		}
		return true
	})
	return out, err
}

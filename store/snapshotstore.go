package store

import (
	"fmt"

	"github.com/nimbusdex/matcher/types"
	"github.com/nimbusdex/matcher/wire"
)

const snapshotPrefix = "snapshot/"

func snapshotKey(pair types.AssetPair) []byte {
	return []byte(snapshotPrefix + pair.Key())
}

// SnapshotStore is the durable, per-pair last-snapshot store of spec.md
// §4.2. Put writes (offset, bytes) as one goleveldb record, so readers
// never observe a torn tuple.
type SnapshotStore struct {
	kv *KVStore
}

func NewSnapshotStore(kv *KVStore) *SnapshotStore {
	return &SnapshotStore{kv: kv}
}

func (s *SnapshotStore) Put(pair types.AssetPair, snap *types.Snapshot) error {
	data, err := wire.EncodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("store: encode snapshot for %s: %w", pair, err)
	}
	return s.kv.Put(snapshotKey(pair), data)
}

// Get returns the last snapshot taken for pair, if any.
func (s *SnapshotStore) Get(pair types.AssetPair) (*types.Snapshot, bool, error) {
	data, ok, err := s.kv.Get(snapshotKey(pair))
	if err != nil || !ok {
		return nil, ok, err
	}
	snap, err := wire.DecodeSnapshot(data)
	if err != nil {
		return nil, false, fmt.Errorf("store: decode snapshot for %s: %w", pair, err)
	}
	return snap, true, nil
}

func (s *SnapshotStore) Drop(pair types.AssetPair) error {
	return s.kv.Delete(snapshotKey(pair))
}

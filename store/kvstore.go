// Package store is the matcher's durable backing: a single process-wide
// goleveldb instance (spec.md §5 "the embedded KVStore is process-wide,
// accessed by many actors, each via its own key prefix"), and the
// SnapshotStore, OrderDB, AssetPairRegistry, RateCache and
// AssetDecimalsCache built on top of it.
package store

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// KVStore wraps one goleveldb database. Writers are serialized by
// goleveldb's own write lock; reads are lock-free, matching the resource
// model spec.md §5 describes for the shared KVStore.
type KVStore struct {
	db *leveldb.DB
}

// Open opens (creating if absent) the LevelDB instance rooted at dir.
func Open(dir string) (*KVStore, error) {
	db, err := leveldb.OpenFile(dir, &opt.Options{
		Filter: filter.NewBloomFilter(10),
	})
	if err != nil {
		return nil, err
	}
	return &KVStore{db: db}, nil
}

func (s *KVStore) Close() error {
	return s.db.Close()
}

func (s *KVStore) Get(key []byte) ([]byte, bool, error) {
	v, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *KVStore) Put(key, value []byte) error {
	return s.db.Put(key, value, nil)
}

func (s *KVStore) Delete(key []byte) error {
	return s.db.Delete(key, nil)
}

// Batch atomically applies puts/deletes so callers can update more than
// one key (e.g. a snapshot record plus its pair index) in one unit.
type Batch struct {
	b *leveldb.Batch
}

func NewBatch() *Batch {
	return &Batch{b: new(leveldb.Batch)}
}

func (b *Batch) Put(key, value []byte) {
	b.b.Put(key, value)
}

func (b *Batch) Delete(key []byte) {
	b.b.Delete(key)
}

func (s *KVStore) WriteBatch(b *Batch) error {
	return s.db.Write(b.b, nil)
}

// IteratePrefix calls visit for every key under prefix, in key order,
// until visit returns false or the prefix is exhausted.
func (s *KVStore) IteratePrefix(prefix []byte, visit func(key, value []byte) bool) error {
	it := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()
	for it.Next() {
		if !visit(it.Key(), it.Value()) {
			break
		}
	}
	return it.Error()
}

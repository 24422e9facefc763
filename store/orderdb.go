package store

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/nimbusdex/matcher/num"
	"github.com/nimbusdex/matcher/types"
)

const orderPrefix = "order/"

func orderKey(id types.OrderID) []byte {
	return append([]byte(orderPrefix), id[:]...)
}

// orderRecord is OrderDB's gob-encoded value: OrderStatus plus the
// order's pair and owner, returned alongside the status by lookups
// without re-reading the event log.
type orderRecord struct {
	Pair      types.AssetPair
	Owner     types.PublicKey
	Kind      types.StatusKind
	Filled    string
	FilledFee string
}

// OrderDB is the key-value index of order id -> final status and fills
// (spec.md §2), the mechanism idempotent replay (spec.md §8 scenario 6)
// and client status queries both rely on.
type OrderDB struct {
	kv *KVStore
}

func NewOrderDB(kv *KVStore) *OrderDB {
	return &OrderDB{kv: kv}
}

func (d *OrderDB) Put(id types.OrderID, pair types.AssetPair, owner types.PublicKey, status types.OrderStatus) error {
	rec := orderRecord{
		Pair:      pair,
		Owner:     owner,
		Kind:      status.Kind,
		Filled:    status.Filled.String(),
		FilledFee: status.FilledFee.String(),
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return fmt.Errorf("store: encode order record: %w", err)
	}
	return d.kv.Put(orderKey(id), buf.Bytes())
}

func (d *OrderDB) Get(id types.OrderID) (types.OrderStatus, types.AssetPair, types.PublicKey, bool, error) {
	data, ok, err := d.kv.Get(orderKey(id))
	if err != nil || !ok {
		return types.OrderStatus{}, types.AssetPair{}, types.PublicKey{}, ok, err
	}
	var rec orderRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return types.OrderStatus{}, types.AssetPair{}, types.PublicKey{}, false, fmt.Errorf("store: decode order record: %w", err)
	}
	filled, _ := num.UintFromString(rec.Filled, 10)
	filledFee, _ := num.UintFromString(rec.FilledFee, 10)
	return types.OrderStatus{Kind: rec.Kind, Filled: filled, FilledFee: filledFee}, rec.Pair, rec.Owner, true, nil
}

// Exists reports whether id has already been recorded, the idempotency
// check OrderBookActor.ApplyEvent uses before re-applying a PlaceOrder.
func (d *OrderDB) Exists(id types.OrderID) (bool, error) {
	_, ok, err := d.kv.Get(orderKey(id))
	return ok, err
}

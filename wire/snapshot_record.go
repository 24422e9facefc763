// Package wire implements the one wire format spec.md §6 pins to an exact
// byte layout: the SnapshotStore record. (The EventQueue local transport
// uses encoding/gob, a library format, so it lives directly in
// eventqueue/local rather than here.) Every other component's on-disk
// shape is delegated to a real library (goleveldb, gob, kafka-go).
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/nimbusdex/matcher/num"
	"github.com/nimbusdex/matcher/types"
)

// SnapshotFormatVersion is written as the first byte of every record;
// DecodeSnapshot dispatches on it so the layout can grow without breaking
// old snapshots still on disk.
const SnapshotFormatVersion uint8 = 1

// EncodeSnapshot serializes snap per spec.md §6:
//
//	version:u8, offset:u64, pair:(u8 len + bytes, u8 len + bytes),
//	aggregation:tag+u64?, bid_count:u32, bid_entries[],
//	ask_count:u32, ask_entries[], lastTrade?
func EncodeSnapshot(snap *types.Snapshot) ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte(SnapshotFormatVersion)
	writeUint64(buf, snap.Offset)
	writeLenPrefixedString(buf, string(snap.Pair.AmountAsset))
	writeLenPrefixedString(buf, string(snap.Pair.PriceAsset))
	writeAggregation(buf, snap.Aggregation)
	if err := writeLevels(buf, snap.Bids); err != nil {
		return nil, err
	}
	if err := writeLevels(buf, snap.Asks); err != nil {
		return nil, err
	}
	writeOptionalTrade(buf, snap.LastTrade)
	return buf.Bytes(), nil
}

// DecodeSnapshot is the inverse of EncodeSnapshot. A torn or truncated
// record (the crash-consistent unit the SnapshotStore contract forbids a
// reader from ever observing) is reported as an error, never silently
// accepted.
func DecodeSnapshot(data []byte) (*types.Snapshot, error) {
	r := bytes.NewReader(data)
	version, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("wire: truncated snapshot header: %w", err)
	}
	if version != SnapshotFormatVersion {
		return nil, fmt.Errorf("wire: unsupported snapshot version %d", version)
	}
	offset, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	amountAsset, err := readLenPrefixedString(r)
	if err != nil {
		return nil, err
	}
	priceAsset, err := readLenPrefixedString(r)
	if err != nil {
		return nil, err
	}
	aggregation, err := readAggregation(r)
	if err != nil {
		return nil, err
	}
	bids, err := readLevels(r)
	if err != nil {
		return nil, err
	}
	asks, err := readLevels(r)
	if err != nil {
		return nil, err
	}
	trade, err := readOptionalTrade(r)
	if err != nil {
		return nil, err
	}
	return &types.Snapshot{
		Version:     version,
		Pair:        types.NewAssetPair(types.AssetID(amountAsset), types.AssetID(priceAsset)),
		Offset:      offset,
		Bids:        bids,
		Asks:        asks,
		LastTrade:   trade,
		Aggregation: aggregation,
	}, nil
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("wire: truncated u64: %w", err)
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, fmt.Errorf("wire: truncated u32: %w", err)
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func writeLenPrefixedString(buf *bytes.Buffer, s string) {
	buf.WriteByte(byte(len(s)))
	buf.WriteString(s)
}

func readLenPrefixedString(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", fmt.Errorf("wire: truncated string length: %w", err)
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil {
		return "", fmt.Errorf("wire: truncated string body: %w", err)
	}
	return string(b), nil
}

func writeUintValue(buf *bytes.Buffer, v *num.Uint) {
	if v == nil {
		v = num.NewUint(0)
	}
	b := v.Bytes()
	buf.Write(b[:])
}

func readUintValue(r *bytes.Reader) (*num.Uint, error) {
	var b [32]byte
	if _, err := r.Read(b[:]); err != nil {
		return nil, fmt.Errorf("wire: truncated uint256: %w", err)
	}
	return num.UintFromBytes32(b), nil
}

const (
	aggregationDisabled byte = 0
	aggregationEnabled  byte = 1
)

func writeAggregation(buf *bytes.Buffer, t types.TickSize) {
	if !t.IsEnabled() {
		buf.WriteByte(aggregationDisabled)
		return
	}
	buf.WriteByte(aggregationEnabled)
	writeUintValue(buf, t.Ticks)
}

func readAggregation(r *bytes.Reader) (types.TickSize, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return types.TickSize{}, fmt.Errorf("wire: truncated aggregation tag: %w", err)
	}
	if tag == aggregationDisabled {
		return types.DisabledTickSize(), nil
	}
	ticks, err := readUintValue(r)
	if err != nil {
		return types.TickSize{}, err
	}
	return types.EnabledTickSize(ticks), nil
}

func writeLevels(buf *bytes.Buffer, levels []types.SnapshotLevel) error {
	writeUint32(buf, uint32(len(levels)))
	for _, l := range levels {
		writeUintValue(buf, l.Price)
		writeUint32(buf, uint32(len(l.Entries)))
		for _, lo := range l.Entries {
			if err := writeLimitOrder(buf, lo); err != nil {
				return err
			}
		}
	}
	return nil
}

func readLevels(r *bytes.Reader) ([]types.SnapshotLevel, error) {
	count, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]types.SnapshotLevel, 0, count)
	for i := uint32(0); i < count; i++ {
		price, err := readUintValue(r)
		if err != nil {
			return nil, err
		}
		entryCount, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		entries := make([]*types.LimitOrder, 0, entryCount)
		for j := uint32(0); j < entryCount; j++ {
			lo, err := readLimitOrder(r)
			if err != nil {
				return nil, err
			}
			entries = append(entries, lo)
		}
		out = append(out, types.SnapshotLevel{Price: price, Entries: entries})
	}
	return out, nil
}

func writeLimitOrder(buf *bytes.Buffer, lo *types.LimitOrder) error {
	o := lo.Order
	buf.Write(o.ID[:])
	buf.Write(o.Owner[:])
	writeLenPrefixedString(buf, string(o.Pair.AmountAsset))
	writeLenPrefixedString(buf, string(o.Pair.PriceAsset))
	buf.WriteByte(byte(o.Side))
	writeUintValue(buf, o.Amount)
	writeUintValue(buf, o.Price)
	writeUintValue(buf, o.MatcherFee)
	writeLenPrefixedString(buf, string(o.FeeAsset))
	writeUint64(buf, o.Timestamp)
	writeUint64(buf, o.Expiration)
	buf.WriteByte(byte(o.Version))
	writeUint32(buf, uint32(len(o.Signature)))
	buf.Write(o.Signature)
	writeUintValue(buf, lo.AmountRemaining)
	writeUintValue(buf, lo.FeeRemaining)
	return nil
}

func readLimitOrder(r *bytes.Reader) (*types.LimitOrder, error) {
	o := &types.Order{}
	if _, err := r.Read(o.ID[:]); err != nil {
		return nil, fmt.Errorf("wire: truncated order id: %w", err)
	}
	if _, err := r.Read(o.Owner[:]); err != nil {
		return nil, fmt.Errorf("wire: truncated order owner: %w", err)
	}
	amountAsset, err := readLenPrefixedString(r)
	if err != nil {
		return nil, err
	}
	priceAsset, err := readLenPrefixedString(r)
	if err != nil {
		return nil, err
	}
	o.Pair = types.NewAssetPair(types.AssetID(amountAsset), types.AssetID(priceAsset))
	sideByte, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("wire: truncated order side: %w", err)
	}
	o.Side = types.Side(sideByte)
	if o.Amount, err = readUintValue(r); err != nil {
		return nil, err
	}
	if o.Price, err = readUintValue(r); err != nil {
		return nil, err
	}
	if o.MatcherFee, err = readUintValue(r); err != nil {
		return nil, err
	}
	feeAsset, err := readLenPrefixedString(r)
	if err != nil {
		return nil, err
	}
	o.FeeAsset = types.AssetID(feeAsset)
	if o.Timestamp, err = readUint64(r); err != nil {
		return nil, err
	}
	if o.Expiration, err = readUint64(r); err != nil {
		return nil, err
	}
	versionByte, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("wire: truncated order version: %w", err)
	}
	o.Version = types.OrderVersion(versionByte)
	sigLen, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	o.Signature = make([]byte, sigLen)
	if sigLen > 0 {
		if _, err := r.Read(o.Signature); err != nil {
			return nil, fmt.Errorf("wire: truncated order signature: %w", err)
		}
	}
	lo := &types.LimitOrder{Order: o}
	if lo.AmountRemaining, err = readUintValue(r); err != nil {
		return nil, err
	}
	if lo.FeeRemaining, err = readUintValue(r); err != nil {
		return nil, err
	}
	return lo, nil
}

func writeOptionalTrade(buf *bytes.Buffer, t *types.Trade) {
	if t == nil {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	buf.Write(t.BuyOrderID[:])
	buf.Write(t.SellOrderID[:])
	writeLenPrefixedString(buf, string(t.Pair.AmountAsset))
	writeLenPrefixedString(buf, string(t.Pair.PriceAsset))
	writeUintValue(buf, t.Price)
	writeUintValue(buf, t.Amount)
	writeUint64(buf, t.Timestamp)
}

func readOptionalTrade(r *bytes.Reader) (*types.Trade, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("wire: truncated trade tag: %w", err)
	}
	if tag == 0 {
		return nil, nil
	}
	t := &types.Trade{}
	if _, err := r.Read(t.BuyOrderID[:]); err != nil {
		return nil, fmt.Errorf("wire: truncated trade buy id: %w", err)
	}
	if _, err := r.Read(t.SellOrderID[:]); err != nil {
		return nil, fmt.Errorf("wire: truncated trade sell id: %w", err)
	}
	amountAsset, err := readLenPrefixedString(r)
	if err != nil {
		return nil, err
	}
	priceAsset, err := readLenPrefixedString(r)
	if err != nil {
		return nil, err
	}
	t.Pair = types.NewAssetPair(types.AssetID(amountAsset), types.AssetID(priceAsset))
	if t.Price, err = readUintValue(r); err != nil {
		return nil, err
	}
	if t.Amount, err = readUintValue(r); err != nil {
		return nil, err
	}
	if t.Timestamp, err = readUint64(r); err != nil {
		return nil, err
	}
	return t, nil
}

package wire_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusdex/matcher/num"
	"github.com/nimbusdex/matcher/types"
	"github.com/nimbusdex/matcher/wire"
)

func TestSnapshotRoundTrip(t *testing.T) {
	pair := types.NewAssetPair("A", "W")
	order := &types.Order{
		ID:         types.OrderID{1, 2, 3},
		Owner:      types.PublicKey{9},
		Pair:       pair,
		Side:       types.Sell,
		Amount:     num.NewUint(100),
		Price:      num.NewUint(2e8),
		MatcherFee: num.NewUint(300000),
		FeeAsset:   pair.PriceAsset,
		Timestamp:  1,
		Expiration: 1000,
		Version:    types.OrderV3,
		Signature:  []byte{0xAA, 0xBB},
	}
	snap := &types.Snapshot{
		Version: types.SnapshotVersion,
		Pair:    pair,
		Offset:  42,
		Asks: []types.SnapshotLevel{{
			Price:   num.NewUint(2e8),
			Entries: []*types.LimitOrder{{Order: order, AmountRemaining: num.NewUint(40), FeeRemaining: num.NewUint(120000)}},
		}},
		Aggregation: types.EnabledTickSize(num.NewUint(100)),
		LastTrade: &types.Trade{
			BuyOrderID:  types.OrderID{4},
			SellOrderID: types.OrderID{5},
			Pair:        pair,
			Price:       num.NewUint(2e8),
			Amount:      num.NewUint(60),
			Timestamp:   2,
		},
	}

	data, err := wire.EncodeSnapshot(snap)
	require.NoError(t, err)

	decoded, err := wire.DecodeSnapshot(data)
	require.NoError(t, err)

	assert.Equal(t, snap.Offset, decoded.Offset)
	assert.Equal(t, snap.Pair, decoded.Pair)
	assert.True(t, decoded.Aggregation.IsEnabled())
	assert.True(t, decoded.Aggregation.Ticks.EQUint64(100))
	require.Len(t, decoded.Asks, 1)
	require.Len(t, decoded.Asks[0].Entries, 1)
	assert.Equal(t, order.ID, decoded.Asks[0].Entries[0].Order.ID)
	assert.True(t, decoded.Asks[0].Entries[0].AmountRemaining.EQUint64(40))
	require.NotNil(t, decoded.LastTrade)
	assert.True(t, decoded.LastTrade.Amount.EQUint64(60))
}

func TestDecodeSnapshotRejectsTruncated(t *testing.T) {
	_, err := wire.DecodeSnapshot([]byte{wire.SnapshotFormatVersion})
	assert.Error(t, err)
}

func TestDecodeSnapshotRejectsUnknownVersion(t *testing.T) {
	_, err := wire.DecodeSnapshot([]byte{0xFF})
	assert.Error(t, err)
}

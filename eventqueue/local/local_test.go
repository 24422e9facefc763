package local_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusdex/matcher/eventqueue/local"
	"github.com/nimbusdex/matcher/num"
	"github.com/nimbusdex/matcher/types"
)

func testOrder(id byte) *types.Order {
	o := &types.Order{
		Owner:      types.PublicKey{id},
		Pair:       types.NewAssetPair("A", "W"),
		Side:       types.Buy,
		Amount:     num.NewUint(100),
		Price:      num.NewUint(2e8),
		MatcherFee: num.NewUint(300000),
		Timestamp:  1,
		Expiration: 1000,
		Version:    types.OrderV3,
	}
	o.ID = o.ComputeID()
	return o
}

func TestAppendAndConsume(t *testing.T) {
	dir := t.TempDir()
	q, err := local.Open(dir)
	require.NoError(t, err)
	defer q.Close(time.Second)

	o := testOrder(1)
	offset, _, err := q.Append(context.Background(), types.PlaceOrderEvent(o, "req-1"), "req-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), offset)

	dupOffset, _, err := q.Append(context.Background(), types.PlaceOrderEvent(o, "req-1"), "req-1")
	require.NoError(t, err)
	assert.Equal(t, offset, dupOffset, "retried append with same requestID must not duplicate")

	last, err := q.LastEventOffset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), last)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	var got []types.QueueEventWithMeta
	err = q.StartConsume(ctx, 1, func(rec types.QueueEventWithMeta) error {
		got = append(got, rec)
		if len(got) == 1 {
			cancel()
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, o.ID, got[0].Event.Order.ID)
	assert.True(t, got[0].Event.Order.Amount.EQUint64(100))
}

func TestReopenRecoversOffset(t *testing.T) {
	dir := t.TempDir()
	q, err := local.Open(dir)
	require.NoError(t, err)
	_, _, err = q.Append(context.Background(), types.PlaceOrderEvent(testOrder(1), "r1"), "r1")
	require.NoError(t, err)
	require.NoError(t, q.Close(time.Second))

	q2, err := local.Open(dir)
	require.NoError(t, err)
	defer q2.Close(time.Second)
	last, err := q2.LastEventOffset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), last)
}

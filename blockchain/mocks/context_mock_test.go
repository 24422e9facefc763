package mocks

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusdex/matcher/blockchain"
	"github.com/nimbusdex/matcher/num"
	"github.com/nimbusdex/matcher/types"
)

func TestMockContextSatisfiesInterface(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := NewMockContext(ctrl)
	var _ blockchain.Context = m

	addr := types.PublicKey{1}
	asset := types.AssetID("BTC")
	m.EXPECT().SpendableBalance(gomock.Any(), addr, asset).Return(num.NewUint(500), nil)

	bal, err := m.SpendableBalance(context.Background(), addr, asset)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), bal.Uint64())
}

package types

import (
	"fmt"
	"strings"
)

// AssetID identifies either the chain's native coin (the zero value) or an
// issued asset by its 32-byte digest, hex-encoded.
type AssetID string

// WAVES is the reference implementation's native-coin sentinel: the empty
// asset id.
const WAVES AssetID = ""

func (a AssetID) IsWaves() bool {
	return a == WAVES
}

func (a AssetID) String() string {
	if a.IsWaves() {
		return "WAVES"
	}
	return string(a)
}

// AssetPair is an ordered pair (amountAsset, priceAsset). Equality is
// structural: two pairs are the same market iff both legs match.
type AssetPair struct {
	AmountAsset AssetID
	PriceAsset  AssetID
}

func NewAssetPair(amountAsset, priceAsset AssetID) AssetPair {
	return AssetPair{AmountAsset: amountAsset, PriceAsset: priceAsset}
}

func (p AssetPair) Key() string {
	return fmt.Sprintf("%s/%s", p.AmountAsset, p.PriceAsset)
}

func (p AssetPair) String() string {
	return p.Key()
}

func (p AssetPair) Equal(o AssetPair) bool {
	return p.AmountAsset == o.AmountAsset && p.PriceAsset == o.PriceAsset
}

// ParsePairKey parses the "amountAsset/priceAsset" form Key produces,
// the form configuration keys and the AssetPairRegistry's own durable
// keys both use.
func ParsePairKey(key string) (AssetPair, bool) {
	parts := strings.SplitN(key, "/", 2)
	if len(parts) != 2 {
		return AssetPair{}, false
	}
	return NewAssetPair(AssetID(parts[0]), AssetID(parts[1])), true
}

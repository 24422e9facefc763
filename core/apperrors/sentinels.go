package apperrors

import "github.com/pkg/errors"

// Sentinel reasons reused across OrderValidator stages (spec.md §4.7), in
// the style of this codebase's command-validation sentinels.
var (
	ErrIsRequired             = errors.New("is required")
	ErrMustBePositive         = errors.New("must be positive")
	ErrUnknownPair            = errors.New("unknown asset pair")
	ErrUnsupportedVersion     = errors.New("unsupported order version")
	ErrUnsupportedFeeAsset    = errors.New("fee asset not accepted for this pair")
	ErrFeeBelowMinimum        = errors.New("fee below minimum required by current rate")
	ErrTimestampOutOfWindow   = errors.New("timestamp outside accepted window")
	ErrExpirationOutOfBounds  = errors.New("expiration outside configured bounds")
	ErrAlreadyExpired         = errors.New("order already expired")
	ErrPriceDeviation         = errors.New("price deviates from best opposite price beyond allowed band")
	ErrTickMisaligned         = errors.New("price not aligned to pair's tick size")
	ErrAssetBlacklisted       = errors.New("asset is blacklisted")
	ErrAddressBlacklisted     = errors.New("address is blacklisted")
	ErrSignatureInvalid       = errors.New("signature does not verify")
)

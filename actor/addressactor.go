package actor

import (
	"context"

	"github.com/nimbusdex/matcher/blockchain"
	"github.com/nimbusdex/matcher/core/apperrors"
	"github.com/nimbusdex/matcher/logging"
	"github.com/nimbusdex/matcher/metrics"
	"github.com/nimbusdex/matcher/num"
	"github.com/nimbusdex/matcher/types"
	"go.uber.org/zap"
)

// AddressActor is the single-writer owner of one address's reservations
// (spec.md §4.5): placement and fill notifications for the same address
// are serialized through its mailbox, which is what makes the
// reservation invariant hold without any locking.
type AddressActor struct {
	owner   types.PublicKey
	state   *types.AddressState
	chain   blockchain.Context
	mailbox *Mailbox[*AddressActor]
	log     *logging.Logger
}

func NewAddressActor(owner types.PublicKey, chain blockchain.Context, log *logging.Logger) *AddressActor {
	return &AddressActor{
		owner:   owner,
		state:   types.NewAddressState(owner),
		chain:   chain,
		mailbox: NewMailbox[*AddressActor](256),
		log:     log.Named("address-actor"),
	}
}

func (a *AddressActor) Run(ctx context.Context) { Run(ctx, a, a.mailbox) }

// --- PlaceCheck ---

type placeCheckMsg struct {
	order *types.Order
	reply chan<- error
}

func (m placeCheckMsg) process(a *AddressActor) {
	m.reply <- a.placeCheck(m.order)
}

// PlaceCheck reserves the funds order would consume, rejecting with
// InsufficientBalance if spendable minus already-reserved is short
// (spec.md §4.5, §8 scenario 5). Spendable is read from the blockchain
// context at decision time, never cached across the check.
func (a *AddressActor) PlaceCheck(ctx context.Context, order *types.Order) error {
	r, err := call(ctx, a.mailbox, func(reply chan<- error) message[*AddressActor] {
		return placeCheckMsg{order: order, reply: reply}
	})
	if err != nil {
		return err
	}
	return r
}

func reservationRequirement(o *types.Order) types.Reservation {
	if o.Side == types.Buy {
		cost := num.MulDivCeil(o.Amount, o.Price, num.NewUint(types.PriceConstant))
		return types.Reservation{
			Pair: o.Pair, Side: o.Side, Asset: o.Pair.PriceAsset, ReservedAmount: cost,
			FeeAsset: o.FeeAsset, ReservedFee: o.MatcherFee.Clone(),
			OrderPrice: o.Price.Clone(), FilledAmount: num.NewUint(0),
		}
	}
	return types.Reservation{
		Pair: o.Pair, Side: o.Side, Asset: o.Pair.AmountAsset, ReservedAmount: o.Amount.Clone(),
		FeeAsset: o.FeeAsset, ReservedFee: o.MatcherFee.Clone(),
		OrderPrice: o.Price.Clone(), FilledAmount: num.NewUint(0),
	}
}

func (a *AddressActor) placeCheck(o *types.Order) error {
	r := reservationRequirement(o)

	required := r.ReservedAmount.Clone()
	if r.Asset == r.FeeAsset {
		required = num.Sum(required, r.ReservedFee)
	}

	spendable, err := a.chain.SpendableBalance(context.Background(), o.Owner, r.Asset)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternalInvariant, "addressactor: spendable balance lookup", err)
	}
	reserved := a.state.Reserved(r.Asset)
	available := num.NewUint(0).Sub(spendable, num.Min(spendable, reserved))
	if available.LT(required) {
		metrics.IncReservationRejection("insufficient_balance")
		return apperrors.InsufficientBalance("reservation would exceed spendable balance")
	}

	if r.Asset != r.FeeAsset {
		feeSpendable, err := a.chain.SpendableBalance(context.Background(), o.Owner, r.FeeAsset)
		if err != nil {
			return apperrors.Wrap(apperrors.KindInternalInvariant, "addressactor: fee balance lookup", err)
		}
		feeReserved := a.state.Reserved(r.FeeAsset)
		feeAvailable := num.NewUint(0).Sub(feeSpendable, num.Min(feeSpendable, feeReserved))
		if feeAvailable.LT(r.ReservedFee) {
			metrics.IncReservationRejection("insufficient_fee_balance")
			return apperrors.InsufficientBalance("fee reservation would exceed spendable balance")
		}
	}

	a.state.Add(o.ID, r)
	return nil
}

// --- ApplyFill ---

type applyFillMsg struct {
	orderID   types.OrderID
	amount    *num.Uint
	feeDelta  *num.Uint
	closed    bool
	reply     chan<- struct{}
}

func (m applyFillMsg) process(a *AddressActor) {
	if !a.state.ApplyFill(m.orderID, m.amount, m.feeDelta, m.closed) {
		a.log.Debug("applyFill for unknown or already-closed order", zap.String("orderID", m.orderID.String()))
	}
	close(m.reply)
}

// ApplyFill decreases orderID's reservation by the asset/fee consumed in
// one fill, removing it from the active set once closed is true.
func (a *AddressActor) ApplyFill(ctx context.Context, orderID types.OrderID, amount, feeDelta *num.Uint, closed bool) error {
	_, err := call(ctx, a.mailbox, func(reply chan<- struct{}) message[*AddressActor] {
		return applyFillMsg{orderID: orderID, amount: amount, feeDelta: feeDelta, closed: closed, reply: reply}
	})
	return err
}

// --- ApplyCancel ---

type applyCancelMsg struct {
	orderID types.OrderID
	reply   chan<- struct{}
}

func (m applyCancelMsg) process(a *AddressActor) {
	a.state.Remove(m.orderID)
	close(m.reply)
}

func (a *AddressActor) ApplyCancel(ctx context.Context, orderID types.OrderID) error {
	_, err := call(ctx, a.mailbox, func(reply chan<- struct{}) message[*AddressActor] {
		return applyCancelMsg{orderID: orderID, reply: reply}
	})
	return err
}

// --- QueryBalance / QueryHistory ---

type queryBalanceMsg struct {
	asset types.AssetID
	reply chan<- *num.Uint
}

func (m queryBalanceMsg) process(a *AddressActor) {
	m.reply <- a.state.Reserved(m.asset)
}

// QueryBalance returns the address's current reservation for asset.
func (a *AddressActor) QueryBalance(ctx context.Context, asset types.AssetID) (*num.Uint, error) {
	return call(ctx, a.mailbox, func(reply chan<- *num.Uint) message[*AddressActor] {
		return queryBalanceMsg{asset: asset, reply: reply}
	})
}

type queryHistoryMsg struct {
	reply chan<- []types.Reservation
}

func (m queryHistoryMsg) process(a *AddressActor) {
	out := make([]types.Reservation, 0, len(a.state.ActiveOrders))
	for _, r := range a.state.ActiveOrders {
		out = append(out, r)
	}
	m.reply <- out
}

// QueryHistory returns every order this address currently has active
// (not yet Filled/Cancelled).
func (a *AddressActor) QueryHistory(ctx context.Context) ([]types.Reservation, error) {
	return call(ctx, a.mailbox, func(reply chan<- []types.Reservation) message[*AddressActor] {
		return queryHistoryMsg{reply: reply}
	})
}

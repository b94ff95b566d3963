package engine

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/matchcore/internal/domain"
)

// tradeNamespace seeds deterministic trade ids so that replaying the same
// messages produces the same trades.
var tradeNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("matchcore/trade"))

// tradeID names a trade by its book sequence and the two orders involved.
// The book sequence is restored from the journal on restart.
func tradeID(productID string, seq uint64, takerID, makerID string) string {
	name := productID + "/" + strconv.FormatUint(seq, 10) + "/" + takerID + "/" + makerID
	return uuid.NewSHA1(tradeNamespace, []byte(name)).String()
}

// place runs an incoming order through the book. A closed book holds the
// order as pending. An order id already known to the book is ignored.
func (b *OrderBook) place(o *domain.Order, at time.Time) []Log {
	if b.Contains(o.ID) {
		return nil
	}
	if !b.open {
		return []Log{b.hold(o, at)}
	}

	logs := b.take(o, at)
	return append(logs, b.settleTaker(o, at)...)
}

// settleTaker decides the fate of a taker after the match loop.
func (b *OrderBook) settleTaker(o *domain.Order, at time.Time) []Log {
	switch {
	case o.FullyFilled():
		o.Status = domain.OrderStatusFilled
		return []Log{statusLog(b.productID, o, "", at)}

	case o.Type == domain.OrderTypeLimit:
		if b.outsideBand(o.Side, o.Price) {
			if b.policy == BandReject {
				o.Status = domain.OrderStatusCancelled
				return []Log{statusLog(b.productID, o, domain.CancelReasonPriceOutOfBand, at)}
			}
			return []Log{b.hold(o, at)}
		}
		o.Status = domain.OrderStatusOpen
		b.insert(o)
		return []Log{statusLog(b.productID, o, "", at)}

	default:
		// Market orders never rest.
		reason := domain.CancelReasonMarketOrderUnmatched
		if o.Matched() {
			reason = domain.CancelReasonMarketOrderPartialFilled
		}
		o.Status = domain.OrderStatusCancelled
		return []Log{statusLog(b.productID, o, reason, at)}
	}
}

// Take matches a market order against the book without resting or
// finalizing it. It is used to execute instant-exchange legs; the caller
// owns the order and decides its final status.
func (b *OrderBook) Take(o *domain.Order, at time.Time) []Log {
	return b.take(o, at)
}

// take is the match loop. It consumes makers in price-time order until the
// taker is done, the opposite side is empty, prices stop crossing, or the
// best maker sits outside the daily band.
func (b *OrderBook) take(taker *domain.Order, at time.Time) []Log {
	var logs []Log
	makerSide := taker.Side.Opposite()

	for !taker.Done() {
		maker, ok := b.best(makerSide)
		if !ok {
			break
		}
		if b.band(maker.Price) != 0 {
			break
		}
		if !crosses(taker, maker.Price) {
			break
		}

		amount := b.tradeAmount(taker, maker)
		if !amount.IsPositive() {
			taker.Completed = true
			break
		}

		trade := b.execute(taker, maker, amount, at)
		logs = append(logs,
			matchedLog(b.productID, taker, trade, true, trade.TakerFee),
			matchedLog(b.productID, maker, trade, false, trade.MakerFee),
		)

		if maker.FullyFilled() {
			b.remove(maker.ID)
			maker.Status = domain.OrderStatusFilled
			logs = append(logs, statusLog(b.productID, maker, "", at))
		}
	}
	return logs
}

func crosses(taker *domain.Order, makerPrice decimal.Decimal) bool {
	if taker.Type == domain.OrderTypeMarket {
		return true
	}
	if taker.Side == domain.OrderSideBuy {
		return taker.Price.GreaterThanOrEqual(makerPrice)
	}
	return taker.Price.LessThanOrEqual(makerPrice)
}

// tradeAmount returns the base amount the taker can take from the maker.
// A market buy converts its remaining funds at the maker price, truncated
// to the product's amount precision. When those funds cannot clear the
// maker, whatever is left after this trade is too small to matter and the
// taker is marked completed.
func (b *OrderBook) tradeAmount(taker, maker *domain.Order) decimal.Decimal {
	available := maker.Remaining()
	if taker.IsMarketBuy() {
		amount := domain.Div(taker.Remaining(), maker.Price, b.amountScale)
		if amount.GreaterThanOrEqual(available) {
			return available
		}
		taker.Completed = true
		return amount
	}
	return decimal.Min(taker.Remaining(), available)
}

// execute applies one fill to both orders and records the trade. The buy
// side pays its fee in the base currency and the sell side in the quote
// currency.
func (b *OrderBook) execute(taker, maker *domain.Order, amount decimal.Decimal, at time.Time) *domain.Trade {
	funds := domain.Mul(maker.Price, amount)
	b.tradeSeq++

	trade := &domain.Trade{
		ID:           tradeID(b.productID, b.tradeSeq, taker.ID, maker.ID),
		ProductID:    b.productID,
		TakerOrderID: taker.ID,
		MakerOrderID: maker.ID,
		Side:         taker.Side,
		Price:        maker.Price,
		Amount:       amount,
		Funds:        funds,
		Seq:          b.tradeSeq,
		ExecutedAt:   at,
	}
	if taker.Side == domain.OrderSideBuy {
		trade.TakerFee = domain.Mul(taker.FeeRateTaker, amount)
		trade.MakerFee = domain.Mul(maker.FeeRateMaker, funds)
	} else {
		trade.TakerFee = domain.Mul(taker.FeeRateTaker, funds)
		trade.MakerFee = domain.Mul(maker.FeeRateMaker, amount)
	}

	taker.FilledAmount = taker.FilledAmount.Add(amount)
	taker.FilledFunds = taker.FilledFunds.Add(funds)
	maker.FilledAmount = maker.FilledAmount.Add(amount)
	maker.FilledFunds = maker.FilledFunds.Add(funds)

	b.lastPrice = maker.Price
	b.hasTraded = true
	return trade
}

package book

import "github.com/ejyy/femto-plant/internal/domain"

// Add implements spec §4.3 Add: assign a market order id, accept, match
// against the opposite side to completion, then rest any remaining qty.
func (b *Book) Add(clientID domain.ClientID, clientOrderID domain.OrderID, side domain.Side, price domain.Price, qty domain.Qty) {
	marketOrderID := b.nextMarketOrderID
	b.nextMarketOrderID++

	b.sendResponse(domain.MEClientResponse{
		Type:          domain.ClientResponseAccepted,
		ClientID:      clientID,
		TickerID:      b.tickerID,
		ClientOrderID: clientOrderID,
		MarketOrderID: marketOrderID,
		Side:          side,
		Price:         price,
		ExecQty:       0,
		LeavesQty:     qty,
	})

	leavesQty := b.checkForMatch(clientID, clientOrderID, marketOrderID, side, price, qty)

	if leavesQty > 0 {
		priority := b.nextPriority(price)
		ordIdx, ord := b.orders.allocate(order{
			clientID:      clientID,
			clientOrderID: clientOrderID,
			marketOrderID: marketOrderID,
			tickerID:      b.tickerID,
			side:          side,
			price:         price,
			qty:           leavesQty,
			priority:      priority,
		})
		_ = ord
		b.linkOrderToLevel(ordIdx)
		b.rememberClientOrder(clientID, clientOrderID, ordIdx)

		b.sendMarketUpdate(domain.MEMarketUpdate{
			Type:     domain.MarketUpdateAdd,
			OrderID:  marketOrderID,
			TickerID: b.tickerID,
			Side:     side,
			Price:    price,
			Qty:      leavesQty,
			Priority: priority,
		})
	}
}

// checkForMatch runs the aggressor against the opposite side's best level
// repeatedly while it crosses and qty remains, per spec §4.3 step 3.
func (b *Book) checkForMatch(clientID domain.ClientID, clientOrderID domain.OrderID, marketOrderID domain.OrderID, side domain.Side, price domain.Price, qty domain.Qty) domain.Qty {
	leaves := qty
	for leaves > 0 {
		oppositeHead := b.asksByPrice
		if side == domain.SideSell {
			oppositeHead = b.bidsByPrice
		}
		if oppositeHead == nullIdx {
			break
		}
		oppLevel := b.levels.at(oppositeHead)
		crosses := (side == domain.SideBuy && oppLevel.price <= price) ||
			(side == domain.SideSell && oppLevel.price >= price)
		if !crosses {
			break
		}
		leaves = b.match(clientID, clientOrderID, marketOrderID, side, oppLevel.firstOrder, leaves)
	}
	return leaves
}

// match executes the aggressor against the FIFO-head resting order restIdx,
// emitting FILLED to both sides, a TRADE market update, and either a
// CANCEL (resting order exhausted) or MODIFY (partial) market update, per
// spec §4.3 Match. Returns the aggressor's remaining qty.
func (b *Book) match(aggClientID domain.ClientID, aggClientOrderID domain.OrderID, aggMarketOrderID domain.OrderID, aggSide domain.Side, restIdx uint32, aggLeaves domain.Qty) domain.Qty {
	rest := b.orders.at(restIdx)

	fillQty := aggLeaves
	if rest.qty < fillQty {
		fillQty = rest.qty
	}
	tradePrice := rest.price

	aggLeaves -= fillQty
	rest.qty -= fillQty

	b.sendResponse(domain.MEClientResponse{
		Type:          domain.ClientResponseFilled,
		ClientID:      aggClientID,
		TickerID:      b.tickerID,
		ClientOrderID: aggClientOrderID,
		MarketOrderID: aggMarketOrderID,
		Side:          aggSide,
		Price:         tradePrice,
		ExecQty:       fillQty,
		LeavesQty:     aggLeaves,
	})
	b.sendResponse(domain.MEClientResponse{
		Type:          domain.ClientResponseFilled,
		ClientID:      rest.clientID,
		TickerID:      b.tickerID,
		ClientOrderID: rest.clientOrderID,
		MarketOrderID: rest.marketOrderID,
		Side:          rest.side,
		Price:         tradePrice,
		ExecQty:       fillQty,
		LeavesQty:     rest.qty,
	})

	b.sendMarketUpdate(domain.MEMarketUpdate{
		Type:     domain.MarketUpdateTrade,
		OrderID:  aggMarketOrderID,
		TickerID: b.tickerID,
		Side:     aggSide,
		Price:    tradePrice,
		Qty:      fillQty,
	})

	if rest.qty == 0 {
		restMarketOrderID := rest.marketOrderID
		restSide := rest.side
		restPrice := rest.price
		restClientID := rest.clientID
		restClientOrderID := rest.clientOrderID

		b.unlinkOrder(restIdx)
		b.forgetClientOrder(restClientID, restClientOrderID)
		b.orders.free(restIdx)

		b.sendMarketUpdate(domain.MEMarketUpdate{
			Type:     domain.MarketUpdateCancel,
			OrderID:  restMarketOrderID,
			TickerID: b.tickerID,
			Side:     restSide,
			Price:    restPrice,
			Qty:      0,
		})
	} else {
		b.sendMarketUpdate(domain.MEMarketUpdate{
			Type:     domain.MarketUpdateModify,
			OrderID:  rest.marketOrderID,
			TickerID: b.tickerID,
			Side:     rest.side,
			Price:    rest.price,
			Qty:      rest.qty,
			Priority: rest.priority,
		})
	}

	return aggLeaves
}

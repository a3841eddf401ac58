package book

import "github.com/ejyy/femto-plant/internal/domain"

// Cancel implements spec §4.3 Cancel: look up the live order by
// (client_id, client_order_id); reject if unknown, otherwise confirm and
// remove it from the book.
func (b *Book) Cancel(clientID domain.ClientID, clientOrderID domain.OrderID) {
	ordIdx, ok := b.lookupClientOrder(clientID, clientOrderID)
	if !ok {
		b.sendResponse(domain.MEClientResponse{
			Type:          domain.ClientResponseCancelRejected,
			ClientID:      clientID,
			TickerID:      b.tickerID,
			ClientOrderID: clientOrderID,
		})
		return
	}

	ord := b.orders.at(ordIdx)
	marketOrderID := ord.marketOrderID
	side := ord.side
	price := ord.price
	qty := ord.qty

	b.sendResponse(domain.MEClientResponse{
		Type:          domain.ClientResponseCanceled,
		ClientID:      clientID,
		TickerID:      b.tickerID,
		ClientOrderID: clientOrderID,
		MarketOrderID: marketOrderID,
		Side:          side,
		Price:         price,
		LeavesQty:     qty,
	})

	b.unlinkOrder(ordIdx)
	b.forgetClientOrder(clientID, clientOrderID)
	b.orders.free(ordIdx)

	b.sendMarketUpdate(domain.MEMarketUpdate{
		Type:     domain.MarketUpdateCancel,
		OrderID:  marketOrderID,
		TickerID: b.tickerID,
		Side:     side,
		Price:    price,
		Qty:      0,
	})
}

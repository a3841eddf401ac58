// Package wire implements the packed little-endian byte layouts that cross
// process boundaries: the order-gateway TCP frames and the market-data UDP
// multicast frames of spec §6. Every record is fixed width and
// field-for-field little-endian, matching original_source's packed C++
// structs; encoding/binary is used directly rather than a generic codec
// library, mirroring the pack's own wire-parsing idiom (e.g.
// yanun0323-go-hft/internal/adapter/depth.go, internal/ingest/btcc/codec.go
// hand-roll their byte layouts rather than reach for a serialization
// library — there is no packed-struct library anywhere in the pack).
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ejyy/femto-plant/internal/domain"
)

// Byte widths of the packed wire records (spec §6).
const (
	SizeMEClientRequest  = 1 + 4 + 4 + 8 + 1 + 8 + 4         // 30
	SizeMEClientResponse = 1 + 4 + 4 + 8 + 8 + 1 + 8 + 4 + 4 // 42
	SizeMEMarketUpdate   = 1 + 8 + 4 + 1 + 8 + 4 + 8         // 34

	SizeOMClientRequest  = 8 + SizeMEClientRequest  // 38
	SizeOMClientResponse = 8 + SizeMEClientResponse // 50
	SizeMDPMarketUpdate  = 8 + SizeMEMarketUpdate   // 42
)

var byteOrder = binary.LittleEndian

// PutMEClientRequest encodes r into buf (len(buf) >= SizeMEClientRequest).
func PutMEClientRequest(buf []byte, r domain.MEClientRequest) {
	buf[0] = byte(r.Type)
	byteOrder.PutUint32(buf[1:5], uint32(r.ClientID))
	byteOrder.PutUint32(buf[5:9], uint32(r.TickerID))
	byteOrder.PutUint64(buf[9:17], uint64(r.OrderID))
	buf[17] = byte(r.Side)
	byteOrder.PutUint64(buf[18:26], uint64(r.Price))
	byteOrder.PutUint32(buf[26:30], uint32(r.Qty))
}

// MEClientRequestFrom decodes a MEClientRequest from buf.
func MEClientRequestFrom(buf []byte) domain.MEClientRequest {
	return domain.MEClientRequest{
		Type:     domain.ClientRequestType(buf[0]),
		ClientID: domain.ClientID(byteOrder.Uint32(buf[1:5])),
		TickerID: domain.TickerID(byteOrder.Uint32(buf[5:9])),
		OrderID:  domain.OrderID(byteOrder.Uint64(buf[9:17])),
		Side:     domain.Side(int8(buf[17])),
		Price:    domain.Price(byteOrder.Uint64(buf[18:26])),
		Qty:      domain.Qty(byteOrder.Uint32(buf[26:30])),
	}
}

// PutMEClientResponse encodes r into buf.
func PutMEClientResponse(buf []byte, r domain.MEClientResponse) {
	buf[0] = byte(r.Type)
	byteOrder.PutUint32(buf[1:5], uint32(r.ClientID))
	byteOrder.PutUint32(buf[5:9], uint32(r.TickerID))
	byteOrder.PutUint64(buf[9:17], uint64(r.ClientOrderID))
	byteOrder.PutUint64(buf[17:25], uint64(r.MarketOrderID))
	buf[25] = byte(r.Side)
	byteOrder.PutUint64(buf[26:34], uint64(r.Price))
	byteOrder.PutUint32(buf[34:38], uint32(r.ExecQty))
	byteOrder.PutUint32(buf[38:42], uint32(r.LeavesQty))
}

// MEClientResponseFrom decodes a MEClientResponse from buf.
func MEClientResponseFrom(buf []byte) domain.MEClientResponse {
	return domain.MEClientResponse{
		Type:          domain.ClientResponseType(buf[0]),
		ClientID:      domain.ClientID(byteOrder.Uint32(buf[1:5])),
		TickerID:      domain.TickerID(byteOrder.Uint32(buf[5:9])),
		ClientOrderID: domain.OrderID(byteOrder.Uint64(buf[9:17])),
		MarketOrderID: domain.OrderID(byteOrder.Uint64(buf[17:25])),
		Side:          domain.Side(int8(buf[25])),
		Price:         domain.Price(byteOrder.Uint64(buf[26:34])),
		ExecQty:       domain.Qty(byteOrder.Uint32(buf[34:38])),
		LeavesQty:     domain.Qty(byteOrder.Uint32(buf[38:42])),
	}
}

// PutMEMarketUpdate encodes u into buf.
func PutMEMarketUpdate(buf []byte, u domain.MEMarketUpdate) {
	buf[0] = byte(u.Type)
	byteOrder.PutUint64(buf[1:9], uint64(u.OrderID))
	byteOrder.PutUint32(buf[9:13], uint32(u.TickerID))
	buf[13] = byte(u.Side)
	byteOrder.PutUint64(buf[14:22], uint64(u.Price))
	byteOrder.PutUint32(buf[22:26], uint32(u.Qty))
	byteOrder.PutUint64(buf[26:34], uint64(u.Priority))
}

// MEMarketUpdateFrom decodes a MEMarketUpdate from buf.
func MEMarketUpdateFrom(buf []byte) domain.MEMarketUpdate {
	return domain.MEMarketUpdate{
		Type:     domain.MarketUpdateType(buf[0]),
		OrderID:  domain.OrderID(byteOrder.Uint64(buf[1:9])),
		TickerID: domain.TickerID(byteOrder.Uint32(buf[9:13])),
		Side:     domain.Side(int8(buf[13])),
		Price:    domain.Price(byteOrder.Uint64(buf[14:22])),
		Qty:      domain.Qty(byteOrder.Uint32(buf[22:26])),
		Priority: domain.Priority(byteOrder.Uint64(buf[26:34])),
	}
}

// PutOMClientRequest encodes a sequenced client request into buf.
func PutOMClientRequest(buf []byte, r domain.OMClientRequest) {
	byteOrder.PutUint64(buf[0:8], r.Seq)
	PutMEClientRequest(buf[8:8+SizeMEClientRequest], r.Request)
}

// OMClientRequestFrom decodes a sequenced client request from buf.
func OMClientRequestFrom(buf []byte) domain.OMClientRequest {
	return domain.OMClientRequest{
		Seq:     byteOrder.Uint64(buf[0:8]),
		Request: MEClientRequestFrom(buf[8 : 8+SizeMEClientRequest]),
	}
}

// PutOMClientResponse encodes a sequenced client response into buf.
func PutOMClientResponse(buf []byte, r domain.OMClientResponse) {
	byteOrder.PutUint64(buf[0:8], r.Seq)
	PutMEClientResponse(buf[8:8+SizeMEClientResponse], r.Response)
}

// OMClientResponseFrom decodes a sequenced client response from buf.
func OMClientResponseFrom(buf []byte) domain.OMClientResponse {
	return domain.OMClientResponse{
		Seq:      byteOrder.Uint64(buf[0:8]),
		Response: MEClientResponseFrom(buf[8 : 8+SizeMEClientResponse]),
	}
}

// PutMDPMarketUpdate encodes a sequenced market update into buf.
func PutMDPMarketUpdate(buf []byte, u domain.MDPMarketUpdate) {
	byteOrder.PutUint64(buf[0:8], u.Seq)
	PutMEMarketUpdate(buf[8:8+SizeMEMarketUpdate], u.Update)
}

// MDPMarketUpdateFrom decodes a sequenced market update from buf.
func MDPMarketUpdateFrom(buf []byte) domain.MDPMarketUpdate {
	return domain.MDPMarketUpdate{
		Seq:    byteOrder.Uint64(buf[0:8]),
		Update: MEMarketUpdateFrom(buf[8 : 8+SizeMEMarketUpdate]),
	}
}

// WriteOMClientResponse writes a sequenced response as two back-to-back
// writes on w, matching the original order-server's "seq then payload"
// send discipline (spec §4.6).
func WriteOMClientResponse(w io.Writer, seq uint64, resp domain.MEClientResponse) error {
	var seqBuf [8]byte
	byteOrder.PutUint64(seqBuf[:], seq)
	if _, err := w.Write(seqBuf[:]); err != nil {
		return fmt.Errorf("wire: write seq: %w", err)
	}
	var payload [SizeMEClientResponse]byte
	PutMEClientResponse(payload[:], resp)
	if _, err := w.Write(payload[:]); err != nil {
		return fmt.Errorf("wire: write response payload: %w", err)
	}
	return nil
}

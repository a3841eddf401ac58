// Package orderserver implements spec §4.6: the exchange-side TCP order
// gateway. It accepts connections, slices the inbound byte stream into
// fixed-size OMClientRequest frames, validates per-client sequencing and
// socket pinning, feeds accepted frames to the FIFO sequencer, and drains
// the outbound response ring to each client's pinned socket. Grounded on
// the teacher's server.go (accept loop, per-client registry behind a
// mutex, one goroutine per connection) generalized from femto_go's
// line-oriented text protocol to the spec's fixed-width binary framing
// and per-client sequence validation.
package orderserver

import (
	"net"
	"sync"
	"time"

	"github.com/ejyy/femto-plant/internal/domain"
	"github.com/ejyy/femto-plant/internal/errs"
	"github.com/ejyy/femto-plant/internal/logging"
	"github.com/ejyy/femto-plant/internal/ring"
	"github.com/ejyy/femto-plant/internal/sequencer"
	"github.com/ejyy/femto-plant/internal/wire"
)

type clientState struct {
	expectedRecvSeq uint64
	nextOutgoingSeq uint64
	socket          net.Conn
}

// Server is the exchange's TCP order gateway.
type Server struct {
	logger *logging.Logger
	seq    *sequencer.Sequencer

	listener net.Listener

	mu      sync.Mutex
	clients map[domain.ClientID]*clientState

	outbound *ring.Ring[domain.MEClientResponse]

	// connClient recovers which client a raw socket belongs to once
	// the first frame has arrived and named it, so outbound response
	// routing and inbound re-validation agree. In the original, the
	// client id is carried explicitly in every OMClientRequest frame, so
	// this is simply the observed binding, not a discovery handshake.
	connClient map[net.Conn]domain.ClientID
}

// New creates a server that feeds accepted frames into seq and drains
// outbound (ring R2) to clients' sockets. It binds no socket itself; call
// Listen with an address (e.g. "127.0.0.1:12345") before Serve.
func New(logger *logging.Logger, seq *sequencer.Sequencer, outbound *ring.Ring[domain.MEClientResponse]) *Server {
	return &Server{
		logger:     logger,
		seq:        seq,
		clients:    make(map[domain.ClientID]*clientState),
		outbound:   outbound,
		connClient: make(map[net.Conn]domain.ClientID),
	}
}

// Listen binds the TCP listener. Call before Serve.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln
	return nil
}

// Addr returns the listener's bound address. Call after Listen.
func (s *Server) Addr() string { return s.listener.Addr().String() }

// Serve accepts connections until stop is closed. Each connection gets its
// own receive goroutine; framing/sequencing/dispatch happens there, while
// this goroutine only accepts. The epoll-round semantics of the original
// (all events of a round drained, then SequenceAndPublish once) are
// approximated here by the caller invoking SequenceAndPublish once per
// outer tick (see cmd/exchange), since Go's net package does not expose a
// single epoll generation boundary the way raw epoll_wait does.
func (s *Server) Serve(stop <-chan struct{}) {
	go func() {
		<-stop
		s.listener.Close()
	}()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-stop:
				return
			default:
				continue
			}
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	buf := make([]byte, 0, wire.SizeOMClientRequest*8)
	read := make([]byte, wire.SizeOMClientRequest*8)
	for {
		n, err := conn.Read(read)
		if err != nil {
			return
		}
		recvTime := time.Now().UnixNano()
		buf = append(buf, read[:n]...)

		for len(buf) >= wire.SizeOMClientRequest {
			frame := buf[:wire.SizeOMClientRequest]
			s.onFrame(conn, recvTime, frame)
			buf = buf[wire.SizeOMClientRequest:]
		}
		// leftover partial frame bytes are kept at the buffer head by the
		// slicing above (spec §4.6: "leftover bytes are memmoved to the
		// buffer head").
		if len(buf) > 0 {
			rest := make([]byte, len(buf))
			copy(rest, buf)
			buf = rest
		} else {
			buf = buf[:0]
		}
	}
}

func (s *Server) onFrame(conn net.Conn, recvTimeNanos int64, frame []byte) {
	omReq := wire.OMClientRequestFrom(frame)
	clientID := omReq.Request.ClientID

	s.mu.Lock()
	cs, known := s.clients[clientID]
	if !known {
		cs = &clientState{expectedRecvSeq: 1, nextOutgoingSeq: 1, socket: conn}
		s.clients[clientID] = cs
		s.connClient[conn] = clientID
	}
	boundSocket := cs.socket
	expected := cs.expectedRecvSeq
	s.mu.Unlock()

	if boundSocket != conn {
		fault := errs.NewProtocolFault("frame from client %d on unpinned socket", clientID)
		if s.logger != nil {
			s.logger.Logf("orderserver: %v, dropping", fault)
		}
		return
	}
	if omReq.Seq != expected {
		fault := errs.NewProtocolFault("client %d seq mismatch, want %d got %d", clientID, expected, omReq.Seq)
		if s.logger != nil {
			s.logger.Logf("orderserver: %v, dropping", fault)
		}
		return
	}

	s.mu.Lock()
	cs.expectedRecvSeq++
	s.mu.Unlock()

	s.seq.Add(recvTimeNanos, omReq.Request)
}

// DrainResponses drains everything currently queued on the outbound ring
// and writes each as (seq, response) to its owning client's pinned socket,
// incrementing that client's outgoing sequence. Sending to a client with
// no known socket is fatal (spec §4.6, §7.3).
func (s *Server) DrainResponses() {
	for {
		slot := s.outbound.PeekRead()
		if slot == nil {
			return
		}
		resp := *slot
		s.outbound.CommitRead()
		s.sendResponse(resp)
	}
}

func (s *Server) sendResponse(resp domain.MEClientResponse) {
	s.mu.Lock()
	cs, ok := s.clients[resp.ClientID]
	s.mu.Unlock()
	if !ok || cs.socket == nil {
		logging.Fatalf("orderserver: no known socket for client %d", resp.ClientID)
	}

	s.mu.Lock()
	seq := cs.nextOutgoingSeq
	s.mu.Unlock()

	if err := wire.WriteOMClientResponse(cs.socket, seq, resp); err != nil {
		if s.logger != nil {
			s.logger.Logf("orderserver: write to client %d failed: %v", resp.ClientID, err)
		}
		return
	}

	s.mu.Lock()
	cs.nextOutgoingSeq++
	s.mu.Unlock()
}

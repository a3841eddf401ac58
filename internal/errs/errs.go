// Package errs encodes the four-way error taxonomy of spec §7. Protocol
// faults are logged and dropped by the caller (this package just names
// them); business rejections are typed response values, not Go errors
// (see domain.ClientResponseCancelRejected); invariant violations abort
// the process via logging.Fatalf; transient network loss is handled
// entirely inside internal/mdconsumer and never surfaces here.
package errs

import "fmt"

// ProtocolFault describes a malformed frame, a wrong-client/socket
// binding, or a sequence-gap on the order-gateway RX path (spec §7.1).
// The current design logs and drops; rejecting to the client is a
// documented future improvement, matching the source's own TODO.
type ProtocolFault struct {
	Reason string
}

func (e *ProtocolFault) Error() string {
	return fmt.Sprintf("protocol fault: %s", e.Reason)
}

// NewProtocolFault builds a ProtocolFault with a formatted reason.
func NewProtocolFault(format string, args ...any) *ProtocolFault {
	return &ProtocolFault{Reason: fmt.Sprintf(format, args...)}
}

package tls

import (
	"github.com/pkg/errors"

	"github.com/mel2oo/tlsprobe/memview"
)

type handshakeMessage struct {
	msgType handshakeType
	body    memview.MemView
}

// Joins the payloads of Handshake records into handshake messages. A message
// may span any number of records, and a record may carry the tail of one
// message and the head of the next.
type handshakeReassembler struct {
	// Handshake bytes not yet returned as part of a message.
	pending memview.MemView

	// Largest declared message length accepted.
	maxLength_bytes int64
}

func (r *handshakeReassembler) add(payload memview.MemView) {
	r.pending.Append(payload)
}

// Returns the next complete message. Bytes after it stay buffered for the
// following call.
//
// Returns errIncomplete until the whole message has been added, and
// ErrMalformed as soon as the header declares a length over the cap.
func (r *handshakeReassembler) next() (handshakeMessage, error) {
	if r.pending.Len() < handshakeHeaderLength_bytes {
		return handshakeMessage{}, errIncomplete
	}

	msgType := handshakeType(r.pending.GetByte(0))
	bodyLen_bytes := int64(r.pending.GetUint24(1))
	if r.maxLength_bytes > 0 && bodyLen_bytes > r.maxLength_bytes {
		return handshakeMessage{}, errors.Wrapf(ErrMalformed,
			"%s declares %d bytes, limit is %d", msgType, bodyLen_bytes, r.maxLength_bytes)
	}

	end := handshakeHeaderLength_bytes + bodyLen_bytes
	if r.pending.Len() < end {
		return handshakeMessage{}, errIncomplete
	}

	msg := handshakeMessage{
		msgType: msgType,
		body:    r.pending.SubView(handshakeHeaderLength_bytes, end),
	}
	r.pending = r.pending.SubView(end, r.pending.Len())
	return msg, nil
}

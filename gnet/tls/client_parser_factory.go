package tls

import (
	"github.com/google/gopacket/reassembly"
	"github.com/google/uuid"

	"github.com/mel2oo/tlsprobe/gid"
	"github.com/mel2oo/tlsprobe/gnet"
	"github.com/mel2oo/tlsprobe/memview"
)

// Returns a parser factory for the client half of a TLS connection. Options are
// applied to every parser it creates.
func NewTLSClientParserFactory(opts ...Option) gnet.TCPParserFactory {
	return &tlsClientParserFactory{opts: opts}
}

type tlsClientParserFactory struct {
	opts []Option
}

func (*tlsClientParserFactory) Name() string {
	return "TLS Client Parser Factory"
}

func (factory *tlsClientParserFactory) Accepts(input memview.MemView, isEnd bool) (decision gnet.AcceptDecision, discardFront int64) {
	decision, discardFront = factory.accepts(input)

	if decision == gnet.NeedMoreData && isEnd {
		decision = gnet.Reject
		discardFront = input.Len()
	}

	return decision, discardFront
}

var clientHelloHandshakeBytes = []byte{
	// Record header (5 bytes)
	0x16,       // handshake record
	0x03, 0x00, // protocol version 3.x
	0x00, 0x00, // handshake payload size (ignored)

	// Handshake header (4 bytes)
	0x01,             // Client Hello
	0x00, 0x00, 0x00, // Client Hello payload size (ignored)

	// Client Version (2 bytes)
	0x03, 0x00, // protocol version 3.x
}

var clientHelloHandshakeMask = []byte{
	// Record header (5 bytes)
	0xff,       // handshake record
	0xff, 0x00, // protocol version; minor version ignored
	0x00, 0x00, // handshake payload size (ignored)

	// Handshake header (4 bytes)
	0xff,             // Client Hello
	0x00, 0x00, 0x00, // Client Hello payload size (ignored)

	// Client Version (2 bytes)
	0xff, 0x00, // protocol version; minor version ignored
}

func (*tlsClientParserFactory) accepts(input memview.MemView) (decision gnet.AcceptDecision, discardFront int64) {
	if input.Len() < minTLSClientHelloLength_bytes {
		return gnet.NeedMoreData, 0
	}

	// Accept if we match a "Client Hello" handshake message. Reject if we fail to
	// match.
	for idx, expectedByte := range clientHelloHandshakeBytes {
		if input.GetByte(int64(idx))&clientHelloHandshakeMask[idx] != expectedByte {
			return gnet.Reject, input.Len()
		}
	}

	return gnet.Accept, 0
}

func (factory *tlsClientParserFactory) CreateParser(id gnet.TCPBidiID, seq, ack reassembly.Sequence) gnet.TCPParser {
	opts := append([]Option{WithConnectionID(gid.NewConnectionID(uuid.UUID(id)))}, factory.opts...)
	return NewClientHelloParser(opts...)
}

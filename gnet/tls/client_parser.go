package tls

import (
	"github.com/pkg/errors"

	"github.com/mel2oo/tlsprobe/gid"
	"github.com/mel2oo/tlsprobe/gnet"
	"github.com/mel2oo/tlsprobe/memview"
)

// Where the pipeline is. awaitingBytes is both the initial state and the one
// revisited whenever a stage runs out of input; decoded and failed are
// terminal.
type parserState int

const (
	awaitingBytes parserState = iota
	haveRecord
	haveHandshakeMessage
	decoded
	failed
)

func (s parserState) String() string {
	switch s {
	case awaitingBytes:
		return "AwaitingBytes"
	case haveRecord:
		return "HaveRecord"
	case haveHandshakeMessage:
		return "HaveHandshakeMessage"
	case decoded:
		return "Decoded"
	case failed:
		return "Failed"
	default:
		return "unknown"
	}
}

type Option func(*ClientHelloParser)

// Rejects handshake messages that declare a body longer than n bytes. n <= 0
// removes the cap.
func WithMaxHandshakeLength(n int64) Option {
	return func(p *ClientHelloParser) {
		p.reassembler.maxLength_bytes = n
	}
}

func WithConnectionID(id gid.ConnectionID) Option {
	return func(p *ClientHelloParser) {
		p.connectionID = id
	}
}

// Decodes the first handshake message of a TLS client stream, which must be a
// ClientHello. Input can be fed in pieces of any size. A parser handles one
// stream and is not safe for concurrent use.
type ClientHelloParser struct {
	connectionID gid.ConnectionID
	state        parserState

	// Input not yet deframed into records.
	pending memview.MemView

	// Bytes of input that were deframed into records.
	consumed_bytes int64

	reassembler handshakeReassembler

	// Set once the parser reaches the failed state.
	err error
}

var _ gnet.TCPParser = (*ClientHelloParser)(nil)

func NewClientHelloParser(opts ...Option) *ClientHelloParser {
	p := &ClientHelloParser{
		connectionID: gid.GenerateConnectionID(),
		reassembler: handshakeReassembler{
			maxLength_bytes: DefaultMaxHandshakeLength_bytes,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (*ClientHelloParser) Name() string {
	return "TLS Client-Hello Parser"
}

// Number of bytes fed to the parser that it has not yet framed into records.
func (p *ClientHelloParser) Pending() int64 {
	return p.pending.Len()
}

func (p *ClientHelloParser) Parse(input memview.MemView, isEnd bool) (result gnet.ParsedNetworkContent, unused memview.MemView, totalBytesConsumed int64, err error) {
	switch p.state {
	case decoded:
		return nil, input, p.consumed_bytes, errParserDone
	case failed:
		return nil, memview.MemView{}, p.consumed_bytes, p.err
	}

	p.pending.Append(input)

	hello, err := p.run()
	switch {
	case err == nil:
		p.state = decoded
		return hello, p.pending, p.consumed_bytes, nil
	case errors.Is(err, errIncomplete):
		if !isEnd {
			p.state = awaitingBytes
			return nil, memview.MemView{}, p.consumed_bytes, nil
		}
		err = ErrUnexpectedEOF
	}

	p.state = failed
	p.err = err
	return nil, memview.MemView{}, p.consumed_bytes, err
}

// Drives the state machine as far as the buffered input allows.
func (p *ClientHelloParser) run() (gnet.TLSClientHello, error) {
	for {
		// Deframe every complete record already buffered before asking for more.
		rec, n, err := deframeRecord(p.pending)
		if err != nil {
			return gnet.TLSClientHello{}, err
		}
		p.pending = p.pending.SubView(n, p.pending.Len())
		p.consumed_bytes += n
		p.state = haveRecord

		// Only handshake records matter; anything else (e.g. a stray alert or
		// change_cipher_spec) is skipped.
		if rec.contentType != handshakeContentType {
			continue
		}
		p.reassembler.add(rec.payload)

		msg, err := p.reassembler.next()
		if errors.Is(err, errIncomplete) {
			continue
		} else if err != nil {
			return gnet.TLSClientHello{}, err
		}
		p.state = haveHandshakeMessage

		if msg.msgType != clientHelloHandshakeType {
			return gnet.TLSClientHello{}, errors.Wrapf(ErrUnexpectedMessageType,
				"got %s (%d)", msg.msgType, uint8(msg.msgType))
		}
		return decodeClientHello(p.connectionID, msg.body)
	}
}

// Decodes a complete byte sequence holding the start of a client's TLS stream.
// Bytes after the record that completes the ClientHello are ignored.
func DecodeClientHello(data []byte, opts ...Option) (gnet.TLSClientHello, error) {
	result, _, _, err := NewClientHelloParser(opts...).Parse(memview.New(data), true)
	if err != nil {
		return gnet.TLSClientHello{}, err
	}
	return result.(gnet.TLSClientHello), nil
}

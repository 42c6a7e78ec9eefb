package gnet

import (
	"github.com/google/gopacket/reassembly"

	"github.com/mel2oo/tlsprobe/memview"
)

type AcceptDecision int

const (
	Reject AcceptDecision = iota
	NeedMoreData
	Accept
)

func (d AcceptDecision) String() string {
	switch d {
	case Reject:
		return "Reject"
	case NeedMoreData:
		return "NeedMoreData"
	case Accept:
		return "Accept"
	default:
		return "unknown"
	}
}

// A TCPParser consumes one direction of a TCP stream and produces at most one
// piece of parsed content. Input arrives in whatever pieces the transport
// delivered it; the parser keeps what it needs between calls.
type TCPParser interface {
	Name() string

	// Feeds more bytes to the parser. isEnd is true when no more bytes will
	// arrive on this stream.
	//
	// If result is nil and err is nil, the parser needs more data. Once a result
	// is produced, unused holds any input that came after it. totalBytesConsumed
	// counts input bytes accounted for by this parser so far.
	Parse(input memview.MemView, isEnd bool) (result ParsedNetworkContent, unused memview.MemView, totalBytesConsumed int64, err error)
}

type TCPParserFactory interface {
	Name() string

	// Decides whether this factory's parser can handle a stream starting with
	// input. discardFront is the number of leading bytes the caller may drop
	// before asking again.
	Accepts(input memview.MemView, isEnd bool) (decision AcceptDecision, discardFront int64)

	CreateParser(id TCPBidiID, seq, ack reassembly.Sequence) TCPParser
}

type TCPParserFactorySelector []TCPParserFactory

// Returns the first factory that accepts input. If none accepts but some need
// more data, returns NeedMoreData with the smallest discardFront among them.
// Otherwise rejects the whole input.
func (s TCPParserFactorySelector) Select(input memview.MemView, isEnd bool) (TCPParserFactory, AcceptDecision, int64) {
	decision := Reject
	discardFront := input.Len()

	for _, fact := range s {
		d, df := fact.Accepts(input, isEnd)
		switch d {
		case Accept:
			return fact, Accept, df
		case NeedMoreData:
			if decision != NeedMoreData || df < discardFront {
				discardFront = df
			}
			decision = NeedMoreData
		}
	}

	return nil, decision, discardFront
}

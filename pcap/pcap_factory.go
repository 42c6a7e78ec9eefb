package pcap

import (
	"encoding/binary"
	"net"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/reassembly"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mel2oo/tlsprobe/gid"
	"github.com/mel2oo/tlsprobe/gnet"
	"github.com/mel2oo/tlsprobe/memview"
)

// Internal implementation of reassembly.AssemblerContext that include TCP
// seq and ack numbers.
type assemblerCtxWithSeq struct {
	ci       gopacket.CaptureInfo
	seq, ack reassembly.Sequence
}

func contextFromTCPPacket(p gopacket.Packet, t *layers.TCP) *assemblerCtxWithSeq {
	return &assemblerCtxWithSeq{
		ci:  p.Metadata().CaptureInfo,
		seq: reassembly.Sequence(t.Seq),
		ack: reassembly.Sequence(t.Ack),
	}
}

func (ctx *assemblerCtxWithSeq) GetCaptureInfo() gopacket.CaptureInfo {
	return ctx.ci
}

// tcpStreamFactory implements reassembly.StreamFactory.
type tcpStreamFactory struct {
	fs      gnet.TCPParserFactorySelector
	outChan chan<- gnet.NetTraffic
	logger  *zap.Logger
}

func newTCPStreamFactory(outChan chan<- gnet.NetTraffic,
	fs gnet.TCPParserFactorySelector, logger *zap.Logger) *tcpStreamFactory {
	return &tcpStreamFactory{
		fs:      fs,
		outChan: outChan,
		logger:  logger,
	}
}

func (fact *tcpStreamFactory) New(netFlow, transportFlow gopacket.Flow, _ *layers.TCP,
	_ reassembly.AssemblerContext) reassembly.Stream {
	return newTCPStream(netFlow, transportFlow, fact.outChan, fact.fs, fact.logger)
}

// tcpStream implements reassembly.Stream. It holds both directions of one
// connection; each direction is parsed independently.
type tcpStream struct {
	bidiID gnet.TCPBidiID

	mu    sync.Mutex
	flows map[reassembly.TCPFlowDirection]*tcpFlow
}

func newTCPStream(netFlow, transportFlow gopacket.Flow, outChan chan<- gnet.NetTraffic,
	fs gnet.TCPParserFactorySelector, logger *zap.Logger) *tcpStream {
	bidiID := gnet.TCPBidiID(uuid.New())
	return &tcpStream{
		bidiID: bidiID,
		flows: map[reassembly.TCPFlowDirection]*tcpFlow{
			reassembly.TCPDirClientToServer: newTCPFlow(bidiID, netFlow, transportFlow, outChan, fs, logger),
			reassembly.TCPDirServerToClient: newTCPFlow(bidiID, netFlow.Reverse(), transportFlow.Reverse(), outChan, fs, logger),
		},
	}
}

func (s *tcpStream) Accept(tcp *layers.TCP, ci gopacket.CaptureInfo, dir reassembly.TCPFlowDirection,
	nextSeq reassembly.Sequence, start *bool, ac reassembly.AssemblerContext) bool {
	// Captures often begin in the middle of a connection; take the stream as
	// it comes rather than waiting for a SYN.
	*start = true
	return true
}

func (s *tcpStream) ReassembledSG(sg reassembly.ScatterGather, ac reassembly.AssemblerContext) {
	dir, _, isEnd, skip := sg.Info()
	length, _ := sg.Lengths()

	// The returned slice belongs to the assembler and is reused once we
	// return.
	data := append([]byte(nil), sg.Fetch(length)...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows[dir].reassembled(memview.New(data), isEnd, skip != 0, ac)
}

func (s *tcpStream) ReassemblyComplete(ac reassembly.AssemblerContext) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.flows {
		f.reassemblyComplete(ac)
	}

	// Remove the connection from the pool.
	return true
}

// One direction of a TCP connection.
type tcpFlow struct {
	bidiID gnet.TCPBidiID

	srcIP, dstIP     net.IP
	srcPort, dstPort int

	outChan         chan<- gnet.NetTraffic
	factorySelector gnet.TCPParserFactorySelector
	logger          *zap.Logger

	// Non-nil while a parser has accepted the stream and not yet finished.
	currentParser gnet.TCPParser

	// Bytes seen but not yet claimed by any factory.
	unusedAccumulated memview.MemView

	// Capture time of the first segment the current parser was fed.
	firstPacketTime time.Time
}

func newTCPFlow(bidiID gnet.TCPBidiID, netFlow, transportFlow gopacket.Flow, outChan chan<- gnet.NetTraffic,
	fs gnet.TCPParserFactorySelector, logger *zap.Logger) *tcpFlow {
	srcE, dstE := netFlow.Endpoints()
	srcP, dstP := transportFlow.Endpoints()
	return &tcpFlow{
		bidiID:          bidiID,
		srcIP:           net.IP(srcE.Raw()),
		dstIP:           net.IP(dstE.Raw()),
		srcPort:         portFromEndpoint(srcP),
		dstPort:         portFromEndpoint(dstP),
		outChan:         outChan,
		factorySelector: fs,
		logger:          logger,
	}
}

func portFromEndpoint(e gopacket.Endpoint) int {
	raw := e.Raw()
	if len(raw) != 2 {
		return 0
	}
	return int(binary.BigEndian.Uint16(raw))
}

func seqAck(ac reassembly.AssemblerContext) (seq, ack reassembly.Sequence) {
	if c, ok := ac.(*assemblerCtxWithSeq); ok {
		return c.seq, c.ack
	}
	return 0, 0
}

func (f *tcpFlow) reassembled(data memview.MemView, isEnd, gap bool, ac reassembly.AssemblerContext) {
	if gap {
		// Whatever was in progress can never be completed.
		if f.currentParser != nil {
			f.logger.Debug("dropping parser after gap in stream",
				zap.String("parser", f.currentParser.Name()),
				zap.Stringer("src", f.srcIP), zap.Int("src_port", f.srcPort))
		}
		f.currentParser = nil
		f.unusedAccumulated.Clear()
	}

	f.unusedAccumulated.Append(data)
	f.process(isEnd, ac)
}

func (f *tcpFlow) reassemblyComplete(ac reassembly.AssemblerContext) {
	f.process(true, ac)
	f.currentParser = nil
	f.unusedAccumulated.Clear()
}

func (f *tcpFlow) process(isEnd bool, ac reassembly.AssemblerContext) {
	observed := ac.GetCaptureInfo().Timestamp

	for {
		input := f.unusedAccumulated

		if f.currentParser == nil {
			if input.Len() == 0 {
				return
			}

			fact, decision, discardFront := f.factorySelector.Select(input, isEnd)
			switch decision {
			case gnet.Accept:
				seq, ack := seqAck(ac)
				f.currentParser = fact.CreateParser(f.bidiID, seq, ack)
				f.firstPacketTime = observed
				input = input.SubView(discardFront, input.Len())
			case gnet.NeedMoreData:
				f.unusedAccumulated = input.SubView(discardFront, input.Len())
				return
			default:
				f.unusedAccumulated.Clear()
				return
			}
		}

		f.unusedAccumulated.Clear()
		result, unused, _, err := f.currentParser.Parse(input, isEnd)
		if err != nil {
			f.emit(f.failure(err), observed)
			f.currentParser = nil
			return
		}
		if result == nil {
			// The parser holds on to what it was given.
			return
		}

		f.emit(result, observed)
		f.currentParser = nil
		f.unusedAccumulated = unused
	}
}

// Carries the same connection ID the parser would have put on its ClientHello.
func (f *tcpFlow) failure(err error) gnet.ParsedNetworkContent {
	return gnet.TLSDecodeFailure{
		ConnectionID: gid.NewConnectionID(uuid.UUID(f.bidiID)),
		Err:          err,
	}
}

func (f *tcpFlow) emit(c gnet.ParsedNetworkContent, observed time.Time) {
	f.outChan <- gnet.NetTraffic{
		SrcIP:           f.srcIP,
		SrcPort:         f.srcPort,
		DstIP:           f.dstIP,
		DstPort:         f.dstPort,
		Content:         c,
		ObservationTime: f.firstPacketTime,
		FinalPacketTime: observed,
	}
}

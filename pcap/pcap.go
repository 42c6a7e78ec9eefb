package pcap

import (
	"context"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/reassembly"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mel2oo/tlsprobe/gnet"
)

// Replays a capture file and reports every ClientHello found in it.
type TrafficParser struct {
	opts    Options
	reader  PcapReader
	outchan chan gnet.NetTraffic
}

func NewTrafficParser(opt ...Option) (*TrafficParser, error) {
	opts := NewOptions()
	for _, o := range opt {
		o(&opts)
	}

	if len(opts.ReadName) == 0 {
		return nil, errors.New("please set reader name")
	}

	return &TrafficParser{
		opts:    opts,
		reader:  NewFileReader(opts.ReadName),
		outchan: make(chan gnet.NetTraffic, 100),
	}, nil
}

// Reassembles the TCP streams in the capture and runs each through the given
// parser factories. The order of factories matters: earlier factories get
// tried first. Once a factory has accepted a stream, no other factory is asked
// about it until its parser finishes.
//
// The returned channel is closed once the capture has been read and every
// stream flushed.
func (p *TrafficParser) Parse(ctx context.Context,
	fs ...gnet.TCPParserFactory) (<-chan gnet.NetTraffic, error) {
	packets, err := p.reader.Capture(ctx)
	if err != nil {
		return nil, err
	}

	streamFactory := newTCPStreamFactory(p.outchan, gnet.TCPParserFactorySelector(fs), p.opts.Logger)
	streamPool := reassembly.NewStreamPool(streamFactory)
	assembler := reassembly.NewAssembler(streamPool)

	// Override the assembler configuration. (This is the documented way to change them.)
	assembler.AssemblerOptions.MaxBufferedPagesTotal = p.opts.MaxBufferedPagesTotal
	assembler.AssemblerOptions.MaxBufferedPagesPerConnection = p.opts.MaxBufferedPagesPerConnection

	streamFlushTimeout := time.Duration(p.opts.StreamFlushTimeout) * time.Second
	streamCloseTimeout := time.Duration(p.opts.StreamCloseTimeout) * time.Second

	go func() {
		ticker := time.NewTicker(streamFlushTimeout / 4)
		defer ticker.Stop()

		// Signal caller that we're done on exit
		defer close(p.outchan)

		// Capture files are replayed much faster than they were recorded, so
		// stream ages are measured on the capture's clock.
		var lastPacketTime time.Time

		for {
			select {
			case packet, more := <-packets:
				if !more || packet == nil {
					// Flushes and closes all remaining connections, so every parser
					// sees the end of its stream.
					//
					// Not safe to call in a defer: after a panic the assembler might
					// not be in a safe state to call (like holding a mutex.)
					assembler.FlushAll()
					return
				}

				if md := packet.Metadata(); md != nil && md.Timestamp.After(lastPacketTime) {
					lastPacketTime = md.Timestamp
				}
				p.assemble(assembler, packet)
			case <-ticker.C:
				if lastPacketTime.IsZero() {
					continue
				}

				// If part of a stream is missing for longer than streamFlushTimeout,
				// the assembler skips the gap and delivers what it has after it. Idle
				// streams are closed after the longer streamCloseTimeout.
				flushed, closed := assembler.FlushWithOptions(
					reassembly.FlushOptions{
						T:  lastPacketTime.Add(-streamFlushTimeout),
						TC: lastPacketTime.Add(-streamCloseTimeout),
					})

				if flushed != 0 || closed != 0 {
					p.opts.Logger.Debug("flushed streams",
						zap.Int("flushed", flushed),
						zap.Int("closed", closed))
				}
			}
		}
	}()

	return p.outchan, nil
}

// Hands TCP segments to the assembler. Everything else is skipped: a
// ClientHello only ever travels over TCP.
func (p *TrafficParser) assemble(assembler *reassembly.Assembler, packet gopacket.Packet) {
	defer func() {
		// A bad packet must not take down the whole replay.
		if err := recover(); err != nil {
			p.opts.Logger.Error("packet handling panicked", zap.Any("panic", err))
		}
	}()

	if packet.NetworkLayer() == nil {
		return
	}

	t, ok := packet.TransportLayer().(*layers.TCP)
	if !ok {
		return
	}

	assembler.AssembleWithContext(packet.NetworkLayer().NetworkFlow(), t,
		contextFromTCPPacket(packet, t))
}

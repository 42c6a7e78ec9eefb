package pcap

import (
	"go.uber.org/zap"
)

const (
	DefaultStreamFlushTimeout int64 = 10
	DefaultStreamCloseTimeout int64 = 90

	DefaultMaxBufferedPagesTotal         int = 100000
	DefaultMaxBufferedPagesPerConnection int = 4000
)

type Options struct {
	// Capture file to replay, pcap or pcapng.
	ReadName string

	// The maximum time, in seconds, we will wait before flushing a connection
	// and delivering the data even if there is a gap in the collected sequence.
	// Default 10 seconds.
	StreamFlushTimeout int64

	// The maximum time, in seconds, we will leave a connection open waiting for
	// traffic. Default 90 seconds.
	StreamCloseTimeout int64

	// Maximum size of gopacket reassembly buffers, per interface and direction.
	//
	// A gopacket page is 1900 bytes.
	// We want to cap the total memory usage at about 200MB = 105263 pages
	MaxBufferedPagesTotal int

	// A ClientHello fits in a page or two, but a retransmission can arrive
	// long after the gap it fills.
	MaxBufferedPagesPerConnection int

	Logger *zap.Logger
}

func NewOptions() Options {
	return Options{
		StreamFlushTimeout:            DefaultStreamFlushTimeout,
		StreamCloseTimeout:            DefaultStreamCloseTimeout,
		MaxBufferedPagesTotal:         DefaultMaxBufferedPagesTotal,
		MaxBufferedPagesPerConnection: DefaultMaxBufferedPagesPerConnection,
		Logger:                        zap.NewNop(),
	}
}

type Option func(*Options)

func WithReadName(name string) Option {
	return func(o *Options) {
		o.ReadName = name
	}
}

func WithStreamFlushTimeout(t int64) Option {
	return func(o *Options) {
		o.StreamFlushTimeout = t
	}
}

func WithStreamCloseTimeout(t int64) Option {
	return func(o *Options) {
		o.StreamCloseTimeout = t
	}
}

func WithTotalPagesBlock(n int) Option {
	return func(o *Options) {
		o.MaxBufferedPagesTotal = n * DefaultMaxBufferedPagesTotal
	}
}

func WithPerPagesBlock(n int) Option {
	return func(o *Options) {
		o.MaxBufferedPagesPerConnection = n * DefaultMaxBufferedPagesPerConnection
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

package probe

import (
	"time"

	"go.uber.org/zap"

	gtls "github.com/mel2oo/tlsprobe/gnet/tls"
)

const (
	DefaultReadTimeout      = 10 * time.Second
	DefaultMaxBufferedBytes = 64 * 1024
)

type Options struct {
	// The client must deliver its whole ClientHello within this time of the
	// probe starting. Only enforced on streams with SetReadDeadline.
	ReadTimeout time.Duration

	// Cap on bytes buffered from the stream before a ClientHello is decoded.
	MaxBufferedBytes int

	// Cap on the declared length of the handshake message.
	MaxHandshakeLength int64

	Logger *zap.Logger
}

func NewOptions() Options {
	return Options{
		ReadTimeout:        DefaultReadTimeout,
		MaxBufferedBytes:   DefaultMaxBufferedBytes,
		MaxHandshakeLength: gtls.DefaultMaxHandshakeLength_bytes,
		Logger:             zap.NewNop(),
	}
}

type Option func(*Options)

func WithReadTimeout(t time.Duration) Option {
	return func(o *Options) {
		o.ReadTimeout = t
	}
}

func WithMaxBufferedBytes(n int) Option {
	return func(o *Options) {
		o.MaxBufferedBytes = n
	}
}

func WithMaxHandshakeLength(n int64) Option {
	return func(o *Options) {
		o.MaxHandshakeLength = n
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

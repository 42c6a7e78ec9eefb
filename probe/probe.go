package probe

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mel2oo/tlsprobe/gid"
	"github.com/mel2oo/tlsprobe/gnet"
	gtls "github.com/mel2oo/tlsprobe/gnet/tls"
	"github.com/mel2oo/tlsprobe/mempool"
)

// Reads the ClientHello a client sends on an established connection. A Prober
// may run any number of probes concurrently; each gets its own buffer from the
// shared pool.
type Prober struct {
	opts Options
	pool mempool.BufferPool
}

func NewProber(pool mempool.BufferPool, opt ...Option) *Prober {
	opts := NewOptions()
	for _, o := range opt {
		o(&opts)
	}
	return &Prober{opts: opts, pool: pool}
}

// Reads from r until a complete ClientHello has been decoded, the stream ends
// or fails, or ctx is done. Nothing is ever written to the stream.
//
// Read errors other than end of stream are returned unchanged. Decode failures
// match the gnet/tls sentinel errors; use gtls.Classify to tell them apart.
func (p *Prober) Probe(ctx context.Context, r io.Reader) (gnet.TLSClientHello, error) {
	return p.probe(ctx, r, gid.GenerateConnectionID())
}

func (p *Prober) probe(ctx context.Context, r io.Reader, cid gid.ConnectionID) (gnet.TLSClientHello, error) {
	logger := p.opts.Logger.With(zap.Stringer("connection_id", cid))
	start := time.Now()

	rr := newRecordReader(r, p.pool.NewBuffer(p.opts.MaxBufferedBytes), p.opts.ReadTimeout)
	defer rr.release()

	if err := rr.armDeadline(); err != nil {
		return gnet.TLSClientHello{}, err
	}

	// Closing the stream is not ours to do; pulling the deadline in unblocks
	// the read instead.
	if d, ok := r.(deadliner); ok {
		stop := context.AfterFunc(ctx, func() {
			_ = d.SetReadDeadline(time.Unix(1, 0))
		})
		defer stop()
	}

	parser := gtls.NewClientHelloParser(
		gtls.WithConnectionID(cid),
		gtls.WithMaxHandshakeLength(p.opts.MaxHandshakeLength),
	)

	for {
		fresh, err := rr.read()
		isEnd := errors.Is(err, io.EOF)
		if err != nil && !isEnd {
			switch {
			case ctx.Err() != nil:
				err = errors.Wrap(ctx.Err(), "probe canceled")
			case errors.Is(err, mempool.ErrBufferLimit):
				err = errors.Wrapf(gtls.ErrMalformed, "no ClientHello within %d bytes", p.opts.MaxBufferedBytes)
			case errors.Is(err, mempool.ErrEmptyPool):
				err = errors.Wrap(err, "no buffer space for probe")
			}
			logger.Debug("probe failed", zap.Error(err))
			return gnet.TLSClientHello{}, err
		}

		result, _, consumed, err := parser.Parse(fresh, isEnd)
		if err != nil {
			logger.Debug("probe failed", zap.Error(err), zap.Int64("consumed_bytes", consumed))
			return gnet.TLSClientHello{}, err
		}
		if result == nil {
			continue
		}

		hello := result.(gnet.TLSClientHello)
		logUnknownExtensions(logger, hello)
		logger.Debug("decoded ClientHello",
			zap.Stringer("version", hello.Version),
			zap.Strings("sni", hello.ServerNames()),
			zap.Int("cipher_suites", len(hello.CipherSuites)),
			zap.Int64("consumed_bytes", consumed),
			zap.Duration("elapsed", time.Since(start)))
		return hello, nil
	}
}

func logUnknownExtensions(logger *zap.Logger, hello gnet.TLSClientHello) {
	for _, ext := range hello.Extensions {
		if u, ok := ext.(gnet.UnknownExtension); ok {
			logger.Debug("unrecognized extension",
				zap.Uint16("type", u.Type),
				zap.String("name", gnet.ExtensionName(u.Type)),
				zap.Int("length", len(u.Raw)))
		}
	}
}

package probe

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"testing/iotest"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	gtls "github.com/mel2oo/tlsprobe/gnet/tls"
	"github.com/mel2oo/tlsprobe/gnet/tls/tlstest"
	"github.com/mel2oo/tlsprobe/mempool"
)

func newPool(t *testing.T) mempool.BufferPool {
	t.Helper()
	mempool.CheckInvariants = true
	pool, err := mempool.MakeBufferPool(1024*1024, 256)
	require.NoError(t, err)
	return pool
}

// Returns the server end of a pipe whose client end writes chunks, one write
// each, then closes.
func pipeWithChunks(t *testing.T, chunks ...[]byte) net.Conn {
	t.Helper()
	server, client := net.Pipe()
	go func() {
		defer client.Close()
		for _, c := range chunks {
			if _, err := client.Write(c); err != nil {
				return
			}
		}
	}()
	t.Cleanup(func() { server.Close() })
	return server
}

func TestProbeFragmentedHello(t *testing.T) {
	data := tlstest.Example().Marshal()
	var chunks [][]byte
	for i := 0; i < len(data); i += 7 {
		end := i + 7
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[i:end])
	}

	prober := NewProber(newPool(t))
	hello, err := prober.Probe(context.Background(), pipeWithChunks(t, chunks...))
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com"}, hello.ServerNames())
	assert.Len(t, hello.CipherSuites, 16)
}

func TestProbeSmallReads(t *testing.T) {
	data := tlstest.Example().Marshal()
	prober := NewProber(newPool(t))

	hello, err := prober.Probe(context.Background(), iotest.OneByteReader(bytes.NewReader(data)))
	require.NoError(t, err)
	assert.Equal(t, []string{"h2", "http/1.1"}, hello.ALPNProtocols())

	hello, err = prober.Probe(context.Background(), iotest.DataErrReader(bytes.NewReader(data)))
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com"}, hello.ServerNames())
}

func TestProbeEndOfStream(t *testing.T) {
	prober := NewProber(newPool(t))

	_, err := prober.Probe(context.Background(), pipeWithChunks(t))
	assert.ErrorIs(t, err, gtls.ErrUnexpectedEOF)
	assert.Equal(t, gtls.FailureEndOfStream, gtls.Classify(err))

	_, err = prober.Probe(context.Background(), bytes.NewReader(tlstest.Example().Marshal()[:40]))
	assert.ErrorIs(t, err, gtls.ErrUnexpectedEOF)
}

func TestProbeReadErrorIsVerbatim(t *testing.T) {
	readErr := errors.New("connection reset by test")
	prober := NewProber(newPool(t))

	_, err := prober.Probe(context.Background(), iotest.ErrReader(readErr))
	assert.Equal(t, readErr, err)
	assert.Equal(t, gtls.FailureIO, gtls.Classify(err))

	partial := io.MultiReader(bytes.NewReader(tlstest.Example().Marshal()[:20]), iotest.ErrReader(readErr))
	_, err = prober.Probe(context.Background(), partial)
	assert.Equal(t, readErr, err)
}

func TestProbeReadTimeout(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	defer server.Close()

	prober := NewProber(newPool(t), WithReadTimeout(50*time.Millisecond))
	_, err := prober.Probe(context.Background(), server)
	require.Error(t, err)
	assert.Equal(t, gtls.FailureTimeout, gtls.Classify(err))
}

func TestProbeCanceled(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	prober := NewProber(newPool(t), WithReadTimeout(time.Minute))
	_, err := prober.Probe(ctx, server)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProbeBufferLimit(t *testing.T) {
	// Valid so far, but never completes within the cap.
	data := tlstest.Example().Marshal()
	prober := NewProber(newPool(t), WithMaxBufferedBytes(64))

	_, err := prober.Probe(context.Background(), bytes.NewReader(data))
	assert.ErrorIs(t, err, gtls.ErrMalformed)
}

func TestProbeHandshakeLimit(t *testing.T) {
	prober := NewProber(newPool(t), WithMaxHandshakeLength(32))
	_, err := prober.Probe(context.Background(), bytes.NewReader(tlstest.Example().Marshal()))
	assert.ErrorIs(t, err, gtls.ErrMalformed)
}

func TestProbeEmptyPool(t *testing.T) {
	pool, err := mempool.MakeBufferPool(256, 256)
	require.NoError(t, err)

	hog := pool.NewBuffer(0)
	_, err = hog.Write(make([]byte, 256))
	require.NoError(t, err)
	defer hog.Release()

	_, err = NewProber(pool).Probe(context.Background(), bytes.NewReader(tlstest.Example().Marshal()))
	assert.ErrorIs(t, err, mempool.ErrEmptyPool)
	assert.Equal(t, gtls.FailureInternal, gtls.Classify(err))
}

type stalledReader struct{}

func (stalledReader) Read([]byte) (int, error) { return 0, nil }

func TestProbeNoProgress(t *testing.T) {
	_, err := NewProber(newPool(t)).Probe(context.Background(), stalledReader{})
	assert.Equal(t, io.ErrNoProgress, err)
}

func TestProbeReleasesBuffer(t *testing.T) {
	pool := newPool(t)
	available := pool.Available()

	prober := NewProber(pool)
	_, err := prober.Probe(context.Background(), bytes.NewReader(tlstest.Example().Marshal()))
	require.NoError(t, err)
	_, err = prober.Probe(context.Background(), bytes.NewReader([]byte{0x16, 0x03}))
	require.Error(t, err)

	assert.Equal(t, available, pool.Available())
}

func TestProbeLogsUnknownExtensions(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prober := NewProber(newPool(t), WithLogger(zap.New(core)))

	_, err := prober.Probe(context.Background(), bytes.NewReader(tlstest.Example().Marshal()))
	require.NoError(t, err)

	unknown := logs.FilterMessage("unrecognized extension").AllUntimed()
	var names []string
	for _, e := range unknown {
		names = append(names, e.ContextMap()["name"].(string))
	}
	assert.Equal(t, []string{"GREASE", "extended_master_secret", "renegotiation_info", "session_ticket"}, names)
}

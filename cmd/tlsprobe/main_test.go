package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mel2oo/tlsprobe/gid"
	"github.com/mel2oo/tlsprobe/gnet"
	gtls "github.com/mel2oo/tlsprobe/gnet/tls"
	"github.com/mel2oo/tlsprobe/gnet/tls/tlstest"
	"github.com/mel2oo/tlsprobe/mempool"
	"github.com/mel2oo/tlsprobe/probe"
	"github.com/mel2oo/tlsprobe/report"
	"github.com/mel2oo/tlsprobe/sets"
)

func newTestProber(t *testing.T) *probe.Prober {
	t.Helper()
	pool, err := mempool.MakeBufferPool(1024*1024, 1024)
	require.NoError(t, err)
	return probe.NewProber(pool, probe.WithReadTimeout(5*time.Second))
}

func TestBuildHello(t *testing.T) {
	h, err := buildHello(sendOptions{sni: []string{"probe.test"}, alpn: []string{"http/1.1"}})
	require.NoError(t, err)

	hello, err := gtls.DecodeClientHello(h.Marshal())
	require.NoError(t, err)
	assert.Equal(t, []string{"probe.test"}, hello.ServerNames())
	assert.Equal(t, []string{"http/1.1"}, hello.ALPNProtocols())

	// Everything else is the example, in the same order.
	assert.Equal(t, tlstest.Example().CipherSuites, hello.CipherSuites)
	assert.Len(t, hello.Extensions, len(tlstest.Example().Extensions))
}

func TestBuildHelloDefaults(t *testing.T) {
	h, err := buildHello(sendOptions{})
	require.NoError(t, err)

	hello, err := gtls.DecodeClientHello(h.Marshal())
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com"}, hello.ServerNames())
	assert.Equal(t, []string{"h2", "http/1.1"}, hello.ALPNProtocols())
}

// send and listen against each other over loopback.
func TestSendListen(t *testing.T) {
	for _, fragment := range []int{0, 1, 50} {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

		var out bytes.Buffer
		prober := newTestProber(t)
		done := make(chan error, 1)
		go func() {
			done <- listenOnce(ctx, l, prober, zap.NewNop(), &out, outputOptions{json: true})
		}()

		_, err = sendHello(ctx, l.Addr().String(), sendOptions{sni: []string{"loop.test"}, fragment: fragment})
		require.NoError(t, err, "fragment %d", fragment)
		require.NoError(t, <-done, "fragment %d", fragment)
		cancel()

		var r report.Report
		require.NoError(t, json.Unmarshal(out.Bytes(), &r))
		assert.Equal(t, []string{"loop.test"}, r.SNI, "fragment %d", fragment)
		assert.Empty(t, r.Raw)
	}
}

func TestListenFailure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	prober := newTestProber(t)
	done := make(chan error, 1)
	go func() {
		done <- listenOnce(ctx, l, prober, zap.NewNop(), &bytes.Buffer{}, outputOptions{})
	}()

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	_, err = conn.Write([]byte("GET / HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)
	defer conn.Close()

	err = <-done
	assert.ErrorIs(t, err, gtls.ErrMalformed)
	assert.Contains(t, err.Error(), gtls.FailureMalformed.Message())
}

func TestListenCanceled(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = listenOnce(ctx, l, newTestProber(t), zap.NewNop(), &bytes.Buffer{}, outputOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func helloTraffic(t *testing.T, sni string) gnet.NetTraffic {
	t.Helper()

	ext := tlstest.Example()
	for i, e := range ext.Extensions {
		if e.Type == gnet.ServerNameExtensionType {
			ext.Extensions[i] = tlstest.SNI(sni)
		}
	}
	hello, err := gtls.DecodeClientHello(ext.Marshal())
	require.NoError(t, err)

	return gnet.NetTraffic{
		SrcIP:           net.ParseIP("10.0.0.1"),
		SrcPort:         50000,
		DstIP:           net.ParseIP("10.0.0.2"),
		DstPort:         443,
		Content:         hello,
		ObservationTime: time.Unix(1600000000, 0).UTC(),
	}
}

func failureTraffic() gnet.NetTraffic {
	return gnet.NetTraffic{
		SrcIP:   net.ParseIP("10.0.0.3"),
		SrcPort: 50001,
		DstIP:   net.ParseIP("10.0.0.2"),
		DstPort: 443,
		Content: gnet.TLSDecodeFailure{
			ConnectionID: gid.GenerateConnectionID(),
			Err:          gtls.ErrUnexpectedEOF,
		},
	}
}

func feed(traffic ...gnet.NetTraffic) <-chan gnet.NetTraffic {
	c := make(chan gnet.NetTraffic, len(traffic))
	for _, t := range traffic {
		c <- t
	}
	close(c)
	return c
}

func TestWriteCaptureText(t *testing.T) {
	var out bytes.Buffer
	s, err := writeCapture(&out,
		feed(helloTraffic(t, "a.test"), failureTraffic(), helloTraffic(t, "b.test")),
		pcapOptions{failures: true})
	require.NoError(t, err)

	assert.Equal(t, 2, s.hellos)
	assert.Equal(t, 1, s.failures)
	assert.Equal(t, []string{"a.test", "b.test"}, sets.Sorted(s.serverNames))

	text := out.String()
	assert.Contains(t, text, "== 10.0.0.1:50000 -> 10.0.0.2:443 at 2020-09-13T12:26:40Z\n")
	assert.Contains(t, text, "SNI: a.test\n")
	assert.Contains(t, text, gtls.FailureEndOfStream.Message())
	assert.NotContains(t, text, "Raw:")
}

func TestWriteCaptureSNIFilter(t *testing.T) {
	var out bytes.Buffer
	s, err := writeCapture(&out,
		feed(helloTraffic(t, "a.test"), failureTraffic(), helloTraffic(t, "b.test")),
		pcapOptions{sni: []string{"b.test"}, failures: true, output: outputOptions{json: true}})
	require.NoError(t, err)

	assert.Equal(t, 1, s.hellos)
	assert.Equal(t, 0, s.failures)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1)

	var line capturedHello
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &line))
	assert.Equal(t, "10.0.0.1:50000", line.Src)
	require.NotNil(t, line.Report)
	assert.Equal(t, []string{"b.test"}, line.Report.SNI)
}

func TestWriteCaptureHidesFailuresByDefault(t *testing.T) {
	var out bytes.Buffer
	s, err := writeCapture(&out, feed(failureTraffic()), pcapOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, s.failures)
	assert.Empty(t, out.String())
}

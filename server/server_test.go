package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mel2oo/tlsprobe/config"
	"github.com/mel2oo/tlsprobe/gid"
	"github.com/mel2oo/tlsprobe/gnet/tls/tlstest"
	"github.com/mel2oo/tlsprobe/mempool"
	"github.com/mel2oo/tlsprobe/probe"
	"github.com/mel2oo/tlsprobe/report"
	"github.com/mel2oo/tlsprobe/session"
)

func newTestServer(t *testing.T, modify func(*config.Config)) *httptest.Server {
	t.Helper()

	cfg := config.Default()
	cfg.ProbeHost = "127.0.0.1"
	cfg.ReadTimeout = 2 * time.Second
	cfg.AcceptTimeout = 2 * time.Second
	if modify != nil {
		modify(&cfg)
	}

	pool, err := mempool.MakeBufferPool(cfg.PoolSize_bytes, cfg.PoolChunkSize_bytes)
	require.NoError(t, err)

	registry := session.NewRegistry(cfg.SessionTTL)
	t.Cleanup(registry.Close)

	prober := probe.NewProber(pool, probe.WithReadTimeout(cfg.ReadTimeout))
	ts := httptest.NewServer(New(cfg, registry, prober, zap.NewNop()).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func allocate(t *testing.T, ts *httptest.Server) allocation {
	t.Helper()
	resp, err := http.Get(ts.URL + "/?format=json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var a allocation
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&a))
	return a
}

// Connects to the probe port and sends data, leaving the connection open.
func sendToProbe(t *testing.T, port int, data []byte) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	if len(data) > 0 {
		_, err = conn.Write(data)
		require.NoError(t, err)
	}
	return conn
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestAllocateText(t *testing.T) {
	ts := newTestServer(t, nil)

	status, body := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, status)
	assert.Regexp(t, `^port: \d+, URL: `+ts.URL+`/report/prb_\w+\n$`, body)
}

func TestReportText(t *testing.T) {
	ts := newTestServer(t, nil)
	a := allocate(t, ts)
	assert.Equal(t, ts.URL+"/report/"+a.ID.String(), a.ReportURL)

	sendToProbe(t, a.Port, tlstest.Example().Marshal())

	status, body := get(t, a.ReportURL)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "SNI: example.com\n")
	assert.Contains(t, body, "  TLS 1.3 (0x0304)\n")
	assert.Contains(t, body, "ALPN: h2, http/1.1\n")

	// Reports are single use.
	status, _ = get(t, a.ReportURL)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestReportJSON(t *testing.T) {
	ts := newTestServer(t, nil)
	a := allocate(t, ts)

	// Delivered in small pieces.
	conn := sendToProbe(t, a.Port, nil)
	go func() {
		data := tlstest.Example().Marshal()
		for i := 0; i < len(data); i += 16 {
			end := i + 16
			if end > len(data) {
				end = len(data)
			}
			if _, err := conn.Write(data[i:end]); err != nil {
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	status, body := get(t, a.ReportURL+"?format=json")
	require.Equal(t, http.StatusOK, status)

	var rep report.Report
	require.NoError(t, json.Unmarshal([]byte(body), &rep))
	assert.Equal(t, []string{"example.com"}, rep.SNI)
	assert.False(t, rep.Compression)
	assert.Equal(t, "0b18fbdc14e24f2a2240d6f4e7ac9d76", rep.JA3Hash)
}

func TestReportUnknownProbe(t *testing.T) {
	ts := newTestServer(t, nil)

	id, err := gid.GenerateProbeID()
	require.NoError(t, err)

	for _, path := range []string{"/report/" + id.String(), "/report/not-an-id", "/ws/report/" + id.String()} {
		status, _ := get(t, ts.URL+path)
		assert.Equal(t, http.StatusNotFound, status, path)
	}
}

func TestReportFailures(t *testing.T) {
	serverHello := tlstest.Records(22, tlstest.HandshakeMessage(2, tlstest.Example().Body()), 0)
	corrupt := tlstest.Records(22, tlstest.HandshakeMessage(1, []byte{0x03, 0x03}), 0)

	testCases := []struct {
		name            string
		data            []byte
		closeAfterWrite bool
		expectedStatus  int
		expectedBody    string
	}{
		{"server hello", serverHello, false, http.StatusUnprocessableEntity, "Expected ClientHello\n"},
		{"corrupt", corrupt, false, http.StatusUnprocessableEntity, "Corrupt TLS message\n"},
		{"closed early", nil, true, http.StatusUnprocessableEntity, "Connection closed before ClientHello was received\n"},
		{"silent client", nil, false, http.StatusGatewayTimeout, "Timed out waiting for ClientHello\n"},
	}

	ts := newTestServer(t, func(c *config.Config) {
		c.ReadTimeout = 100 * time.Millisecond
	})
	for _, tc := range testCases {
		a := allocate(t, ts)
		conn := sendToProbe(t, a.Port, tc.data)
		if tc.closeAfterWrite {
			conn.Close()
		}

		status, body := get(t, a.ReportURL)
		assert.Equal(t, tc.expectedStatus, status, tc.name)
		assert.Equal(t, tc.expectedBody, body, tc.name)
	}
}

func TestReportFailureJSON(t *testing.T) {
	ts := newTestServer(t, nil)
	a := allocate(t, ts)
	sendToProbe(t, a.Port, []byte("GET / HTTP/1.1\r\nHost: example.com\r\n\r\n"))

	status, body := get(t, a.ReportURL+"?format=json")
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	var f failure
	require.NoError(t, json.Unmarshal([]byte(body), &f))
	assert.Equal(t, failure{Error: "malformed", Message: "Corrupt TLS message"}, f)
}

func TestAcceptTimeout(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) {
		c.AcceptTimeout = 50 * time.Millisecond
	})
	a := allocate(t, ts)

	status, _ := get(t, a.ReportURL)
	assert.Equal(t, http.StatusGatewayTimeout, status)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	allocate(t, ts)

	status, body := get(t, ts.URL+"/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok","pending_probes":1}`, body)
}

func TestReportWebsocket(t *testing.T) {
	ts := newTestServer(t, nil)
	a := allocate(t, ts)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/report/" + a.ID.String()
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	var waiting Message
	require.NoError(t, ws.ReadJSON(&waiting))
	assert.Equal(t, Message{Type: MessageWaiting, Port: a.Port}, waiting)

	sendToProbe(t, a.Port, tlstest.Example().Marshal())

	var msg Message
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, MessageReport, msg.Type)
	if assert.NotNil(t, msg.Report) {
		assert.Equal(t, []string{"example.com"}, msg.Report.SNI)
	}
}

func TestReportWebsocketFailure(t *testing.T) {
	ts := newTestServer(t, nil)
	a := allocate(t, ts)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/report/" + a.ID.String()
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	var waiting Message
	require.NoError(t, ws.ReadJSON(&waiting))

	sendToProbe(t, a.Port, tlstest.Records(22, tlstest.HandshakeMessage(2, tlstest.Example().Body()), 0))

	var msg Message
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, Message{Type: MessageError, Error: "unexpected_message", Message: "Expected ClientHello"}, msg)
}

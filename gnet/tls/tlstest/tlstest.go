// Package tlstest builds ClientHello wire bytes for tests and for exercising a
// running probe.
package tlstest

import (
	"golang.org/x/crypto/cryptobyte"
)

type Extension struct {
	Type uint16
	Data []byte
}

func SNI(names ...string) Extension {
	var b cryptobyte.Builder
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, name := range names {
			b.AddUint8(0) // host_name
			b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
				b.AddBytes([]byte(name))
			})
		}
	})
	return Extension{Type: 0, Data: b.BytesOrPanic()}
}

func SupportedVersions(versions ...uint16) Extension {
	var b cryptobyte.Builder
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, v := range versions {
			b.AddUint16(v)
		}
	})
	return Extension{Type: 43, Data: b.BytesOrPanic()}
}

func SupportedGroups(groups ...uint16) Extension {
	var b cryptobyte.Builder
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, g := range groups {
			b.AddUint16(g)
		}
	})
	return Extension{Type: 10, Data: b.BytesOrPanic()}
}

func ECPointFormats(formats ...uint8) Extension {
	var b cryptobyte.Builder
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(formats)
	})
	return Extension{Type: 11, Data: b.BytesOrPanic()}
}

func ALPN(protocols ...string) Extension {
	var b cryptobyte.Builder
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, p := range protocols {
			b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
				b.AddBytes([]byte(p))
			})
		}
	})
	return Extension{Type: 16, Data: b.BytesOrPanic()}
}

// A ClientHello to serialize. Fields are written as given, without validation,
// so tests can build malformed messages too.
type ClientHello struct {
	Version            uint16
	Random             [32]byte
	SessionID          []byte
	CipherSuites       []uint16
	CompressionMethods []uint8

	// Leaves out the extensions block entirely, rather than writing an empty
	// one.
	OmitExtensions bool
	Extensions     []Extension
}

// The ClientHello body, without the handshake header.
func (h ClientHello) Body() []byte {
	var b cryptobyte.Builder
	b.AddUint16(h.Version)
	b.AddBytes(h.Random[:])
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(h.SessionID)
	})
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, s := range h.CipherSuites {
			b.AddUint16(s)
		}
	})
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(h.CompressionMethods)
	})
	if !h.OmitExtensions {
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			for _, ext := range h.Extensions {
				b.AddUint16(ext.Type)
				b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
					b.AddBytes(ext.Data)
				})
			}
		})
	}
	return b.BytesOrPanic()
}

// The ClientHello as a handshake message.
func (h ClientHello) Handshake() []byte {
	return HandshakeMessage(1, h.Body())
}

// The ClientHello in a single handshake record.
func (h ClientHello) Marshal() []byte {
	return Records(22, h.Handshake(), 0)
}

func HandshakeMessage(msgType uint8, body []byte) []byte {
	var b cryptobyte.Builder
	b.AddUint8(msgType)
	b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(body)
	})
	return b.BytesOrPanic()
}

// Frames payload into records of the given content type, each carrying at most
// fragment bytes. fragment <= 0 puts everything in one record.
func Records(contentType uint8, payload []byte, fragment int) []byte {
	if fragment <= 0 {
		fragment = len(payload)
	}

	var b cryptobyte.Builder
	for first := true; first || len(payload) > 0; first = false {
		n := fragment
		if n > len(payload) {
			n = len(payload)
		}
		b.AddUint8(contentType)
		b.AddUint16(0x0301)
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddBytes(payload[:n])
		})
		payload = payload[n:]
	}
	return b.BytesOrPanic()
}

// A hello resembling what a current browser sends: TLS 1.3 and 1.2 suites,
// GREASE values, SNI, ALPN and supported_versions.
func Example() ClientHello {
	h := ClientHello{
		Version:   0x0303,
		SessionID: make([]byte, 32),
		CipherSuites: []uint16{
			0x1a1a, // GREASE
			0x1301, 0x1302, 0x1303,
			0xc02b, 0xc02f, 0xc02c, 0xc030,
			0xcca9, 0xcca8, 0xc013, 0xc014,
			0x009c, 0x009d, 0x002f, 0x0035,
		},
		CompressionMethods: []uint8{0},
		Extensions: []Extension{
			{Type: 0x2a2a},
			SNI("example.com"),
			{Type: 23}, // extended_master_secret
			{Type: 0xff01, Data: []byte{0}},
			SupportedGroups(0x3a3a, 29, 23, 24),
			ECPointFormats(0),
			{Type: 35},
			ALPN("h2", "http/1.1"),
			SupportedVersions(0x4a4a, 0x0304, 0x0303),
		},
	}
	for i := range h.Random {
		h.Random[i] = byte(i)
	}
	return h
}

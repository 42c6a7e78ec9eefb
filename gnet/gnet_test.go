package gnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTLSVersionString(t *testing.T) {
	testCases := map[TLSVersion]string{
		0x0300: "SSL 3.0",
		0x0303: "TLS 1.2",
		0x0304: "TLS 1.3",
		0x7f17: "TLS 1.3 Draft 23",
		0x0a0a: "GREASE",
		0x7f18: "UNKNOWN",
		0x0305: "UNKNOWN",
	}
	for v, expected := range testCases {
		assert.Equal(t, expected, v.String(), "version 0x%04x", uint16(v))
	}
}

func TestIsGREASE(t *testing.T) {
	for hi := 0; hi < 16; hi++ {
		v := uint16(hi<<12 | 0x0a00 | hi<<4 | 0x0a)
		assert.True(t, IsGREASE(v), "0x%04x", v)
	}
	for _, v := range []uint16{0x0000, 0x0a0b, 0x1a2a, 0x1301, 0xfafb} {
		assert.False(t, IsGREASE(v), "0x%04x", v)
	}
}

func TestClientHelloAccessors(t *testing.T) {
	hello := TLSClientHello{
		Version: TLS_v1_2,
		Extensions: []TLSExtension{
			UnknownExtension{Type: 0x0a0a},
			SNIExtension{ServerNames: []ServerName{{Name: "a.example"}, {Name: "b.example"}}},
			SupportedGroupsExtension{Groups: []uint16{29, 23}},
			ECPointFormatsExtension{Formats: []uint8{0}},
			ALPNExtension{Protocols: []string{"h2", "http/1.1"}},
			SupportedVersionsExtension{Versions: []TLSVersion{TLS_v1_3, TLS_v1_2}},
		},
	}

	assert.Equal(t, []string{"a.example", "b.example"}, hello.ServerNames())
	assert.Equal(t, []uint16{29, 23}, hello.SupportedCurves())
	assert.Equal(t, []uint8{0}, hello.SupportedPoints())
	assert.Equal(t, []string{"h2", "http/1.1"}, hello.ALPNProtocols())
	assert.Equal(t, []uint16{0x0a0a, 0, 10, 11, 16, 43}, hello.ExtensionTypes())

	versions, ok := hello.SupportedVersions()
	assert.True(t, ok)
	assert.Equal(t, []TLSVersion{TLS_v1_3, TLS_v1_2}, versions)

	_, ok = TLSClientHello{}.SupportedVersions()
	assert.False(t, ok)
	assert.Nil(t, TLSClientHello{}.ServerNames())
}

package ja3

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mel2oo/tlsprobe/gnet"
	gtls "github.com/mel2oo/tlsprobe/gnet/tls"
	"github.com/mel2oo/tlsprobe/gnet/tls/tlstest"
)

func TestString(t *testing.T) {
	testCases := []struct {
		name     string
		hello    gnet.TLSClientHello
		expected string
	}{
		{
			name:     "empty",
			hello:    gnet.TLSClientHello{Version: gnet.TLS_v1_0},
			expected: "769,,,,",
		},
		{
			name: "GREASE removed",
			hello: gnet.TLSClientHello{
				Version:      gnet.TLS_v1_2,
				CipherSuites: []uint16{0x0a0a, 0x1301, 0xc02f},
				Extensions: []gnet.TLSExtension{
					gnet.UnknownExtension{Type: 0xfafa},
					gnet.SNIExtension{},
					gnet.SupportedGroupsExtension{Groups: []uint16{0x2a2a, 29, 23}},
					gnet.ECPointFormatsExtension{Formats: []uint8{0, 1}},
				},
			},
			expected: "771,4865-49199,0-10-11,29-23,0-1",
		},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, String(tc.hello), tc.name)
	}
}

func TestHashOfDecodedHello(t *testing.T) {
	hello, err := gtls.DecodeClientHello(tlstest.Example().Marshal())
	assert.NoError(t, err)

	expected := "771,4865-4866-4867-49195-49199-49196-49200-52393-52392-49171-49172-156-157-47-53," +
		"0-23-65281-10-11-35-16-43,29-23-24,0"
	assert.Equal(t, expected, String(hello))

	assert.Equal(t, "0b18fbdc14e24f2a2240d6f4e7ac9d76", Hash(hello))
	assert.Equal(t, "f5d1076d0d11b5cd81c4c4e8e8ee881a", Hash(gnet.TLSClientHello{Version: gnet.TLS_v1_0}))
}

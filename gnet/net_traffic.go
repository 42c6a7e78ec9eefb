package gnet

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/mel2oo/tlsprobe/gid"
)

// Represents a piece of network content, with the endpoints it was seen
// between. Produced when replaying capture files.
type NetTraffic struct {
	SrcIP   net.IP
	SrcPort int
	DstIP   net.IP
	DstPort int
	Content ParsedNetworkContent

	// The time at which the first packet was observed
	ObservationTime time.Time

	// The time at which the final packet arrived, for
	// multi-packet content.  Equal to ObservationTime
	// for single packets.
	FinalPacketTime time.Time
}

// Interface implemented by all types of data that can be parsed from the
// network.
type ParsedNetworkContent interface {
	ReleaseBuffers()
	Print() string
}

// Represents a TLS ClientHello message, decoded in full.
type TLSClientHello struct {
	// Identifies the TCP connection to which this message belongs.
	ConnectionID gid.ConnectionID

	// The legacy client_version field. TLS 1.3 clients put 0x0303 here and list
	// what they really support in the supported_versions extension.
	Version TLSVersion

	Random    [32]byte
	SessionID []byte

	// Cipher suites in client preference order.
	CipherSuites []uint16

	CompressionMethods []uint8

	// Extensions in the order the client sent them.
	Extensions []TLSExtension
}

var _ ParsedNetworkContent = (*TLSClientHello)(nil)

func (TLSClientHello) ReleaseBuffers() {}
func (h TLSClientHello) Print() string {
	return fmt.Sprintf("## TLS -> ClientHello: %s %s sni=[%s] ciphers=%d extensions=%d",
		h.ConnectionID, h.Version, strings.Join(h.ServerNames(), ","),
		len(h.CipherSuites), len(h.Extensions))
}

// Host names from the SNI extension, in the order sent. Nil without SNI.
func (h TLSClientHello) ServerNames() []string {
	var names []string
	for _, ext := range h.Extensions {
		if sni, ok := ext.(SNIExtension); ok {
			for _, n := range sni.ServerNames {
				names = append(names, n.Name)
			}
		}
	}
	return names
}

// Versions from the supported_versions extension, and whether the extension
// was present at all.
func (h TLSClientHello) SupportedVersions() ([]TLSVersion, bool) {
	for _, ext := range h.Extensions {
		if sv, ok := ext.(SupportedVersionsExtension); ok {
			return sv.Versions, true
		}
	}
	return nil, false
}

// Named groups from the supported_groups (elliptic curves) extension.
func (h TLSClientHello) SupportedCurves() []uint16 {
	for _, ext := range h.Extensions {
		if g, ok := ext.(SupportedGroupsExtension); ok {
			return g.Groups
		}
	}
	return nil
}

// Formats from the ec_point_formats extension.
func (h TLSClientHello) SupportedPoints() []uint8 {
	for _, ext := range h.Extensions {
		if p, ok := ext.(ECPointFormatsExtension); ok {
			return p.Formats
		}
	}
	return nil
}

// The list of protocols supported by the client, as seen in the ALPN
// extension.
func (h TLSClientHello) ALPNProtocols() []string {
	for _, ext := range h.Extensions {
		if a, ok := ext.(ALPNExtension); ok {
			return a.Protocols
		}
	}
	return nil
}

// Extension type codes in wire order.
func (h TLSClientHello) ExtensionTypes() []uint16 {
	types := make([]uint16, 0, len(h.Extensions))
	for _, ext := range h.Extensions {
		types = append(types, ext.ExtensionType())
	}
	return types
}

// Emitted in place of a ClientHello when a stream looked like TLS but could
// not be decoded.
type TLSDecodeFailure struct {
	ConnectionID gid.ConnectionID
	Err          error
}

var _ ParsedNetworkContent = (*TLSDecodeFailure)(nil)

func (TLSDecodeFailure) ReleaseBuffers() {}
func (f TLSDecodeFailure) Print() string {
	return fmt.Sprintf("## TLS -> undecodable ClientHello: %s %v", f.ConnectionID, f.Err)
}

package report

import (
	"github.com/davecgh/go-spew/spew"

	"github.com/mel2oo/tlsprobe/gnet"
	"github.com/mel2oo/tlsprobe/ja3"
	"github.com/mel2oo/tlsprobe/slices"
)

type Version struct {
	Name    string `json:"name"`
	Version uint16 `json:"version"`
}

type Cipher struct {
	Name string `json:"name"`
	ID   uint16 `json:"id"`
}

type Extension struct {
	Name string `json:"name"`
	Type uint16 `json:"type"`
}

// What a client offered in its ClientHello, ready to render. Lists keep the
// order the client sent them in.
type Report struct {
	ConnectionID string `json:"connection_id"`

	// From supported_versions when the client sent it, otherwise the legacy
	// client_version alone.
	Versions []Version `json:"versions"`

	Ciphers []Cipher `json:"ciphers"`

	// True if any compression method other than null is offered.
	Compression bool `json:"compression"`

	SNI        []string    `json:"sni"`
	ALPN       []string    `json:"alpn"`
	Extensions []Extension `json:"extensions"`

	JA3     string `json:"ja3"`
	JA3Hash string `json:"ja3_hash"`

	// Dump of the decoded message, for debugging.
	Raw string `json:"raw,omitempty"`
}

var rawDumper = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

func New(hello gnet.TLSClientHello) Report {
	versions, ok := hello.SupportedVersions()
	if !ok {
		versions = []gnet.TLSVersion{hello.Version}
	}

	r := Report{
		ConnectionID: hello.ConnectionID.String(),
		Versions: slices.Map(versions, func(v gnet.TLSVersion) Version {
			return Version{Name: v.String(), Version: uint16(v)}
		}),
		Ciphers: slices.Map(hello.CipherSuites, func(id uint16) Cipher {
			return Cipher{Name: CipherSuiteName(id), ID: id}
		}),
		SNI:  slices.Map(hello.ServerNames(), identity[string]),
		ALPN: slices.Map(hello.ALPNProtocols(), identity[string]),
		Extensions: slices.Map(hello.ExtensionTypes(), func(t uint16) Extension {
			return Extension{Name: gnet.ExtensionName(t), Type: t}
		}),
		JA3:     ja3.String(hello),
		JA3Hash: ja3.Hash(hello),
		Raw:     rawDumper.Sdump(hello),
	}

	for _, m := range hello.CompressionMethods {
		if m != 0 {
			r.Compression = true
		}
	}

	return r
}

// Used with slices.Map to copy a possibly nil slice into a non-nil one.
func identity[T any](v T) T { return v }

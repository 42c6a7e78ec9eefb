package tls

import (
	"github.com/mel2oo/tlsprobe/gid"
	"github.com/mel2oo/tlsprobe/gnet"
	"github.com/mel2oo/tlsprobe/memview"
)

// Decodes the body of a ClientHello handshake message. Every length prefix is
// checked against the bytes that remain; any violation is ErrMalformed.
//
//	client_version(2) random(32)
//	session_id_length(1) session_id
//	cipher_suites_length(2) cipher_suites
//	compression_methods_length(1) compression_methods
//	[extensions_length(2) extensions]
func decodeClientHello(cid gid.ConnectionID, body memview.MemView) (gnet.TLSClientHello, error) {
	reader := body.CreateReader()
	hello := gnet.TLSClientHello{ConnectionID: cid}

	version, err := reader.ReadUint16()
	if err != nil {
		return hello, malformed("client version", err)
	}
	hello.Version = gnet.TLSVersion(version)

	random, err := reader.ReadBytes(clientRandomLength_bytes)
	if err != nil {
		return hello, malformed("random", err)
	}
	copy(hello.Random[:], random)

	sessionIDLen, sessionIDReader, err := reader.ReadByteAndTruncate()
	if err != nil {
		return hello, malformed("session id", err)
	}
	if sessionIDLen > maxSessionIDLength_bytes {
		return hello, malformed("session id", nil)
	}
	hello.SessionID, _ = sessionIDReader.ReadBytes(int(sessionIDLen))

	suitesLen, suitesReader, err := reader.ReadUint16AndTruncate()
	if err != nil {
		return hello, malformed("cipher suites", err)
	}
	if suitesLen == 0 || suitesLen%2 != 0 {
		return hello, malformed("cipher suites", nil)
	}
	hello.CipherSuites = make([]uint16, 0, suitesLen/2)
	for suitesReader.Remaining() > 0 {
		suite, _ := suitesReader.ReadUint16()
		hello.CipherSuites = append(hello.CipherSuites, suite)
	}

	compressionLen, compressionReader, err := reader.ReadByteAndTruncate()
	if err != nil {
		return hello, malformed("compression methods", err)
	}
	hello.CompressionMethods, _ = compressionReader.ReadBytes(int(compressionLen))

	// The extensions block is optional.
	hello.Extensions = []gnet.TLSExtension{}
	if reader.Remaining() == 0 {
		return hello, nil
	}

	_, extensionsReader, err := reader.ReadUint16AndTruncate()
	if err != nil {
		return hello, malformed("extensions", err)
	}
	if reader.Remaining() != 0 {
		return hello, malformed("trailing bytes after extensions", nil)
	}

	hello.Extensions, err = decodeExtensions(extensionsReader)
	if err != nil {
		return hello, err
	}
	return hello, nil
}

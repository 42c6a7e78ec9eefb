package tls

const (
	// Minimum number of bytes needed before we can determine whether we can
	// accept some bytes as a TLS Client Hello.
	//
	// We read through to the client version, to have better assurance that we
	// don't accidentally match against something else.
	//
	//   Record header (5 bytes)
	//     16 - handshake record
	//     03 XX - record-layer protocol version
	//     XX XX - bytes of handshake message follows
	//
	//   Handshake header (4 bytes)
	//     01 - Client Hello
	//     XX XX XX - bytes of Client Hello follows
	//
	//   Client Version (2 bytes)
	//     03 XX - protocol version
	minTLSClientHelloLength_bytes = 11

	// content type(1) + version(2) + length(2)
	recordHeaderLength_bytes = 5

	// Every SSL 3.0 and TLS record version is 3.x.
	recordMajorVersion = 0x03

	// Largest record payload we accept. This is the TLSCiphertext bound
	// (2^14 + 2048); plaintext records are smaller still.
	maxRecordPayload_bytes = 1<<14 + 2048

	// msg type(1) + length(3)
	handshakeHeaderLength_bytes = 4

	clientVersionLength_bytes = 2
	clientRandomLength_bytes  = 32
	maxSessionIDLength_bytes  = 32

	// Default cap on the declared length of a handshake message. Real
	// ClientHellos are a few hundred bytes; post-quantum key shares push some
	// past 1 KiB.
	DefaultMaxHandshakeLength_bytes = 64 * 1024
)

type contentType uint8

const (
	changeCipherSpecContentType contentType = 20
	alertContentType            contentType = 21
	handshakeContentType        contentType = 22
	applicationDataContentType  contentType = 23
)

func (t contentType) String() string {
	switch t {
	case changeCipherSpecContentType:
		return "change_cipher_spec"
	case alertContentType:
		return "alert"
	case handshakeContentType:
		return "handshake"
	case applicationDataContentType:
		return "application_data"
	default:
		return "unknown"
	}
}

type handshakeType uint8

const (
	helloRequestHandshakeType handshakeType = 0
	clientHelloHandshakeType  handshakeType = 1
	serverHelloHandshakeType  handshakeType = 2
	certificateHandshakeType  handshakeType = 11
)

func (t handshakeType) String() string {
	switch t {
	case helloRequestHandshakeType:
		return "HelloRequest"
	case clientHelloHandshakeType:
		return "ClientHello"
	case serverHelloHandshakeType:
		return "ServerHello"
	case certificateHandshakeType:
		return "Certificate"
	default:
		return "unknown"
	}
}

package gnet

// TLS extension numbers
const (
	ServerNameExtensionType        uint16 = 0
	SupportedGroupsExtensionType   uint16 = 10
	ECPointFormatsExtensionType    uint16 = 11
	ALPNExtensionType              uint16 = 16
	SupportedVersionsExtensionType uint16 = 0x00_2b
)

// One extension from a ClientHello. The concrete type says how much of it was
// understood: UnknownExtension carries anything else verbatim.
type TLSExtension interface {
	ExtensionType() uint16
}

type ServerName struct {
	// 0 is a DNS host name, the only type RFC 6066 defines.
	Type uint8

	// Decoded as UTF-8; invalid sequences are replaced with U+FFFD.
	Name string
}

type SNIExtension struct {
	ServerNames []ServerName
}

func (SNIExtension) ExtensionType() uint16 { return ServerNameExtensionType }

type SupportedVersionsExtension struct {
	Versions []TLSVersion
}

func (SupportedVersionsExtension) ExtensionType() uint16 { return SupportedVersionsExtensionType }

type SupportedGroupsExtension struct {
	Groups []uint16
}

func (SupportedGroupsExtension) ExtensionType() uint16 { return SupportedGroupsExtensionType }

type ECPointFormatsExtension struct {
	Formats []uint8
}

func (ECPointFormatsExtension) ExtensionType() uint16 { return ECPointFormatsExtensionType }

type ALPNExtension struct {
	Protocols []string
}

func (ALPNExtension) ExtensionType() uint16 { return ALPNExtensionType }

type UnknownExtension struct {
	Type uint16
	Raw  []byte
}

func (e UnknownExtension) ExtensionType() uint16 { return e.Type }

var extensionNames = map[uint16]string{
	0:      "server_name",
	1:      "max_fragment_length",
	5:      "status_request",
	10:     "supported_groups",
	11:     "ec_point_formats",
	13:     "signature_algorithms",
	15:     "heartbeat",
	16:     "application_layer_protocol_negotiation",
	17:     "status_request_v2",
	18:     "signed_certificate_timestamp",
	21:     "padding",
	22:     "encrypt_then_mac",
	23:     "extended_master_secret",
	27:     "compress_certificate",
	28:     "record_size_limit",
	34:     "delegated_credential",
	35:     "session_ticket",
	41:     "pre_shared_key",
	42:     "early_data",
	43:     "supported_versions",
	44:     "cookie",
	45:     "psk_key_exchange_modes",
	47:     "certificate_authorities",
	49:     "post_handshake_auth",
	50:     "signature_algorithms_cert",
	51:     "key_share",
	57:     "quic_transport_parameters",
	13172:  "next_protocol_negotiation",
	17513:  "application_settings",
	17613:  "application_settings_new",
	0xfe0d: "encrypted_client_hello",
	0xff01: "renegotiation_info",
}

// Returns the IANA name of an extension type, "GREASE" for reserved GREASE
// values (RFC 8701), or "UNKNOWN".
func ExtensionName(extType uint16) string {
	if IsGREASE(extType) {
		return "GREASE"
	}
	if name, ok := extensionNames[extType]; ok {
		return name
	}
	return "UNKNOWN"
}

// Reports whether v is one of the GREASE values 0x0a0a, 0x1a1a, ..., 0xfafa
// that clients sprinkle into lists to keep servers tolerant of unknown codes.
func IsGREASE(v uint16) bool {
	return v&0x0f0f == 0x0a0a && v>>8 == v&0xff
}

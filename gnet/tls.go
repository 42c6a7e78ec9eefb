package gnet

const (
	SSL_v3_0 TLSVersion = 0x0300
	TLS_v1_0 TLSVersion = 0x0301
	TLS_v1_1 TLSVersion = 0x0302
	TLS_v1_2 TLSVersion = 0x0303
	TLS_v1_3 TLSVersion = 0x0304
)

type TLSVersion uint16

// Human-readable version name, e.g. "TLS 1.2". Pre-standard TLS 1.3 draft
// codes (0x7fXX) are still sent by some old clients.
func (v TLSVersion) String() string {
	switch v {
	case SSL_v3_0:
		return "SSL 3.0"
	case TLS_v1_0:
		return "TLS 1.0"
	case TLS_v1_1:
		return "TLS 1.1"
	case TLS_v1_2:
		return "TLS 1.2"
	case TLS_v1_3:
		return "TLS 1.3"
	case 0x7f12:
		return "TLS 1.3 Draft 18"
	case 0x7f13:
		return "TLS 1.3 Draft 19"
	case 0x7f14:
		return "TLS 1.3 Draft 20"
	case 0x7f15:
		return "TLS 1.3 Draft 21"
	case 0x7f16:
		return "TLS 1.3 Draft 22"
	case 0x7f17:
		return "TLS 1.3 Draft 23"
	}
	if IsGREASE(uint16(v)) {
		return "GREASE"
	}
	return "UNKNOWN"
}

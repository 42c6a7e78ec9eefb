package tls

import (
	"strings"

	"github.com/mel2oo/tlsprobe/gnet"
	"github.com/mel2oo/tlsprobe/memview"
)

// Walks an extensions block, which must be exhausted exactly by whole
// type(2) length(2) data entries. Unrecognized extension types are returned as
// gnet.UnknownExtension.
func decodeExtensions(reader *memview.MemViewReader) ([]gnet.TLSExtension, error) {
	result := []gnet.TLSExtension{}

	for reader.Remaining() > 0 {
		extType, err := reader.ReadUint16()
		if err != nil {
			return nil, malformed("extension type", err)
		}

		// Isolate the extension data in its own reader.
		_, dataReader, err := reader.ReadUint16AndTruncate()
		if err != nil {
			return nil, malformed(gnet.ExtensionName(extType), err)
		}

		ext, err := decodeExtension(extType, dataReader)
		if err != nil {
			return nil, err
		}
		result = append(result, ext)
	}

	return result, nil
}

func decodeExtension(extType uint16, reader *memview.MemViewReader) (gnet.TLSExtension, error) {
	var ext gnet.TLSExtension
	var err error

	switch extType {
	case gnet.ServerNameExtensionType:
		ext, err = decodeServerNameExtension(reader)
	case gnet.SupportedVersionsExtensionType:
		ext, err = decodeSupportedVersionsExtension(reader)
	case gnet.SupportedGroupsExtensionType:
		ext, err = decodeSupportedGroupsExtension(reader)
	case gnet.ECPointFormatsExtensionType:
		ext, err = decodeECPointFormatsExtension(reader)
	case gnet.ALPNExtensionType:
		ext, err = decodeALPNExtension(reader)
	default:
		raw, _ := reader.ReadBytes(int(reader.Remaining()))
		return gnet.UnknownExtension{Type: extType, Raw: raw}, nil
	}

	if err != nil {
		return nil, malformed(gnet.ExtensionName(extType), err)
	}
	if reader.Remaining() != 0 {
		return nil, malformed(gnet.ExtensionName(extType), errTrailingBytes)
	}
	return ext, nil
}

// The SNI extension is a list of server names, each tagged with a name type.
// RFC 6066 only defines DNS host names (type 0), but every entry is kept.
// Names are decoded leniently: invalid UTF-8 is replaced, never rejected.
func decodeServerNameExtension(reader *memview.MemViewReader) (gnet.TLSExtension, error) {
	result := gnet.SNIExtension{ServerNames: []gnet.ServerName{}}

	// Servers echo an empty SNI extension; accept the same from clients.
	if reader.Remaining() == 0 {
		return result, nil
	}

	_, listReader, err := reader.ReadUint16AndTruncate()
	if err != nil {
		return nil, err
	}

	for listReader.Remaining() > 0 {
		nameType, err := listReader.ReadByte()
		if err != nil {
			return nil, err
		}

		nameLen, nameReader, err := listReader.ReadUint16AndTruncate()
		if err != nil {
			return nil, err
		}
		name, _ := nameReader.ReadBytes(int(nameLen))

		result.ServerNames = append(result.ServerNames, gnet.ServerName{
			Type: nameType,
			Name: strings.ToValidUTF8(string(name), "�"),
		})
	}

	return result, nil
}

func decodeSupportedVersionsExtension(reader *memview.MemViewReader) (gnet.TLSExtension, error) {
	_, listReader, err := reader.ReadByteAndTruncate()
	if err != nil {
		return nil, err
	}

	values, err := readUint16List(listReader)
	if err != nil {
		return nil, err
	}

	result := gnet.SupportedVersionsExtension{Versions: make([]gnet.TLSVersion, 0, len(values))}
	for _, v := range values {
		result.Versions = append(result.Versions, gnet.TLSVersion(v))
	}
	return result, nil
}

func decodeSupportedGroupsExtension(reader *memview.MemViewReader) (gnet.TLSExtension, error) {
	_, listReader, err := reader.ReadUint16AndTruncate()
	if err != nil {
		return nil, err
	}

	groups, err := readUint16List(listReader)
	if err != nil {
		return nil, err
	}
	return gnet.SupportedGroupsExtension{Groups: groups}, nil
}

func decodeECPointFormatsExtension(reader *memview.MemViewReader) (gnet.TLSExtension, error) {
	formatsLen, formatsReader, err := reader.ReadByteAndTruncate()
	if err != nil {
		return nil, err
	}

	formats, _ := formatsReader.ReadBytes(int(formatsLen))
	return gnet.ECPointFormatsExtension{Formats: formats}, nil
}

// The ALPN extension is a uint16-prefixed list of uint8-prefixed protocol
// names, in client preference order.
func decodeALPNExtension(reader *memview.MemViewReader) (gnet.TLSExtension, error) {
	_, listReader, err := reader.ReadUint16AndTruncate()
	if err != nil {
		return nil, err
	}

	result := gnet.ALPNExtension{Protocols: []string{}}
	for listReader.Remaining() > 0 {
		protoLen, protoReader, err := listReader.ReadByteAndTruncate()
		if err != nil {
			return nil, err
		}
		proto, _ := protoReader.ReadBytes(int(protoLen))
		result.Protocols = append(result.Protocols, string(proto))
	}
	return result, nil
}

func readUint16List(reader *memview.MemViewReader) ([]uint16, error) {
	if reader.Remaining()%2 != 0 {
		return nil, errOddLength
	}

	result := make([]uint16, 0, reader.Remaining()/2)
	for reader.Remaining() > 0 {
		v, _ := reader.ReadUint16()
		result = append(result, v)
	}
	return result, nil
}

package tls

import (
	"github.com/mel2oo/tlsprobe/gnet"
	"github.com/mel2oo/tlsprobe/memview"
)

// One TLS record, as framed on the wire. The payload aliases the input it was
// deframed from.
type rawRecord struct {
	contentType contentType
	version     gnet.TLSVersion
	payload     memview.MemView
}

// Parses the record at the front of input. Returns the record and the number of
// input bytes it occupies.
//
// Returns errIncomplete if input holds less than the header or the declared
// payload. Returns ErrMalformed if the header is not a TLS record header (the
// major version is always 3) or declares more payload than any legal record.
func deframeRecord(input memview.MemView) (rec rawRecord, consumed_bytes int64, err error) {
	if input.Len() < recordHeaderLength_bytes {
		return rawRecord{}, 0, errIncomplete
	}

	if input.GetByte(1) != recordMajorVersion {
		return rawRecord{}, 0, malformed("record version", nil)
	}

	payloadLen_bytes := int64(input.GetUint16(3))
	if payloadLen_bytes > maxRecordPayload_bytes {
		return rawRecord{}, 0, malformed("record length", nil)
	}

	end := recordHeaderLength_bytes + payloadLen_bytes
	if input.Len() < end {
		return rawRecord{}, 0, errIncomplete
	}

	rec = rawRecord{
		contentType: contentType(input.GetByte(0)),
		version:     gnet.TLSVersion(input.GetUint16(1)),
		payload:     input.SubView(recordHeaderLength_bytes, end),
	}
	return rec, end, nil
}

package gid

import (
	"github.com/google/uuid"
)

const (
	ConnectionTag = "cxn"
	ProbeTag      = "prb"
)

// ConnectionID identifies one TCP connection whose ClientHello was decoded,
// whether accepted live or reassembled from a capture file.
type ConnectionID struct {
	baseID
}

func (ConnectionID) GetType() string {
	return ConnectionTag
}

func (id ConnectionID) String() string {
	return String(id)
}

func NewConnectionID(ID uuid.UUID) ConnectionID {
	return ConnectionID{baseID(ID)}
}

func GenerateConnectionID() ConnectionID {
	return NewConnectionID(uuid.New())
}

func (id ConnectionID) MarshalText() ([]byte, error) {
	return toText(id)
}

func (id *ConnectionID) UnmarshalText(data []byte) error {
	parsed, err := ParseConnectionID(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func ParseConnectionID(str string) (ConnectionID, error) {
	u, err := parseIDParts(str, ConnectionTag)
	if err != nil {
		return ConnectionID{}, err
	}
	return NewConnectionID(u), nil
}

// ProbeID is the opaque handle a user receives when a probe endpoint is
// allocated, and later presents to fetch that probe's report.
type ProbeID struct {
	baseID
}

func (ProbeID) GetType() string {
	return ProbeTag
}

func (id ProbeID) String() string {
	return String(id)
}

func NewProbeID(ID uuid.UUID) ProbeID {
	return ProbeID{baseID(ID)}
}

// Probe IDs are handed to whoever asks for one and grant access to a report,
// so they come from a random (v4) UUID.
func GenerateProbeID() (ProbeID, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return ProbeID{}, err
	}
	return NewProbeID(u), nil
}

func (id ProbeID) MarshalText() ([]byte, error) {
	return toText(id)
}

func (id *ProbeID) UnmarshalText(data []byte) error {
	parsed, err := ParseProbeID(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func ParseProbeID(str string) (ProbeID, error) {
	u, err := parseIDParts(str, ProbeTag)
	if err != nil {
		return ProbeID{}, err
	}
	return NewProbeID(u), nil
}

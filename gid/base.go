package gid

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

var (
	baseBigInt = big.NewInt(62)
)

type ID interface {
	GetType() string
	GetUUID() uuid.UUID
	String() string
}

// Base ID structure. Embed this in your own IDs.
// This will implement part of the GID interface for you.
type baseID uuid.UUID

func (bid baseID) GetUUID() uuid.UUID {
	return uuid.UUID(bid)
}

// Renders an ID as "<tag>_<base62 uuid>".
func String(gid ID) string {
	return fmt.Sprintf("%s_%s", gid.GetType(), encodeUUID(gid.GetUUID()))
}

func toText(gid ID) ([]byte, error) {
	return []byte(String(gid)), nil
}

// Splits "<tag>_<base62 uuid>" and checks the tag against expectedTag.
func parseIDParts(str, expectedTag string) (uuid.UUID, error) {
	tag, encoded, found := strings.Cut(str, "_")
	if !found || encoded == "" {
		return uuid.Nil, errors.New("invalid GID structure")
	}
	if tag != expectedTag {
		return uuid.Nil, errors.Errorf("expected a %q GID, got tag %q", expectedTag, tag)
	}
	id, err := decodeUUID(encoded)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "invalid unique id part of GID")
	}
	return id, nil
}

func encodeUUID(u uuid.UUID) string {
	uuidBs := [16]byte(u)
	n := big.NewInt(0)
	n.SetBytes(uuidBs[:])

	destBs := make([]byte, 0, 22)
	for n.Cmp(big.NewInt(0)) > 0 {
		r := big.NewInt(0)
		r.Mod(n, baseBigInt)
		n = n.Div(n, baseBigInt)
		destBs = append([]byte{alphabet[r.Int64()]}, destBs...)
	}

	// Always return a 22-character encoding, which is the maximum length
	// of an encoded UUID.  Pad the front with 0s if necessary.
	return strings.Repeat("0", 22-len(destBs)) + string(destBs)
}

func decodeUUID(s string) (uuid.UUID, error) {
	if len(s) > 22 {
		return uuid.Nil, errors.Errorf("base62 literal too long: %d characters", len(s))
	}

	var bigI big.Int
	for _, c := range []byte(s) {
		i := strings.IndexByte(alphabet, c)
		if i < 0 {
			return uuid.Nil, errors.Errorf("unexpected character %c in base62 literal", c)
		}
		bigI.Mul(&bigI, baseBigInt)
		bigI.Add(&bigI, big.NewInt(int64(i)))
	}

	uuidBytes := bigI.Bytes()
	if len(uuidBytes) > 16 {
		return uuid.Nil, errors.Errorf("cannot have more than 16 bytes of UUID")
	} else if len(uuidBytes) < 16 {
		// The zero padding need to go to the front / most significant position.
		tmp := make([]byte, 16)
		copy(tmp[16-len(uuidBytes):], uuidBytes)
		uuidBytes = tmp
	}

	return uuid.FromBytes(uuidBytes)
}
